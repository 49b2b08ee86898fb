package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tmokoena/escrow-backend/internal/models"
	repo "github.com/tmokoena/escrow-backend/internal/repository"
)

type APIError struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, code, msg string, details any) {
	WriteJSON(w, status, APIError{Error: msg, Code: code, Details: details})
}

// WriteDomainError maps the engine's error taxonomy onto HTTP. Every
// expected command outcome lands here; anything unrecognized is a 500.
func WriteDomainError(w http.ResponseWriter, err error) {
	var verrs models.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		WriteError(w, http.StatusBadRequest, "validation_error", "invalid input", verrs)
	case errors.Is(err, models.ErrForbidden):
		WriteError(w, http.StatusForbidden, "forbidden", err.Error(), nil)
	case errors.Is(err, models.ErrInvitationExpired):
		WriteError(w, http.StatusForbidden, "invitation_expired", err.Error(), nil)
	case errors.Is(err, models.ErrInvalidTransition), errors.Is(err, repo.ErrStatusConflict):
		WriteError(w, http.StatusConflict, "invalid_transition", err.Error(), nil)
	case errors.Is(err, models.ErrAlreadyHasActiveDispute):
		WriteError(w, http.StatusConflict, "dispute_exists", err.Error(), nil)
	case errors.Is(err, models.ErrAlreadyResolved):
		WriteError(w, http.StatusConflict, "already_resolved", err.Error(), nil)
	case errors.Is(err, models.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "not found", nil)
	case errors.Is(err, models.ErrAdapterFailure):
		WriteError(w, http.StatusBadGateway, "adapter_failure", err.Error(), nil)
	case errors.Is(err, models.ErrTransient):
		WriteError(w, http.StatusServiceUnavailable, "transient_error", "temporary storage failure, retry", nil)
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}
