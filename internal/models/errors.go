package models

import (
	"errors"
	"strings"
)

// Command outcomes the engine reports to callers. Every failed command
// maps to exactly one of these; nothing else escapes the service layer.
var (
	ErrForbidden               = errors.New("actor not allowed to perform this command")
	ErrInvalidTransition       = errors.New("invalid status transition")
	ErrAlreadyHasActiveDispute = errors.New("transaction already has an active dispute")
	ErrAlreadyResolved         = errors.New("dispute already resolved")
	ErrAdapterFailure          = errors.New("payment attempt could not be issued")
	ErrTransient               = errors.New("transient persistence failure")
	ErrNotFound                = errors.New("not found")
	ErrInvitationExpired       = errors.New("invitation expired")
)

type FieldError struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

type ValidationErrors []FieldError

func (e ValidationErrors) Error() string {
	var b strings.Builder
	for i, fe := range e {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(fe.Field + ": " + fe.Msg)
	}
	return b.String()
}
