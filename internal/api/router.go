package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/tmokoena/escrow-backend/internal/api/httpx"
	"github.com/tmokoena/escrow-backend/internal/auth"
	"github.com/tmokoena/escrow-backend/internal/config"
	"github.com/tmokoena/escrow-backend/internal/metrics"
	"github.com/tmokoena/escrow-backend/internal/middleware"
	"github.com/tmokoena/escrow-backend/internal/models"
	"github.com/tmokoena/escrow-backend/internal/notifier"
	repo "github.com/tmokoena/escrow-backend/internal/repository"
	"github.com/tmokoena/escrow-backend/internal/services"
)

type commandReq struct {
	Command      string `json:"command"`
	Method       string `json:"method,omitempty"`
	ForceSuccess *bool  `json:"force_success,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Description  string `json:"description,omitempty"`
	Resolution   string `json:"resolution,omitempty"`
}

func (c commandReq) payload() services.CommandPayload {
	return services.CommandPayload{
		Method:       models.PaymentMethod(c.Method),
		ForceOutcome: c.ForceSuccess,
		Reason:       c.Reason,
		Description:  c.Description,
		Resolution:   models.DisputeResolution(c.Resolution),
	}
}

func NewRouter(cfg config.Config, tm *auth.TokenManager, us *services.UserService, es *services.EscrowService, nf *notifier.Notifier) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics, middleware.RateLimit(cfg.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	authmw := middleware.NewAuthMiddleware(tm)

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// ---------- auth ----------
		r.Post("/auth/register", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				DisplayName string `json:"display_name"`
				Email       string `json:"email"`
				Password    string `json:"password"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpx.WriteError(w, http.StatusBadRequest, "bad_request", "bad request", nil)
				return
			}
			u, err := us.Register(r.Context(), req.DisplayName, req.Email, req.Password)
			if err != nil {
				httpx.WriteDomainError(w, err)
				return
			}
			httpx.WriteJSON(w, http.StatusCreated, u)
		})

		r.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
			var req struct{ Email, Password string }
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpx.WriteError(w, http.StatusBadRequest, "bad_request", "bad request", nil)
				return
			}
			pair, err := us.Login(r.Context(), req.Email, req.Password)
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials", nil)
				return
			}
			httpx.WriteJSON(w, http.StatusOK, pair)
		})

		r.Post("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				RefreshToken string `json:"refresh_token"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
				httpx.WriteError(w, http.StatusBadRequest, "bad_request", "bad request", nil)
				return
			}
			pair, err := us.Refresh(r.Context(), req.RefreshToken)
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid refresh token", nil)
				return
			}
			httpx.WriteJSON(w, http.StatusOK, pair)
		})

		// ---------- authenticated ----------
		r.Group(func(r chi.Router) {
			r.Use(authmw.Auth)

			// create transaction; the decimal amount is converted to
			// minor units here, before the engine sees it
			r.Post("/transactions", func(w http.ResponseWriter, r *http.Request) {
				uid, _ := middleware.UserID(r.Context())
				var req struct {
					Title         string `json:"title"`
					Description   string `json:"description"`
					Amount        string `json:"amount"`
					Currency      string `json:"currency"`
					DeliveryTerms string `json:"delivery_terms"`
					DueDate       string `json:"due_date,omitempty"`
					SellerEmail   string `json:"seller_email"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					httpx.WriteError(w, http.StatusBadRequest, "bad_request", "bad request", nil)
					return
				}
				cents, err := models.ParseAmount(req.Amount)
				if err != nil {
					httpx.WriteDomainError(w, err)
					return
				}
				if req.Currency == "" {
					req.Currency = "ZAR"
				}
				var due *time.Time
				if req.DueDate != "" {
					d, err := time.Parse("2006-01-02", req.DueDate)
					if err != nil {
						httpx.WriteError(w, http.StatusBadRequest, "validation_error", "due_date must be YYYY-MM-DD", nil)
						return
					}
					due = &d
				}
				txn, err := es.CreateTransaction(r.Context(), services.CreateInput{
					BuyerID:       uid,
					Title:         req.Title,
					Description:   req.Description,
					AmountCents:   cents,
					Currency:      req.Currency,
					DeliveryTerms: req.DeliveryTerms,
					DueDate:       due,
					SellerEmail:   req.SellerEmail,
				})
				if err != nil {
					httpx.WriteDomainError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusCreated, txn)
			})

			r.Get("/transactions", func(w http.ResponseWriter, r *http.Request) {
				uid, _ := middleware.UserID(r.Context())
				f := repo.TxnFilter{
					ParticipantID: uid,
					Status:        models.TransactionStatus(r.URL.Query().Get("status")),
					TitleContains: r.URL.Query().Get("title"),
				}
				limit, offset := pageParams(r)
				txns, err := es.List(r.Context(), f, limit, offset)
				if err != nil {
					httpx.WriteDomainError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, txns)
			})

			r.Get("/transactions/{id}", func(w http.ResponseWriter, r *http.Request) {
				uid, _ := middleware.UserID(r.Context())
				txn, err := es.Get(r.Context(), chi.URLParam(r, "id"), uid)
				if err != nil {
					httpx.WriteDomainError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, txn)
			})

			r.Get("/transactions/{id}/events", func(w http.ResponseWriter, r *http.Request) {
				uid, _ := middleware.UserID(r.Context())
				evs, err := es.ListEvents(r.Context(), chi.URLParam(r, "id"), uid)
				if err != nil {
					httpx.WriteDomainError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, evs)
			})

			r.Get("/transactions/{id}/payments", func(w http.ResponseWriter, r *http.Request) {
				uid, _ := middleware.UserID(r.Context())
				ps, err := es.ListPayments(r.Context(), chi.URLParam(r, "id"), uid)
				if err != nil {
					httpx.WriteDomainError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, ps)
			})

			// lifecycle commands
			r.Post("/transactions/{id}/commands", func(w http.ResponseWriter, r *http.Request) {
				uid, _ := middleware.UserID(r.Context())
				var req commandReq
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Command == "" {
					httpx.WriteError(w, http.StatusBadRequest, "bad_request", "bad request", nil)
					return
				}
				txn, err := es.Apply(r.Context(), chi.URLParam(r, "id"), uid, models.Command(req.Command), req.payload())
				if err != nil {
					httpx.WriteDomainError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusAccepted, txn)
			})

			r.Post("/transactions/{id}/disputes", func(w http.ResponseWriter, r *http.Request) {
				uid, _ := middleware.UserID(r.Context())
				var req struct{ Reason, Description string }
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					httpx.WriteError(w, http.StatusBadRequest, "bad_request", "bad request", nil)
					return
				}
				d, err := es.OpenDispute(r.Context(), chi.URLParam(r, "id"), uid, req.Reason, req.Description)
				if err != nil {
					httpx.WriteDomainError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusCreated, d)
			})

			// notification inbox
			r.Get("/notifications", func(w http.ResponseWriter, r *http.Request) {
				uid, _ := middleware.UserID(r.Context())
				limit := 20
				if v := r.URL.Query().Get("limit"); v != "" {
					if n, err := strconv.Atoi(v); err == nil && n > 0 {
						limit = n
					}
				}
				ns, err := nf.List(r.Context(), uid, limit)
				if err != nil {
					httpx.WriteDomainError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, ns)
			})

			r.Post("/notifications/{id}/read", func(w http.ResponseWriter, r *http.Request) {
				uid, _ := middleware.UserID(r.Context())
				if err := nf.MarkRead(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
					httpx.WriteDomainError(w, err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})

			r.Post("/notifications/read-all", func(w http.ResponseWriter, r *http.Request) {
				uid, _ := middleware.UserID(r.Context())
				if err := nf.MarkAllRead(r.Context(), uid); err != nil {
					httpx.WriteDomainError(w, err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})

			// ---------- admin ----------
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole("admin"))

				r.Get("/admin/disputes", func(w http.ResponseWriter, r *http.Request) {
					ds, err := es.ListUnresolvedDisputes(r.Context())
					if err != nil {
						httpx.WriteDomainError(w, err)
						return
					}
					httpx.WriteJSON(w, http.StatusOK, ds)
				})

				r.Post("/admin/disputes/{id}/review", func(w http.ResponseWriter, r *http.Request) {
					uid, _ := middleware.UserID(r.Context())
					d, err := es.StartReview(r.Context(), chi.URLParam(r, "id"), uid)
					if err != nil {
						httpx.WriteDomainError(w, err)
						return
					}
					httpx.WriteJSON(w, http.StatusOK, d)
				})

				r.Post("/admin/disputes/{id}/resolve", func(w http.ResponseWriter, r *http.Request) {
					uid, _ := middleware.UserID(r.Context())
					var req struct {
						Resolution string `json:"resolution"`
					}
					if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
						httpx.WriteError(w, http.StatusBadRequest, "bad_request", "bad request", nil)
						return
					}
					d, err := es.ResolveDispute(r.Context(), chi.URLParam(r, "id"), uid, models.DisputeResolution(req.Resolution))
					if err != nil {
						httpx.WriteDomainError(w, err)
						return
					}
					httpx.WriteJSON(w, http.StatusOK, d)
				})

				r.Get("/admin/users", func(w http.ResponseWriter, r *http.Request) {
					users, err := us.List(r.Context())
					if err != nil {
						httpx.WriteDomainError(w, err)
						return
					}
					httpx.WriteJSON(w, http.StatusOK, users)
				})
			})
		})
	})

	return r
}

func pageParams(r *http.Request) (limit, offset int) {
	limit, offset = 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
