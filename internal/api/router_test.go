package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmokoena/escrow-backend/internal/api"
	"github.com/tmokoena/escrow-backend/internal/auth"
	"github.com/tmokoena/escrow-backend/internal/config"
	"github.com/tmokoena/escrow-backend/internal/models"
	"github.com/tmokoena/escrow-backend/internal/notifier"
	"github.com/tmokoena/escrow-backend/internal/payment"
	repo "github.com/tmokoena/escrow-backend/internal/repository"
	"github.com/tmokoena/escrow-backend/internal/repository/memory"
	"github.com/tmokoena/escrow-backend/internal/services"
	"github.com/tmokoena/escrow-backend/internal/worker"
)

type testServer struct {
	srv   *httptest.Server
	repos repo.Repos
	us    *services.UserService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repos, atomic := memory.NewRepositories()
	wp := worker.NewPool(4)
	t.Cleanup(wp.Stop)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	tm := auth.NewTokenManager("a-secret", "r-secret", "escrow-test", 15*time.Minute, 24*time.Hour)
	nf := notifier.New(repos.Notifications, wp, log)
	es := services.NewEscrowService(repos, atomic, payment.NewSimulated(0), nf, wp, log)
	us := services.NewUserService(repos.Users, tm)

	h := api.NewRouter(config.Config{RateRPS: 0}, tm, us, es, nf)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, repos: repos, us: us}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// register + login, returns the access token
func (ts *testServer) signup(t *testing.T, name, email string) string {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"display_name": name, "email": email, "password": "password1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
	return ts.login(t, email)
}

func (ts *testServer) login(t *testing.T, email string) string {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": "password1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pair := decode[services.TokenPair](t, resp)
	return pair.AccessToken
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/api/v1/transactions", "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/v1/transactions", "garbage", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestFullLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	buyerTok := ts.signup(t, "Alice Buyer", "alice@example.com")
	sellerTok := ts.signup(t, "Bob Seller", "bob@example.com")

	// decimal amount converted at the boundary
	resp := ts.do(t, http.MethodPost, "/api/v1/transactions", buyerTok, map[string]string{
		"title":          "MacBook Pro 14",
		"description":    "2023 model",
		"amount":         "1000.50",
		"delivery_terms": "Courier within 5 days",
		"seller_email":   "bob@example.com",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	txn := decode[models.Transaction](t, resp)
	assert.Equal(t, int64(100050), txn.AmountCents)
	assert.Equal(t, "ZAR", txn.Currency)
	assert.Equal(t, models.StatusAwaitingSellerAcceptance, txn.Status)

	base := "/api/v1/transactions/" + txn.ID

	// seller accepts
	resp = ts.do(t, http.MethodPost, base+"/commands", sellerTok, map[string]any{"command": "accept"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	txn = decode[models.Transaction](t, resp)
	assert.Equal(t, models.StatusAwaitingPayment, txn.Status)

	// seller cannot fund
	resp = ts.do(t, http.MethodPost, base+"/commands", sellerTok, map[string]any{"command": "fund"})
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// buyer funds with a pinned success
	resp = ts.do(t, http.MethodPost, base+"/commands", buyerTok, map[string]any{
		"command": "fund", "method": "card", "force_success": true,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	txn = decode[models.Transaction](t, resp)
	assert.Equal(t, models.StatusPaymentProcessing, txn.Status)

	require.Eventually(t, func() bool {
		resp := ts.do(t, http.MethodGet, base, buyerTok, nil)
		cur := decode[models.Transaction](t, resp)
		return cur.Status == models.StatusFunded
	}, 2*time.Second, 10*time.Millisecond)

	// funding twice conflicts
	resp = ts.do(t, http.MethodPost, base+"/commands", buyerTok, map[string]any{"command": "fund"})
	apiErr := decode[map[string]any](t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "invalid_transition", apiErr["code"])

	resp = ts.do(t, http.MethodPost, base+"/commands", sellerTok, map[string]any{"command": "mark_delivered"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()
	resp = ts.do(t, http.MethodPost, base+"/commands", buyerTok, map[string]any{"command": "confirm_receipt"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	txn = decode[models.Transaction](t, resp)
	assert.Equal(t, models.StatusReleased, txn.Status)

	// audit trail over HTTP
	resp = ts.do(t, http.MethodGet, base+"/events", buyerTok, nil)
	evs := decode[[]models.TransactionEvent](t, resp)
	require.Len(t, evs, 7)
	assert.Equal(t, models.EventCreated, evs[0].EventType)
	assert.Equal(t, models.EventReleased, evs[6].EventType)

	resp = ts.do(t, http.MethodGet, base+"/payments", buyerTok, nil)
	pays := decode[[]models.Payment](t, resp)
	require.Len(t, pays, 1)
	assert.Equal(t, models.PaymentComplete, pays[0].Status)

	// seller inbox accumulated the fan-out
	require.Eventually(t, func() bool {
		resp := ts.do(t, http.MethodGet, "/api/v1/notifications", sellerTok, nil)
		ns := decode[[]models.Notification](t, resp)
		return len(ns) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	resp = ts.do(t, http.MethodPost, "/api/v1/notifications/read-all", sellerTok, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestTransactionReadsRequireMembership(t *testing.T) {
	ts := newTestServer(t)
	buyerTok := ts.signup(t, "Alice Buyer", "alice@example.com")
	ts.signup(t, "Bob Seller", "bob@example.com")
	strangerTok := ts.signup(t, "Eve Other", "eve@example.com")

	resp := ts.do(t, http.MethodPost, "/api/v1/transactions", buyerTok, map[string]string{
		"title":          "Camera Lens",
		"amount":         "250.00",
		"delivery_terms": "Pickup",
		"seller_email":   "bob@example.com",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	txn := decode[models.Transaction](t, resp)
	base := "/api/v1/transactions/" + txn.ID

	for _, path := range []string{base, base + "/events", base + "/payments"} {
		resp := ts.do(t, http.MethodGet, path, strangerTok, nil)
		resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, "path %s", path)
	}

	// a party still reads normally
	resp = ts.do(t, http.MethodGet, base, buyerTok, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMarkReadOwnInboxOnly(t *testing.T) {
	ts := newTestServer(t)
	buyerTok := ts.signup(t, "Alice Buyer", "alice@example.com")
	sellerTok := ts.signup(t, "Bob Seller", "bob@example.com")

	resp := ts.do(t, http.MethodPost, "/api/v1/transactions", buyerTok, map[string]string{
		"title":          "Camera Lens",
		"amount":         "250.00",
		"delivery_terms": "Pickup",
		"seller_email":   "bob@example.com",
	})
	resp.Body.Close()

	// the invitation lands in the seller's inbox
	var ns []models.Notification
	require.Eventually(t, func() bool {
		resp := ts.do(t, http.MethodGet, "/api/v1/notifications", sellerTok, nil)
		ns = decode[[]models.Notification](t, resp)
		return len(ns) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	// the buyer cannot touch it
	resp = ts.do(t, http.MethodPost, "/api/v1/notifications/"+ns[0].ID+"/read", buyerTok, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/v1/notifications/"+ns[0].ID+"/read", sellerTok, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestCreateRejectsBadAmount(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.signup(t, "Alice Buyer", "alice@example.com")

	for _, amount := range []string{"", "0", "-5", "abc", "1.005.2"} {
		resp := ts.do(t, http.MethodPost, "/api/v1/transactions", tok, map[string]string{
			"title":          "Something",
			"amount":         amount,
			"delivery_terms": "Any",
			"seller_email":   "bob@example.com",
		})
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "amount %q", amount)
	}
}

func TestAdminEndpoints(t *testing.T) {
	ts := newTestServer(t)
	buyerTok := ts.signup(t, "Alice Buyer", "alice@example.com")
	sellerTok := ts.signup(t, "Bob Seller", "bob@example.com")

	// non-admins are shut out
	resp := ts.do(t, http.MethodGet, "/api/v1/admin/disputes", buyerTok, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// promote, then log in again for a token carrying the role
	ts.signup(t, "Ada Admin", "ada@example.com")
	admin, err := ts.repos.Users.GetByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	require.NoError(t, ts.us.GrantAdmin(context.Background(), admin.ID))
	adminTok := ts.login(t, "ada@example.com")

	// drive a transaction into dispute
	resp = ts.do(t, http.MethodPost, "/api/v1/transactions", buyerTok, map[string]string{
		"title":          "Camera Lens",
		"amount":         "250.00",
		"delivery_terms": "Pickup",
		"seller_email":   "bob@example.com",
	})
	txn := decode[models.Transaction](t, resp)
	base := "/api/v1/transactions/" + txn.ID

	resp = ts.do(t, http.MethodPost, base+"/commands", sellerTok, map[string]any{"command": "accept"})
	resp.Body.Close()
	resp = ts.do(t, http.MethodPost, base+"/commands", buyerTok, map[string]any{
		"command": "fund", "force_success": true,
	})
	resp.Body.Close()
	require.Eventually(t, func() bool {
		resp := ts.do(t, http.MethodGet, base, buyerTok, nil)
		return decode[models.Transaction](t, resp).Status == models.StatusFunded
	}, 2*time.Second, 10*time.Millisecond)

	resp = ts.do(t, http.MethodPost, base+"/disputes", buyerTok, map[string]string{
		"reason": "not as described", "description": "scratched lens",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	d := decode[models.Dispute](t, resp)

	resp = ts.do(t, http.MethodGet, "/api/v1/admin/disputes", adminTok, nil)
	queue := decode[[]models.Dispute](t, resp)
	require.Len(t, queue, 1)

	resp = ts.do(t, http.MethodPost, "/api/v1/admin/disputes/"+d.ID+"/review", adminTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = ts.do(t, http.MethodPost, "/api/v1/admin/disputes/"+d.ID+"/resolve", adminTok, map[string]string{
		"resolution": "refund",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resolved := decode[models.Dispute](t, resp)
	assert.Equal(t, models.DisputeResolved, resolved.Status)

	resp = ts.do(t, http.MethodGet, base, buyerTok, nil)
	assert.Equal(t, models.StatusDisputeResolvedRefund, decode[models.Transaction](t, resp).Status)

	// resolving twice reports the conflict
	resp = ts.do(t, http.MethodPost, "/api/v1/admin/disputes/"+d.ID+"/resolve", adminTok, map[string]string{
		"resolution": "release",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/v1/admin/users", adminTok, nil)
	users := decode[[]models.User](t, resp)
	assert.Len(t, users, 3)
}
