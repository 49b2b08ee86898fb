// Package memory provides map-backed repositories guarded by a single
// RWMutex. Used by tests and by dev mode when no database is
// configured.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tmokoena/escrow-backend/internal/models"
	repo "github.com/tmokoena/escrow-backend/internal/repository"
)

type Store struct {
	mu            sync.RWMutex
	users         map[string]models.User
	transactions  map[string]models.Transaction
	events        map[string][]models.TransactionEvent // keyed by transaction id
	payments      map[string][]models.Payment
	disputes      map[string]models.Dispute
	invitations   map[string]models.Invitation // keyed by transaction id
	notifications map[string]models.Notification
}

func NewStore() *Store {
	return &Store{
		users:         map[string]models.User{},
		transactions:  map[string]models.Transaction{},
		events:        map[string][]models.TransactionEvent{},
		payments:      map[string][]models.Payment{},
		disputes:      map[string]models.Dispute{},
		invitations:   map[string]models.Invitation{},
		notifications: map[string]models.Notification{},
	}
}

// NewRepositories wires every repository to one shared Store.
func NewRepositories() (repo.Repos, repo.Atomic) {
	s := NewStore()
	r := repo.Repos{
		Users:         &usersRepo{s},
		Transactions:  &transactionsRepo{s},
		Events:        &eventsRepo{s},
		Payments:      &paymentsRepo{s},
		Disputes:      &disputesRepo{s},
		Invitations:   &invitationsRepo{s},
		Notifications: &notificationsRepo{s},
	}
	// No storage transactions in memory; the engine's per-transaction
	// lock is the isolation boundary.
	atomic := func(ctx context.Context, fn func(repo.Repos) error) error {
		return fn(r)
	}
	return r, atomic
}

// ---------------- users ----------------

type usersRepo struct{ s *Store }

func (r *usersRepo) Create(ctx context.Context, displayName, email, passwordHash string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	u := models.User{
		ID:           uuid.NewString(),
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: passwordHash,
		Roles:        []models.AppRole{models.AppRoleBuyer},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.s.users[u.ID] = u
	return u, nil
}

func (r *usersRepo) GetByID(ctx context.Context, id string) (models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return models.User{}, models.ErrNotFound
	}
	return u, nil
}

func (r *usersRepo) GetByEmail(ctx context.Context, email string) (models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return models.User{}, models.ErrNotFound
}

func (r *usersRepo) AddRole(ctx context.Context, userID string, role models.AppRole) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return models.ErrNotFound
	}
	if !u.HasRole(role) {
		u.Roles = append(u.Roles, role)
		u.UpdatedAt = time.Now()
		r.s.users[userID] = u
	}
	return nil
}

func (r *usersRepo) List(ctx context.Context) ([]models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ---------------- transactions ----------------

type transactionsRepo struct{ s *Store }

func (r *transactionsRepo) Create(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	r.s.transactions[t.ID] = t
	return t, nil
}

func (r *transactionsRepo) GetByID(ctx context.Context, id string) (models.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.transactions[id]
	if !ok {
		return models.Transaction{}, models.ErrNotFound
	}
	return t, nil
}

func (r *transactionsRepo) List(ctx context.Context, f repo.TxnFilter, limit, offset int) ([]models.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.Transaction
	for _, t := range r.s.transactions {
		if f.ParticipantID != "" {
			if t.BuyerID != f.ParticipantID && (t.SellerID == nil || *t.SellerID != f.ParticipantID) {
				continue
			}
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.TitleContains != "" && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(f.TitleContains)) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *transactionsRepo) UpdateStatus(ctx context.Context, id string, expected, next models.TransactionStatus, upd repo.TxnUpdate) (models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transactions[id]
	if !ok {
		return models.Transaction{}, models.ErrNotFound
	}
	if t.Status != expected {
		return models.Transaction{}, repo.ErrStatusConflict
	}
	t.Status = next
	if upd.SellerID != nil {
		t.SellerID = upd.SellerID
	}
	if upd.BuyerConfirmedAt != nil {
		t.BuyerConfirmedAt = upd.BuyerConfirmedAt
	}
	if upd.ReleasedAt != nil {
		t.ReleasedAt = upd.ReleasedAt
	}
	t.UpdatedAt = time.Now()
	r.s.transactions[id] = t
	return t, nil
}

// ---------------- events ----------------

type eventsRepo struct{ s *Store }

func (r *eventsRepo) Append(ctx context.Context, ev models.TransactionEvent) (models.TransactionEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	r.s.events[ev.TransactionID] = append(r.s.events[ev.TransactionID], ev)
	return ev, nil
}

func (r *eventsRepo) ListByTransaction(ctx context.Context, transactionID string) ([]models.TransactionEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	evs := r.s.events[transactionID]
	out := make([]models.TransactionEvent, len(evs))
	copy(out, evs) // insertion order == creation order
	return out, nil
}

// ---------------- payments ----------------

type paymentsRepo struct{ s *Store }

func (r *paymentsRepo) Create(ctx context.Context, p models.Payment) (models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	r.s.payments[p.TransactionID] = append(r.s.payments[p.TransactionID], p)
	return p, nil
}

func (r *paymentsRepo) Update(ctx context.Context, p models.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ps := r.s.payments[p.TransactionID]
	for i := range ps {
		if ps[i].ID == p.ID {
			p.CreatedAt = ps[i].CreatedAt
			p.UpdatedAt = time.Now()
			ps[i] = p
			return nil
		}
	}
	return models.ErrNotFound
}

func (r *paymentsRepo) ListByTransaction(ctx context.Context, transactionID string) ([]models.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ps := r.s.payments[transactionID]
	out := make([]models.Payment, len(ps))
	copy(out, ps)
	return out, nil
}

// ---------------- disputes ----------------

type disputesRepo struct{ s *Store }

func (r *disputesRepo) Create(ctx context.Context, d models.Dispute) (models.Dispute, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := time.Now()
	d.CreatedAt = now
	d.UpdatedAt = now
	r.s.disputes[d.ID] = d
	return d, nil
}

func (r *disputesRepo) GetByID(ctx context.Context, id string) (models.Dispute, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	d, ok := r.s.disputes[id]
	if !ok {
		return models.Dispute{}, models.ErrNotFound
	}
	return d, nil
}

func (r *disputesRepo) ActiveByTransaction(ctx context.Context, transactionID string) (models.Dispute, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, d := range r.s.disputes {
		if d.TransactionID == transactionID && d.Active() {
			return d, nil
		}
	}
	return models.Dispute{}, models.ErrNotFound
}

func (r *disputesRepo) Update(ctx context.Context, d models.Dispute) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.disputes[d.ID]; !ok {
		return models.ErrNotFound
	}
	d.UpdatedAt = time.Now()
	r.s.disputes[d.ID] = d
	return nil
}

func (r *disputesRepo) ListUnresolved(ctx context.Context) ([]models.Dispute, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.Dispute
	for _, d := range r.s.disputes {
		if d.Active() {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ---------------- invitations ----------------

type invitationsRepo struct{ s *Store }

func (r *invitationsRepo) Create(ctx context.Context, inv models.Invitation) (models.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	inv.CreatedAt = time.Now()
	r.s.invitations[inv.TransactionID] = inv
	return inv, nil
}

func (r *invitationsRepo) GetByTransaction(ctx context.Context, transactionID string) (models.Invitation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	inv, ok := r.s.invitations[transactionID]
	if !ok {
		return models.Invitation{}, models.ErrNotFound
	}
	return inv, nil
}

func (r *invitationsRepo) Update(ctx context.Context, inv models.Invitation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.invitations[inv.TransactionID]; !ok {
		return models.ErrNotFound
	}
	r.s.invitations[inv.TransactionID] = inv
	return nil
}

// ---------------- notifications ----------------

type notificationsRepo struct{ s *Store }

func (r *notificationsRepo) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = time.Now()
	r.s.notifications[n.ID] = n
	return n, nil
}

func (r *notificationsRepo) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]models.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.Notification
	for _, n := range r.s.notifications {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *notificationsRepo) MarkRead(ctx context.Context, recipientID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return models.ErrNotFound
	}
	n.Read = true
	r.s.notifications[id] = n
	return nil
}

func (r *notificationsRepo) MarkAllRead(ctx context.Context, recipientID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, n := range r.s.notifications {
		if n.RecipientID == recipientID && !n.Read {
			n.Read = true
			r.s.notifications[id] = n
		}
	}
	return nil
}
