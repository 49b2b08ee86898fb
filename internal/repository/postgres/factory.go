package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	repo "github.com/tmokoena/escrow-backend/internal/repository"
)

// querier is the subset of pgx both *pgxpool.Pool and pgx.Tx satisfy,
// so the same repo code runs inside and outside Atomic.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func newRepos(q querier) repo.Repos {
	return repo.Repos{
		Users:         &usersRepo{q},
		Transactions:  &transactionsRepo{q},
		Events:        &eventsRepo{q},
		Payments:      &paymentsRepo{q},
		Disputes:      &disputesRepo{q},
		Invitations:   &invitationsRepo{q},
		Notifications: &notificationsRepo{q},
	}
}

// NewRepositories returns pool-backed repositories and an Atomic that
// reruns them inside one serializable database transaction.
func NewRepositories(pool *pgxpool.Pool) (repo.Repos, repo.Atomic) {
	atomic := func(ctx context.Context, fn func(repo.Repos) error) error {
		tx, err := pool.BeginTx(ctx, pgx.TxOptions{
			IsoLevel:   pgx.Serializable,
			AccessMode: pgx.ReadWrite,
		})
		if err != nil {
			return err
		}
		if err := fn(newRepos(tx)); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
		return tx.Commit(ctx)
	}
	return newRepos(pool), atomic
}
