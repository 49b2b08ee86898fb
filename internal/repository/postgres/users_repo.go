package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tmokoena/escrow-backend/internal/models"
)

type usersRepo struct{ q querier }

func (r *usersRepo) Create(ctx context.Context, displayName, email, passwordHash string) (models.User, error) {
	u := models.User{ID: uuid.NewString(), DisplayName: displayName, Email: email, PasswordHash: passwordHash}
	err := r.q.QueryRow(ctx, `
INSERT INTO users (id, display_name, email, password_hash)
VALUES ($1,$2,$3,$4)
RETURNING created_at, updated_at`,
		u.ID, u.DisplayName, u.Email, u.PasswordHash,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return models.User{}, err
	}
	// every account starts as a buyer
	if err := r.AddRole(ctx, u.ID, models.AppRoleBuyer); err != nil {
		return models.User{}, err
	}
	u.Roles = []models.AppRole{models.AppRoleBuyer}
	return u, nil
}

func (r *usersRepo) get(ctx context.Context, where string, arg any) (models.User, error) {
	var u models.User
	err := r.q.QueryRow(ctx, `
SELECT id, display_name, email, password_hash, created_at, updated_at
  FROM users WHERE `+where, arg,
	).Scan(&u.ID, &u.DisplayName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, models.ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	rows, err := r.q.Query(ctx, `SELECT role FROM user_roles WHERE user_id=$1`, u.ID)
	if err != nil {
		return models.User{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var role models.AppRole
		if err := rows.Scan(&role); err != nil {
			return models.User{}, err
		}
		u.Roles = append(u.Roles, role)
	}
	return u, rows.Err()
}

func (r *usersRepo) GetByID(ctx context.Context, id string) (models.User, error) {
	return r.get(ctx, `id=$1`, id)
}

func (r *usersRepo) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return r.get(ctx, `lower(email)=lower($1)`, email)
}

func (r *usersRepo) AddRole(ctx context.Context, userID string, role models.AppRole) error {
	_, err := r.q.Exec(ctx, `
INSERT INTO user_roles (user_id, role) VALUES ($1,$2)
ON CONFLICT (user_id, role) DO NOTHING`, userID, role)
	return err
}

func (r *usersRepo) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.q.Query(ctx, `
SELECT id, display_name, email, password_hash, created_at, updated_at
  FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.DisplayName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
