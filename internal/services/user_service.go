package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tmokoena/escrow-backend/internal/auth"
	"github.com/tmokoena/escrow-backend/internal/models"
	repo "github.com/tmokoena/escrow-backend/internal/repository"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type UserService struct {
	r  repo.Users
	tm *auth.TokenManager
}

func NewUserService(r repo.Users, tm *auth.TokenManager) *UserService {
	return &UserService{r: r, tm: tm}
}

type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (s *UserService) Register(ctx context.Context, displayName, email, password string) (models.User, error) {
	u := models.User{
		DisplayName: strings.TrimSpace(displayName),
		Email:       strings.ToLower(strings.TrimSpace(email)),
	}
	if err := u.Validate(); err != nil {
		return models.User{}, err
	}
	if len(password) < 8 {
		return models.User{}, models.ValidationErrors{{Field: "password", Msg: "must be at least 8 characters"}}
	}
	if _, err := s.r.GetByEmail(ctx, u.Email); err == nil {
		return models.User{}, models.ValidationErrors{{Field: "email", Msg: "already registered"}}
	} else if !errors.Is(err, models.ErrNotFound) {
		return models.User{}, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}
	return s.r.Create(ctx, u.DisplayName, u.Email, hash)
}

func (s *UserService) Login(ctx context.Context, email, password string) (TokenPair, error) {
	u, err := s.r.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}
	if err := auth.VerifyPassword(password, u.PasswordHash); err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	access, refresh, exp, err := s.tm.GeneratePair(u.ID, roleStrings(u.Roles))
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp}, nil
}

// Refresh exchanges a valid refresh token for a fresh pair.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, isRefresh, err := s.tm.ParseAny(refreshToken)
	if err != nil || !isRefresh {
		return TokenPair{}, ErrInvalidCredentials
	}
	u, err := s.r.GetByID(ctx, claims.UserID)
	if err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	access, refresh, exp, err := s.tm.GeneratePair(u.ID, roleStrings(u.Roles))
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp}, nil
}

func (s *UserService) Get(ctx context.Context, id string) (models.User, error) {
	return s.r.GetByID(ctx, id)
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.r.List(ctx)
}

// GrantAdmin is used at bootstrap (ADMIN_EMAIL) and by existing admins.
func (s *UserService) GrantAdmin(ctx context.Context, userID string) error {
	return s.r.AddRole(ctx, userID, models.AppRoleAdmin)
}

func roleStrings(roles []models.AppRole) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
