package models

import (
	"strings"
	"time"
)

// AppRole is a global capability a user holds. Buyer is implicit for
// every registered user; seller is granted when an invitation is
// accepted; admin is assigned out of band.
type AppRole string

const (
	AppRoleBuyer  AppRole = "buyer"
	AppRoleSeller AppRole = "seller"
	AppRoleAdmin  AppRole = "admin"
)

type User struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"display_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Roles        []AppRole `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) HasRole(r AppRole) bool {
	for _, have := range u.Roles {
		if have == r {
			return true
		}
	}
	return false
}

func (u *User) Validate() error {
	var errs ValidationErrors
	if len(strings.TrimSpace(u.DisplayName)) < 3 {
		errs = append(errs, FieldError{Field: "display_name", Msg: "must be at least 3 characters"})
	}
	if !strings.Contains(u.Email, "@") {
		errs = append(errs, FieldError{Field: "email", Msg: "invalid email"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
