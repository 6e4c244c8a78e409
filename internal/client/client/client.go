package client

import (
	"context"
)

// Scope selects one of the /api/users greeting endpoints.
type Scope string

const (
	ScopeMe     Scope = "me"
	ScopeAdmin  Scope = "admin"
	ScopePublic Scope = "public"
)

// User is the public view of an account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type Client interface {
	Register(ctx context.Context, email string, password []byte) (*User, error)
	Login(ctx context.Context, email string, password []byte) error
	Refresh(ctx context.Context) error
	Me(ctx context.Context) (string, error)
	Greeting(ctx context.Context, scope Scope) (string, error)
	Ping(ctx context.Context) error
	LoggedIn() bool
	Logout()
}
