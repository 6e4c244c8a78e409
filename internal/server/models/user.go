// Package models defines server-side data models persisted in the database.
package models

import (
	"strings"
	"time"
)

// Role is the flat authorization level of a user.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is a row of the users table. PasswordHash never leaves the service layer.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Public strips the credential material from u.
func (u *User) Public() *UserResponse {
	return &UserResponse{ID: u.ID, Email: u.Email, Role: u.Role}
}

// CanonicalEmail is the uniqueness and lookup key form of an email address.
func CanonicalEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
