// Package model defines the data structures used throughout the application.
package model

import (
	"time"

	"github.com/google/uuid"
)

// AuthProvider tags how an account authenticates.
type AuthProvider string

const (
	ProviderLocal  AuthProvider = "LOCAL"  // email + password
	ProviderGoogle AuthProvider = "GOOGLE" // federated via Supabase
)

// User represents a registered account.
//
// PasswordHash is empty exactly when the provider is GOOGLE — federated users
// never have a local password and cannot log in with one. Email carries a
// unique constraint in the store; the ID is immutable once assigned.
type User struct {
	ID           uuid.UUID    `json:"id"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"` // never serialized
	CreatedAt    time.Time    `json:"createdAt"`
	AuthProvider AuthProvider `json:"authProvider"`
}
