// Package store declares the persistence contracts for users, sessions and
// history, and owns the connections (SQL database, Redis) backing them.
package store

import (
	"context"
	"errors"

	"studynotion/internal/model"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrSessionRevoked is returned by RevokeSession when another caller
	// revoked the session first.
	ErrSessionRevoked = errors.New("session already revoked")
)

// Users persists accounts. Emails are compared lowercased.
type Users interface {
	// CreateUser inserts u, failing with ErrDuplicateEmail when the email is taken.
	CreateUser(ctx context.Context, u model.User) error
	UserByEmail(ctx context.Context, email string) (model.User, error)
	UserByID(ctx context.Context, id string) (model.User, error)
	UpdateUserName(ctx context.Context, id, firstName, lastName string) (model.User, error)
}

// Sessions persists refresh-token sessions.
type Sessions interface {
	CreateSession(ctx context.Context, s model.Session) error
	SessionByID(ctx context.Context, id string) (model.Session, error)
	// RevokeSession flips an active session to revoked. Exactly one caller
	// wins; later calls get ErrSessionRevoked.
	RevokeSession(ctx context.Context, id string) error
}

// History is the append-only interaction log.
type History interface {
	AppendHistory(ctx context.Context, e model.HistoryEntry) error
	// ListHistory returns userID's entries, newest first. Entries with equal
	// CreatedAt come out in reverse insertion order.
	ListHistory(ctx context.Context, userID string) ([]model.HistoryEntry, error)
}

// Store is a complete backend.
type Store interface {
	Users
	Sessions
	History
	Ping(ctx context.Context) error
	Close() error
}
