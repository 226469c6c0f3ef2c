package session

import (
	"context"
	"time"
)

// Session represents an authenticated admin session. It stores identity
// pointers only, never credentials.
type Session struct {
	SessionID string
	Email     string
	CreatedAt time.Time
	ExpiresAt time.Time // absolute expiry
}

// Store defines how sessions are stored and retrieved.
// Implementations (e.g., Redis) must remain stateless and opaque.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Delete(ctx context.Context, sessionID string) error
}
