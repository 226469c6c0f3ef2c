package captcha

import (
	"context"
	"time"
)

// SessionStore is the single source of truth for challenge sessions and
// verified-token records. Implementations must enforce expiry via the
// store's own TTL mechanism; records self-expire even if never deleted.
type SessionStore interface {
	// Get returns the live session for (type, clientId), or nil if the key
	// is absent or the stored expiry has already passed.
	Get(ctx context.Context, typ Type, clientID string) (*Session, error)

	// Upsert writes all session fields and re-arms the key TTL.
	Upsert(ctx context.Context, typ Type, clientID string, s *Session, ttl time.Duration) error

	// Delete removes the session for (type, clientId).
	Delete(ctx context.Context, typ Type, clientID string) error

	// PutToken writes the reverse-index record for a minted token.
	PutToken(ctx context.Context, typ Type, token string, rec TokenRecord, ttl time.Duration) error

	// Redeem atomically checks the reverse index against the originating
	// session and deletes both records. It reports true at most once per
	// token, even under concurrent calls.
	Redeem(ctx context.Context, typ Type, token string) (bool, error)

	// Clear deletes a session and, when token is non-empty, its
	// reverse-index entry. Returns the number of keys removed.
	Clear(ctx context.Context, typ Type, clientID string, token string) (int64, error)
}
