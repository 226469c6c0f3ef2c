package captcha

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Type namespaces captcha sessions. Sessions of different types for the
// same client are wholly independent.
type Type string

const (
	TypeLogin          Type = "login"
	TypeSignup         Type = "signup"
	TypeForgotPassword Type = "forgotPassword"
)

// ParseType validates a captcha type tag supplied by the client.
func ParseType(s string) (Type, bool) {
	switch Type(s) {
	case TypeLogin, TypeSignup, TypeForgotPassword:
		return Type(s), true
	}
	return "", false
}

const (
	// SessionTTL is the challenge window. Expiry is enforced by the store.
	SessionTTL = 300 * time.Second

	// TokenTTL is the redemption window after a successful verification.
	TokenTTL = 90 * time.Second
)

var (
	ErrInvalidClient    = errors.New("captcha: invalid client id")
	ErrInvalidType      = errors.New("captcha: invalid captcha type")
	ErrStoreUnavailable = errors.New("captcha: store unavailable")
	ErrPuzzleGeneration = errors.New("captcha: puzzle generation failed")
)

// Session is the server-side record binding one challenge to a client.
// At most one live session exists per (type, clientId).
type Session struct {
	ID                 string
	ClientID           string
	PuzzleX            int
	PuzzleY            int
	ImageIndex         int
	SessionFingerprint string
	IPAddress          string
	CreatedAt          time.Time
	ExpiresAt          time.Time
	Verified           bool
	VerificationToken  string
}

// State models the session lifecycle explicitly.
type State int

const (
	StateChallenge State = iota // issued, awaiting a solution
	StateVerified               // solved, token live until redeemed or expired
)

func (s *Session) State() State {
	if s.Verified && s.VerificationToken != "" {
		return StateVerified
	}
	return StateChallenge
}

// TokenRecord is the reverse-index entry keyed by (type, token), used to
// find the originating session during redemption.
type TokenRecord struct {
	ClientID  string
	Type      Type
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ValidateClientID requires the caller-supplied client identifier to be
// exactly a 36-character UUID string.
func ValidateClientID(clientID string) error {
	if len(clientID) != 36 {
		return ErrInvalidClient
	}
	if _, err := uuid.Parse(clientID); err != nil {
		return ErrInvalidClient
	}
	return nil
}
