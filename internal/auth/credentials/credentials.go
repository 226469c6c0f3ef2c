package credentials

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Service checks login attempts against the configured admin credential
// pair. No user records are persisted anywhere; the bcrypt hash comes
// from configuration.
type Service struct {
	email        string
	passwordHash string
}

func NewService(email, passwordHash string) *Service {
	return &Service{
		email:        email,
		passwordHash: passwordHash,
	}
}

// Authenticate verifies the email/password pair. It deliberately returns
// the same error for every failure mode.
func (s *Service) Authenticate(email, password string) error {
	if s.email == "" || s.passwordHash == "" {
		return ErrInvalidCredentials
	}
	if !strings.EqualFold(email, s.email) {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(
		[]byte(s.passwordHash),
		[]byte(password),
	); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword hashes a plaintext password for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", errors.New("password too short")
	}

	bytes, err := bcrypt.GenerateFromPassword(
		[]byte(password),
		bcrypt.DefaultCost,
	)
	if err != nil {
		return "", err
	}

	return string(bytes), nil
}
