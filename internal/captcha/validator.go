package captcha

import (
	"context"

	"captcha-service/internal/logger"
)

// Validator redeems verification tokens for the authentication flow.
// Redemption is single-use: the reverse index and the originating session
// are deleted in the same atomic step that validates them.
type Validator struct {
	store SessionStore
}

func NewValidator(store SessionStore) *Validator {
	return &Validator{store: store}
}

// Redeem reports whether the token is valid for the given type. Tokens
// minted under one type never redeem under another. Store errors fail
// closed.
func (v *Validator) Redeem(ctx context.Context, token string, typ Type) bool {
	if token == "" {
		return false
	}

	ok, err := v.store.Redeem(ctx, typ, token)
	if err != nil {
		logger.Error("token redemption failed", map[string]any{
			"type":  string(typ),
			"error": err.Error(),
		})
		return false
	}
	return ok
}
