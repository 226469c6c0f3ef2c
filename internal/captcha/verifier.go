package captcha

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Claim is the client's account of how the slider was solved.
type Claim struct {
	X        int
	Y        int
	Duration int64 // milliseconds
	Trail    [][2]int
}

// Rejection reasons are deliberately coarse: they tell the user which
// category failed without revealing the exact thresholds.
const (
	ReasonSessionInvalid    = "session invalid or expired"
	ReasonPositionIncorrect = "position incorrect"
	ReasonTooFast           = "too fast"
	ReasonTimedOut          = "timed out"
	ReasonAbnormal          = "abnormal operation"
)

// VerifierConfig holds the heuristic thresholds. These are server-side
// configuration, not protocol constants; any client-side copy is UI
// feedback only and makes no trust decision.
type VerifierConfig struct {
	PositionTolerance int
	MinDuration       int64
	MaxDuration       int64
	MinTrailPoints    int
	MaxYDeviation     int
	MaxTrailJump      int
}

func DefaultVerifierConfig() VerifierConfig {
	return VerifierConfig{
		PositionTolerance: 3,
		MinDuration:       300,
		MaxDuration:       30000,
		MinTrailPoints:    5,
		MaxYDeviation:     40,
		MaxTrailJump:      50,
	}
}

// Result is the outcome of a verification attempt. Rejections are
// ordinary values, not errors.
type Result struct {
	OK     bool
	Token  string
	Reason string
}

// Verifier scores claimed solutions and mints single-use tokens.
type Verifier struct {
	store SessionStore
	cfg   VerifierConfig
}

func NewVerifier(store SessionStore, cfg VerifierConfig) *Verifier {
	return &Verifier{store: store, cfg: cfg}
}

// Verify resolves the session, runs the heuristic pipeline, and on
// success mints a token and narrows both records to the redemption
// window. The pipeline short-circuits on the first failing check.
func (v *Verifier) Verify(ctx context.Context, typ Type, clientID, sessionID, ip, userAgent string, claim Claim) (*Result, error) {
	session, err := v.resolveSession(ctx, typ, clientID, sessionID, ip, userAgent)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return &Result{Reason: ReasonSessionInvalid}, nil
	}

	if reason := v.cfg.check(claim, session.PuzzleX); reason != "" {
		return &Result{Reason: reason}, nil
	}

	token, err := mintToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session.Verified = true
	session.VerificationToken = token

	if err := v.store.Upsert(ctx, typ, clientID, session, TokenTTL); err != nil {
		return nil, err
	}
	if err := v.store.PutToken(ctx, typ, token, TokenRecord{
		ClientID:  clientID,
		Type:      typ,
		CreatedAt: now,
		ExpiresAt: now.Add(TokenTTL),
	}, TokenTTL); err != nil {
		return nil, err
	}

	return &Result{OK: true, Token: token}, nil
}

// resolveSession accepts the stored session as input to the heuristics
// only if every binding holds: same id, same client, same fingerprint,
// unexpired, not yet verified. A fingerprint recomputed at verify time
// stops a challenge solved on one network from being replayed on another.
func (v *Verifier) resolveSession(ctx context.Context, typ Type, clientID, sessionID, ip, userAgent string) (*Session, error) {
	session, err := v.store.Get(ctx, typ, clientID)
	if err != nil {
		return nil, err
	}
	if session == nil ||
		session.ID != sessionID ||
		session.ClientID != clientID ||
		session.SessionFingerprint != Fingerprint(ip, userAgent) ||
		session.Verified {
		return nil, nil
	}
	return session, nil
}

func (c VerifierConfig) check(claim Claim, puzzleX int) string {
	if abs(claim.X-puzzleX) > c.PositionTolerance {
		return ReasonPositionIncorrect
	}
	if claim.Duration < c.MinDuration {
		return ReasonTooFast
	}
	if claim.Duration > c.MaxDuration {
		return ReasonTimedOut
	}
	if len(claim.Trail) < c.MinTrailPoints {
		return ReasonAbnormal
	}
	if abs(claim.Y) > c.MaxYDeviation {
		return ReasonAbnormal
	}
	for i := 1; i < len(claim.Trail); i++ {
		if abs(claim.Trail[i][0]-claim.Trail[i-1][0]) > c.MaxTrailJump {
			return ReasonAbnormal
		}
	}
	return ""
}

// mintToken returns 32 random bytes hex-encoded (64 characters).
func mintToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("captcha: failed to mint token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
