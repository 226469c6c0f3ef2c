package captcha

import (
	"context"
	"encoding/base64"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"captcha-service/internal/logger"
	"captcha-service/internal/puzzle"
)

// Challenge is the presentable result of issuing a puzzle. It never
// carries the true offset.
type Challenge struct {
	SessionID string `json:"sessionId"`
	BgURL     string `json:"bgUrl"`
	PuzzleURL string `json:"puzzleUrl"`
}

// Issuer creates or reuses challenge sessions and renders their puzzles.
type Issuer struct {
	store    SessionStore
	imageDir string
	opts     puzzle.Options
}

func NewIssuer(store SessionStore, imageDir string) *Issuer {
	return &Issuer{
		store:    store,
		imageDir: imageDir,
		opts:     puzzle.DefaultOptions(),
	}
}

// Issue produces a challenge for (type, clientId). A live unverified
// session is reused: same id, fresh puzzle, TTL re-armed, fingerprint and
// IP rebound to the requesting client.
func (i *Issuer) Issue(ctx context.Context, typ Type, clientID, ip, userAgent string) (*Challenge, error) {
	if err := ValidateClientID(clientID); err != nil {
		return nil, err
	}

	fingerprint := Fingerprint(ip, userAgent)

	existing, err := i.store.Get(ctx, typ, clientID)
	if err != nil {
		return nil, err
	}

	images := i.listImages()
	imageIndex := 0
	if len(images) > 0 {
		imageIndex = rand.Intn(len(images))
	}

	p, err := i.generate(images, imageIndex)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &Session{
		ID:                 uuid.NewString(),
		ClientID:           clientID,
		PuzzleX:            p.X,
		PuzzleY:            p.Y,
		ImageIndex:         imageIndex,
		SessionFingerprint: fingerprint,
		IPAddress:          ip,
		CreatedAt:          now,
		ExpiresAt:          now.Add(SessionTTL),
		Verified:           false,
		VerificationToken:  "",
	}

	if existing != nil {
		logger.Info("reusing captcha session", map[string]any{
			"session_id": existing.ID,
			"type":       string(typ),
		})
		session.ID = existing.ID
		session.Verified = existing.Verified
		session.VerificationToken = existing.VerificationToken
	}

	if err := i.store.Upsert(ctx, typ, clientID, session, SessionTTL); err != nil {
		return nil, err
	}

	return &Challenge{
		SessionID: session.ID,
		BgURL:     "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(p.Background),
		PuzzleURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(p.Tile),
	}, nil
}

// listImages returns the candidate source images. A missing or unreadable
// directory is not fatal; the procedural fallback covers it.
func (i *Issuer) listImages() []string {
	entries, err := os.ReadDir(i.imageDir)
	if err != nil {
		return nil
	}
	var images []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			images = append(images, filepath.Join(i.imageDir, e.Name()))
		}
	}
	return images
}

func (i *Issuer) generate(images []string, imageIndex int) (*puzzle.Puzzle, error) {
	if len(images) > 0 {
		p, err := puzzle.CreateFromFile(images[imageIndex], i.opts)
		if err == nil {
			return p, nil
		}
		logger.Warn("captcha image unreadable, using fallback", map[string]any{
			"image": images[imageIndex],
			"error": err.Error(),
		})
	}

	p, err := puzzle.Create(puzzle.Fallback(i.opts.CanvasWidth, i.opts.CanvasHeight), i.opts)
	if err != nil {
		return nil, ErrPuzzleGeneration
	}
	return p, nil
}
