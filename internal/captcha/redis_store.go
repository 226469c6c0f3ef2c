package captcha

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "captcha:"
	tokenKeyPrefix   = "verified:"
)

// RedisStore keeps sessions and token records as redis hashes with
// store-enforced TTLs.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(typ Type, clientID string) string {
	return fmt.Sprintf("%s%s:%s", sessionKeyPrefix, typ, clientID)
}

func tokenKey(typ Type, token string) string {
	return fmt.Sprintf("%s%s:%s", tokenKeyPrefix, typ, token)
}

func (r *RedisStore) Get(ctx context.Context, typ Type, clientID string) (*Session, error) {
	fields, err := r.client.HGetAll(ctx, sessionKey(typ, clientID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	s, err := sessionFromFields(fields)
	if err != nil {
		return nil, fmt.Errorf("captcha: corrupt session record: %w", err)
	}

	// The store auto-expires keys; this re-check guards against clock skew
	// and keys whose TTL was never armed.
	if !s.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	return s, nil
}

func (r *RedisStore) Upsert(ctx context.Context, typ Type, clientID string, s *Session, ttl time.Duration) error {
	key := sessionKey(typ, clientID)

	// Two independent calls; a crash between them leaves a key without TTL.
	// Bounded leak: one key per (type, clientId), overwritten on reissue.
	if err := r.client.HSet(ctx, key, sessionToFields(s)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, typ Type, clientID string) error {
	if err := r.client.Del(ctx, sessionKey(typ, clientID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisStore) PutToken(ctx context.Context, typ Type, token string, rec TokenRecord, ttl time.Duration) error {
	key := tokenKey(typ, token)

	if err := r.client.HSet(ctx, key, map[string]any{
		"clientId":  rec.ClientID,
		"type":      string(rec.Type),
		"createdAt": rec.CreatedAt.Format(time.RFC3339Nano),
		"expiresAt": rec.ExpiresAt.Format(time.RFC3339Nano),
	}).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// redeemScript performs the check-then-delete of token redemption in one
// atomic step, so two concurrent redeems of the same token cannot both
// succeed.
var redeemScript = redis.NewScript(`
local clientId = redis.call('HGET', KEYS[1], 'clientId')
if not clientId then
  return 0
end
local sessionKey = ARGV[1] .. clientId
local verified = redis.call('HGET', sessionKey, 'verified')
local token = redis.call('HGET', sessionKey, 'verificationToken')
if verified ~= 'true' or token ~= ARGV[2] then
  return 0
end
redis.call('DEL', KEYS[1])
redis.call('DEL', sessionKey)
return 1
`)

func (r *RedisStore) Redeem(ctx context.Context, typ Type, token string) (bool, error) {
	n, err := redeemScript.Run(ctx, r.client,
		[]string{tokenKey(typ, token)},
		sessionKeyPrefix+string(typ)+":", token,
	).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n == 1, nil
}

func (r *RedisStore) Clear(ctx context.Context, typ Type, clientID string, token string) (int64, error) {
	keys := []string{sessionKey(typ, clientID)}
	if token != "" {
		keys = append(keys, tokenKey(typ, token))
	}
	n, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

func sessionToFields(s *Session) map[string]any {
	return map[string]any{
		"id":                 s.ID,
		"clientId":           s.ClientID,
		"puzzleX":            strconv.Itoa(s.PuzzleX),
		"puzzleY":            strconv.Itoa(s.PuzzleY),
		"imageIndex":         strconv.Itoa(s.ImageIndex),
		"sessionFingerprint": s.SessionFingerprint,
		"ipAddress":          s.IPAddress,
		"createdAt":          s.CreatedAt.Format(time.RFC3339Nano),
		"expiresAt":          s.ExpiresAt.Format(time.RFC3339Nano),
		"verified":           strconv.FormatBool(s.Verified),
		"verificationToken":  s.VerificationToken,
	}
}

func sessionFromFields(fields map[string]string) (*Session, error) {
	puzzleX, err := strconv.Atoi(fields["puzzleX"])
	if err != nil {
		return nil, fmt.Errorf("puzzleX: %w", err)
	}
	puzzleY, err := strconv.Atoi(fields["puzzleY"])
	if err != nil {
		return nil, fmt.Errorf("puzzleY: %w", err)
	}
	imageIndex, err := strconv.Atoi(fields["imageIndex"])
	if err != nil {
		return nil, fmt.Errorf("imageIndex: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields["createdAt"])
	if err != nil {
		return nil, fmt.Errorf("createdAt: %w", err)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, fields["expiresAt"])
	if err != nil {
		return nil, fmt.Errorf("expiresAt: %w", err)
	}

	return &Session{
		ID:                 fields["id"],
		ClientID:           fields["clientId"],
		PuzzleX:            puzzleX,
		PuzzleY:            puzzleY,
		ImageIndex:         imageIndex,
		SessionFingerprint: fields["sessionFingerprint"],
		IPAddress:          fields["ipAddress"],
		CreatedAt:          createdAt,
		ExpiresAt:          expiresAt,
		Verified:           fields["verified"] == "true",
		VerificationToken:  fields["verificationToken"],
	}, nil
}
