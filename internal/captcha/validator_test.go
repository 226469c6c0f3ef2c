package captcha

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mintedToken runs the full issue-free path to a verified session and
// returns the minted token.
func mintedToken(t *testing.T, store *RedisStore, typ Type) string {
	t.Helper()

	s := testSession(testClientID)
	s.SessionFingerprint = Fingerprint(testIP, testUA)
	require.NoError(t, store.Upsert(context.Background(), typ, testClientID, s, SessionTTL))

	v := NewVerifier(store, DefaultVerifierConfig())
	res, err := v.Verify(context.Background(), typ, testClientID, s.ID, testIP, testUA, goodClaim(s.PuzzleX))
	require.NoError(t, err)
	require.True(t, res.OK)
	return res.Token
}

func TestRedeemSingleUse(t *testing.T) {
	store, _ := setupStore(t)
	validator := NewValidator(store)
	token := mintedToken(t, store, TypeLogin)

	assert.True(t, validator.Redeem(context.Background(), token, TypeLogin))
	assert.False(t, validator.Redeem(context.Background(), token, TypeLogin))

	// both records gone
	got, err := store.Get(context.Background(), TypeLogin, testClientID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedeemTypeIsolation(t *testing.T) {
	store, _ := setupStore(t)
	validator := NewValidator(store)
	token := mintedToken(t, store, TypeSignup)

	assert.False(t, validator.Redeem(context.Background(), token, TypeLogin))
	assert.True(t, validator.Redeem(context.Background(), token, TypeSignup))
}

func TestRedeemUnknownToken(t *testing.T) {
	store, _ := setupStore(t)
	validator := NewValidator(store)

	assert.False(t, validator.Redeem(context.Background(), "0000000000000000000000000000000000000000000000000000000000000000", TypeLogin))
}

func TestRedeemTokenSessionMismatch(t *testing.T) {
	store, _ := setupStore(t)
	validator := NewValidator(store)
	ctx := context.Background()

	// reverse index present, but the session was reissued and no longer
	// carries this token
	token := mintedToken(t, store, TypeLogin)

	s := testSession(testClientID)
	s.SessionFingerprint = Fingerprint(testIP, testUA)
	require.NoError(t, store.Upsert(ctx, TypeLogin, testClientID, s, SessionTTL))

	assert.False(t, validator.Redeem(ctx, token, TypeLogin))
}

func TestRedeemConcurrent(t *testing.T) {
	// Two racing redeems of the same token succeed at most once; the
	// check-and-delete is a single atomic script.
	store, _ := setupStore(t)
	validator := NewValidator(store)
	token := mintedToken(t, store, TypeLogin)

	var wg sync.WaitGroup
	results := make([]bool, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = validator.Redeem(context.Background(), token, TypeLogin)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

// countingStore records calls so tests can assert the store was never
// touched.
type countingStore struct {
	SessionStore
	calls int
}

func (c *countingStore) Redeem(ctx context.Context, typ Type, token string) (bool, error) {
	c.calls++
	return false, nil
}

func (c *countingStore) Get(ctx context.Context, typ Type, clientID string) (*Session, error) {
	c.calls++
	return nil, nil
}

func (c *countingStore) Upsert(ctx context.Context, typ Type, clientID string, s *Session, ttl time.Duration) error {
	c.calls++
	return nil
}

func TestRedeemEmptyTokenSkipsStore(t *testing.T) {
	cs := &countingStore{}
	validator := NewValidator(cs)

	assert.False(t, validator.Redeem(context.Background(), "", TypeLogin))
	assert.Equal(t, 0, cs.calls)
}
