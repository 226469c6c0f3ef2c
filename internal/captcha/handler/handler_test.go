package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"captcha-service/internal/captcha"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClientID = "11111111-1111-1111-1111-111111111111"

func setupRouter(t *testing.T) (*gin.Engine, *captcha.RedisStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := captcha.NewRedisStore(client)
	issuer := captcha.NewIssuer(store, "testdata/no-such-dir")
	verifier := captcha.NewVerifier(store, captcha.DefaultVerifierConfig())

	router := gin.New()
	NewHandler(issuer, verifier, store).RegisterRoutes(router)
	return router, store
}

func doJSON(router *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func initHeaders() map[string]string {
	return map[string]string{
		"X-Client-ID":    testClientID,
		"X-Captcha-Type": "login",
		"User-Agent":     "Mozilla/5.0",
	}
}

func TestInitRequiresClientID(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(router, http.MethodPost, "/api/captcha/init", nil, map[string]string{
		"X-Captcha-Type": "login",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInitRejectsUnknownType(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(router, http.MethodPost, "/api/captcha/init", nil, map[string]string{
		"X-Client-ID":    testClientID,
		"X-Captcha-Type": "mfa",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInitIssuesChallenge(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(router, http.MethodPost, "/api/captcha/init", nil, initHeaders())
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			SessionID string `json:"sessionId"`
			BgURL     string `json:"bgUrl"`
			PuzzleURL string `json:"puzzleUrl"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Data.SessionID)
	assert.Contains(t, resp.Data.BgURL, "data:image/jpeg;base64,")
	assert.Contains(t, resp.Data.PuzzleURL, "data:image/png;base64,")
}

func TestVerifyOverHTTP(t *testing.T) {
	router, store := setupRouter(t)

	w := doJSON(router, http.MethodPost, "/api/captcha/init", nil, initHeaders())
	require.Equal(t, http.StatusOK, w.Code)

	var initResp struct {
		Data struct {
			SessionID string `json:"sessionId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &initResp))

	s, err := store.Get(context.Background(), captcha.TypeLogin, testClientID)
	require.NoError(t, err)
	require.NotNil(t, s)

	trail := [][2]int{{0, 0}, {20, 0}, {40, 0}, {60, 0}, {80, 0}, {100, 0}}
	w = doJSON(router, http.MethodPost, "/api/captcha/verify", map[string]any{
		"sessionId": initResp.Data.SessionID,
		"x":         s.PuzzleX,
		"y":         5,
		"duration":  1000,
		"trail":     trail,
	}, initHeaders())
	require.Equal(t, http.StatusOK, w.Code)

	var verifyResp struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verifyResp))
	assert.True(t, verifyResp.Success)
	assert.Len(t, verifyResp.Data.Token, 64)
}

func TestVerifyRejectionIsCoarse(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(router, http.MethodPost, "/api/captcha/verify", map[string]any{
		"sessionId": "nope",
		"x":         10,
		"y":         0,
		"duration":  1000,
		"trail":     [][2]int{{0, 0}, {10, 0}, {20, 0}, {30, 0}, {40, 0}},
	}, initHeaders())
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "session invalid or expired", resp.Error)
}

func TestVerifyMissingCoordinates(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(router, http.MethodPost, "/api/captcha/verify", map[string]any{
		"sessionId": "abc",
	}, initHeaders())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClearOverHTTP(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(router, http.MethodPost, "/api/captcha/init", nil, initHeaders())
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodPost, "/api/captcha/clear", map[string]any{
		"clientId": testClientID,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Deleted int64 `json:"deleted"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, int64(1), resp.Data.Deleted)
}

func TestClearRequiresClientID(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(router, http.MethodPost, "/api/captcha/clear", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
