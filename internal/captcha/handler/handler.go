package handler

import (
	"errors"
	"net/http"

	"captcha-service/internal/captcha"
	"captcha-service/internal/logger"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	issuer   *captcha.Issuer
	verifier *captcha.Verifier
	store    captcha.SessionStore
}

func NewHandler(
	issuer *captcha.Issuer,
	verifier *captcha.Verifier,
	store captcha.SessionStore,
) *Handler {
	return &Handler{
		issuer:   issuer,
		verifier: verifier,
		store:    store,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/api/captcha/init", h.initChallenge)
	r.POST("/api/captcha/verify", h.verify)
	r.POST("/api/captcha/clear", h.clear)
}

// captchaType reads X-Captcha-Type, defaulting to login.
func captchaType(c *gin.Context) (captcha.Type, bool) {
	raw := c.GetHeader("X-Captcha-Type")
	if raw == "" {
		raw = string(captcha.TypeLogin)
	}
	return captcha.ParseType(raw)
}

func clientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

func (h *Handler) initChallenge(c *gin.Context) {
	typ, ok := captchaType(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid captcha type"})
		return
	}

	clientID := c.GetHeader("X-Client-ID")

	challenge, err := h.issuer.Issue(
		c.Request.Context(),
		typ,
		clientID,
		clientIP(c),
		c.GetHeader("User-Agent"),
	)
	if err != nil {
		if errors.Is(err, captcha.ErrInvalidClient) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid client id"})
			return
		}
		logger.Error("captcha issuance failed", map[string]any{
			"type":  string(typ),
			"error": err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to generate captcha"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": challenge})
}

type verifyRequest struct {
	SessionID string   `json:"sessionId"`
	X         *int     `json:"x"`
	Y         *int     `json:"y"`
	Duration  int64    `json:"duration"`
	Trail     [][2]int `json:"trail"`
}

func (h *Handler) verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" || req.X == nil || req.Y == nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request"})
		return
	}

	typ, ok := captchaType(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid captcha type"})
		return
	}

	clientID := c.GetHeader("X-Client-ID")
	if clientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "missing client id"})
		return
	}

	result, err := h.verifier.Verify(
		c.Request.Context(),
		typ,
		clientID,
		req.SessionID,
		clientIP(c),
		c.GetHeader("User-Agent"),
		captcha.Claim{
			X:        *req.X,
			Y:        *req.Y,
			Duration: req.Duration,
			Trail:    req.Trail,
		},
	)
	if err != nil {
		logger.Error("captcha verification failed", map[string]any{
			"type":  string(typ),
			"error": err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "verification failed"})
		return
	}

	if !result.OK {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": result.Reason})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"token": result.Token}})
}

type clearRequest struct {
	ClientID string `json:"clientId"`
	Token    string `json:"token"`
	Type     string `json:"type"`
}

// clear removes a session (and reverse-index entry, when a token is
// given) before expiry, forcing a fresh challenge after an unrelated
// authentication failure.
func (h *Handler) clear(c *gin.Context) {
	var req clearRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ClientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "missing client id"})
		return
	}

	if req.Type == "" {
		req.Type = string(captcha.TypeLogin)
	}
	typ, ok := captcha.ParseType(req.Type)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid captcha type"})
		return
	}

	deleted, err := h.store.Clear(c.Request.Context(), typ, req.ClientID, req.Token)
	if err != nil {
		logger.Error("captcha clear failed", map[string]any{
			"type":  string(typ),
			"error": err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "clear failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"deleted": deleted}})
}
