package handler

import (
	"net/http"
	"time"

	"captcha-service/internal/auth/credentials"
	"captcha-service/internal/captcha"
	"captcha-service/internal/logger"
	"captcha-service/internal/session"

	"github.com/gin-gonic/gin"
)

const sessionLifetime = 24 * time.Hour

// Handler owns the admin login/logout flow. Login is gated on a redeemed
// captcha token: the token validator is the pre-authentication hook, so a
// failed password costs the caller a fresh challenge.
type Handler struct {
	credentialService *credentials.Service
	sessionStore      session.Store
	captchaValidator  *captcha.Validator
}

func NewHandler(
	credentialService *credentials.Service,
	sessionStore session.Store,
	captchaValidator *captcha.Validator,
) *Handler {
	return &Handler{
		credentialService: credentialService,
		sessionStore:      sessionStore,
		captchaValidator:  captchaValidator,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", h.Logout)
}

type loginRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	CaptchaToken string `json:"captchaToken"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	// Single-use redemption: whatever happens below, this token is spent.
	if !h.captchaValidator.Redeem(c.Request.Context(), req.CaptchaToken, captcha.TypeLogin) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "captcha verification invalid or expired"})
		return
	}

	if err := h.credentialService.Authenticate(req.Email, req.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	sessionID, err := session.GenerateID()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session error"})
		return
	}

	now := time.Now()
	expiresAt := now.Add(sessionLifetime)

	if err := h.sessionStore.Create(
		c.Request.Context(),
		session.Session{
			SessionID: sessionID,
			Email:     req.Email,
			CreatedAt: now,
			ExpiresAt: expiresAt,
		},
	); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session error"})
		return
	}

	session.SetCookie(
		c.Writer,
		sessionID,
		expiresAt,
		session.CookieOptions{
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
		},
	)

	logger.Info("admin login", map[string]any{
		"ip": c.ClientIP(),
	})

	c.JSON(http.StatusOK, gin.H{"status": "logged_in"})
}

func (h *Handler) Logout(c *gin.Context) {
	cookie, err := c.Request.Cookie(session.CookieName)
	if err == nil && cookie.Value != "" {
		// best-effort delete; the key expires on its own either way
		_ = h.sessionStore.Delete(c.Request.Context(), cookie.Value)
	}

	session.ClearCookie(c.Writer, session.CookieOptions{
		Path:     "/",
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	c.Status(http.StatusNoContent)
}
