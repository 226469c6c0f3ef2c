package app

import (
	authhandler "captcha-service/internal/auth/handler"

	"captcha-service/internal/auth/credentials"
	"captcha-service/internal/captcha"
	captchahandler "captcha-service/internal/captcha/handler"
	"captcha-service/internal/config"
	"captcha-service/internal/middleware"
	"captcha-service/internal/session"

	"github.com/gin-gonic/gin"
)

func setupHTTP(cfg config.Config) (*gin.Engine, func() error, error) {

	infra, err := setupInfra(cfg)
	if err != nil {
		return nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	captchaStore := captcha.NewRedisStore(infra.Redis.Client)
	issuer := captcha.NewIssuer(captchaStore, cfg.CaptchaImageDir)
	verifier := captcha.NewVerifier(captchaStore, captcha.DefaultVerifierConfig())
	validator := captcha.NewValidator(captchaStore)

	sessionStore := session.NewRedisStore(infra.Redis.Client)
	credentialService := credentials.NewService(cfg.AdminEmail, cfg.AdminPasswordHash)

	captchaHandler := captchahandler.NewHandler(issuer, verifier, captchaStore)
	authHandler := authhandler.NewHandler(credentialService, sessionStore, validator)

	authMiddleware := middleware.NewAuthMiddleware(sessionStore)

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery())

	// ----------------------------
	// Public Routes
	// ----------------------------

	captchaHandler.RegisterRoutes(router)
	authHandler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ----------------------------
	// Protected API Routes
	// ----------------------------

	api := router.Group("/api")
	api.Use(middleware.GinRequireAuth(authMiddleware))

	api.GET("/me", func(c *gin.Context) {
		email, _ := middleware.EmailFromContext(c.Request.Context())
		c.JSON(200, gin.H{
			"email": email,
		})
	})

	// ----------------------------
	// Cleanup
	// ----------------------------

	return router, func() error {
		return infra.Redis.Close()
	}, nil
}
