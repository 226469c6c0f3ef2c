package config

import (
	"os"
)

type Config struct {
	AppPort string

	RedisAddr     string
	RedisPassword string

	CaptchaImageDir string

	AdminEmail        string
	AdminPasswordHash string
}

func Load() Config {

	cfg := Config{

		AppPort: getEnv("APP_PORT", "8080"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		CaptchaImageDir: getEnv("CAPTCHA_IMAGE_DIR", "./public/captcha"),

		AdminEmail:        os.Getenv("ADMIN_EMAIL"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
	}

	return cfg

}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
