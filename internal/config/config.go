package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env              string
	HTTPPort         string
	DatabaseURL      string // empty means in-memory storage (dev/tests)
	JWTAccessSecret  string
	JWTRefreshSecret string
	JWTIssuer        string
	RateRPS          int
	AdminEmail       string // granted the admin role at startup if registered
	PaymentLatency   time.Duration
	WorkerCount      int
}

func Load() Config {
	return Config{
		Env:              get("APP_ENV", "dev"),
		HTTPPort:         get("HTTP_PORT", "8080"),
		DatabaseURL:      get("DATABASE_URL", ""),
		JWTAccessSecret:  get("JWT_ACCESS_SECRET", "changeme-access"),
		JWTRefreshSecret: get("JWT_REFRESH_SECRET", "changeme-refresh"),
		JWTIssuer:        get("JWT_ISSUER", "escrow-backend"),
		RateRPS:          getInt("RATE_RPS", 100),
		AdminEmail:       get("ADMIN_EMAIL", ""),
		PaymentLatency:   getDuration("PAYMENT_LATENCY", 2500*time.Millisecond),
		WorkerCount:      getInt("WORKER_COUNT", 4),
	}
}

func get(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
