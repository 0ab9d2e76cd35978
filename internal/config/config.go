// Package config loads server configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server needs to start.
type Config struct {
	Port     string
	MongoURI string
	MongoDB  string

	// RedisAddr is optional; when empty the interest-event publisher
	// is a no-op and the chat collaborator gets no signals.
	RedisAddr string

	JWTSecret string
	JWTTTL    time.Duration

	// RateLimitRPM applies to register/login only.
	RateLimitRPM int
}

// Load reads the environment (and .env when present) into a Config.
// MONGODB_URI and JWT_SECRET are required; everything else has a
// sensible default.
func Load() (*Config, error) {
	_ = godotenv.Load() // missing .env is fine; real env wins anyway

	cfg := &Config{
		Port:         getenv("PORT", "8080"),
		MongoURI:     os.Getenv("MONGODB_URI"),
		MongoDB:      getenv("MONGODB_DB", "marketplace"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		JWTTTL:       24 * time.Hour,
		RateLimitRPM: 10,
	}

	if cfg.MongoURI == "" {
		return nil, errors.New("MONGODB_URI must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set")
	}

	if v := os.Getenv("JWT_TTL_HOURS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, errors.New("JWT_TTL_HOURS must be a positive integer")
		}
		cfg.JWTTTL = time.Duration(n) * time.Hour
	}
	if v := os.Getenv("RATE_LIMIT_RPM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, errors.New("RATE_LIMIT_RPM must be a positive integer")
		}
		cfg.RateLimitRPM = n
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
