package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// envConfig mirrors the environment variables the server understands.
// Token lifetimes are whole minutes and whole days respectively.
type envConfig struct {
	AppMode                  string        `envconfig:"APP_MODE"`
	EndpointAddrHTTP         string        `envconfig:"APP_ADDR"`
	DatabaseDSN              string        `envconfig:"DATABASE_DSN"`
	DBHost                   string        `envconfig:"DB_HOST"`
	DBPort                   string        `envconfig:"DB_PORT"`
	DBUser                   string        `envconfig:"DB_USER"`
	DBPassword               string        `envconfig:"DB_PASSWORD"`
	DBName                   string        `envconfig:"DB_NAME"`
	SecretKey                string        `envconfig:"SECRET_KEY"`
	Algorithm                string        `envconfig:"ALGORITHM"`
	AccessTokenExpireMinutes int           `envconfig:"ACCESS_TOKEN_EXPIRE_MINUTES"`
	RefreshTokenExpireDays   int           `envconfig:"REFRESH_TOKEN_EXPIRE_DAYS"`
	BcryptCost               int           `envconfig:"BCRYPT_COST"`
	LogLevel                 string        `envconfig:"LOG_LEVEL"`
	LogBackend               string        `envconfig:"LOG_BACKEND"`
	RequestTimeout           time.Duration `envconfig:"REQUEST_TIMEOUT"`
	RateLimitPerMinute       int           `envconfig:"RATE_LIMIT_PER_MINUTE"`
}

// loadDotEnv reads dir/.env.<APP_MODE> and then dir/.env into the process
// environment. Variables already set are never overwritten, so the real
// environment wins over the mode file, which wins over .env. Missing files
// are skipped.
func loadDotEnv(dir string) error {
	files := []string{filepath.Join(dir, ".env")}
	if mode := os.Getenv("APP_MODE"); mode != "" {
		files = append([]string{filepath.Join(dir, ".env."+mode)}, files...)
	}

	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// parseEnv overlays environment variables onto config. Unset variables
// leave the current values alone.
func parseEnv(config *Config) error {
	e := envConfig{
		AppMode:                  config.AppMode,
		EndpointAddrHTTP:         config.EndpointAddrHTTP,
		SecretKey:                config.SecretKey,
		Algorithm:                config.Algorithm,
		AccessTokenExpireMinutes: int(config.AccessTokenValidityDuration / time.Minute),
		RefreshTokenExpireDays:   int(config.RefreshTokenValidityDuration / (24 * time.Hour)),
		BcryptCost:               config.BcryptCost,
		LogLevel:                 config.LogLevel,
		LogBackend:               config.LogBackend,
		RequestTimeout:           config.RequestTimeout,
		RateLimitPerMinute:       config.RateLimitPerMinute,
	}

	if err := envconfig.Process("", &e); err != nil {
		return fmt.Errorf("environment: %w", err)
	}

	config.AppMode = e.AppMode
	config.EndpointAddrHTTP = e.EndpointAddrHTTP
	config.SecretKey = e.SecretKey
	config.Algorithm = e.Algorithm
	config.AccessTokenValidityDuration = time.Duration(e.AccessTokenExpireMinutes) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(e.RefreshTokenExpireDays) * 24 * time.Hour
	config.BcryptCost = e.BcryptCost
	config.LogLevel = e.LogLevel
	config.LogBackend = e.LogBackend
	config.RequestTimeout = e.RequestTimeout
	config.RateLimitPerMinute = e.RateLimitPerMinute

	switch {
	case e.DatabaseDSN != "":
		config.DatabaseDSN = e.DatabaseDSN
	case e.DBHost != "":
		config.DatabaseDSN = postgresDSN(e)
	}

	return nil
}

func postgresDSN(e envConfig) string {
	port := e.DBPort
	if port == "" {
		port = "5432"
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(e.DBHost, port),
		Path:     "/" + e.DBName,
		RawQuery: "sslmode=disable",
	}
	if e.DBUser != "" {
		u.User = url.UserPassword(e.DBUser, e.DBPassword)
	}
	return u.String()
}
