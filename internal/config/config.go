// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"
	"strconv"
)

// Config holds all runtime configuration. Required values are enforced by
// must() at startup; optional ones fall back to documented defaults.
type Config struct {
	Env  string // application environment (dev/test/prod)
	Port string // HTTP port to listen on

	DBUser string
	DBPass string // optional
	DBHost string
	DBPort string
	DBName string

	JWTSecret      string // symmetric signing key shared with validators
	JWTIssuer      string // iss claim
	JWTAudience    string // aud claim
	AccessTTLMin   int    // access token lifetime in minutes
	RefreshTTLDays int    // refresh token lifetime in days

	LockoutThreshold      int  // failed logins before a lockout window opens
	LockoutMinutes        int  // length of the lockout window
	RequireConfirmedEmail bool // gate local logins on a confirmed address

	GoogleClientID string // audience for Google ID-token verification (optional)
}

// Load reads the environment and returns a Config. Missing required
// variables terminate the process with a fatal log message.
func Load() Config {
	return Config{
		Env:  must("APP_ENV"),
		Port: must("APP_PORT"),

		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		JWTSecret:      must("JWT_SECRET"),
		JWTIssuer:      envStr("JWT_ISSUER", "storegate"),
		JWTAudience:    envStr("JWT_AUDIENCE", "storegate-api"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),

		LockoutThreshold:      envInt("LOCKOUT_THRESHOLD", 5),
		LockoutMinutes:        envInt("LOCKOUT_MINUTES", 15),
		RequireConfirmedEmail: envBool("REQUIRE_CONFIRMED_EMAIL", false),

		GoogleClientID: os.Getenv("GOOGLE_CLIENT_ID"),
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but parses the value as an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
