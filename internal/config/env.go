// Package config collects the flat environment-variable configuration used
// across the control plane, following the same env(key, default) idiom the
// teacher's cmd/server/main.go uses.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Str returns the environment variable or a default when unset/empty.
func Str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Int returns the environment variable parsed as an int, or a default.
func Int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Seconds returns the environment variable parsed as a duration in seconds.
func Seconds(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(n) * time.Second
}

// Bool returns the environment variable parsed as a bool, or a default.
func Bool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Config is the fully resolved set of environment-driven settings consumed
// by cmd/server. Defaults mirror spec.md §5's stated route budgets.
type Config struct {
	Env string // "dev" enables pretty logging + X-Debug-Sub-style relaxations

	HTTPAddr    string
	DatabaseURL string

	AccessTokenTTL  time.Duration
	SessionTTL      time.Duration
	OAuthContextTTL time.Duration

	WebBaseURL     string
	GatewayHTTPURL string
	GatewayWSURL   string

	InternalAPIServiceToken string
	GatewayServiceToken     string

	AuthTokenSecret    string
	RefreshTokenSecret string
	OAuthStateSecret   string

	StripeSecretKey       string
	StripeWebhookSecret   string
	StripeCreditsPacksRaw string

	OrgContextEnforcement string // "strict" | "warn"

	KEKObjectBucket string
	KEKObjectKey    string
	KEKEndpointURL  string // for S3-compatible, non-AWS endpoints

	OAuthGoogleClientID     string
	OAuthGoogleClientSecret string
	OAuthGitHubClientID     string
	OAuthGitHubClientSecret string
}

// Load resolves Config from the process environment.
func Load() Config {
	return Config{
		Env:                     Str("ENV", ""),
		HTTPAddr:                Str("HTTP_ADDR", ":8080"),
		DatabaseURL:             Str("DATABASE_URL", ""),
		AccessTokenTTL:          Seconds("ACCESS_TOKEN_TTL_SEC", 15*time.Minute),
		SessionTTL:              Seconds("SESSION_TTL_SEC", 7*24*time.Hour),
		OAuthContextTTL:         Seconds("OAUTH_CONTEXT_TTL_SEC", 10*time.Minute),
		WebBaseURL:              Str("WEB_BASE_URL", "http://localhost:3000"),
		GatewayHTTPURL:          Str("GATEWAY_HTTP_URL", ""),
		GatewayWSURL:            Str("GATEWAY_WS_URL", ""),
		InternalAPIServiceToken: Str("INTERNAL_API_SERVICE_TOKEN", ""),
		GatewayServiceToken:     Str("GATEWAY_SERVICE_TOKEN", ""),
		AuthTokenSecret:         Str("AUTH_TOKEN_SECRET", ""),
		RefreshTokenSecret:      Str("REFRESH_TOKEN_SECRET", ""),
		OAuthStateSecret:        Str("OAUTH_STATE_SECRET", ""),
		StripeSecretKey:         Str("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:     Str("STRIPE_WEBHOOK_SECRET", ""),
		StripeCreditsPacksRaw:   Str("STRIPE_CREDITS_PACKS_JSON", "[]"),
		OrgContextEnforcement:   Str("ORG_CONTEXT_ENFORCEMENT", "strict"),
		KEKObjectBucket:         Str("KEK_OBJECT_BUCKET", ""),
		KEKObjectKey:            Str("KEK_OBJECT_KEY", "kek/current"),
		KEKEndpointURL:          Str("KEK_S3_ENDPOINT_URL", ""),
		OAuthGoogleClientID:     Str("OAUTH_GOOGLE_CLIENT_ID", ""),
		OAuthGoogleClientSecret: Str("OAUTH_GOOGLE_CLIENT_SECRET", ""),
		OAuthGitHubClientID:     Str("OAUTH_GITHUB_CLIENT_ID", ""),
		OAuthGitHubClientSecret: Str("OAUTH_GITHUB_CLIENT_SECRET", ""),
	}
}

// IsDev reports whether pretty/dev-only behavior should be enabled.
func (c Config) IsDev() bool { return c.Env == "dev" }

// IsProduction reports whether cookies must be marked Secure, per spec §4.4.
func (c Config) IsProduction() bool { return c.Env == "production" }
