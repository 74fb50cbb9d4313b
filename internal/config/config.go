// Package config loads the process's environment-driven configuration,
// following the teacher's LoadWeaponConfigsOrDefault idiom of typed
// loading with hardcoded fallbacks rather than a third-party config
// library (the teacher's entire dependency graph carries nothing in
// this space either, so a small stdlib os.Getenv/strconv reader matches
// the pool's own practice).
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every environment-driven setting named in §6.
type Config struct {
	Port      string
	ServiceID string
	JWKSURL   string
	APIURL    string

	SigningKeyID string
	SigningSecret string

	SimTickHz                    int
	NetworkHz                    int
	FullSnapshotIntervalNetTicks int

	TokenIssuer  string
	DeployRegion string

	JWKSCacheMaxAge      time.Duration
	JWKSRefreshCooldown  time.Duration
	JWKSFetchTimeout     time.Duration
}

// Load reads the process environment into a Config, applying the
// defaults from §6 wherever a variable is unset or unparsable.
func Load() Config {
	c := Config{
		Port:      getenv("PORT", "3000"),
		ServiceID: getenv("SERVICE_ID", ""),
		APIURL:    getenv("API_URL", ""),

		SigningKeyID:  getenv("SIGNING_KEY_ID", ""),
		SigningSecret: getenv("SIGNING_SECRET", ""),

		SimTickHz: getenvInt("SIM_TICK_HZ", 60),
		NetworkHz: getenvInt("NETWORK_HZ", 60),

		TokenIssuer:  getenv("TOKEN_ISSUER", ""),
		DeployRegion: getenv("DEPLOY_REGION", "local"),

		JWKSCacheMaxAge:     getenvMillis("JWKS_CACHE_MAX_AGE_MS", 5*time.Minute),
		JWKSRefreshCooldown: getenvMillis("JWKS_REFRESH_COOLDOWN_MS", time.Second),
		JWKSFetchTimeout:    getenvMillis("JWKS_FETCH_TIMEOUT_MS", 15*time.Second),
	}

	c.FullSnapshotIntervalNetTicks = getenvInt("FULL_SNAPSHOT_INTERVAL_NET_TICKS", c.NetworkHz)

	c.JWKSURL = getenv("JWKS_URL", deriveJWKSURL(c.APIURL))

	return c
}

func deriveJWKSURL(apiURL string) string {
	if apiURL == "" {
		return ""
	}
	return apiURL + "/.well-known/jwks.json"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
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

func getenvMillis(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
