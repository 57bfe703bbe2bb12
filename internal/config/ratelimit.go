package config

import "time"

// RateLimitConfig configures the token bucket applied to write routes.
// Capacity tokens are available up front; RefillTokens are added every
// RefillInterval.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string // "ip", "user", "ip_user" or "ip_user_route"
	Prefix         string
}

// LoadRateLimitConfig reads the RATE_LIMIT_* variables and clamps them to
// usable values.
func LoadRateLimitConfig() RateLimitConfig {
	rl := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
	}
	if b := envInt("RATE_LIMIT_BURST", -1); b > 0 {
		rl.Capacity = b
	}
	if rl.Capacity < 1 {
		rl.Capacity = 1
	}
	if rl.RefillTokens < 1 {
		rl.RefillTokens = 1
	}
	if rl.RefillInterval <= 0 {
		rl.RefillInterval = time.Second
	}
	if minTTL := 5 * rl.RefillInterval; rl.TTL < minTTL {
		rl.TTL = minTTL
	}
	return rl
}
