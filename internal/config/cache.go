package config

import (
	"strings"
	"time"
)

// CacheConfig defines settings for the room catalog response cache.
// Methods lists the HTTP methods that may be served from cache; TTL bounds
// how stale a cached catalog page can get.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string // "route_query" or "full_path"
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads the CACHE_* variables.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      parseMethods(envStr("CACHE_METHODS", "GET")),
		TTL:          envDur("CACHE_TTL", 30*time.Second),
		KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
		Prefix:       envStr("CACHE_PREFIX", "cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
}

func parseMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range splitList(s) {
		m[strings.ToUpper(p)] = true
	}
	return m
}
