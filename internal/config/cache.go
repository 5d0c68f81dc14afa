package config

import "time"

// CacheConfig defines settings for the movie read cache.  When Enabled is
// false or no Redis client is available, caching is disabled.  Methods lists
// the HTTP methods to cache (normally just GET).  KeyStrategy decides which
// parts of the request contribute to the key: "route" (the request path,
// path parameters included) or "route_query" (path plus raw query).
// Entries belong to the current catalog generation, which is bumped after
// every successful write, so a mutation invalidates all cached reads at once.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads environment variables to build a CacheConfig.
func LoadCacheConfig() CacheConfig {
	c := CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      parseMethods(envStr("CACHE_METHODS", "GET")),
		TTL:          envDur("CACHE_TTL", 30*time.Second),
		KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
		Prefix:       envStr("CACHE_PREFIX", "movies-cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
	if c.TTL <= 0 { c.TTL = time.Second }
	return c
}
