// Package config provides 12-factor configuration management for the launcher.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Fetch: cache directory, timeouts, retries, rate limit, circuit breaker
//   - Platform: OS, architecture, locale and runtime version overrides
//   - Logging: Log level and output format
//   - Server: status server address and switch
//   - Trust: whether native libraries may be activated
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Caching artifacts in %s\n", cfg.Fetch.CacheDir)
//
// Environment Variables:
//   - FETCH_CACHE_DIR, FETCH_TIMEOUT, FETCH_RETRIES, FETCH_CONCURRENCY
//   - FETCH_RATE_LIMIT, FETCH_RATE_BURST, FETCH_VERIFY_CONTENT
//   - PLATFORM_OS, PLATFORM_ARCH, PLATFORM_LOCALE, PLATFORM_RUNTIME
//   - LOG_LEVEL, LOG_DEV, TRUST_NATIVE
//   - STATUS_ADDR, STATUS_ENABLED, STATUS_RATE_LIMIT, STATUS_RATE_BURST
package config
