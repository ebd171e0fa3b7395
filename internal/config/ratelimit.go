package config

import (
	"os"
	"strconv"
	"time"
)

// RateLimitConfig parameterises one Redis token bucket.
type RateLimitConfig struct {
	Name           string // bucket name, part of every key: api, auth, job_create, task_create
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig returns the general API bucket.
func LoadRateLimitConfig() RateLimitConfig {
	def := RateLimitConfig{
		Name:           "api",
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}
	if b := envInt("RATE_LIMIT_BURST", -1); b > 0 {
		def.Capacity = b
	}
	if every := envDur("RATE_LIMIT_REFILL_EVERY", 0); every > 0 {
		def.RefillTokens = 1
		def.RefillInterval = every
	}
	return def.normalize()
}

// LoadAuthRateLimitConfig returns the stricter bucket guarding credential
// endpoints: AUTH_RATE_LIMIT_CAPACITY attempts per hour and per client IP.
func LoadAuthRateLimitConfig() RateLimitConfig {
	return hourly("auth", "AUTH_RATE_LIMIT_CAPACITY", 5)
}

// LoadJobCreateRateLimitConfig caps job creation per client IP and hour.
func LoadJobCreateRateLimitConfig() RateLimitConfig {
	return hourly("job_create", "JOB_CREATE_RATE_LIMIT_CAPACITY", 10)
}

// LoadTaskCreateRateLimitConfig caps task creation per client IP and hour.
func LoadTaskCreateRateLimitConfig() RateLimitConfig {
	return hourly("task_create", "TASK_CREATE_RATE_LIMIT_CAPACITY", 30)
}

// hourly builds a bucket that refills its whole capacity once per hour.
func hourly(name, capacityKey string, def int) RateLimitConfig {
	capacity := envInt(capacityKey, def)
	if capacity < 1 {
		capacity = 1
	}
	return RateLimitConfig{
		Name:           name,
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       capacity,
		RefillTokens:   1,
		RefillInterval: time.Hour / time.Duration(capacity),
		TTL:            2 * time.Hour,
		KeyStrategy:    "ip_route",
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}.normalize()
}

func (c RateLimitConfig) normalize() RateLimitConfig {
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
		c.TTL = minTTL
	}
	return c
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
