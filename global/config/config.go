package config

import (
	"os"
	"strconv"
	"time"
)

// AppConfig holds everything one gateway instance needs to start.
// Values come from the environment; the literals below are the dev defaults.
type AppConfig struct {
	InstanceID     int // this instance's shard index (0-based)
	TotalInstances int // gateway instances behind the balancer
	Port           int // ws + http port

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	NatsURL string

	APITimeout    time.Duration // per upstream call
	APIMaxRetries int
	APIBaseDelay  time.Duration

	PresenceTTL time.Duration // user:<id>:status / user:<id>:room keys

	CacheTTL         time.Duration // local cache default ttl
	CacheCheckPeriod time.Duration
	CacheMaxKeys     int

	MetricsInterval time.Duration
	MetricsTTL      time.Duration
}

var Global = Load()

func Load() AppConfig {
	return AppConfig{
		InstanceID:     envInt("INSTANCE_ID", 0),
		TotalInstances: envInt("TOTAL_INSTANCES", 1),
		Port:           envInt("PORT", 7000),

		RedisAddr:     envStr("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: envStr("REDIS_PASSWORD", ""),
		RedisDB:       envInt("REDIS_DB", 0),

		NatsURL: envStr("NATS_URL", "nats://127.0.0.1:4222"),

		APITimeout:    envDur("API_REQUEST_TIMEOUT", 5*time.Second),
		APIMaxRetries: envInt("API_MAX_RETRIES", 3),
		APIBaseDelay:  envDur("API_RETRY_BASE_DELAY", 100*time.Millisecond),

		PresenceTTL: envDur("PRESENCE_TTL", time.Hour),

		CacheTTL:         envDur("CACHE_TTL", 5*time.Minute),
		CacheCheckPeriod: envDur("CACHE_CHECK_PERIOD", 10*time.Minute),
		CacheMaxKeys:     envInt("CACHE_MAX_KEYS", 10000),

		MetricsInterval: envDur("METRICS_INTERVAL", time.Minute),
		MetricsTTL:      envDur("METRICS_TTL", 10*time.Minute),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDur(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	// plain integers are seconds, anything else goes through ParseDuration
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
