package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Lifecycle configuration
	AdvancerSchedule string
	ArchiveDelay     time.Duration

	// Feed sync configuration
	FeedSyncSchedule string
	FeedURL          string
	FeedFetchTimeout time.Duration
	SyncBatchSize    int

	// Rate limiting
	RateLimitWindow time.Duration
	RateLimitMax    int64

	// Monitoring
	EnableMetrics   bool
	MetricsInterval time.Duration
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Lifecycle
		AdvancerSchedule: getEnv("ADVANCER_SCHEDULE", "*/15 * * * *"),
		ArchiveDelay:     getEnvAsDuration("ARCHIVE_DELAY", "12h"),

		// Feed sync (Monday 2:00 AM by default)
		FeedSyncSchedule: getEnv("FEED_SYNC_SCHEDULE", "0 2 * * 1"),
		FeedURL:          getEnv("FEED_URL", "https://buffalo.campuslabs.com/engage/events.rss"),
		FeedFetchTimeout: getEnvAsDuration("FEED_FETCH_TIMEOUT", "30s"),
		SyncBatchSize:    getEnvAsInt("SYNC_BATCH_SIZE", 500),

		// Rate limiting
		RateLimitWindow: getEnvAsDuration("RATE_LIMIT_WINDOW", "1m"),
		RateLimitMax:    int64(getEnvAsInt("RATE_LIMIT_MAX", 30)),

		// Monitoring
		EnableMetrics:   getEnvAsBool("ENABLE_METRICS", true),
		MetricsInterval: getEnvAsDuration("METRICS_INTERVAL", "30s"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
