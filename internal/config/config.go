package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	ListenAddr  string
	LogLevel    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	// Cache backend for the retrieval cache and disambiguation store.
	// "memory" keeps entries in-process; "redis" survives restarts.
	CacheBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Knowledge store (remote retrieval service).
	KnowledgeStoreURL     string
	KnowledgeStoreAPIKey  string
	KnowledgeStoreTimeout time.Duration

	// Model provider.
	GenAIAPIKey string

	// Trust X-Client-IP from the proxy in front of us.
	TrustProxyClientIP bool

	// Per-client chat throttling. Requires the redis cache backend.
	ChatRateLimitEnabled bool
	ChatRatePerSec       float64
	ChatBurst            int

	SeedDemoData bool
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_NAME", "assist"),
		AppVersion:  getenv("APP_VERSION", "dev"),
		Environment: getenv("ENVIRONMENT", "development"),
		ListenAddr:  getenv("LISTEN_ADDR", ":8080"),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		OTLPEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "assist"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 25)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 3600)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 600)),

		CacheBackend:  strings.ToLower(getenv("CACHE_BACKEND", "memory")),
		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       int(getenvInt64("REDIS_DB", 0)),

		KnowledgeStoreURL:     getenv("KNOWLEDGE_STORE_URL", "http://localhost:9200"),
		KnowledgeStoreAPIKey:  getenv("KNOWLEDGE_STORE_API_KEY", ""),
		KnowledgeStoreTimeout: getenvDuration("KNOWLEDGE_STORE_TIMEOUT", 10*time.Second),

		GenAIAPIKey: getenv("GENAI_API_KEY", ""),

		TrustProxyClientIP: getenvBool("TRUST_PROXY_CLIENT_IP", false),

		ChatRateLimitEnabled: getenvBool("CHAT_RATE_LIMIT_ENABLED", false),
		ChatRatePerSec:       getenvFloat("CHAT_RATE_PER_SEC", 1),
		ChatBurst:            int(getenvInt64("CHAT_BURST", 5)),

		SeedDemoData: getenvBool("SEED_DEMO_DATA", true),
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
