package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv string
	Port   int

	// Postgres (pgxpool DSN)
	DBDSN string

	// JWT verification
	JWTSecret string
	JWTIssuer string

	// Redis
	RedisAddr string
	RedisPass string
	RedisDB   int

	// Rate limit
	RLEnabled bool
	RLLimit   int
	RLWindow  time.Duration

	// Kafka
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaGroupID       string
	KafkaTopicPurchase string
	KafkaTopicDLQ      string
	KafkaPollBackoff   time.Duration

	// Expiry sweep
	SweepInterval time.Duration

	// Seed sample events when the events table is empty
	SeedEnabled bool

	// Logging
	LogLevel string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.AppEnv = getEnv("APP_ENV", "dev")
	cfg.Port = getInt("PORT", 8080)

	// --- Postgres: prefer DATABASE_URL if present, else build from POSTGRES_*
	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL != "" {
		cfg.DBDSN = dbURL
	} else {
		addr := getEnv("POSTGRES_ADDR", "")
		user := getEnv("POSTGRES_USER", "")
		pass := getEnv("POSTGRES_PASSWORD", "")
		db := getEnv("POSTGRES_DB", "")
		sslmode := getEnv("POSTGRES_SSLMODE", "disable")
		cfg.DBDSN = buildPostgresURL(addr, user, pass, db, sslmode)
	}

	// --- JWT
	cfg.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.JWTIssuer = getEnv("JWT_ISSUER", "seatsync")

	// --- Redis
	cfg.RedisAddr = getEnv("REDIS_ADDR", "127.0.0.1:6379")
	cfg.RedisPass = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB = getInt("REDIS_DB", 0)

	// --- Rate limit
	cfg.RLEnabled = getBool("RL_ENABLED", true)
	cfg.RLLimit = getInt("RL_REQUESTS_LIMIT", 100)
	cfg.RLWindow = time.Duration(getInt("RL_WINDOW_SECONDS", 60)) * time.Second

	// --- Kafka
	cfg.KafkaEnabled = getBool("KAFKA_ENABLED", true)
	cfg.KafkaBrokers = splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092"))
	cfg.KafkaGroupID = getEnv("KAFKA_GROUP_ID", "ticket-purchases")
	cfg.KafkaTopicPurchase = getEnv("KAFKA_TOPIC_PURCHASE", "purchase-requests")
	cfg.KafkaTopicDLQ = getEnv("KAFKA_TOPIC_DLQ", "purchase-requests-dlq")
	cfg.KafkaPollBackoff = getDuration("KAFKA_POLL_BACKOFF", time.Second)

	// --- Expiry sweep
	cfg.SweepInterval = getDuration("SWEEP_INTERVAL", time.Minute)

	// --- Seeding
	cfg.SeedEnabled = getBool("SEED_ENABLED", cfg.AppEnv == "dev")

	// --- Logging
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	// --- Validation (fail fast)
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("missing database config: provide DATABASE_URL or POSTGRES_ADDR/POSTGRES_USER/POSTGRES_PASSWORD/POSTGRES_DB")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("missing JWT_SECRET")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("missing KAFKA_BROKERS (required when KAFKA_ENABLED)")
	}

	return cfg, nil
}

// buildPostgresURL builds a safe postgres URL DSN (handles special characters).
func buildPostgresURL(addr, user, pass, db, sslmode string) string {
	if strings.TrimSpace(addr) == "" || strings.TrimSpace(user) == "" || strings.TrimSpace(db) == "" {
		return ""
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   strings.TrimSpace(addr),
		Path:   "/" + strings.TrimPrefix(strings.TrimSpace(db), "/"),
	}
	if pass != "" {
		u.User = url.UserPassword(user, pass)
	} else {
		u.User = url.User(user)
	}

	q := url.Values{}
	if strings.TrimSpace(sslmode) != "" {
		q.Set("sslmode", strings.TrimSpace(sslmode))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getBool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		// prefer failing fast over silent misconfig
		panic(fmt.Errorf("invalid boolean env %s=%q", k, v))
	}
}

func getDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
