package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func Load() *Config {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()
	return &Config{
		Service: &ServiceConfig{
			Name:            getEnv("SERVICE_NAME", "assist"),
			Env:             getEnv("SERVICE_ENV", "development"),
			Add:             getEnv("SERVICE_ADDR", ":8080"),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Logger: &LoggerConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "JSON"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 28),
		},
		Tracer: &TracerConfig{
			Enabled: getEnvBool("OTEL_ENABLED", false),
			Address: getEnv("OTEL_EXPORTER_ADDR", "localhost:4317"),
		},
		Drivers: &DriversConfig{
			Store:    getEnv("STORE_DRIVER", "mongo"),
			Presence: getEnv("PRESENCE_DRIVER", "redis"),
		},
		Mongo: &MongoConfig{
			URI:                getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database:           getEnv("MONGO_DB", "platform"),
			TicketsCollection:  getEnv("MONGO_TICKETS_COLLECTION", "tickets"),
			SettingsCollection: getEnv("MONGO_SETTINGS_COLLECTION", "assistsSettings"),
			UsersCollection:    getEnv("MONGO_USERS_COLLECTION", "users"),
			ConnectTimeout:     getEnvDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second),
			PingTimeout:        getEnvDuration("MONGO_PING_TIMEOUT", 2*time.Second),
		},
		Redis: &RedisConfig{
			URL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			DialTimeout:   getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:   getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout:  getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolSize:      getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns:  getEnvInt("REDIS_MIN_IDLE", 2),
			PingTimeout:   getEnvDuration("REDIS_PING_TIMEOUT", 2*time.Second),
			Fanout:        getEnvBool("REDIS_FANOUT", true),
			FanoutChannel: getEnv("REDIS_FANOUT_CHANNEL", "assist:events"),
		},
		Storage: &StorageConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "assist"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			PublicURL: getEnv("MINIO_PUBLIC_URL", ""),
			MaxBytes:  int64(getEnvInt("UPLOAD_MAX_BYTES", 10<<20)),
		},
		Notifier: &NotifierConfig{
			Kind:       getEnv("NOTIFIER", "none"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
			Timeout:    getEnvDuration("NOTIFY_TIMEOUT", 10*time.Second),
			SMTPHost:   getEnv("SMTP_HOST", ""),
			SMTPPort:   getEnvInt("SMTP_PORT", 587),
			SMTPUser:   getEnv("SMTP_USER", ""),
			SMTPPass:   getEnv("SMTP_PASS", ""),
			From:       getEnv("MAIL_FROM", "no-reply@assist.local"),
		},
		Sweep: &SweepConfig{
			Interval: getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
			LockTTL:  getEnvDuration("SWEEP_LOCK_TTL", 4*time.Minute),
		},
		Bot: &BotConfig{
			Delay: getEnvDuration("BOT_DELAY", 3*time.Second),
			Text:  getEnv("BOT_TEXT", ""),
		},
		Auth: &AuthConfig{
			Secret: getEnv("JWT_SECRET", ""),
			Issuer: getEnv("JWT_ISSUER", "assist"),
		},
		CORS: &CORSConfig{
			AllowOrigins: getEnvList("CORS_ALLOW_ORIGINS", []string{"*"}),
		},
	}
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
