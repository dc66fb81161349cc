package config

import "time"

type Config struct {
	Service  *ServiceConfig
	Logger   *LoggerConfig
	Tracer   *TracerConfig
	Drivers  *DriversConfig
	Mongo    *MongoConfig
	Redis    *RedisConfig
	Storage  *StorageConfig
	Notifier *NotifierConfig
	Sweep    *SweepConfig
	Bot      *BotConfig
	Auth     *AuthConfig
	CORS     *CORSConfig
}

type ServiceConfig struct {
	Name            string
	Env             string
	Add             string
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level  string
	Format string
	// File enables a rotated log file next to stdout when set.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type TracerConfig struct {
	Enabled bool
	Address string
}

// DriversConfig picks the backing implementation of each store.
type DriversConfig struct {
	Store    string // mongo | memory
	Presence string // redis | memory
}

type MongoConfig struct {
	URI                string
	Database           string
	TicketsCollection  string
	SettingsCollection string
	UsersCollection    string
	ConnectTimeout     time.Duration
	PingTimeout        time.Duration
}

type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	PingTimeout  time.Duration
	// Fanout relays channel broadcasts between instances over Pub/Sub.
	Fanout        bool
	FanoutChannel string
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
	MaxBytes  int64
}

type NotifierConfig struct {
	Kind       string // webhook | smtp | none
	WebhookURL string
	Timeout    time.Duration
	SMTPHost   string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	From       string
}

type SweepConfig struct {
	Interval time.Duration
	LockTTL  time.Duration
}

type BotConfig struct {
	Delay time.Duration
	Text  string
}

type AuthConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowOrigins []string
}
