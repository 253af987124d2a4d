package config

import (
	"os"
	"strconv"
	"time"
	_ "time/tzdata"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// RedisConfig configures the optional cross-instance progress relay.
// An empty Addr disables the relay and keeps fan-out in process.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// ProcessingConfig tunes the background analysis pipeline.
type ProcessingConfig struct {
	FFProbePath  string
	ProbeTimeout time.Duration
	ProbeURLTTL  time.Duration
	StageDelay   time.Duration
}

// EventsConfig tunes observer delivery.
type EventsConfig struct {
	Buffer    int
	Heartbeat time.Duration
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost         string
	Port            string
	Timezone        string
	JWTSecret       string
	MaxUploadBytes  int
	ShutdownTimeout time.Duration
	Database        DatabaseConfig
	MinIO           MinIOConfig
	Redis           RedisConfig
	Processing      ProcessingConfig
	Events          EventsConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// Real environment variables take precedence over the file.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:         getEnv("APP_HOST", "localhost:8080"),
		Port:            getEnv("PORT", "8080"),
		Timezone:        getEnv("APP_TIMEZONE", "UTC"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		MaxUploadBytes:  getEnvInt("MAX_UPLOAD_BYTES", 500*1024*1024),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Channel:  getEnv("REDIS_CHANNEL", "videoapi:progress"),
		},
		Processing: ProcessingConfig{
			FFProbePath:  getEnv("FFPROBE_PATH", "ffprobe"),
			ProbeTimeout: getEnvDuration("PROBE_TIMEOUT", 60*time.Second),
			ProbeURLTTL:  getEnvDuration("PROBE_URL_TTL", 15*time.Minute),
			StageDelay:   getEnvDuration("PROCESSING_STAGE_DELAY", time.Second),
		},
		Events: EventsConfig{
			Buffer:    getEnvInt("EVENTS_BUFFER", 32),
			Heartbeat: getEnvDuration("EVENTS_HEARTBEAT", 15*time.Second),
		},
	}
}

// Location resolves the configured log time zone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvDuration accepts Go duration strings ("1500ms", "2s"); "0" disables.
func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil && d >= 0 {
			return d
		}
	}
	return def
}
