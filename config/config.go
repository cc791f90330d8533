package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Realtime RealtimeConfig
	Rooms    RoomsConfig
	Database DatabaseConfig
	Redis    RedisConfig
	AWS      AWSConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string // "*" or empty allows every origin
}

// RealtimeConfig holds WebSocket connection settings.
type RealtimeConfig struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	SendBuffer     int
	AllowedOrigins []string // WebSocket Origin allow-list; empty allows any
}

// RoomsConfig holds interview room settings.
type RoomsConfig struct {
	CodeLength       int
	DefaultProblem   string
	TimerSeconds     int
	WhiteboardReplay bool
	MaxStrokes       int
	InstanceID       string
	LifecycleBuffer  int
}

// DatabaseConfig holds PostgreSQL connection settings. Empty URL and host disable persistence.
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Migrate  bool
}

// RedisConfig holds Redis connection settings. Empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AWSConfig holds AWS credentials and the transcripts bucket. Empty bucket disables archiving.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	Endpoint             string
	TranscriptsBucket    string
	PresignExpireMinutes int
}

// LogConfig holds logger settings. File is optional; when set, logs are also written there with rotation.
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Enabled reports whether a database is configured.
func (c DatabaseConfig) Enabled() bool {
	return c.URL != "" || c.Host != ""
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Enabled reports whether Redis is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// Enabled reports whether transcript archiving to S3 is configured.
func (c AWSConfig) Enabled() bool {
	return c.TranscriptsBucket != ""
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	host, _ := os.Hostname()
	instance := getEnv("INSTANCE_ID", "")
	if instance == "" {
		instance = fmt.Sprintf("%s-%s", strings.TrimSpace(host), uuid.NewString()[:8])
	}

	pongWait := getEnvDuration("WS_PONG_WAIT", 60*time.Second)
	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			CORSAllowedOrigins: splitTrim(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"), ","),
		},
		Realtime: RealtimeConfig{
			PingInterval:   getEnvDuration("WS_PING_INTERVAL", pongWait*9/10),
			PongWait:       pongWait,
			WriteWait:      getEnvDuration("WS_WRITE_WAIT", 10*time.Second),
			MaxMessageSize: int64(getEnvInt("WS_MAX_MESSAGE_SIZE", 512*1024)),
			SendBuffer:     getEnvInt("WS_SEND_BUFFER", 256),
			AllowedOrigins: splitTrim(getEnv("WS_ALLOWED_ORIGINS", ""), ","),
		},
		Rooms: RoomsConfig{
			CodeLength:       getEnvInt("ROOM_CODE_LENGTH", 6),
			DefaultProblem:   getEnv("DEFAULT_PROBLEM", "two-sum"),
			TimerSeconds:     getEnvInt("TIMER_DEFAULT_SECONDS", 2700),
			WhiteboardReplay: getEnvBool("WHITEBOARD_REPLAY", false),
			MaxStrokes:       getEnvInt("WHITEBOARD_MAX_STROKES", 5000),
			InstanceID:       instance,
			LifecycleBuffer:  getEnvInt("LIFECYCLE_BUFFER", 1024),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", ""),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "interview"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Migrate:  getEnvBool("DB_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:             getEnv("AWS_S3_ENDPOINT", ""),
			TranscriptsBucket:    getEnv("AWS_S3_TRANSCRIPTS_BUCKET", ""),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 10),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Rooms.CodeLength < 6 || c.Rooms.CodeLength > 8 {
		errs = append(errs, fmt.Errorf("ROOM_CODE_LENGTH must be between 6 and 8, got %d", c.Rooms.CodeLength))
	}
	if c.Rooms.TimerSeconds <= 0 {
		errs = append(errs, fmt.Errorf("TIMER_DEFAULT_SECONDS must be positive, got %d", c.Rooms.TimerSeconds))
	}
	if c.Rooms.MaxStrokes <= 0 {
		errs = append(errs, fmt.Errorf("WHITEBOARD_MAX_STROKES must be positive, got %d", c.Rooms.MaxStrokes))
	}
	if c.Realtime.SendBuffer <= 0 {
		errs = append(errs, fmt.Errorf("WS_SEND_BUFFER must be positive, got %d", c.Realtime.SendBuffer))
	}
	if c.Realtime.MaxMessageSize <= 0 {
		errs = append(errs, fmt.Errorf("WS_MAX_MESSAGE_SIZE must be positive, got %d", c.Realtime.MaxMessageSize))
	}
	if c.Realtime.PongWait <= 0 || c.Realtime.PingInterval <= 0 || c.Realtime.PingInterval >= c.Realtime.PongWait {
		errs = append(errs, fmt.Errorf("WS_PING_INTERVAL (%s) must be positive and shorter than WS_PONG_WAIT (%s)",
			c.Realtime.PingInterval, c.Realtime.PongWait))
	}
	if c.Rooms.DefaultProblem == "" {
		errs = append(errs, errors.New("DEFAULT_PROBLEM must not be empty"))
	}
	return errors.Join(errs...)
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("45s") or plain seconds ("45").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
