package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Discord   DiscordConfig
	Schedule  ScheduleConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Sheets    SheetsConfig
	Questions QuestionsConfig
	AWS       AWSConfig
	Remote    RemoteConfig
	LogLevel  string
}

// ServerConfig holds the keep-alive HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string
}

// DiscordConfig holds bot credentials and the guild commands are registered to.
type DiscordConfig struct {
	Token    string
	ClientID string
	GuildID  string
}

// ScheduleConfig controls the daily post and poll duration.
type ScheduleConfig struct {
	Hour            int
	Minute          int
	Timezone        string
	DurationMinutes int
}

// Location resolves the configured timezone.
func (s ScheduleConfig) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	Driver     string
	URL        string // postgres only
	SQLitePath string // directory holding polls.db; empty = in-memory
}

// RedisConfig holds Redis connection settings. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// SheetsConfig holds the Google Sheets question store / event log settings.
type SheetsConfig struct {
	Enabled         bool
	SpreadsheetID   string
	CredentialsFile string
	QuestionsRange  string
	LogRange        string
}

// Active reports whether Sheets should actually be used.
func (c SheetsConfig) Active() bool {
	return c.Enabled && c.SpreadsheetID != ""
}

// QuestionsConfig locates the local question pool snapshot.
type QuestionsConfig struct {
	File     string
	S3Bucket string // if set, the snapshot lives in S3 instead of File
	S3Key    string
}

// AWSConfig holds AWS credentials for the S3 question snapshot.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // S3-compatible endpoint override
}

// RemoteConfig bounds how long optional remote calls may hold up the caller.
type RemoteConfig struct {
	Timeout     time.Duration
	VoteLogWait time.Duration
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "3000"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
		},
		Discord: DiscordConfig{
			Token:    getEnv("DISCORD_TOKEN", ""),
			ClientID: getEnv("CLIENT_ID", ""),
			GuildID:  getEnv("GUILD_ID", ""),
		},
		Schedule: ScheduleConfig{
			Hour:            getEnvInt("CRON_HOUR", 9),
			Minute:          getEnvInt("CRON_MINUTE", 0),
			Timezone:        getEnv("TIMEZONE", "Asia/Hong_Kong"),
			DurationMinutes: getEnvInt("POLL_DURATION_MINUTES", 1440),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("DATABASE_DRIVER", DriverSQLite)),
			URL:        getEnv("DATABASE_URL", ""),
			SQLitePath: getEnv("SQLITE_PATH", "db"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Sheets: SheetsConfig{
			Enabled:         getEnvBool("GOOGLE_SHEETS_ENABLED", true),
			SpreadsheetID:   getEnv("GOOGLE_SHEETS_SPREADSHEET_ID", ""),
			CredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", "credentials.json"),
			QuestionsRange:  getEnv("SHEETS_QUESTIONS_RANGE", "Questions!A2:C"),
			LogRange:        getEnv("SHEETS_LOG_RANGE", "Logs!A1"),
		},
		Questions: QuestionsConfig{
			File:     getEnv("QUESTIONS_FILE", "./questions.json"),
			S3Bucket: getEnv("QUESTIONS_S3_BUCKET", ""),
			S3Key:    getEnv("QUESTIONS_S3_KEY", "questions.json"),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "ap-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("AWS_ENDPOINT", ""),
		},
		Remote: RemoteConfig{
			Timeout:     time.Duration(getEnvInt("REMOTE_TIMEOUT_MS", 1500)) * time.Millisecond,
			VoteLogWait: time.Duration(getEnvInt("VOTE_LOG_WAIT_MS", 800)) * time.Millisecond,
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail much later at runtime.
func (c *Config) Validate() error {
	if c.Schedule.Hour < 0 || c.Schedule.Hour > 23 {
		return fmt.Errorf("invalid CRON_HOUR: %d", c.Schedule.Hour)
	}
	if c.Schedule.Minute < 0 || c.Schedule.Minute > 59 {
		return fmt.Errorf("invalid CRON_MINUTE: %d", c.Schedule.Minute)
	}
	if c.Schedule.DurationMinutes <= 0 {
		return fmt.Errorf("invalid POLL_DURATION_MINUTES: %d", c.Schedule.DurationMinutes)
	}
	if _, err := c.Schedule.Location(); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Schedule.Timezone, err)
	}
	switch c.Database.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL required for driver %s", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown DATABASE_DRIVER: %s", c.Database.Driver)
	}
	return nil
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

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
