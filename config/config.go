package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	AWS       AWSConfig
	LLM       LLMConfig
	Recall    RecallConfig
	Calendar  CalendarConfig
	Scheduler SchedulerConfig
	Pipeline  PipelineConfig
	Plugins   PluginsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	// BaseURL is the externally reachable URL of this service, used as the
	// task-callback target in enqueued jobs.
	BaseURL string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings for the API and for
// the service-identity tokens attached to queue tasks.
type JWTConfig struct {
	Secret         string
	ExpireHours    int
	ServiceSubject string // subject claim on service-identity tokens
}

// AWSConfig holds AWS credentials and S3 bucket names.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	TranscriptsBucket    string
	OutputsBucket        string
	PresignExpireMinutes int
}

// LLMConfig holds the OpenAI-compatible chat completion endpoint settings.
type LLMConfig struct {
	Endpoint       string
	APIKey         string
	Model          string
	TimeoutSeconds int
	MaxParallel    int // concurrent per-chunk extraction calls
}

// RecallConfig holds the bot-based recording vendor settings.
type RecallConfig struct {
	BaseURL string
	APIKey  string
	BotName string // display name the bot joins with
}

// CalendarConfig holds the event-driven calendar vendor settings.
type CalendarConfig struct {
	BaseURL        string
	AccessToken    string // vendor API token; real deployments inject a refreshing source
	FallbackUserID string // owner for auto-created records when no subscription matches; empty = unattributed
}

// SchedulerConfig holds the scheduled-meeting promotion loop settings.
type SchedulerConfig struct {
	PollIntervalSeconds int
	RetentionDays       int // 0 disables the retention sweep
}

// PipelineConfig holds transcript-processing settings.
type PipelineConfig struct {
	ChunkWindowMinutes int
	SyncTimeoutSeconds int // bound on the synchronous enqueue-fallback path
}

// PluginsConfig controls which content-type plugins are enabled.
type PluginsConfig struct {
	Disabled []string // plugin names to disable (comma-separated in env)
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

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	jwtExpire, _ := strconv.Atoi(getEnv("JWT_EXPIRE_HOURS", "24"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			BaseURL:            getEnv("SERVER_BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/meetscribe?sslmode=disable"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "meetscribe"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:         getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours:    jwtExpire,
			ServiceSubject: getEnv("JWT_SERVICE_SUBJECT", "meetscribe-worker"),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			TranscriptsBucket:    getEnv("AWS_S3_TRANSCRIPTS_BUCKET", "meetscribe-transcripts"),
			OutputsBucket:        getEnv("AWS_S3_OUTPUTS_BUCKET", "meetscribe-outputs"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		LLM: LLMConfig{
			Endpoint:       getEnv("LLM_ENDPOINT", "https://api.openai.com/v1/chat/completions"),
			APIKey:         getEnv("LLM_API_KEY", ""),
			Model:          getEnv("LLM_MODEL", "gpt-4o-mini"),
			TimeoutSeconds: getEnvInt("LLM_TIMEOUT_SEC", 120),
			MaxParallel:    getEnvInt("LLM_MAX_PARALLEL", 4),
		},
		Recall: RecallConfig{
			BaseURL: getEnv("RECALL_BASE_URL", "https://api.recall.ai/api/v1"),
			APIKey:  getEnv("RECALL_API_KEY", ""),
			BotName: getEnv("RECALL_BOT_NAME", "MeetScribe Notetaker"),
		},
		Calendar: CalendarConfig{
			BaseURL:        getEnv("CALENDAR_BASE_URL", ""),
			AccessToken:    getEnv("CALENDAR_ACCESS_TOKEN", ""),
			FallbackUserID: getEnv("CALENDAR_FALLBACK_USER_ID", ""),
		},
		Scheduler: SchedulerConfig{
			PollIntervalSeconds: getEnvInt("SCHEDULER_POLL_INTERVAL_SEC", 60),
			RetentionDays:       getEnvInt("RETENTION_DAYS", 0),
		},
		Pipeline: PipelineConfig{
			ChunkWindowMinutes: getEnvInt("CHUNK_WINDOW_MINUTES", 10),
			SyncTimeoutSeconds: getEnvInt("SYNC_FALLBACK_TIMEOUT_SEC", 120),
		},
		Plugins: PluginsConfig{
			Disabled: splitTrim(getEnv("PLUGINS_DISABLED", ""), ","),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
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
