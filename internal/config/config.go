package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server        ServerConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Clerk         ClerkConfig
	RateLimit     RateLimitConfig
	Backend       BackendConfig
	Polling       PollingConfig
	Transcription TranscriptionConfig
	EventLog      EventLogConfig
	Groq          GroqConfig
	R2            R2Config
	Conference    ConferenceConfig
	Gateway       GatewayConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

// ClerkConfig points at the identity provider's JWKS.
type ClerkConfig struct {
	Issuer   string
	JWKSURL  string
	Audience string
}

type RateLimitConfig struct {
	ApprovePerHour  int
	ModeratePerMin  int
	SessionsPerHour int
}

// BackendConfig is the upstream planning backend.
type BackendConfig struct {
	BaseURL string
	APIKey  string
	Timeout int // seconds
}

type PollingConfig struct {
	IntervalMs     int
	RetryDelayMs   int
	MaxRetries     int
	TimeoutSeconds int
}

func (p PollingConfig) Interval() time.Duration {
	return time.Duration(p.IntervalMs) * time.Millisecond
}

func (p PollingConfig) RetryDelay() time.Duration {
	return time.Duration(p.RetryDelayMs) * time.Millisecond
}

func (p PollingConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

type TranscriptionConfig struct {
	DedupWindowSeconds int
	TrackFallbackMs    int
	Language           string
}

func (t TranscriptionConfig) DedupWindow() time.Duration {
	return time.Duration(t.DedupWindowSeconds) * time.Second
}

func (t TranscriptionConfig) TrackFallback() time.Duration {
	return time.Duration(t.TrackFallbackMs) * time.Millisecond
}

type EventLogConfig struct {
	Size int
}

type GroqConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

// ConferenceConfig is the hosted audio/video provider's REST API.
type ConferenceConfig struct {
	APIKey     string
	BaseURL    string
	Domain     string
	Timeout    int // seconds
	RoomTTLMin int
}

type GatewayConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("BACKEND_API_KEY")
	readSecret("GROQ_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("CONFERENCE_API_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("clerk.issuer", "CLERK_ISSUER")
	_ = viper.BindEnv("clerk.jwks_url", "CLERK_JWKS_URL")
	_ = viper.BindEnv("clerk.audience", "CLERK_AUDIENCE")
	_ = viper.BindEnv("ratelimit.approve_per_hour", "RATELIMIT_APPROVE_PER_HOUR")
	_ = viper.BindEnv("ratelimit.moderate_per_min", "RATELIMIT_MODERATE_PER_MIN")
	_ = viper.BindEnv("ratelimit.sessions_per_hour", "RATELIMIT_SESSIONS_PER_HOUR")
	_ = viper.BindEnv("backend.base_url", "BACKEND_BASE_URL")
	_ = viper.BindEnv("backend.api_key", "BACKEND_API_KEY")
	_ = viper.BindEnv("backend.timeout", "BACKEND_TIMEOUT")
	_ = viper.BindEnv("polling.interval_ms", "POLLING_INTERVAL_MS")
	_ = viper.BindEnv("polling.retry_delay_ms", "POLLING_RETRY_DELAY_MS")
	_ = viper.BindEnv("polling.max_retries", "POLLING_MAX_RETRIES")
	_ = viper.BindEnv("polling.timeout_seconds", "POLLING_TIMEOUT_SECONDS")
	_ = viper.BindEnv("transcription.dedup_window_seconds", "TRANSCRIPTION_DEDUP_WINDOW_SECONDS")
	_ = viper.BindEnv("transcription.track_fallback_ms", "TRANSCRIPTION_TRACK_FALLBACK_MS")
	_ = viper.BindEnv("transcription.language", "TRANSCRIPTION_LANGUAGE")
	_ = viper.BindEnv("eventlog.size", "EVENTLOG_SIZE")
	_ = viper.BindEnv("groq.api_key", "GROQ_API_KEY")
	_ = viper.BindEnv("groq.base_url", "GROQ_BASE_URL")
	_ = viper.BindEnv("groq.model", "GROQ_MODEL")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("conference.api_key", "CONFERENCE_API_KEY")
	_ = viper.BindEnv("conference.base_url", "CONFERENCE_BASE_URL")
	_ = viper.BindEnv("conference.domain", "CONFERENCE_DOMAIN")
	_ = viper.BindEnv("conference.timeout", "CONFERENCE_TIMEOUT")
	_ = viper.BindEnv("conference.room_ttl_min", "CONFERENCE_ROOM_TTL_MIN")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.approve_per_hour", 20)
	viper.SetDefault("ratelimit.moderate_per_min", 30)
	viper.SetDefault("ratelimit.sessions_per_hour", 10)

	// Backend defaults
	viper.SetDefault("backend.base_url", "http://localhost:3000")
	viper.SetDefault("backend.timeout", 15)

	// Polling defaults
	viper.SetDefault("polling.interval_ms", 3000)
	viper.SetDefault("polling.retry_delay_ms", 2000)
	viper.SetDefault("polling.max_retries", 3)
	viper.SetDefault("polling.timeout_seconds", 300)

	// Transcription defaults
	viper.SetDefault("transcription.dedup_window_seconds", 10)
	viper.SetDefault("transcription.track_fallback_ms", 1000)
	viper.SetDefault("transcription.language", "pt")

	viper.SetDefault("eventlog.size", 200)

	// Groq defaults
	viper.SetDefault("groq.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("groq.model", "llama-3.3-70b-versatile")

	// Conference defaults
	viper.SetDefault("conference.base_url", "https://api.daily.co/v1")
	viper.SetDefault("conference.timeout", 15)
	viper.SetDefault("conference.room_ttl_min", 120)

	// Gateway defaults
	viper.SetDefault("gateway.enabled", false)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		Clerk: ClerkConfig{
			Issuer:   viper.GetString("clerk.issuer"),
			JWKSURL:  viper.GetString("clerk.jwks_url"),
			Audience: viper.GetString("clerk.audience"),
		},
		RateLimit: RateLimitConfig{
			ApprovePerHour:  viper.GetInt("ratelimit.approve_per_hour"),
			ModeratePerMin:  viper.GetInt("ratelimit.moderate_per_min"),
			SessionsPerHour: viper.GetInt("ratelimit.sessions_per_hour"),
		},
		Backend: BackendConfig{
			BaseURL: viper.GetString("backend.base_url"),
			APIKey:  viper.GetString("backend.api_key"),
			Timeout: viper.GetInt("backend.timeout"),
		},
		Polling: PollingConfig{
			IntervalMs:     viper.GetInt("polling.interval_ms"),
			RetryDelayMs:   viper.GetInt("polling.retry_delay_ms"),
			MaxRetries:     viper.GetInt("polling.max_retries"),
			TimeoutSeconds: viper.GetInt("polling.timeout_seconds"),
		},
		Transcription: TranscriptionConfig{
			DedupWindowSeconds: viper.GetInt("transcription.dedup_window_seconds"),
			TrackFallbackMs:    viper.GetInt("transcription.track_fallback_ms"),
			Language:           viper.GetString("transcription.language"),
		},
		EventLog: EventLogConfig{
			Size: viper.GetInt("eventlog.size"),
		},
		Groq: GroqConfig{
			APIKey:  viper.GetString("groq.api_key"),
			BaseURL: viper.GetString("groq.base_url"),
			Model:   viper.GetString("groq.model"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		Conference: ConferenceConfig{
			APIKey:     viper.GetString("conference.api_key"),
			BaseURL:    viper.GetString("conference.base_url"),
			Domain:     viper.GetString("conference.domain"),
			Timeout:    viper.GetInt("conference.timeout"),
			RoomTTLMin: viper.GetInt("conference.room_ttl_min"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
	}

	return cfg, nil
}
