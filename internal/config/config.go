package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	// Session engine tuning
	SessionDuration       time.Duration
	SessionEndedMarkerTTL time.Duration
	ShortMessageThreshold int
	InactivityFlushDelay  time.Duration
	MonitoringWindow      time.Duration
	DefaultLanguage       string

	// Audio pipeline
	AudioDurationThreshold time.Duration
	DiarizationTimeout     time.Duration
	DiarizationAPIURL      string
	DiarizationAPIToken    string
	FFmpegPath             string
	FFprobePath            string

	// LLM provider selection: "openai", "bedrock", or "auto"
	LLMProvider        string
	OpenAIAPIKey       string
	OpenAIChatModel    string
	OpenAISummaryModel string
	BedrockModelID     string

	// Channel credentials
	WhatsAppAPIURL      string
	WhatsAppMediaAPIURL string
	WhatsAppBearerToken string
	WhatsAppVerifyToken string
	TelegramBotToken    string

	// Infrastructure
	DatabaseURL     string
	RedisAddr       string
	RedisPassword   string
	RedisTLS        bool
	UseMemoryQueue  bool
	WorkerCount     int
	InboundQueueURL string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	MediaUploadBucket   string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		SessionDuration:       getEnvAsDuration("SESSION_DURATION", 5*time.Minute),
		SessionEndedMarkerTTL: getEnvAsDuration("SESSION_ENDED_MARKER_TTL", time.Hour),
		ShortMessageThreshold: getEnvAsInt("SHORT_MESSAGE_THRESHOLD", 20),
		InactivityFlushDelay:  getEnvAsDuration("INACTIVITY_FLUSH_DELAY", 5*time.Second),
		MonitoringWindow:      getEnvAsDuration("MONITORING_WINDOW", 2*time.Minute),
		DefaultLanguage:       getEnv("DEFAULT_LANGUAGE", "English"),

		AudioDurationThreshold: getEnvAsDuration("AUDIO_DURATION_THRESHOLD", 60*time.Second),
		DiarizationTimeout:     getEnvAsDuration("DIARIZATION_TIMEOUT", 5*time.Minute),
		DiarizationAPIURL:      getEnv("DIARIZATION_API_URL", "https://api.pyannote.ai/v1/diarize"),
		DiarizationAPIToken:    getEnv("DIARIZATION_API_TOKEN", ""),
		FFmpegPath:             getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:            getEnv("FFPROBE_PATH", "ffprobe"),

		LLMProvider:        strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "auto"))),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIChatModel:    getEnv("OPENAI_MODEL_CHAT", "gpt-4o-mini"),
		OpenAISummaryModel: getEnv("OPENAI_MODEL_SUMMARY", "gpt-4o-2024-08-06"),
		BedrockModelID:     getEnv("BEDROCK_MODEL_ID", ""),

		WhatsAppAPIURL:      getEnv("WHATSAPP_API_URL", ""),
		WhatsAppMediaAPIURL: getEnv("WHATSAPP_MEDIA_API_URL", ""),
		WhatsAppBearerToken: getEnv("WHATSAPP_BEARER_TOKEN", ""),
		WhatsAppVerifyToken: getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		TelegramBotToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),

		DatabaseURL:     getEnv("DATABASE_URL", ""),
		RedisAddr:       getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisTLS:        getEnvAsBool("REDIS_TLS", false),
		UseMemoryQueue:  getEnvAsBool("USE_MEMORY_QUEUE", true),
		WorkerCount:     getEnvAsInt("WORKER_COUNT", 2),
		InboundQueueURL: getEnv("INBOUND_QUEUE_URL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		MediaUploadBucket:   getEnv("MEDIA_UPLOAD_BUCKET", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
