package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	App           AppConfig
	Server        ServerConfig
	Database      DatabaseConfig
	Admin         AdminConfig
	Storage       StorageConfig
	Transcription TranscriptionConfig
	Sentiment     SentimentConfig
	Telegram      TelegramConfig
	RateLimit     RateLimitConfig
	Audio         AudioConfig
	Settings      SettingsConfig
}

type AppConfig struct {
	Name          string
	Version       string
	Environment   string
	PublicBaseURL string
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type AdminConfig struct {
	JWTSecret    string
	PasswordHash string
}

type StorageConfig struct {
	BaseURL    string
	ServiceKey string
	Bucket     string
}

type TranscriptionConfig struct {
	Provider        string // "assemblyai" or "whisper"
	AssemblyAIKey   string
	AssemblyAIURL   string
	OpenAIKey       string
	PollIntervalSec int
	MaxWaitSec      int
}

type SentimentConfig struct {
	HuggingFaceKey string
	HuggingFaceURL string
	TimeoutSec     int
	FitSizeRule    bool
}

type TelegramConfig struct {
	BotToken         string
	ChatIDs          []string
	DefaultThreshold float64
}

type RateLimitConfig struct {
	IPWindowSec       int
	IPMax             int
	DeviceWindowSec   int
	DeviceMax         int
	MinIntervalMillis int
}

type AudioConfig struct {
	MinSeconds     float64
	MaxSeconds     float64
	MaxUploadMB    int64
	AllowedMIMEs   []string
	UploadDir      string
	SignTTLSec     int
	RedirectTTLSec int
}

type SettingsConfig struct {
	CacheTTLSec int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:          getEnv("APP_NAME", "Feedbacker API"),
			Version:       getEnv("APP_VERSION", "1.0.0"),
			Environment:   getEnv("APP_ENV", "development"),
			PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		},
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "feedbacker"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Admin: AdminConfig{
			JWTSecret:    getEnv("ADMIN_JWT_SECRET", ""),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},
		Storage: StorageConfig{
			BaseURL:    getEnv("STORAGE_URL", ""),
			ServiceKey: getEnv("STORAGE_SERVICE_KEY", ""),
			Bucket:     getEnv("STORAGE_BUCKET", "feedback-audio"),
		},
		Transcription: TranscriptionConfig{
			Provider:        getEnv("TRANSCRIBE_PROVIDER", "assemblyai"),
			AssemblyAIKey:   getEnv("ASSEMBLYAI_API_KEY", ""),
			AssemblyAIURL:   getEnv("ASSEMBLYAI_URL", "https://api.assemblyai.com"),
			OpenAIKey:       getEnv("OPENAI_API_KEY", ""),
			PollIntervalSec: getEnvInt("TRANSCRIBE_POLL_INTERVAL_SEC", 3),
			MaxWaitSec:      getEnvInt("TRANSCRIBE_MAX_WAIT_SEC", 180),
		},
		Sentiment: SentimentConfig{
			HuggingFaceKey: getEnv("HUGGINGFACE_API_KEY", ""),
			HuggingFaceURL: getEnv("HUGGINGFACE_URL", "https://api-inference.huggingface.co/models"),
			TimeoutSec:     getEnvInt("SENTIMENT_TIMEOUT_SEC", 8),
			FitSizeRule:    getEnvBool("SENTIMENT_FIT_SIZE_RULE", true),
		},
		Telegram: TelegramConfig{
			BotToken:         getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatIDs:          splitList(getEnv("TELEGRAM_CHAT_IDS", "")),
			DefaultThreshold: getEnvFloat("TELEGRAM_ALERT_THRESHOLD", 0.4),
		},
		RateLimit: RateLimitConfig{
			IPWindowSec:       getEnvInt("FEEDBACK_IP_WINDOW_SEC", 60),
			IPMax:             getEnvInt("FEEDBACK_IP_MAX", 10),
			DeviceWindowSec:   getEnvInt("FEEDBACK_DEVICE_WINDOW_SEC", 300),
			DeviceMax:         getEnvInt("FEEDBACK_DEVICE_MAX", 12),
			MinIntervalMillis: getEnvInt("FEEDBACK_MIN_INTERVAL_MS", 1500),
		},
		Audio: AudioConfig{
			MinSeconds:  getEnvFloat("MIN_AUDIO_SECONDS", 1.5),
			MaxSeconds:  getEnvFloat("MAX_AUDIO_SECONDS", 300),
			MaxUploadMB: int64(getEnvInt("MAX_UPLOAD_MB", 20)),
			AllowedMIMEs: splitList(getEnv("ALLOWED_AUDIO_MIME",
				"audio/mpeg,audio/mp3,audio/wav,audio/x-wav,audio/webm,audio/ogg,audio/mp4,audio/x-m4a")),
			UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
			SignTTLSec:     getEnvInt("AUDIO_SIGN_TTL_SEC", 3600),
			RedirectTTLSec: getEnvInt("AUDIO_REDIRECT_TTL_SEC", 300),
		},
		Settings: SettingsConfig{
			CacheTTLSec: getEnvInt("SETTINGS_CACHE_TTL_SEC", 60),
		},
	}

	if cfg.Admin.JWTSecret == "" {
		return nil, errors.New("missing admin jwt secret")
	}

	if cfg.Storage.BaseURL == "" || cfg.Storage.ServiceKey == "" {
		return nil, errors.New("missing storage url or service key")
	}

	if cfg.Database.Password == "" {
		return nil, errors.New("missing database password")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}

	return defaultVal
}

// getEnvFloat accepts both "0.4" and "0,4".
func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		val = strings.ReplaceAll(val, ",", ".")
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}

	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}

	return defaultVal
}

func splitList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n'
	})

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}
