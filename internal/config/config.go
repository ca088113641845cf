package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	AuthFirebase = "firebase"
	AuthJWT      = "jwt"

	StoreFirestore = "firestore"
	StoreSQLite    = "sqlite"
)

type Config struct {
	HTTPPort       string   `env:"HTTP_PORT" envDefault:"8080"`
	Environment    string   `env:"APP_ENV" envDefault:"production"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"INFO"`
	StaticDir      string   `env:"STATIC_DIR" envDefault:"public"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// friends. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	// LLM settings
	LLMProvider   string        `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey  string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string        `env:"OPENAI_BASE_URL"`
	OpenAIModel   string        `env:"OPENAI_MODEL" envDefault:"gpt-4"`
	GeminiAPIKey  string        `env:"GEMINI_API_KEY"`
	GeminiModel   string        `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash-latest"`
	ModelTimeout  time.Duration `env:"MODEL_TIMEOUT" envDefault:"60s"`

	ChatTemperature      float32 `env:"CHAT_TEMPERATURE" envDefault:"0.7"`
	ChatMaxTokens        int     `env:"CHAT_MAX_TOKENS" envDefault:"800"`
	ChatPresencePenalty  float32 `env:"CHAT_PRESENCE_PENALTY" envDefault:"0.6"`
	ChatFrequencyPenalty float32 `env:"CHAT_FREQUENCY_PENALTY" envDefault:"0.3"`
	DocumentTemperature  float32 `env:"DOCUMENT_TEMPERATURE" envDefault:"0.7"`
	DocumentMaxTokens    int     `env:"DOCUMENT_MAX_TOKENS" envDefault:"2500"`

	// Identity provider
	AuthProvider           string `env:"AUTH_PROVIDER" envDefault:"firebase"`
	FirebaseServiceAccount string `env:"FIREBASE_SERVICE_ACCOUNT"`
	JWTSecret              string `env:"JWT_SECRET"`
	Firebase               FirebaseWebConfig

	// Document store
	StoreBackend string `env:"STORE_BACKEND" envDefault:"firestore"`
	DatabaseURL  string `env:"DATABASE_URL" envDefault:"asesor.db"`

	Limits LimitsConfig
}

// FirebaseWebConfig is the public client-side configuration served by
// /env-config.js. None of these values are secrets.
type FirebaseWebConfig struct {
	APIKey            string `env:"FIREBASE_API_KEY"`
	AuthDomain        string `env:"FIREBASE_AUTH_DOMAIN"`
	ProjectID         string `env:"FIREBASE_PROJECT_ID"`
	StorageBucket     string `env:"FIREBASE_STORAGE_BUCKET"`
	MessagingSenderID string `env:"FIREBASE_MESSAGING_SENDER_ID"`
	AppID             string `env:"FIREBASE_APP_ID"`
}

type LimitsConfig struct {
	MaxUploadBytes    int64         `env:"MAX_UPLOAD_BYTES" envDefault:"20971520"`
	MaxUploadFiles    int           `env:"MAX_UPLOAD_FILES" envDefault:"3"`
	MaxMessageChars   int           `env:"MAX_MESSAGE_CHARS" envDefault:"4000"`
	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"100"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15m"`
	OCRLanguages      []string      `env:"OCR_LANGUAGES" envSeparator:"+" envDefault:"spa+eng"`
	UsageQueueSize    int           `env:"USAGE_QUEUE_SIZE" envDefault:"256"`
	UsageWriteTimeout time.Duration `env:"USAGE_WRITE_TIMEOUT" envDefault:"10s"`
}

// Load reads a .env file if present, then parses the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, relying on environment variables")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required when LLM_PROVIDER=openai"))
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required when LLM_PROVIDER=gemini"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider))
	}

	switch c.AuthProvider {
	case AuthFirebase:
		if c.FirebaseServiceAccount == "" {
			errs = append(errs, errors.New("FIREBASE_SERVICE_ACCOUNT is required when AUTH_PROVIDER=firebase"))
		}
	case AuthJWT:
		if c.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required when AUTH_PROVIDER=jwt"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_PROVIDER %q", c.AuthProvider))
	}

	switch c.StoreBackend {
	case StoreFirestore:
		if c.FirebaseServiceAccount == "" {
			errs = append(errs, errors.New("FIREBASE_SERVICE_ACCOUNT is required when STORE_BACKEND=firestore"))
		}
	case StoreSQLite:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE_BACKEND=sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	if c.ChatMaxTokens <= 0 || c.DocumentMaxTokens <= 0 {
		errs = append(errs, errors.New("max token settings must be positive"))
	}
	if c.ModelTimeout <= 0 {
		errs = append(errs, errors.New("MODEL_TIMEOUT must be positive"))
	}
	if c.Limits.MaxUploadBytes <= 0 || c.Limits.MaxUploadFiles <= 0 {
		errs = append(errs, errors.New("upload limits must be positive"))
	}
	if c.Limits.RateLimitRequests <= 0 || c.Limits.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("rate limit settings must be positive"))
	}

	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, EnvDevelopment)
}

// SlogLevel maps LOG_LEVEL onto slog levels; unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
