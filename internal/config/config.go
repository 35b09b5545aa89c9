package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/healthwatch/healthwatch/internal/platform/llm"
)

// DefaultPatientID is the id of the seeded demo patient.
const DefaultPatientID = "5f3c1a2e-8b7d-4e6a-9c1f-2d4b6a8e0c11"

type Config struct {
	Port                  string   `mapstructure:"PORT"`
	Env                   string   `mapstructure:"ENV"`
	DatabaseURL           string   `mapstructure:"DATABASE_URL"`
	DBMaxConns            int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns            int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins           []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS          float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst        int      `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeoutSeconds int      `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
	PatientID             string   `mapstructure:"PATIENT_ID"`
	AIBaseURL             string   `mapstructure:"AI_BASE_URL"`
	AIModel               string   `mapstructure:"AI_MODEL"`
	AIMaxTokens           int      `mapstructure:"AI_MAX_TOKENS"`
	AITimeoutSeconds      int      `mapstructure:"AI_TIMEOUT_SECONDS"`
	HFAPIKey              string   `mapstructure:"HF_API_KEY"`
	AuthSigningKey        string   `mapstructure:"AUTH_SIGNING_KEY"`
	KafkaBrokers          []string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic            string   `mapstructure:"KAFKA_TOPIC"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "5000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("REQUEST_TIMEOUT_SECONDS", 30)
	v.SetDefault("PATIENT_ID", DefaultPatientID)
	v.SetDefault("AI_BASE_URL", "https://router.huggingface.co/v1")
	v.SetDefault("AI_MODEL", "openai/gpt-oss-120b:groq")
	v.SetDefault("AI_MAX_TOKENS", 150)
	v.SetDefault("AI_TIMEOUT_SECONDS", 20)
	v.SetDefault("KAFKA_TOPIC", "patient-state-changes")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("REQUEST_TIMEOUT_SECONDS")
	v.BindEnv("PATIENT_ID")
	v.BindEnv("AI_BASE_URL")
	v.BindEnv("AI_MODEL")
	v.BindEnv("AI_MAX_TOKENS")
	v.BindEnv("AI_TIMEOUT_SECONDS")
	v.BindEnv("HF_API_KEY")
	v.BindEnv("AUTH_SIGNING_KEY")
	v.BindEnv("KAFKA_BROKERS")
	v.BindEnv("KAFKA_TOPIC")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers, v.GetString("KAFKA_BROKERS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if _, ok := cfg.AICredential(); !ok {
		log.Println("WARNING: HF_API_KEY is not configured; insights will use fallback text.")
	}

	return cfg, nil
}

// splitList normalises comma-separated env values. Viper leaves a single
// "a,b" string as a one-element slice.
func splitList(parsed []string, raw string) []string {
	if len(parsed) > 1 {
		return parsed
	}
	if raw == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

var credentialPlaceholders = map[string]bool{
	"changeme":    true,
	"placeholder": true,
	"none":        true,
	"xxx":         true,
	"hf_xxx":      true,
}

// AICredential returns the text-generation bearer credential. The second
// value is false when the key is empty or still set to a template
// placeholder, in which case no live call is made.
func (c *Config) AICredential() (llm.Credential, bool) {
	key := strings.TrimSpace(c.HFAPIKey)
	lower := strings.ToLower(key)
	if key == "" || credentialPlaceholders[lower] || strings.HasPrefix(lower, "your_") || strings.HasPrefix(lower, "<") {
		return "", false
	}
	return llm.Credential(key), true
}

// LLMConfig assembles the client settings for the text-generation service.
func (c *Config) LLMConfig(cred llm.Credential) llm.Config {
	return llm.Config{
		BaseURL:   strings.TrimRight(c.AIBaseURL, "/"),
		APIKey:    cred,
		Model:     c.AIModel,
		MaxTokens: c.AIMaxTokens,
		Timeout:   time.Duration(c.AITimeoutSeconds) * time.Second,
	}
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.AITimeoutSeconds < 15 || c.AITimeoutSeconds > 20 {
		return fmt.Errorf("AI_TIMEOUT_SECONDS must be between 15 and 20, got %d", c.AITimeoutSeconds)
	}
	if c.AIMaxTokens <= 0 {
		return fmt.Errorf("AI_MAX_TOKENS must be positive, got %d", c.AIMaxTokens)
	}
	if c.RequestTimeoutSeconds <= c.AITimeoutSeconds {
		return fmt.Errorf("REQUEST_TIMEOUT_SECONDS (%d) must exceed AI_TIMEOUT_SECONDS (%d)",
			c.RequestTimeoutSeconds, c.AITimeoutSeconds)
	}
	if c.PatientID == "" {
		return fmt.Errorf("PATIENT_ID is required")
	}
	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required outside development")
	}
	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 characters, got %d", len(c.AuthSigningKey))
	}
	return nil
}
