package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL     string
	RedisAddr       string
	RedisPassword   string
	RedisTLS        bool
	ContentCacheTTL time.Duration

	// Language model
	LLMProvider         string
	LLMFallbackProvider string
	LLMTimeout          time.Duration
	BedrockModelID      string
	GeminiAPIKey        string
	GeminiModelID       string
	OpenAIAPIKey        string
	OpenAIModel         string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Clinic
	ClinicTimezone   string
	ClinicOpenTime   string
	ClinicCloseTime  string
	ClinicClosedDays []string
	ClinicBranches   []string
	SeedFile         string
	BookingTimeout   time.Duration

	// Agent profile used when no profile row exists
	AgentName       string
	AgentGreetingAR string
	AgentGreetingEN string

	// HTTP
	AdminJWTSecret     string
	RateLimitRPS       float64
	RateLimitBurst     int
	CORSAllowedOrigins []string
	SessionIdleTimeout time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL:     getEnv("DATABASE_URL", ""),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisTLS:        getEnvAsBool("REDIS_TLS", false),
		ContentCacheTTL: getEnvAsDuration("CONTENT_CACHE_TTL", 10*time.Minute),

		LLMProvider:         strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "rules"))),
		LLMFallbackProvider: strings.ToLower(strings.TrimSpace(getEnv("LLM_FALLBACK_PROVIDER", ""))),
		LLMTimeout:          getEnvAsDuration("LLM_TIMEOUT", 15*time.Second),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:       getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:         getEnv("OPENAI_MODEL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		ClinicTimezone:   getEnv("CLINIC_TIMEZONE", "Asia/Amman"),
		ClinicOpenTime:   getEnv("CLINIC_OPEN_TIME", "09:00"),
		ClinicCloseTime:  getEnv("CLINIC_CLOSE_TIME", "21:00"),
		ClinicClosedDays: getEnvAsList("CLINIC_CLOSED_DAYS", []string{"friday"}),
		ClinicBranches:   getEnvAsList("CLINIC_BRANCHES", nil),
		SeedFile:         getEnv("SEED_FILE", ""),
		BookingTimeout:   getEnvAsDuration("BOOKING_TIMEOUT", 10*time.Second),

		AgentName:       getEnv("AGENT_NAME", ""),
		AgentGreetingAR: getEnv("AGENT_GREETING_AR", ""),
		AgentGreetingEN: getEnv("AGENT_GREETING_EN", ""),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 10),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		SessionIdleTimeout: getEnvAsDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
	}
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ClosedWeekdays parses ClinicClosedDays.
func (c *Config) ClosedWeekdays() ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(c.ClinicClosedDays))
	for _, day := range c.ClinicClosedDays {
		wd, ok := weekdays[strings.ToLower(day)]
		if !ok {
			return nil, fmt.Errorf("config: unknown weekday %q in CLINIC_CLOSED_DAYS", day)
		}
		out = append(out, wd)
	}
	return out, nil
}

// Validate reports settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case "bedrock":
		if c.BedrockModelID == "" {
			return fmt.Errorf("config: BEDROCK_MODEL_ID is required for LLM_PROVIDER=bedrock")
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("config: GEMINI_API_KEY is required for LLM_PROVIDER=gemini")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("config: OPENAI_API_KEY is required for LLM_PROVIDER=openai")
		}
	case "rules":
	default:
		return fmt.Errorf("config: unsupported LLM_PROVIDER %q", c.LLMProvider)
	}
	if c.LLMFallbackProvider != "" && c.LLMFallbackProvider == c.LLMProvider {
		return fmt.Errorf("config: LLM_FALLBACK_PROVIDER must differ from LLM_PROVIDER")
	}
	if _, err := c.ClosedWeekdays(); err != nil {
		return err
	}
	return nil
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
