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
	LogLevel      string
	DatabaseURL   string
	JWTSecret     string
	RedisAddr     string
	RedisPassword string

	// M-Pesa daraja gateway
	MpesaBaseURL          string
	MpesaConsumerKey      string
	MpesaConsumerSecret   string
	MpesaShortCode        string
	MpesaPassKey          string
	MpesaCallbackURL      string
	MpesaAccountReference string
	MpesaTimeout          time.Duration

	// Velocity limits for STK push initiation
	MaxPushesPerPhone int
	PushWindowHours   int

	// SendGrid email configuration
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		MpesaBaseURL:          getEnv("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
		MpesaConsumerKey:      getEnv("MPESA_CONSUMER_KEY", ""),
		MpesaConsumerSecret:   getEnv("MPESA_CONSUMER_SECRET", ""),
		MpesaShortCode:        getEnv("MPESA_SHORTCODE", ""),
		MpesaPassKey:          getEnv("MPESA_PASSKEY", ""),
		MpesaCallbackURL:      getEnv("MPESA_CALLBACK_URL", ""),
		MpesaAccountReference: getEnv("MPESA_ACCOUNT_REFERENCE", "Dentalink"),
		MpesaTimeout:          getEnvAsDuration("MPESA_TIMEOUT", 30*time.Second),

		MaxPushesPerPhone: getEnvAsInt("MAX_PUSHES_PER_PHONE", 5),
		PushWindowHours:   getEnvAsInt("PUSH_WINDOW_HOURS", 24),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Dentalink"),
	}
	if origins := getEnv("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		cfg.CORSAllowedOrigins = splitAndTrim(origins)
	}
	return cfg
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

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
