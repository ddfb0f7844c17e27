package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	Port                 string
	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioWhatsAppNumber string
	TwilioWebhookBaseURL string
	OpenAIAPIKey         string
	DatabaseURL          string
	JWTSecret            string
	LogLevel             string
	LogFormat            string

	// LocalTimezone is the default tenant timezone and the cron location.
	LocalTimezone *time.Location

	TickSchedule         string
	DailySummarySchedule string
	EscalationDelay      time.Duration
	SnoozeDelay          time.Duration
	LowStockThreshold    int

	// CORSAllowedOrigins is empty when the API is served same-origin only.
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
}

// Load reads configuration values and prepares defaults where applicable.
func Load() *Config {
	_ = godotenv.Load()

	timezoneName := getenvDefault("LOCAL_TIMEZONE", "Asia/Kolkata")
	location, err := time.LoadLocation(timezoneName)
	if err != nil {
		log.Printf("config: invalid LOCAL_TIMEZONE %q, defaulting to UTC: %v", timezoneName, err)
		location = time.UTC
	}

	return &Config{
		Port:                 getenvDefault("PORT", "8080"),
		TwilioAccountSID:     os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:      os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioWhatsAppNumber: os.Getenv("TWILIO_WHATSAPP_NUMBER"),
		TwilioWebhookBaseURL: os.Getenv("TWILIO_WEBHOOK_BASE_URL"),
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		LogLevel:             getenvDefault("LOG_LEVEL", "info"),
		LogFormat:            getenvDefault("LOG_FORMAT", "json"),
		LocalTimezone:        location,
		TickSchedule:         getenvDefault("TICK_SCHEDULE", "* * * * *"),
		DailySummarySchedule: getenvDefault("DAILY_SUMMARY_SCHEDULE", "0 21 * * *"),
		EscalationDelay:      time.Duration(ParseIntEnv("ESCALATION_MINUTES", 30)) * time.Minute,
		SnoozeDelay:          time.Duration(ParseIntEnv("SNOOZE_MINUTES", 15)) * time.Minute,
		LowStockThreshold:    ParseIntEnv("LOW_STOCK_THRESHOLD", 5),
		CORSAllowedOrigins:   splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		CORSAllowCredentials: os.Getenv("CORS_ALLOW_CREDENTIALS") == "true",
	}
}

// TwilioEnabled reports whether WhatsApp credentials are configured.
func (c *Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioWhatsAppNumber != ""
}

func getenvDefault(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		return def
	}
	return value
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseIntEnv returns the integer value for an environment variable or the provided default.
func ParseIntEnv(key string, def int) int {
	value := os.Getenv(key)
	if value == "" {
		return def
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("config: unable to parse %s=%q as int: %v", key, value, err)
		return def
	}
	return parsed
}
