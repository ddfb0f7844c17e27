package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "LOCAL_TIMEZONE", "ESCALATION_MINUTES", "SNOOZE_MINUTES", "LOW_STOCK_THRESHOLD",
		"TICK_SCHEDULE", "TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_WHATSAPP_NUMBER", "TWILIO_WEBHOOK_BASE_URL"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "Asia/Kolkata", cfg.LocalTimezone.String())
	assert.Equal(t, "* * * * *", cfg.TickSchedule)
	assert.Equal(t, 30*time.Minute, cfg.EscalationDelay)
	assert.Equal(t, 15*time.Minute, cfg.SnoozeDelay)
	assert.Equal(t, 5, cfg.LowStockThreshold)
	assert.False(t, cfg.TwilioEnabled())
	assert.Empty(t, cfg.TwilioWebhookBaseURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LOCAL_TIMEZONE", "Not/AZone")
	t.Setenv("ESCALATION_MINUTES", "45")
	t.Setenv("SNOOZE_MINUTES", "ten")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC1")
	t.Setenv("TWILIO_AUTH_TOKEN", "secret")
	t.Setenv("TWILIO_WHATSAPP_NUMBER", "+14155238886")
	t.Setenv("TWILIO_WEBHOOK_BASE_URL", "https://med.example")

	cfg := Load()
	assert.Equal(t, time.UTC, cfg.LocalTimezone)
	assert.Equal(t, 45*time.Minute, cfg.EscalationDelay)
	assert.Equal(t, 15*time.Minute, cfg.SnoozeDelay, "unparsable values fall back")
	assert.True(t, cfg.TwilioEnabled())
	assert.Equal(t, "https://med.example", cfg.TwilioWebhookBaseURL)
}

func TestCORSOriginsAreSplit(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, Load().CORSAllowedOrigins)

	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	assert.Empty(t, Load().CORSAllowedOrigins)
}
