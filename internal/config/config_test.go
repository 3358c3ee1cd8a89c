package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsIntakeWiring(t *testing.T) {
	t.Setenv("INTAKE_A_BASE_URL", "https://intake-a.example.com/api/")
	t.Setenv("INTAKE_A_WEBHOOK_AUTH_TOKEN", "secret-a")
	t.Setenv("INTAKE_B_BASE_URL", "https://intake-b.example.com")
	t.Setenv("INTAKE_B_TOKEN_URL", "https://auth.example.com/token")
	t.Setenv("INTAKE_B_AMOUNT_FIELD_ID", "1234")
	t.Setenv("MAIL_BATCH_CHUNK_SIZE", "250")
	t.Setenv("WORKER_TASK_TIMEOUT", "5s")
	t.Setenv("BASE_URL", "https://bootcamps.example.com/")

	cfg := Load()

	assert.Equal(t, "https://intake-a.example.com/api", cfg.IntakeA.BaseURL)
	assert.Equal(t, "https://intake-a.example.com/api/oauth/token", cfg.IntakeA.TokenURL)
	assert.Equal(t, "secret-a", cfg.IntakeA.WebhookAuthToken)
	assert.Equal(t, "https://auth.example.com/token", cfg.IntakeB.TokenURL)
	assert.Equal(t, "1234", cfg.IntakeB.AmountFieldID)
	assert.Equal(t, 250, cfg.Mail.BatchChunkSize)
	assert.Equal(t, 5*time.Second, cfg.Worker.TaskTimeout)
	assert.Equal(t, "https://bootcamps.example.com", cfg.BaseURL)
	assert.True(t, cfg.IntakeA.Enabled())
}

func TestValidateRequiresGatewayCredentials(t *testing.T) {
	cfg := Config{ReferencePrefix: "dev"}
	assert.ErrorIs(t, cfg.Validate(), ErrMissingGatewayCredentials)

	cfg.Gateway = GatewayConfig{AccessKey: "ak", ProfileID: "pid", SecurityKey: "sk"}
	assert.NoError(t, cfg.Validate())
}

func TestReminderConfigDefaults(t *testing.T) {
	holder, err := NewReminderConfigHolder(Config{})
	require.NoError(t, err)

	got := holder.Get()
	assert.Equal(t, []int{7, 2, 0}, got.OffsetDays)
	assert.Equal(t, 1000, got.ChunkSize)
}

func TestNormalizeReminderConfig(t *testing.T) {
	got := normalizeReminderConfig(ReminderConfig{OffsetDays: []int{0, 7, 2, 7}, ChunkSize: 10})
	assert.Equal(t, []int{7, 2, 0}, got.OffsetDays)
	assert.Equal(t, "installment_reminder", got.TemplatePrefix)
	assert.Error(t, validateReminderConfig(ReminderConfig{ChunkSize: 1}))
}
