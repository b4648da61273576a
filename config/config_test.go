package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auto_newsletter_digest/models"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"RECIPIENT_EMAILS", "NEWSLETTER_SOURCES", "EMAIL_ADDRESS", "SMTP_PORT", "SMTP_USERNAME"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "newsletter.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultSources, cfg.Sources.URLs)
	assert.Equal(t, 5, cfg.Schedule.MinDays)
	assert.Equal(t, "@every 120h", cfg.Schedule.Cron)
	assert.Equal(t, 0.7, cfg.Generation.Temperature)
	assert.Equal(t, 2000, cfg.Generation.MaxTokens)
	assert.Equal(t, 2*time.Second, Duration(cfg.Sources.FetchDelay, 0))
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeConfig(t, `
[sources]
urls = ["https://example.com/a", "https://example.com/b"]
fetch_delay = "0s"

[gemini]
api_key = "from-file"

[mail]
from = "sender@example.com"
`)
	t.Setenv("GEMINI_API_KEY", "from-env")
	t.Setenv("RECIPIENT_EMAILS", " a@example.com, ,b@example.com ")
	t.Setenv("SMTP_PORT", "2525")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, cfg.Sources.URLs)
	assert.Equal(t, "from-env", cfg.Gemini.APIKey)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Mail.Recipients)
	assert.Equal(t, 2525, cfg.Mail.Port)
	assert.Equal(t, "sender@example.com", cfg.Mail.Username)
	assert.Equal(t, time.Duration(0), Duration(cfg.Sources.FetchDelay, time.Second))
}

func TestRecipientsDefaultToSender(t *testing.T) {
	clearEnv(t)
	t.Setenv("EMAIL_ADDRESS", "me@example.com")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"me@example.com"}, cfg.Mail.Recipients)
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"bad source url", "[sources]\nurls = [\"not a url\"]\n", "URLs"},
		{"bad recipient", "[mail]\nrecipients = [\"nobody\"]\n", "Recipients"},
		{"bad duration", "[generation]\ntimeout = \"soon\"\n", "Timeout"},
		{"no sources", "[sources]\nurls = []\n", "URLs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)

			var cfgErr *models.ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "want ConfigurationError, got %T", err)
			assert.Contains(t, cfgErr.Field, tt.field)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
