package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mrsingh-rishi/speech-relay/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var relayEnv = []string{
	"RELAY_HOST", "RELAY_PORT", "RELAY_PATH", "RELAY_AUDIO_QUEUE_DEPTH",
	"RELAY_STT_BACKEND", "RELAY_SAMPLE_RATE_HZ", "RELAY_LANGUAGE_CODE", "RELAY_RECOGNITION_MODEL",
	"GOOGLE_APPLICATION_CREDENTIALS", "OPENAI_API_KEY", "RELAY_WHISPER_MODEL", "RELAY_WHISPER_WINDOW",
	"RELAY_LOG_LEVEL", "RELAY_LOG_FILE", "RELAY_LOG_MAX_SIZE_MB", "RELAY_LOG_MAX_BACKUPS", "RELAY_LOG_MAX_AGE_DAYS",
	"RELAY_METRICS_ENABLED", "RELAY_METRICS_PATH", "RELAY_AUTH_SECRET",
}

// clearEnv unsets every relay variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range relayEnv {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "0.0.0.0:8765", cfg.Addr())
	assert.Equal(t, "/audio", cfg.Server.Path)
	assert.Equal(t, 512, cfg.Server.AudioQueueDepth)
	assert.Equal(t, BackendGoogle, cfg.Recognition.Backend)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Empty(t, cfg.Auth.Secret)
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("RELAY_HOST", "127.0.0.1")
	t.Setenv("RELAY_PORT", "9000")
	t.Setenv("RELAY_PATH", "/stream")
	t.Setenv("RELAY_AUDIO_QUEUE_DEPTH", "0")
	t.Setenv("RELAY_STT_BACKEND", "whisper")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("RELAY_WHISPER_WINDOW", "2500ms")
	t.Setenv("RELAY_SAMPLE_RATE_HZ", "8000")
	t.Setenv("RELAY_LANGUAGE_CODE", "uk-UA")
	t.Setenv("RELAY_METRICS_ENABLED", "false")
	t.Setenv("RELAY_LOG_LEVEL", " debug ")
	t.Setenv("RELAY_AUTH_SECRET", "s3cret")

	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
	assert.Equal(t, "/stream", cfg.Server.Path)
	assert.Equal(t, 0, cfg.Server.AudioQueueDepth)
	assert.Equal(t, BackendWhisper, cfg.Recognition.Backend)
	assert.Equal(t, "sk-test", cfg.Recognition.OpenAIAPIKey)
	assert.Equal(t, 2500*time.Millisecond, cfg.Recognition.WhisperWindow)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "s3cret", cfg.Auth.Secret)

	assert.Equal(t, model.StreamConfig{
		Encoding:                   model.EncodingLinear16,
		SampleRateHertz:            8000,
		LanguageCode:               "uk-UA",
		Model:                      "latest_long",
		EnableAutomaticPunctuation: true,
		InterimResults:             true,
		SingleUtterance:            false,
	}, cfg.StreamConfig())
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "relay.env")
	require.NoError(t, os.WriteFile(path, []byte("RELAY_PORT=7000\nRELAY_LANGUAGE_CODE=de-DE\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "de-DE", cfg.Recognition.LanguageCode)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "port not a number", env: map[string]string{"RELAY_PORT": "http"}},
		{name: "port out of range", env: map[string]string{"RELAY_PORT": "70000"}},
		{name: "path without slash", env: map[string]string{"RELAY_PATH": "audio"}},
		{name: "zero sample rate", env: map[string]string{"RELAY_SAMPLE_RATE_HZ": "0"}},
		{name: "unknown backend", env: map[string]string{"RELAY_STT_BACKEND": "deepgram"}},
		{name: "whisper without key", env: map[string]string{"RELAY_STT_BACKEND": "whisper"}},
		{name: "bad duration", env: map[string]string{"RELAY_WHISPER_WINDOW": "5"}},
		{name: "zero whisper window", env: map[string]string{
			"RELAY_STT_BACKEND": "whisper", "OPENAI_API_KEY": "sk", "RELAY_WHISPER_WINDOW": "0s",
		}},
		{name: "bad bool", env: map[string]string{"RELAY_METRICS_ENABLED": "sometimes"}},
		{name: "metrics on ws path", env: map[string]string{"RELAY_METRICS_PATH": "/audio"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(noEnvFile(t))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
		})
	}
}
