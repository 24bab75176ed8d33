package config

import (
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mrsingh-rishi/speech-relay/model"
	"github.com/pkg/errors"
)

// Backend names accepted by RELAY_STT_BACKEND.
const (
	BackendGoogle  = "google"
	BackendWhisper = "whisper"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete relay configuration.
type Config struct {
	Server      ServerConfig
	Recognition RecognitionConfig
	Logging     LoggingConfig
	Metrics     MetricsConfig
	Auth        AuthConfig
}

// ServerConfig describes the WebSocket listener.
type ServerConfig struct {
	Host string
	Port int
	// Path is the expected resource path. Connections to other paths are
	// accepted with a warning.
	Path string
	// AudioQueueDepth bounds the per-session audio handoff queue; <= 0 is unbounded.
	AudioQueueDepth int
}

// RecognitionConfig selects and configures the speech backend.
type RecognitionConfig struct {
	Backend         string
	SampleRateHertz int
	LanguageCode    string
	Model           string
	CredentialsFile string
	OpenAIAPIKey    string
	WhisperModel    string
	// WhisperWindow is the amount of audio per transcription request.
	WhisperWindow time.Duration
}

// LoggingConfig controls the logrus logger.
type LoggingConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// AuthConfig enables JWT checks on the upgrade request when Secret is set.
type AuthConfig struct {
	Secret string
}

// Default returns the configuration used when no variable is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8765,
			Path:            "/audio",
			AudioQueueDepth: 512,
		},
		Recognition: RecognitionConfig{
			Backend:         BackendGoogle,
			SampleRateHertz: 16000,
			LanguageCode:    "en-US",
			Model:           "latest_long",
			CredentialsFile: "../.env/geminiap-key.json",
			WhisperModel:    "whisper-1",
			WhisperWindow:   5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load reads the given .env files (".env" when none are given), overlays the
// process environment on the defaults and validates the result. Missing
// .env files are not an error.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, "config: load %s", f)
		}
	}

	cfg := Default()
	env := &envReader{}
	env.stringVar(&cfg.Server.Host, "RELAY_HOST")
	env.intVar(&cfg.Server.Port, "RELAY_PORT")
	env.stringVar(&cfg.Server.Path, "RELAY_PATH")
	env.intVar(&cfg.Server.AudioQueueDepth, "RELAY_AUDIO_QUEUE_DEPTH")

	env.stringVar(&cfg.Recognition.Backend, "RELAY_STT_BACKEND")
	env.intVar(&cfg.Recognition.SampleRateHertz, "RELAY_SAMPLE_RATE_HZ")
	env.stringVar(&cfg.Recognition.LanguageCode, "RELAY_LANGUAGE_CODE")
	env.stringVar(&cfg.Recognition.Model, "RELAY_RECOGNITION_MODEL")
	env.stringVar(&cfg.Recognition.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
	env.stringVar(&cfg.Recognition.OpenAIAPIKey, "OPENAI_API_KEY")
	env.stringVar(&cfg.Recognition.WhisperModel, "RELAY_WHISPER_MODEL")
	env.durationVar(&cfg.Recognition.WhisperWindow, "RELAY_WHISPER_WINDOW")

	env.stringVar(&cfg.Logging.Level, "RELAY_LOG_LEVEL")
	env.stringVar(&cfg.Logging.File, "RELAY_LOG_FILE")
	env.intVar(&cfg.Logging.MaxSizeMB, "RELAY_LOG_MAX_SIZE_MB")
	env.intVar(&cfg.Logging.MaxBackups, "RELAY_LOG_MAX_BACKUPS")
	env.intVar(&cfg.Logging.MaxAgeDays, "RELAY_LOG_MAX_AGE_DAYS")

	env.boolVar(&cfg.Metrics.Enabled, "RELAY_METRICS_ENABLED")
	env.stringVar(&cfg.Metrics.Path, "RELAY_METRICS_PATH")

	env.stringVar(&cfg.Auth.Secret, "RELAY_AUTH_SECRET")

	if env.err != nil {
		return nil, env.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the relay cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return invalid("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		return invalid("server path must start with '/', got %q", c.Server.Path)
	}
	if c.Recognition.SampleRateHertz <= 0 {
		return invalid("sample rate must be positive, got %d", c.Recognition.SampleRateHertz)
	}
	if c.Recognition.LanguageCode == "" {
		return invalid("language code must not be empty")
	}
	switch c.Recognition.Backend {
	case BackendGoogle:
		if c.Recognition.CredentialsFile == "" {
			return invalid("google backend needs GOOGLE_APPLICATION_CREDENTIALS")
		}
	case BackendWhisper:
		if c.Recognition.OpenAIAPIKey == "" {
			return invalid("whisper backend needs OPENAI_API_KEY")
		}
		if c.Recognition.WhisperWindow <= 0 {
			return invalid("whisper window must be positive, got %s", c.Recognition.WhisperWindow)
		}
	default:
		return invalid("unknown stt backend %q", c.Recognition.Backend)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return invalid("metrics path must start with '/', got %q", c.Metrics.Path)
	}
	if c.Metrics.Enabled && c.Metrics.Path == c.Server.Path {
		return invalid("metrics path %q collides with the websocket path", c.Metrics.Path)
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// StreamConfig is the recognition configuration sent at the start of every
// backend stream.
func (c *Config) StreamConfig() model.StreamConfig {
	return model.StreamConfig{
		Encoding:                   model.EncodingLinear16,
		SampleRateHertz:            c.Recognition.SampleRateHertz,
		LanguageCode:               c.Recognition.LanguageCode,
		Model:                      c.Recognition.Model,
		EnableAutomaticPunctuation: true,
		InterimResults:             true,
		SingleUtterance:            false,
	}
}

func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalid, format, args...)
}

// envReader overlays environment variables and keeps the first parse error.
type envReader struct {
	err error
}

func (r *envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *envReader) stringVar(dst *string, key string) {
	if v, ok := r.lookup(key); ok {
		*dst = v
	}
}

func (r *envReader) intVar(dst *int, key string) {
	v, ok := r.lookup(key)
	if !ok || r.err != nil {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.err = invalid("%s: %q is not an integer", key, v)
		return
	}
	*dst = n
}

func (r *envReader) boolVar(dst *bool, key string) {
	v, ok := r.lookup(key)
	if !ok || r.err != nil {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.err = invalid("%s: %q is not a boolean", key, v)
		return
	}
	*dst = b
}

func (r *envReader) durationVar(dst *time.Duration, key string) {
	v, ok := r.lookup(key)
	if !ok || r.err != nil {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.err = invalid("%s: %q is not a duration", key, v)
		return
	}
	*dst = d
}
