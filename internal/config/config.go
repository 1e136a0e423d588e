package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultServerName     = "gsc-mcp-server"
	DefaultServerVersion  = "0.1.0"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultServiceName    = "gsc-mcp"
	DefaultSampleRate     = 1.0
	DefaultAPITimeout     = 60 * time.Second
	CredentialsEnv        = "GOOGLE_APPLICATION_CREDENTIALS"
	CredentialsAliasEnv   = "GSC_CREDENTIALS"
	SubjectEnv            = "GSC_SUBJECT"
	configDirName         = ".gsc-mcp"
	configFileName        = "config.json"
	configDirPermissions  = 0755
	configFilePermissions = 0644
)

// ErrMissingCredentials is returned when no service-account key file is configured.
var ErrMissingCredentials = errors.New(CredentialsEnv + " environment variable is required")

type Config struct {
	Server      ServerConfig      `json:"server"`
	Credentials CredentialsConfig `json:"-"`
	API         APIConfig         `json:"api"`
	Log         LogConfig         `json:"log"`
	Telemetry   TelemetryConfig   `json:"telemetry"`
}

type ServerConfig struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	Instructions string `json:"instructions,omitempty"`
}

// CredentialsConfig is populated from the environment only.
type CredentialsConfig struct {
	KeyFile string
	Subject string
	Source  string
}

type APIConfig struct {
	AllowWrites bool     `json:"allowWrites"`
	Timeout     Duration `json:"timeout"`
	UserAgent   string   `json:"userAgent,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // "text" (default) or "json"
}

type TelemetryConfig struct {
	Enabled     bool              `json:"enabled"`
	Endpoint    string            `json:"endpoint,omitempty"`
	Insecure    bool              `json:"insecure,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	ServiceName string            `json:"serviceName,omitempty"`
	SampleRate  float64           `json:"sampleRate,omitempty"`
}

// Duration marshals as a Go duration string ("30s").
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		d.Duration = time.Duration(v) * time.Second
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration %s", string(data))
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:    DefaultServerName,
			Version: DefaultServerVersion,
		},
		API: APIConfig{
			Timeout: Duration{DefaultAPITimeout},
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Telemetry: TelemetryConfig{
			ServiceName: DefaultServiceName,
			SampleRate:  DefaultSampleRate,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, configDirName)
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), configFileName)
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Credentials never come from the file.
	cfg.Credentials = CredentialsFromEnv()

	if allow := os.Getenv("GSC_ALLOW_WRITES"); allow != "" {
		if parsed, err := strconv.ParseBool(allow); err == nil {
			cfg.API.AllowWrites = parsed
		}
	}
	if timeout := os.Getenv("GSC_API_TIMEOUT"); timeout != "" {
		if parsed, err := time.ParseDuration(timeout); err == nil {
			cfg.API.Timeout = Duration{parsed}
		}
	}
	if level := os.Getenv("GSC_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if format := os.Getenv("GSC_LOG_FORMAT"); format != "" {
		cfg.Log.Format = format
	}
	if enabled := os.Getenv("GSC_OTEL_ENABLED"); enabled != "" {
		if parsed, err := strconv.ParseBool(enabled); err == nil {
			cfg.Telemetry.Enabled = parsed
		}
	}
	if endpoint := os.Getenv("GSC_OTEL_ENDPOINT"); endpoint != "" {
		cfg.Telemetry.Endpoint = endpoint
		cfg.Telemetry.Enabled = true
	}
	if insecure := os.Getenv("GSC_OTEL_INSECURE"); insecure != "" {
		if parsed, err := strconv.ParseBool(insecure); err == nil {
			cfg.Telemetry.Insecure = parsed
		}
	}
	if rate := os.Getenv("GSC_OTEL_SAMPLE_RATE"); rate != "" {
		if parsed, err := strconv.ParseFloat(rate, 64); err == nil {
			cfg.Telemetry.SampleRate = parsed
		}
	}

	if cfg.Server.Name == "" {
		cfg.Server.Name = DefaultServerName
	}
	if cfg.Server.Version == "" {
		cfg.Server.Version = DefaultServerVersion
	}
	if cfg.API.Timeout.Duration < 0 {
		cfg.API.Timeout = Duration{DefaultAPITimeout}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
	if cfg.Telemetry.SampleRate <= 0 {
		cfg.Telemetry.SampleRate = DefaultSampleRate
	}

	return cfg, nil
}

// CredentialsFromEnv reads the key file path and impersonation subject.
// GSC_CREDENTIALS wins over GOOGLE_APPLICATION_CREDENTIALS.
func CredentialsFromEnv() CredentialsConfig {
	var creds CredentialsConfig
	if path := strings.TrimSpace(os.Getenv(CredentialsEnv)); path != "" {
		creds.KeyFile = path
		creds.Source = CredentialsEnv
	}
	if path := strings.TrimSpace(os.Getenv(CredentialsAliasEnv)); path != "" {
		creds.KeyFile = path
		creds.Source = CredentialsAliasEnv
	}
	creds.Subject = strings.TrimSpace(os.Getenv(SubjectEnv))
	return creds
}

// RequireCredentials reports ErrMissingCredentials when no key file is set.
func (c *Config) RequireCredentials() error {
	if c == nil || strings.TrimSpace(c.Credentials.KeyFile) == "" {
		return ErrMissingCredentials
	}
	return nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, configFilePermissions)
}
