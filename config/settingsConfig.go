package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
)

// SettingsEnv names the environment variable holding the path
// of an optional JSON settings file.
const SettingsEnv = "CACHEBUST_CONFIG"

const defaultShutdownTimeout = 5

// SettingsReader is a struct for reading the settings file.
type SettingsReader struct {
	file *os.File
}

// Settings holds the optional knobs that aren't part of the command line.
type Settings struct {
	LogLevel        string `validate:"omitempty,oneof=debug info warn error"`
	MetricsAddr     string `validate:"omitempty,hostname_port"`
	MetricsSecret   string
	Watch           bool
	ShutdownTimeout int64 `validate:"gte=0"`
}

// DefaultSettings returns the settings used when no file is given.
func DefaultSettings() *Settings {
	return &Settings{
		LogLevel:        "info",
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

// NewSettingsReader is a constructor for SettingsReader.
func NewSettingsReader(settingsPath string) (*SettingsReader, error) {
	file, err := os.Open(settingsPath)
	if err != nil {
		return nil, err
	}
	return &SettingsReader{file}, nil
}

// Close closes the settings file.
func (r *SettingsReader) Close() error {
	return r.file.Close()
}

// ReadSettings decodes the settings file over the defaults and validates the result.
func (r *SettingsReader) ReadSettings(v *validator.Validate) (*Settings, error) {
	settingsFileByte, err := io.ReadAll(r.file)
	if err != nil {
		return nil, err
	}

	settings := DefaultSettings()
	err = json.Unmarshal(settingsFileByte, settings)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.file.Name(), err)
	}

	if err = v.Struct(settings); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	return settings, nil
}

// LoadSettings reads the file named by CACHEBUST_CONFIG,
// falling back to the defaults when the variable is unset.
func LoadSettings(v *validator.Validate) (*Settings, error) {
	path := os.Getenv(SettingsEnv)
	if path == "" {
		return DefaultSettings(), nil
	}

	r, err := NewSettingsReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return r.ReadSettings(v)
}

// ShutdownGrace is the time given to in-flight requests on shutdown.
func (s *Settings) ShutdownGrace() time.Duration {
	return time.Duration(s.ShutdownTimeout) * time.Second
}
