package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
)

func writeSettings(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadSettings(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		want    Settings
	}{
		{
			name: "empty object keeps defaults",
			body: `{}`,
			want: Settings{LogLevel: "info", ShutdownTimeout: 5},
		},
		{
			name: "all fields",
			body: `{"LogLevel":"debug","MetricsAddr":"127.0.0.1:9090","MetricsSecret":"s3cr3t","Watch":true,"ShutdownTimeout":1}`,
			want: Settings{
				LogLevel:        "debug",
				MetricsAddr:     "127.0.0.1:9090",
				MetricsSecret:   "s3cr3t",
				Watch:           true,
				ShutdownTimeout: 1,
			},
		},
		{
			name:    "unknown log level",
			body:    `{"LogLevel":"verbose"}`,
			wantErr: true,
		},
		{
			name:    "bad metrics address",
			body:    `{"MetricsAddr":"nowhere"}`,
			wantErr: true,
		},
		{
			name:    "negative shutdown timeout",
			body:    `{"ShutdownTimeout":-1}`,
			wantErr: true,
		},
		{
			name:    "broken json",
			body:    `{"LogLevel":`,
			wantErr: true,
		},
	}

	v := validator.New()
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r, err := NewSettingsReader(writeSettings(t, test.body))
			if err != nil {
				t.Fatal(err)
			}
			defer r.Close()

			got, err := r.ReadSettings(v)
			if test.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if *got != test.want {
				t.Errorf("expected %+v, got %+v", test.want, *got)
			}
		})
	}
}

func TestLoadSettings(t *testing.T) {
	v := validator.New()

	t.Setenv(SettingsEnv, "")
	s, err := LoadSettings(v)
	if err != nil {
		t.Fatal(err)
	}
	if *s != *DefaultSettings() {
		t.Errorf("expected defaults, got %+v", *s)
	}
	if s.ShutdownGrace() != 5*time.Second {
		t.Errorf("unexpected grace %v", s.ShutdownGrace())
	}

	t.Setenv(SettingsEnv, writeSettings(t, `{"Watch":true}`))
	s, err = LoadSettings(v)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Watch {
		t.Error("expected watch to be enabled")
	}

	t.Setenv(SettingsEnv, filepath.Join(t.TempDir(), "missing.json"))
	if _, err = LoadSettings(v); err == nil {
		t.Error("expected an error for a missing file")
	}
}
