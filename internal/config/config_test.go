package config

import (
	"os"
	"testing"
	"time"
)

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Env != "development" {
		t.Errorf("expected default env development, got %s", cfg.Env)
	}
	if cfg.DataDir != "data" || cfg.OutputDir != "output" {
		t.Errorf("expected data/output dirs, got %s/%s", cfg.DataDir, cfg.OutputDir)
	}
	if cfg.NoticeFormat != "text" {
		t.Errorf("expected default notice format text, got %s", cfg.NoticeFormat)
	}
	if cfg.IOTimeout != 5*time.Second {
		t.Errorf("expected default IO timeout 5s, got %s", cfg.IOTimeout)
	}
	if cfg.PhoneRegion != "GB" {
		t.Errorf("expected default region GB, got %s", cfg.PhoneRegion)
	}
	if cfg.LogMaxSizeMB != 10 || cfg.LogMaxBackups != 3 {
		t.Errorf("expected log rotation 10MB/3, got %d/%d", cfg.LogMaxSizeMB, cfg.LogMaxBackups)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DATA_DIR", "/srv/clinic")
	t.Setenv("NOTICE_FORMAT", "Both")
	t.Setenv("IO_TIMEOUT", "250ms")
	t.Setenv("PHONE_REGION", "ie")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DataDir != "/srv/clinic" {
		t.Errorf("expected DATA_DIR from env, got %s", cfg.DataDir)
	}
	if cfg.NoticeFormat != "both" {
		t.Errorf("expected normalised notice format, got %s", cfg.NoticeFormat)
	}
	if cfg.IOTimeout != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %s", cfg.IOTimeout)
	}
	if cfg.PhoneRegion != "IE" {
		t.Errorf("expected IE, got %s", cfg.PhoneRegion)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("NOTICE_FORMAT", "pdf")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown notice format")
	}
}

func TestConfig_IsDev(t *testing.T) {
	c := &Config{Env: "development"}
	if !c.IsDev() {
		t.Error("expected IsDev() to return true for development")
	}

	c.Env = "production"
	if c.IsDev() {
		t.Error("expected IsDev() to return false for production")
	}
	if !c.IsProduction() {
		t.Error("expected IsProduction() to return true for production")
	}
}

func valid() *Config {
	return &Config{
		Env:          "development",
		LogLevel:     "info",
		DataDir:      "data",
		OutputDir:    "output",
		NoticeFormat: "text",
		NoticeFrom:   "noreply@clinic.local",
		IOTimeout:    time.Second,
		PhoneRegion:  "GB",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, true},
		{"empty output dir", func(c *Config) { c.OutputDir = "" }, true},
		{"eml without sender", func(c *Config) { c.NoticeFormat = "eml"; c.NoticeFrom = "clinic" }, true},
		{"eml with sender", func(c *Config) { c.NoticeFormat = "eml" }, false},
		{"zero timeout", func(c *Config) { c.IOTimeout = 0 }, true},
		{"unknown region", func(c *Config) { c.PhoneRegion = "XX" }, true},
		{"log file without rotation size", func(c *Config) { c.LogFile = "clinic.log" }, true},
		{"log file with rotation", func(c *Config) { c.LogFile = "clinic.log"; c.LogMaxSizeMB = 5 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestConfig_Level(t *testing.T) {
	c := valid()
	c.LogLevel = "DEBUG"
	if c.Level().String() != "debug" {
		t.Errorf("expected debug, got %s", c.Level())
	}
}
