package config

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Default log level mismatch: got %s, want info", cfg.LogLevel)
	}

	if cfg.ModulePath != "./pdf-nano.wasm" {
		t.Errorf("Default module path mismatch: got %s", cfg.ModulePath)
	}

	if cfg.Wasm.MemoryPages != 256 {
		t.Errorf("Default memory pages mismatch: got %d, want 256", cfg.Wasm.MemoryPages)
	}

	if cfg.Wasm.CacheDir != "" {
		t.Errorf("Cache dir should be empty by default, got %s", cfg.Wasm.CacheDir)
	}

	if cfg.Document.PageFormat != "a4" || cfg.Document.Orientation != "portrait" {
		t.Errorf("Default document mismatch: got %+v", cfg.Document)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
module_path: /opt/pdf-nano
wasm:
  memory_pages: 64
  debug: true
document:
  page_format: letter
  orientation: landscape
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("Log level mismatch: got %s, want debug", cfg.LogLevel)
	}

	if cfg.ModulePath != "/opt/pdf-nano" {
		t.Errorf("Module path mismatch: got %s", cfg.ModulePath)
	}

	rc := cfg.RuntimeConfig()
	if rc.MemoryPages != 64 || !rc.DebugEnabled {
		t.Errorf("Runtime config mismatch: got %+v", rc)
	}

	if cfg.Document.PageFormat != "letter" || cfg.Document.Orientation != "landscape" {
		t.Errorf("Document mismatch: got %+v", cfg.Document)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("PDFNANO_WASM_MEMORY_PAGES", "32")
	t.Setenv("PDFNANO_LOG_LEVEL", "warn")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Wasm.MemoryPages != 32 {
		t.Errorf("Memory pages mismatch: got %d, want 32", cfg.Wasm.MemoryPages)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("Log level mismatch: got %s, want warn", cfg.LogLevel)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad log level", "log_level: loud\n"},
		{"zero pages", "wasm:\n  memory_pages: 0\n"},
		{"too many pages", "wasm:\n  memory_pages: 70000\n"},
		{"empty module path", "module_path: \"\"\n"},
		{"malformed yaml", "wasm: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.content)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestNewLogger(t *testing.T) {
	cfg := &Config{LogLevel: "warn"}
	logger, err := cfg.NewLogger()
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn should be enabled")
	}

	cfg.LogLevel = "debug"
	logger, err = cfg.NewLogger()
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug should be enabled")
	}
}
