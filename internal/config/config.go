package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/woxQAQ/pdfnano-wasm/internal/wasm"
)

// EnvPrefix prefixes environment overrides, e.g. PDFNANO_WASM_MEMORY_PAGES.
const EnvPrefix = "PDFNANO"

type Config struct {
	LogLevel   string         `mapstructure:"log_level"`
	ModulePath string         `mapstructure:"module_path"`
	Wasm       WasmConfig     `mapstructure:"wasm"`
	Document   DocumentConfig `mapstructure:"document"`
}

// WasmConfig holds Wasm runtime configuration.
type WasmConfig struct {
	// Memory limit for the module (in pages, 64KB each).
	MemoryPages uint32 `mapstructure:"memory_pages"`
	// Keep DWARF info so guest traps carry source locations.
	Debug bool `mapstructure:"debug"`
	// Compilation cache directory. Empty keeps compiled code in memory only.
	CacheDir string `mapstructure:"cache_dir"`
}

// DocumentConfig holds the page settings used for default documents.
type DocumentConfig struct {
	PageFormat  string `mapstructure:"page_format"`
	Orientation string `mapstructure:"orientation"`
}

func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("module_path", "./pdf-nano.wasm")

	// Wasm defaults
	v.SetDefault("wasm.memory_pages", 256) // 16MB
	v.SetDefault("wasm.debug", false)
	v.SetDefault("wasm.cache_dir", "")

	v.SetDefault("document.page_format", "a4")
	v.SetDefault("document.orientation", "portrait")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid log_level: %w", err)
	}
	if cfg.ModulePath == "" {
		return nil, fmt.Errorf("module_path must not be empty")
	}
	if cfg.Wasm.MemoryPages == 0 || cfg.Wasm.MemoryPages > 65536 {
		return nil, fmt.Errorf("wasm.memory_pages must be between 1 and 65536, got %d", cfg.Wasm.MemoryPages)
	}

	return &cfg, nil
}

// RuntimeConfig converts the wasm section into runtime settings.
func (c *Config) RuntimeConfig() *wasm.RuntimeConfig {
	return &wasm.RuntimeConfig{
		MemoryPages:  c.Wasm.MemoryPages,
		DebugEnabled: c.Wasm.Debug,
		CacheDir:     c.Wasm.CacheDir,
	}
}

// NewLogger builds a production logger at the configured level, or a
// development logger when the level is debug.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	if level.Level() == zapcore.DebugLevel {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	return zcfg.Build()
}
