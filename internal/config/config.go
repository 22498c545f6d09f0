// Package config loads the service configuration from a YAML file, the
// environment (INSIGHTS_ prefix) and defaults.
package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"go-insights-pipeline/internal/model"
	"go-insights-pipeline/pkg/logger"
)

// EnvPrefix prefixes every environment override, e.g. INSIGHTS_BACKEND_BASE_URL
const EnvPrefix = "INSIGHTS"

// Config is the service configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     logger.Config `mapstructure:"log"`
	Backend BackendConfig `mapstructure:"backend"`
	Store   StoreConfig   `mapstructure:"store"`
	Export  ExportConfig  `mapstructure:"export"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// BackendConfig configures the REST backend client
type BackendConfig struct {
	BaseURL     string            `mapstructure:"base_url"`
	Token       string            `mapstructure:"token"`
	Timeout     time.Duration     `mapstructure:"timeout"`
	DialTimeout time.Duration     `mapstructure:"dial_timeout"`
	Routes      map[string]string `mapstructure:"routes"` // resource -> path overrides
	Retry       model.RetryConfig `mapstructure:"retry"`
}

// StoreConfig configures the export job store
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// ExportConfig configures CSV exports
type ExportConfig struct {
	OutputDir   string `mapstructure:"output_dir"`
	RowCap      int    `mapstructure:"row_cap"`
	ColumnsFile string `mapstructure:"columns_file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("backend.timeout", 60*time.Second)
	v.SetDefault("backend.dial_timeout", 10*time.Second)
	v.SetDefault("backend.retry.max_attempts", 1)
	v.SetDefault("store.path", "insights.db")
	v.SetDefault("export.output_dir", "output")
	v.SetDefault("export.row_cap", 10000)
}

// keys bound to the environment even when the file does not mention them
var envKeys = []string{
	"server.host", "server.port", "log.level", "log.format",
	"backend.base_url", "backend.token", "backend.timeout",
	"store.path", "export.output_dir", "export.row_cap", "export.columns_file",
}

// Load reads configPath, or ./config.yaml and ./configs/config.yaml when it
// is empty. A missing default file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %s, must be 'json' or 'text'", c.Log.Format)
	}

	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend.timeout must be >= 0")
	}

	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Export.OutputDir == "" {
		return fmt.Errorf("export.output_dir is required")
	}
	if c.Export.RowCap <= 0 {
		return fmt.Errorf("export.row_cap must be > 0")
	}
	return nil
}

// ServerAddr returns host:port
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Watch reloads configPath whenever it changes and hands every valid
// configuration to onChange. Invalid edits are logged and skipped. Watch
// blocks until ctx is done.
func Watch(ctx context.Context, configPath string, log *zap.Logger, onChange func(*Config)) error {
	if log == nil {
		log = zap.NewNop()
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	// editors replace files on save, so the directory is watched
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", configPath, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(abs)
			if err != nil {
				log.Warn("config reload rejected", zap.String("path", abs), zap.Error(err))
				continue
			}
			log.Info("config reloaded", zap.String("path", abs))
			onChange(cfg)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", zap.Error(err))
		}
	}
}
