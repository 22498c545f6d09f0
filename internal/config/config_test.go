package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
server:
  port: 9090
log:
  level: debug
  format: text
backend:
  base_url: https://api.example.com
  timeout: 15s
  routes:
    jira_tickets: v1/jira_issues
  retry:
    max_attempts: 3
    initial_delay: 100ms
export:
  output_dir: /tmp/out
  row_cap: 500
`

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), sample)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:9090", cfg.ServerAddr())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 15*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Backend.DialTimeout)
	assert.Equal(t, "v1/jira_issues", cfg.Backend.Routes["jira_tickets"])
	assert.Equal(t, 3, cfg.Backend.Retry.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Backend.Retry.InitialDelay)
	assert.Equal(t, "insights.db", cfg.Store.Path)
	assert.Equal(t, 500, cfg.Export.RowCap)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, t.TempDir(), sample)
	t.Setenv("INSIGHTS_SERVER_PORT", "7070")
	t.Setenv("INSIGHTS_BACKEND_TOKEN", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "secret", cfg.Backend.Token)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:  ServerConfig{Port: 8080},
			Backend: BackendConfig{BaseURL: "http://b"},
			Store:   StoreConfig{Path: "x.db"},
			Export:  ExportConfig{OutputDir: "out", RowCap: 1},
		}
	}
	base := valid()
	base.Log.Level, base.Log.Format = "info", "json"
	require.NoError(t, base.Validate())

	tests := map[string]func(*Config){
		"port":     func(c *Config) { c.Server.Port = 0 },
		"level":    func(c *Config) { c.Log.Level = "loud" },
		"format":   func(c *Config) { c.Log.Format = "xml" },
		"base url": func(c *Config) { c.Backend.BaseURL = "" },
		"store":    func(c *Config) { c.Store.Path = "" },
		"row cap":  func(c *Config) { c.Export.RowCap = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := base
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestWatch_ReloadsValidEdits(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, sample)

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func(c *Config) {
			select {
			case changes <- c:
			default:
			}
		})
	}()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	writeConfig(t, dir, "server: {port: 99999}\n")
	writeConfig(t, dir, sample+"store:\n  path: reloaded.db\n")

	select {
	case cfg := <-changes:
		assert.Equal(t, "reloaded.db", cfg.Store.Path)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload")
	}

	cancel()
	require.NoError(t, <-done)
}
