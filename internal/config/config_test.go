// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config directory at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(HomeEnv, dir)
	for _, k := range []string{
		"RAGCHAT_BASE_URL", "RAGCHAT_STREAM_IDLE_TIMEOUT", "RAGCHAT_SUMMARY_LIMIT",
		"RAGCHAT_THEME", "RAGCHAT_LOG_LEVEL", "RAGCHAT_LOG_PATH",
	} {
		t.Setenv(k, "")
	}
	return dir
}

// TestConfig_ConcurrentAccess tests that Global() and SetGlobal()
// can be safely called concurrently without race conditions.
// Run with: go test -race -v ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			c := Default()
			c.Cache.SummaryLimit = 7
			SetGlobal(c)
		}()

		go func() {
			defer wg.Done()
			if cfg := Global(); cfg == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}

func TestConfig_GlobalUsesSetValue(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	c := Default()
	c.Server.BaseURL = "http://example.test:9000"
	SetGlobal(c)

	assert.Equal(t, "http://example.test:9000", Global().Server.BaseURL)
}

func TestConfig_Default(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://127.0.0.1:8000", cfg.Server.BaseURL)
	assert.Equal(t, "/api/v1", cfg.Server.APIPrefix)
	assert.Equal(t, "http://127.0.0.1:8000/api/v1", cfg.APIBase())
	assert.Equal(t, 60*time.Second, cfg.StreamIdleTimeout())
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 5, cfg.Cache.SummaryLimit)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		field   string
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, "", false},
		{"https base url", func(c *Config) { c.Server.BaseURL = "https://chat.example.com" }, "", false},
		{"relative base url", func(c *Config) { c.Server.BaseURL = "/api" }, "server.base_url", true},
		{"ftp base url", func(c *Config) { c.Server.BaseURL = "ftp://host" }, "server.base_url", true},
		{"prefix without slash", func(c *Config) { c.Server.APIPrefix = "api/v1" }, "server.api_prefix", true},
		{"empty prefix", func(c *Config) { c.Server.APIPrefix = "" }, "", false},
		{"idle timeout zero", func(c *Config) { c.Server.StreamIdleTimeoutSecs = 0 }, "server.stream_idle_timeout_secs", true},
		{"negative rate", func(c *Config) { c.Server.RequestsPerSecond = -1 }, "server.requests_per_second", true},
		{"summary limit zero", func(c *Config) { c.Cache.SummaryLimit = 0 }, "cache.summary_limit", true},
		{"summary limit 20", func(c *Config) { c.Cache.SummaryLimit = 20 }, "", false},
		{"unknown theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme", true},
		{"unknown log level", func(c *Config) { c.Log.Level = "chatty" }, "log.level", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs), "expected ValidateErrors, got %v", err)
			require.NotEmpty(t, verrs)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestLoadFromPath_TOMLKeepsDefaults(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
base_url = "http://localhost:9001/"

[cache]
summary_limit = 8
`), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9001", cfg.Server.BaseURL, "trailing slash trimmed")
	assert.Equal(t, "/api/v1", cfg.Server.APIPrefix)
	assert.Equal(t, 8, cfg.Cache.SummaryLimit)
	assert.Equal(t, 60, cfg.Server.StreamIdleTimeoutSecs)
	assert.True(t, cfg.UI.RenderMarkdown)
}

func TestLoadFromPath_UnknownKey(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nbase_ulr = \"x\"\n"), 0600))

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.base_ulr")
}

func TestLoadFromPath_JSON(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ui":{"theme":"DARK"}}`), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "dark", cfg.UI.Theme)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Server, cfg.Server)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("RAGCHAT_BASE_URL", "http://10.0.0.5:8000")
	t.Setenv("RAGCHAT_SUMMARY_LIMIT", "3")
	t.Setenv("RAGCHAT_STREAM_IDLE_TIMEOUT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:8000", cfg.Server.BaseURL)
	assert.Equal(t, 3, cfg.Cache.SummaryLimit)
	assert.Equal(t, 60, cfg.Server.StreamIdleTimeoutSecs, "malformed value ignored")
}

func TestLoadDotEnv(t *testing.T) {
	dir := isolate(t)
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("RAGCHAT_THEME=light\nRAGCHAT_LOG_LEVEL=debug\n"), 0600))

	// Variables already present in the environment win over the file.
	t.Setenv("RAGCHAT_LOG_LEVEL", "warn")
	require.NoError(t, os.Unsetenv("RAGCHAT_THEME"))

	require.NoError(t, LoadDotEnv(envPath, filepath.Join(dir, "missing.env")))
	t.Cleanup(func() { os.Unsetenv("RAGCHAT_THEME") })

	assert.Equal(t, "light", os.Getenv("RAGCHAT_THEME"))
	assert.Equal(t, "warn", os.Getenv("RAGCHAT_LOG_LEVEL"))
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "config.toml")

	cfg := Default()
	cfg.Cache.SummaryLimit = 9
	cfg.UI.ShowCitations = false
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 9, loaded.Cache.SummaryLimit)
	assert.False(t, loaded.UI.ShowCitations)
}

func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("server.base_url")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8000", v)

	require.NoError(t, cfg.Set("cache.summary_limit", "12"))
	assert.Equal(t, 12, cfg.Cache.SummaryLimit)

	require.NoError(t, cfg.Set("ui.render_markdown", "false"))
	assert.False(t, cfg.UI.RenderMarkdown)

	require.NoError(t, cfg.Set("server.requests_per_second", "2.5"))
	assert.Equal(t, 2.5, cfg.Server.RequestsPerSecond)

	_, err = cfg.Get("server.nope")
	assert.Error(t, err)
	_, err = cfg.Get("server")
	assert.Error(t, err, "sections are not values")
	assert.Error(t, cfg.Set("cache.summary_limit", "many"))
}

func TestGetAllKeys(t *testing.T) {
	keys := GetAllKeys()
	assert.Contains(t, keys, "server.base_url")
	assert.Contains(t, keys, "cache.summary_limit")
	assert.Contains(t, keys, "log.path")
	assert.Contains(t, keys, "version")

	cfg := Default()
	for _, k := range keys {
		_, err := cfg.Get(k)
		assert.NoError(t, err, "key %s", k)
	}
}

func TestConfig_Clone(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Server.BaseURL = "http://other:1"
	assert.Equal(t, "http://127.0.0.1:8000", cfg.Server.BaseURL)
}
