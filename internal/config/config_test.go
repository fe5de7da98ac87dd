package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	SetConfigDir(dir)
	t.Cleanup(func() { SetConfigDir("") })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	writeConfigDir(t, nil)
	t.Setenv("APP_ENV", "test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvTest, cfg.Env)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, 8, cfg.Orchestrator.Workers)
	assert.Equal(t, 2*time.Second, cfg.Orchestrator.SyncWindow)
	assert.Equal(t, "NYC", cfg.Orchestrator.DefaultOrigin)
	assert.Empty(t, cfg.ConfigFilePath)
}

func TestLoad_EnvFileOverridesCommon(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{
		"common.yaml": `
orchestrator:
  workers: 4
  sync_window: 500ms
store:
  driver: sqlite
  sqlite:
    path: /tmp/common.db
`,
		"test.yaml": `
orchestrator:
  workers: 2
server:
  port: "9090"
`,
	})
	t.Setenv("APP_ENV", "test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Orchestrator.Workers, "{env}.yaml 覆盖 common.yaml")
	assert.Equal(t, 500*time.Millisecond, cfg.Orchestrator.SyncWindow, "common.yaml 覆盖默认值")
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, StoreSQLite, cfg.StoreDriver)
	assert.Equal(t, "/tmp/common.db", cfg.SQLitePath)
	assert.Equal(t, filepath.Join(dir, "test.yaml"), cfg.ConfigFilePath)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	writeConfigDir(t, map[string]string{"test.yaml": "store:\n  driver: memory\n"})
	t.Setenv("APP_ENV", "test")
	t.Setenv("STORE_DRIVER", "redis")
	t.Setenv("REDIS_URL", "redis://:pw@cache:6379/2")
	t.Setenv("WORKERS", "16")
	t.Setenv("SYNC_WINDOW", "3s")
	t.Setenv("AMADEUS_CLIENT_ID", "client-id")
	t.Setenv("AMADEUS_CLIENT_SECRET", "client-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreRedis, cfg.StoreDriver)
	assert.Equal(t, "redis://:pw@cache:6379/2", cfg.RedisURL)
	assert.Equal(t, 16, cfg.Orchestrator.Workers)
	assert.Equal(t, 3*time.Second, cfg.Orchestrator.SyncWindow)
	assert.True(t, cfg.Providers.Amadeus.Enabled())
	assert.False(t, cfg.Providers.Places.Enabled())
	assert.NotContains(t, cfg.String(), "pw@")
	assert.NotContains(t, cfg.String(), "client-id")
}

func TestLoad_InvalidYAML(t *testing.T) {
	writeConfigDir(t, map[string]string{"common.yaml": "orchestrator: [unterminated"})
	t.Setenv("APP_ENV", "test")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_FillsDefaults(t *testing.T) {
	cfg := &Config{Orchestrator: OrchestratorConfig{SyncWindow: -time.Second, Retention: 2 * time.Hour}}
	cfg.validate()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 8, cfg.Orchestrator.Workers)
	assert.Equal(t, time.Duration(0), cfg.Orchestrator.SyncWindow)
	assert.Equal(t, 2*time.Hour, cfg.Orchestrator.Retention)
	assert.GreaterOrEqual(t, cfg.Orchestrator.ActiveTTL, cfg.Orchestrator.Retention)
	assert.Equal(t, 2, cfg.Providers.RateLimit.Burst)
}

func TestBuildRedisURL(t *testing.T) {
	tests := []struct {
		name  string
		redis RedisConfig
		want  string
	}{
		{"无密码", RedisConfig{Host: "localhost", Port: 6379, DB: 1}, "redis://localhost:6379/1"},
		{"带密码", RedisConfig{Host: "r", Port: 6380, Password: "s3"}, "redis://:s3@r:6380/0"},
		{"URL 优先", RedisConfig{Host: "ignored", URL: "redis://other:1/0"}, "redis://other:1/0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildRedisURL(tt.redis))
		})
	}
}

func TestNormalizeDriver(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"redis", StoreRedis},
		{"SQLite", StoreSQLite},
		{" memory ", StoreMemory},
		{"postgres", StoreMemory},
		{"", StoreMemory},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeDriver(tt.in), tt.in)
	}
}

func TestMaskPassword(t *testing.T) {
	assert.Equal(t, "redis://:***@host:6379/0", maskPassword("redis://:secret@host:6379/0"))
	assert.Equal(t, "redis://host:6379/0", maskPassword("redis://host:6379/0"))
}
