package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chtemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
}

func TestLoadDefaults(t *testing.T) {
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "subsidies.db", cfg.Store.Path)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "subsidy-cli/1.0", cfg.Fetch.UserAgent)
	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.Equal(t, int64(1024), cfg.Anthropic.MaxTokens)
	assert.Equal(t, 4, cfg.Analysis.Concurrency)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	chtemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/subsidies
  pool:
    max_conns: 20
server:
  port: 3001
  allowed_origins:
    - https://app.example.jp
notion:
  token: secret_xxx
  match_db: db-123
log:
  level: debug
  format: console
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/subsidies", cfg.Store.DatabaseURL)
	assert.Equal(t, int32(20), cfg.Store.Pool.MaxConns)
	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, []string{"https://app.example.jp"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "secret_xxx", cfg.Notion.Token)
	assert.Equal(t, "db-123", cfg.Notion.MatchDB)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Defaults survive partial files.
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
}

func TestLoadFromEnv(t *testing.T) {
	chtemp(t)

	t.Setenv("SUBSIDY_STORE_DRIVER", "memory")
	t.Setenv("SUBSIDY_ANTHROPIC_KEY", "sk-test")
	t.Setenv("SUBSIDY_SERVER_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
	assert.Equal(t, 9090, cfg.Server.Port)
}

// Keys with no default value must still be reachable from the environment.
func TestLoadEnvOnlyKeys(t *testing.T) {
	chtemp(t)

	t.Setenv("SUBSIDY_STORE_DATABASE_URL", "postgres://localhost/subsidies")
	t.Setenv("SUBSIDY_STORE_POOL_MAX_CONNS", "20")
	t.Setenv("SUBSIDY_NOTION_TOKEN", "secret_env")
	t.Setenv("SUBSIDY_NOTION_MATCH_DB", "db-env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/subsidies", cfg.Store.DatabaseURL)
	assert.Equal(t, int32(20), cfg.Store.Pool.MaxConns)
	assert.Equal(t, "secret_env", cfg.Notion.Token)
	assert.Equal(t, "db-env", cfg.Notion.MatchDB)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "nonsense"})
	require.Error(t, err)
}
