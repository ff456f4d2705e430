package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledge-sync-service/internal/config"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, 500, cfg.Sync.MaxPushBatch)
	assert.Equal(t, 1000, cfg.Sync.MaxPullChanges)
	assert.False(t, cfg.Retention.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 15*time.Second, cfg.Server.GetReadTimeout())
	assert.Equal(t, 90*24*time.Hour, cfg.Retention.GetWindow())
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
storage:
  type: mysql
  host: db.internal
  port: 3306
  database: ksync
retention:
  enabled: true
  window: 24h
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Storage.Type)
	assert.Equal(t, "db.internal", cfg.Storage.Host)
	assert.True(t, cfg.Retention.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Retention.GetWindow())
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfigRejectsUnknownStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  type: mongodb\n"), 0644))

	_, err := config.LoadConfig(path)
	assert.Error(t, err)
}
