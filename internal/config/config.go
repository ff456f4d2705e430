package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Retention RetentionConfig `mapstructure:"retention"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	ReadTimeout  string   `mapstructure:"read_timeout"`
	WriteTimeout string   `mapstructure:"write_timeout"`
	CorsOrigins  []string `mapstructure:"cors_origins"`
}

func (s ServerConfig) GetReadTimeout() time.Duration {
	d, _ := time.ParseDuration(s.ReadTimeout)
	return d
}

func (s ServerConfig) GetWriteTimeout() time.Duration {
	d, _ := time.ParseDuration(s.WriteTimeout)
	return d
}

// StorageConfig selects and configures the backing store.
// Type is "mysql" or "sqlite"; FilePath applies to sqlite only.
type StorageConfig struct {
	Type     string `mapstructure:"type"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	FilePath string `mapstructure:"file_path"`
}

type SyncConfig struct {
	// MaxPushBatch caps the number of changes accepted in a single push call.
	MaxPushBatch int `mapstructure:"max_push_batch"`
	// MaxPullChanges caps the number of entries returned by a single pull.
	MaxPullChanges int `mapstructure:"max_pull_changes"`
}

// RetentionConfig controls the optional journal pruning job.
// Pruning is a policy, not a correctness requirement; disabled by default.
type RetentionConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Interval string `mapstructure:"interval"`
	Window   string `mapstructure:"window"`
}

func (r RetentionConfig) GetWindow() time.Duration {
	d, _ := time.ParseDuration(r.Window)
	return d
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from the given YAML file, with environment
// overrides using the KSYNC_ prefix (e.g. KSYNC_STORAGE_TYPE).
// A missing config file is not an error; defaults plus env cover every key.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("KSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("storage.type", "sqlite")
	v.SetDefault("storage.file_path", "ksync.db")
	v.SetDefault("sync.max_push_batch", 500)
	v.SetDefault("sync.max_pull_changes", 1000)
	v.SetDefault("retention.enabled", false)
	v.SetDefault("retention.interval", "@daily")
	v.SetDefault("retention.window", "2160h") // 90 days
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Storage.Type != "mysql" && cfg.Storage.Type != "sqlite" {
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Storage.Type)
	}

	return &cfg, nil
}
