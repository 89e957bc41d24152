package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/timmy/logarchive/internal/domain"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Server   ServerConfig   `mapstructure:"server"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres or sqlite
	URL             string        `mapstructure:"url"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the connection string for the configured driver.
func (c DatabaseConfig) DSN() string {
	if c.Driver == "sqlite" {
		return c.Path
	}
	return c.URL
}

type UpstreamConfig struct {
	APIHost      string        `mapstructure:"api_host"`
	ArtifactHost string        `mapstructure:"artifact_host"`
	ListingPath  string        `mapstructure:"listing_path"`
	RecordPath   string        `mapstructure:"record_path"`
	ArtifactPath string        `mapstructure:"artifact_path"`
	Timeout      time.Duration `mapstructure:"timeout"`
	UserAgent    string        `mapstructure:"user_agent"`
}

type ArchiveConfig struct {
	LogTarget    string        `mapstructure:"log_target"`
	Pace         time.Duration `mapstructure:"pace"`
	Interval     time.Duration `mapstructure:"interval"`
	Staleness    time.Duration `mapstructure:"staleness"`
	ListingLimit int           `mapstructure:"listing_limit"`

	// MaxArtifactFileSize bounds one extracted file in bytes. Zero disables the check.
	MaxArtifactFileSize int64 `mapstructure:"max_artifact_file_size"`
}

// StorageConfig configures the optional S3-compatible mirror of raw artifacts.
type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"` // r2, s3, s3compatible
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
}

// ServerConfig configures the optional status endpoint.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
}

// Load reads configuration from a YAML file, .env and the environment.
// Parameters:
//   - configPath: explicit config file; empty searches ./configs and . for config.yaml.
// Returns:
//   - *Config: merged configuration, not yet validated.
//   - error: non-nil if the file exists but cannot be read or decoded.
func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	// A missing config file is fine; defaults and env cover everything.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The deployment environment uses these names without the section prefix.
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.path", "DATABASE_PATH")
	v.BindEnv("upstream.api_host", "API_HOST")
	v.BindEnv("upstream.artifact_host", "ARTIFACT_HOST")
	v.BindEnv("archive.log_target", "LOG_TARGET")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Upstream.ArtifactHost == "" {
		cfg.Upstream.ArtifactHost = cfg.Upstream.APIHost
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.path", "./data/logs.db")
	v.SetDefault("database.max_open_conns", 2)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("upstream.api_host", "https://logs.tf")
	v.SetDefault("upstream.listing_path", "/api/v1/log")
	v.SetDefault("upstream.record_path", "/api/v1/log/{id}")
	v.SetDefault("upstream.artifact_path", "/logs/log_{id}.log.zip")
	v.SetDefault("upstream.timeout", 60*time.Second)
	v.SetDefault("upstream.user_agent", "logarchive/1.0")

	v.SetDefault("archive.pace", 200*time.Millisecond)
	v.SetDefault("archive.interval", 60*time.Second)
	v.SetDefault("archive.staleness", time.Hour)
	v.SetDefault("archive.listing_limit", 100)
	v.SetDefault("archive.max_artifact_file_size", 256<<20)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.type", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.prefix", "logs")

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
}

// Validate checks that every value needed to start is present. backfill
// relaxes the database requirement since that mode never touches it.
func (c *Config) Validate(backfill bool) error {
	var problems []string

	if !backfill {
		switch c.Database.Driver {
		case "postgres":
			if c.Database.URL == "" {
				problems = append(problems, "DATABASE_URL is required")
			}
		case "sqlite":
			if c.Database.Path == "" {
				problems = append(problems, "DATABASE_PATH is required for sqlite")
			}
		default:
			problems = append(problems, fmt.Sprintf("unknown database driver %q", c.Database.Driver))
		}
	}
	if c.Upstream.APIHost == "" {
		problems = append(problems, "API_HOST is required")
	}
	if c.Archive.LogTarget == "" {
		problems = append(problems, "LOG_TARGET is required")
	}
	if c.Archive.ListingLimit <= 0 {
		problems = append(problems, "archive.listing_limit must be positive")
	}
	if c.Archive.MaxArtifactFileSize < 0 {
		problems = append(problems, "archive.max_artifact_file_size must not be negative")
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		problems = append(problems, "storage.bucket is required when storage is enabled")
	}

	if len(problems) > 0 {
		return domain.NewError(domain.KindConfig, "validate config", errors.New(strings.Join(problems, "; ")))
	}
	return nil
}
