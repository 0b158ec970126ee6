// Package config resolves runtime settings for the housing tools from an
// optional YAML file and HOUSING_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileEnv names the environment variable pointing at a YAML config file.
const FileEnv = "HOUSING_CONFIG"

// Config is the resolved runtime configuration. TraceFile receives one JSON
// line per finished operation span; "-" selects stderr and empty disables
// tracing.
type Config struct {
	Storage   StorageConfig `yaml:"storage"`
	Blob      BlobConfig    `yaml:"blob"`
	Log       LogConfig     `yaml:"log"`
	Records   RecordsConfig `yaml:"records"`
	Metrics   string        `yaml:"metrics"`
	TraceFile string        `yaml:"trace_file"`
}

type StorageConfig struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

type BlobConfig struct {
	Driver string   `yaml:"driver"`
	FSRoot string   `yaml:"fs_root"`
	S3     S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type RecordsConfig struct {
	Dir    string `yaml:"dir"`
	Strict bool   `yaml:"strict"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Storage: StorageConfig{Driver: "memory", SQLitePath: "housing.db"},
		Blob:    BlobConfig{Driver: "fs", FSRoot: "./archive"},
		Log:     LogConfig{Level: "info", Format: "text"},
		Records: RecordsConfig{Dir: "./data", Strict: true},
		Metrics: "none",
	}
}

// Load builds the configuration. Values from the file named by
// HOUSING_CONFIG are applied over the defaults, then environment variables
// override both.
func Load() (Config, error) {
	cfg := Default()
	if path := getEnv(FileEnv, ""); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Storage.Driver = getEnv("HOUSING_STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.SQLitePath = getEnv("HOUSING_SQLITE_PATH", c.Storage.SQLitePath)
	c.Storage.PostgresDSN = getEnv("HOUSING_POSTGRES_DSN", c.Storage.PostgresDSN)

	c.Blob.Driver = getEnv("HOUSING_BLOB_DRIVER", c.Blob.Driver)
	c.Blob.FSRoot = getEnv("HOUSING_BLOB_FS_ROOT", c.Blob.FSRoot)
	c.Blob.S3.Bucket = getEnv("HOUSING_BLOB_S3_BUCKET", c.Blob.S3.Bucket)
	c.Blob.S3.Region = getEnv("HOUSING_BLOB_S3_REGION", c.Blob.S3.Region)
	c.Blob.S3.Endpoint = getEnv("HOUSING_BLOB_S3_ENDPOINT", c.Blob.S3.Endpoint)
	c.Blob.S3.PathStyle = getEnvBool("HOUSING_BLOB_S3_PATH_STYLE", c.Blob.S3.PathStyle)
	c.Blob.S3.AccessKeyID = getEnv("HOUSING_BLOB_S3_ACCESS_KEY_ID", c.Blob.S3.AccessKeyID)
	c.Blob.S3.SecretAccessKey = getEnv("HOUSING_BLOB_S3_SECRET_ACCESS_KEY", c.Blob.S3.SecretAccessKey)

	c.Log.Level = getEnv("HOUSING_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("HOUSING_LOG_FORMAT", c.Log.Format)

	c.Records.Dir = getEnv("HOUSING_DATA_DIR", c.Records.Dir)
	c.Records.Strict = getEnvBool("HOUSING_STRICT_LOAD", c.Records.Strict)

	c.Metrics = getEnv("HOUSING_METRICS", c.Metrics)
	c.TraceFile = getEnv("HOUSING_TRACE_FILE", c.TraceFile)
}

// Validate rejects driver names no component understands.
func (c Config) Validate() error {
	if err := oneOf("storage driver", c.Storage.Driver, "memory", "sqlite", "postgres"); err != nil {
		return err
	}
	if err := oneOf("blob driver", c.Blob.Driver, "fs", "s3", "memory"); err != nil {
		return err
	}
	if err := oneOf("log format", c.Log.Format, "text", "json"); err != nil {
		return err
	}
	if err := oneOf("metrics", c.Metrics, "none", "expvar", "prometheus"); err != nil {
		return err
	}
	if c.Blob.Driver == "s3" && c.Blob.S3.Bucket == "" {
		return fmt.Errorf("blob driver s3 requires a bucket")
	}
	return nil
}

func oneOf(kind, value string, allowed ...string) error {
	for _, candidate := range allowed {
		if strings.EqualFold(value, candidate) {
			return nil
		}
	}
	return fmt.Errorf("unknown %s %q (want one of %s)", kind, value, strings.Join(allowed, ", "))
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
