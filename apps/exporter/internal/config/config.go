// Package config loads the exporter's settings from the environment, optionally
// layered over a YAML file named by EXPORTER_CONFIG.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// MissingConfigError is returned when a required setting is absent.
type MissingConfigError struct {
	Key string
}

// Error implements the error interface.
func (e MissingConfigError) Error() string {
	return fmt.Sprintf("missing required configuration %s", e.Key)
}

// Config is the full exporter configuration.
type Config struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"-"`
	BatchSize   int    `yaml:"batchSize"`

	GitHub GitHub `yaml:"github"`
	Export Export `yaml:"export"`
	Queue  Queue  `yaml:"queue"`

	OTelEnabled     bool    `yaml:"otelEnabled"`
	OTelSampleRatio float64 `yaml:"otelSampleRatio"`
}

// GitHub holds API credentials. Secrets are only read from the environment.
type GitHub struct {
	APIURL         string `yaml:"apiUrl"`
	Token          string `yaml:"-"`
	AppID          int64  `yaml:"appId"`
	InstallationID int64  `yaml:"installationId"`
	PrivateKeyPath string `yaml:"privateKeyPath"`
}

// Export names the repository and branch exports are committed to.
type Export struct {
	Owner      string `yaml:"owner"`
	Repo       string `yaml:"repo"`
	Branch     string `yaml:"branch"`
	SystemName string `yaml:"systemName"`
}

// Queue configures the Redis stream used as the work queue.
type Queue struct {
	URL           string `yaml:"-"`
	Stream        string `yaml:"stream"`
	ConsumerGroup string `yaml:"consumerGroup"`
	Consume       bool   `yaml:"consume"`
}

func defaults() Config {
	return Config{
		Port:            "3002",
		BatchSize:       1,
		OTelSampleRatio: 1,
		Export: Export{
			Owner:      "globalbibletools",
			Repo:       "data",
			Branch:     "main",
			SystemName: "Global Bible Tools",
		},
		Queue: Queue{
			Stream:        "language-exports",
			ConsumerGroup: "exporter",
		},
	}
}

// Load reads configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads configuration using getenv, so tests can supply their own
// environment.
func LoadFrom(getenv func(string) string) (*Config, error) {
	cfg := defaults()

	if path := getenv("EXPORTER_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	env := envReader{getenv: getenv}
	env.str("PORT", &cfg.Port)
	env.str("DATABASE_URL", &cfg.DatabaseURL)
	env.integer("EXPORT_BATCH_SIZE", &cfg.BatchSize)

	env.str("GITHUB_API_URL", &cfg.GitHub.APIURL)
	env.str("GITHUB_TOKEN", &cfg.GitHub.Token)
	env.integer64("GITHUB_APP_ID", &cfg.GitHub.AppID)
	env.integer64("GITHUB_INSTALLATION_ID", &cfg.GitHub.InstallationID)
	env.str("GITHUB_PRIVATE_KEY_PATH", &cfg.GitHub.PrivateKeyPath)

	env.str("EXPORT_REPO_OWNER", &cfg.Export.Owner)
	env.str("EXPORT_REPO_NAME", &cfg.Export.Repo)
	env.str("EXPORT_BRANCH", &cfg.Export.Branch)
	env.str("EXPORT_SYSTEM_NAME", &cfg.Export.SystemName)

	env.str("QUEUE_URL", &cfg.Queue.URL)
	env.str("QUEUE_STREAM", &cfg.Queue.Stream)
	env.str("QUEUE_CONSUMER_GROUP", &cfg.Queue.ConsumerGroup)
	env.boolean("QUEUE_CONSUME", &cfg.Queue.Consume)

	env.boolean("OTEL_ENABLED", &cfg.OTelEnabled)
	env.float("OTEL_SAMPLE_RATIO", &cfg.OTelSampleRatio)

	if env.err != nil {
		return nil, env.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return MissingConfigError{Key: "DATABASE_URL"}
	}
	if c.Queue.URL == "" {
		return MissingConfigError{Key: "QUEUE_URL"}
	}
	if c.GitHub.Token == "" {
		switch {
		case c.GitHub.AppID == 0:
			return MissingConfigError{Key: "GITHUB_TOKEN or GITHUB_APP_ID"}
		case c.GitHub.InstallationID == 0:
			return MissingConfigError{Key: "GITHUB_INSTALLATION_ID"}
		case c.GitHub.PrivateKeyPath == "":
			return MissingConfigError{Key: "GITHUB_PRIVATE_KEY_PATH"}
		}
	}
	if c.OTelSampleRatio < 0 || c.OTelSampleRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATIO must be between 0 and 1, got %v", c.OTelSampleRatio)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("EXPORT_BATCH_SIZE must be at least 1, got %d", c.BatchSize)
	}
	return nil
}

// envReader overrides fields from the environment, keeping the first parse error.
type envReader struct {
	getenv func(string) string
	err    error
}

func (r *envReader) str(key string, dst *string) {
	if v := r.getenv(key); v != "" {
		*dst = v
	}
}

func (r *envReader) integer(key string, dst *int) {
	v := r.getenv(key)
	if v == "" || r.err != nil {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.err = fmt.Errorf("parse %s: %w", key, err)
		return
	}
	*dst = n
}

func (r *envReader) integer64(key string, dst *int64) {
	v := r.getenv(key)
	if v == "" || r.err != nil {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		r.err = fmt.Errorf("parse %s: %w", key, err)
		return
	}
	*dst = n
}

func (r *envReader) float(key string, dst *float64) {
	v := r.getenv(key)
	if v == "" || r.err != nil {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.err = fmt.Errorf("parse %s: %w", key, err)
		return
	}
	*dst = f
}

func (r *envReader) boolean(key string, dst *bool) {
	v := r.getenv(key)
	if v == "" || r.err != nil {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.err = fmt.Errorf("parse %s: %w", key, err)
		return
	}
	*dst = b
}
