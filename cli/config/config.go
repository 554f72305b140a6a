package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pithecene-io/triage/classify"
	"github.com/pithecene-io/triage/runtime"
	"github.com/pithecene-io/triage/storage"
	"github.com/pithecene-io/triage/types"
)

// Default locations, matching the layout operators already use.
const (
	DefaultNewDir        = "RefundImages/New"
	DefaultProcessedDir  = "RefundImages/Processed"
	DefaultFailedDir     = "RefundImages/Failed"
	DefaultReportsDir    = "RefundReports"
	DefaultClassifierURL = "http://localhost:5000/predict"
)

// Config represents a triage.yaml configuration file.
// All values are optional; Defaults fills the gaps and CLI flags always
// override config values.
type Config struct {
	RunID      string           `yaml:"run_id"`
	Storage    StorageConfig    `yaml:"storage"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Batch      BatchConfig      `yaml:"batch"`
	Lock       LockConfig       `yaml:"lock"`
	Adapter    AdapterConfig    `yaml:"adapter"`
	Summary    SummaryConfig    `yaml:"summary"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	Backend    string   `yaml:"backend"`
	Extensions []string `yaml:"extensions,omitempty"`
	FS         FSConfig `yaml:"fs"`
	S3         S3Config `yaml:"s3"`
}

// FSConfig holds the local directory layout.
type FSConfig struct {
	NewDir       string `yaml:"new_dir"`
	ProcessedDir string `yaml:"processed_dir"`
	FailedDir    string `yaml:"failed_dir"`
	ReportsDir   string `yaml:"reports_dir"`
	LogFile      string `yaml:"log_file"`
}

// S3Config holds the bucket layout and client settings.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	NewPrefix       string `yaml:"new_prefix"`
	ProcessedPrefix string `yaml:"processed_prefix"`
	FailedPrefix    string `yaml:"failed_prefix"`
	ReportsPrefix   string `yaml:"reports_prefix"`
}

// ClassifierConfig configures the classification service client.
type ClassifierConfig struct {
	URL       string            `yaml:"url"`
	HealthURL string            `yaml:"health_url,omitempty"`
	Timeout   Duration          `yaml:"timeout,omitempty"`
	FieldName string            `yaml:"field_name,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`
	Labels    []string          `yaml:"labels,omitempty"`
}

// BatchConfig configures batching and pacing.
type BatchConfig struct {
	Size  int       `yaml:"size"`
	Delay *Duration `yaml:"delay,omitempty"`
}

// LockConfig configures the run lock.
type LockConfig struct {
	Type string   `yaml:"type"` // "", "none" or "redis"
	URL  string   `yaml:"url,omitempty"`
	Key  string   `yaml:"key,omitempty"`
	TTL  Duration `yaml:"ttl,omitempty"`
}

// AdapterConfig holds completion adapter settings.
type AdapterConfig struct {
	Type    string   `yaml:"type"` // "", "webhook" or "redis"
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout,omitempty"`
	Retries *int     `yaml:"retries,omitempty"`

	// webhook
	Headers map[string]string `yaml:"headers,omitempty"`
	Secret  string            `yaml:"secret,omitempty"`

	// redis
	Channel      string `yaml:"channel,omitempty"`
	Stream       string `yaml:"stream,omitempty"`
	StreamMaxLen int64  `yaml:"stream_max_len,omitempty"`
}

// SummaryConfig configures the run summary store.
type SummaryConfig struct {
	Backend string `yaml:"backend"` // "", "none", "fs" or "s3"
	Path    string `yaml:"path"`    // fs root, or bucket[/prefix] for s3
	Format  string `yaml:"format"`  // json or msgpack
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset values. Explicit zero batch delay is kept.
func (c *Config) ApplyDefaults() {
	if c.Storage.Backend == "" {
		c.Storage.Backend = types.BackendFS
	}
	fs := &c.Storage.FS
	if fs.NewDir == "" {
		fs.NewDir = DefaultNewDir
	}
	if fs.ProcessedDir == "" {
		fs.ProcessedDir = DefaultProcessedDir
	}
	if fs.FailedDir == "" {
		fs.FailedDir = DefaultFailedDir
	}
	if fs.ReportsDir == "" {
		fs.ReportsDir = DefaultReportsDir
	}
	if fs.LogFile == "" {
		fs.LogFile = storage.DefaultLogFileName
	}
	s3 := &c.Storage.S3
	if s3.NewPrefix == "" {
		s3.NewPrefix = storage.DefaultNewPrefix
	}
	if s3.ProcessedPrefix == "" {
		s3.ProcessedPrefix = storage.DefaultProcessedPrefix
	}
	if s3.FailedPrefix == "" {
		s3.FailedPrefix = storage.DefaultFailedPrefix
	}
	if s3.ReportsPrefix == "" {
		s3.ReportsPrefix = storage.DefaultReportsPrefix
	}

	if c.Classifier.URL == "" {
		c.Classifier.URL = DefaultClassifierURL
	}
	if c.Classifier.Timeout.Duration == 0 {
		c.Classifier.Timeout.Duration = classify.DefaultTimeout
	}
	if len(c.Classifier.Labels) == 0 {
		c.Classifier.Labels = append([]string(nil), types.DefaultLabels...)
	}

	if c.Batch.Size == 0 {
		c.Batch.Size = runtime.DefaultBatchSize
	}
	if c.Batch.Delay == nil {
		c.Batch.Delay = &Duration{Duration: runtime.DefaultBatchDelay}
	}

	if c.Summary.Format == "" {
		c.Summary.Format = "json"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// BatchDelay returns the configured inter-batch delay.
func (c *Config) BatchDelay() time.Duration {
	if c.Batch.Delay == nil {
		return runtime.DefaultBatchDelay
	}
	return c.Batch.Delay.Duration
}

// Validate checks the config after defaults and flag overrides are applied.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case types.BackendFS:
		fsCfg := c.FSBackendConfig()
		if err := fsCfg.Validate(); err != nil {
			errs = append(errs, err)
		}
	case types.BackendS3:
		if c.Storage.S3.Bucket == "" {
			errs = append(errs, errors.New("storage.s3.bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be fs or s3, got %q", c.Storage.Backend))
	}
	if _, err := types.NormalizeExtensions(c.Storage.Extensions); err != nil {
		errs = append(errs, fmt.Errorf("storage.extensions: %w", err))
	}

	if c.Classifier.URL == "" {
		errs = append(errs, errors.New("classifier.url is required"))
	} else if !strings.HasPrefix(c.Classifier.URL, "http://") && !strings.HasPrefix(c.Classifier.URL, "https://") {
		errs = append(errs, fmt.Errorf("classifier.url must be http(s), got %q", c.Classifier.URL))
	}
	if c.Classifier.Timeout.Duration < 0 {
		errs = append(errs, errors.New("classifier.timeout must be >= 0"))
	}
	if err := types.LabelSet(c.Classifier.Labels).Validate(); err != nil {
		errs = append(errs, fmt.Errorf("classifier.labels: %w", err))
	}

	if c.Batch.Size < 1 {
		errs = append(errs, fmt.Errorf("batch.size must be >= 1, got %d", c.Batch.Size))
	}
	if c.BatchDelay() < 0 {
		errs = append(errs, errors.New("batch.delay must be >= 0"))
	}

	switch c.Lock.Type {
	case "", "none":
	case "redis":
		if c.Lock.URL == "" {
			errs = append(errs, errors.New("lock.url is required for the redis lock"))
		}
	default:
		errs = append(errs, fmt.Errorf("lock.type must be none or redis, got %q", c.Lock.Type))
	}

	switch c.Adapter.Type {
	case "":
	case "webhook", "redis":
		if c.Adapter.URL == "" {
			errs = append(errs, fmt.Errorf("adapter.url is required for the %s adapter", c.Adapter.Type))
		}
		if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
			errs = append(errs, errors.New("adapter.retries must be >= 0"))
		}
		if c.Adapter.StreamMaxLen < 0 {
			errs = append(errs, errors.New("adapter.stream_max_len must be >= 0"))
		}
	default:
		errs = append(errs, fmt.Errorf("adapter.type must be webhook or redis, got %q", c.Adapter.Type))
	}

	switch c.Summary.Backend {
	case "", "none":
	case types.BackendFS, types.BackendS3:
		if c.Summary.Path == "" {
			errs = append(errs, fmt.Errorf("summary.path is required for the %s summary store", c.Summary.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("summary.backend must be none, fs or s3, got %q", c.Summary.Backend))
	}
	switch c.Summary.Format {
	case "", "json", "msgpack":
	default:
		errs = append(errs, fmt.Errorf("summary.format must be json or msgpack, got %q", c.Summary.Format))
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", runtime.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// FSBackendConfig converts the fs section to a storage config.
func (c *Config) FSBackendConfig() storage.FSConfig {
	return storage.FSConfig{
		NewDir:       c.Storage.FS.NewDir,
		ProcessedDir: c.Storage.FS.ProcessedDir,
		FailedDir:    c.Storage.FS.FailedDir,
		ReportsDir:   c.Storage.FS.ReportsDir,
		LogFileName:  c.Storage.FS.LogFile,
		Extensions:   c.Storage.Extensions,
	}
}

// S3BackendConfig converts the s3 section to a storage config.
func (c *Config) S3BackendConfig() storage.S3Config {
	s := c.Storage.S3
	return storage.S3Config{
		ClientConfig: storage.ClientConfig{
			Region:       s.Region,
			Endpoint:     s.Endpoint,
			UsePathStyle: s.PathStyle,
		},
		Bucket:          s.Bucket,
		NewPrefix:       s.NewPrefix,
		ProcessedPrefix: s.ProcessedPrefix,
		FailedPrefix:    s.FailedPrefix,
		ReportsPrefix:   s.ReportsPrefix,
		Extensions:      c.Storage.Extensions,
	}
}

// ClientConfig converts the classifier section to a client config.
func (c *Config) ClientConfig() classify.Config {
	return classify.Config{
		URL:       c.Classifier.URL,
		HealthURL: c.Classifier.HealthURL,
		Timeout:   c.Classifier.Timeout.Duration,
		FieldName: c.Classifier.FieldName,
		Labels:    types.LabelSet(c.Classifier.Labels),
		Headers:   c.Classifier.Headers,
	}
}
