package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/triage/runtime"
	"github.com/pithecene-io/triage/types"
)

func TestLoad_FullConfig(t *testing.T) {
	yaml := `run_id: nightly-42

storage:
  backend: s3
  extensions: [".jpg", ".webp"]
  s3:
    bucket: refunds
    region: us-east-1
    endpoint: https://minio.example.com
    path_style: true
    new_prefix: inbox/

classifier:
  url: https://classifier.example.com/predict
  timeout: 45s
  field_name: files
  headers:
    Authorization: Bearer token123
  labels: [a, b, c]

batch:
  size: 25
  delay: 250ms

lock:
  type: redis
  url: redis://localhost:6379/0
  ttl: 10m

adapter:
  type: webhook
  url: https://hooks.example.com/triage
  timeout: 10s
  retries: 3

summary:
  backend: fs
  path: ./summaries
  format: msgpack

logging:
  level: debug
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertEqual(t, "run_id", cfg.RunID, "nightly-42")
	assertEqual(t, "storage.backend", cfg.Storage.Backend, "s3")
	assertEqual(t, "storage.s3.bucket", cfg.Storage.S3.Bucket, "refunds")
	assertEqual(t, "storage.s3.region", cfg.Storage.S3.Region, "us-east-1")
	assertEqual(t, "storage.s3.endpoint", cfg.Storage.S3.Endpoint, "https://minio.example.com")
	assertEqual(t, "storage.s3.new_prefix", cfg.Storage.S3.NewPrefix, "inbox/")
	if !cfg.Storage.S3.PathStyle {
		t.Error("expected path_style=true")
	}
	if len(cfg.Storage.Extensions) != 2 {
		t.Errorf("expected 2 extensions, got %v", cfg.Storage.Extensions)
	}

	assertEqual(t, "classifier.url", cfg.Classifier.URL, "https://classifier.example.com/predict")
	assertEqual(t, "classifier.field_name", cfg.Classifier.FieldName, "files")
	if cfg.Classifier.Timeout.Duration != 45*time.Second {
		t.Errorf("classifier.timeout: got %v", cfg.Classifier.Timeout.Duration)
	}
	if cfg.Classifier.Headers["Authorization"] != "Bearer token123" {
		t.Error("expected Authorization header")
	}

	if cfg.Batch.Size != 25 {
		t.Errorf("batch.size: got %d", cfg.Batch.Size)
	}
	if cfg.BatchDelay() != 250*time.Millisecond {
		t.Errorf("batch.delay: got %v", cfg.BatchDelay())
	}

	assertEqual(t, "lock.type", cfg.Lock.Type, "redis")
	if cfg.Lock.TTL.Duration != 10*time.Minute {
		t.Errorf("lock.ttl: got %v", cfg.Lock.TTL.Duration)
	}

	assertEqual(t, "adapter.type", cfg.Adapter.Type, "webhook")
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 3 {
		t.Errorf("adapter.retries: got %v", cfg.Adapter.Retries)
	}

	assertEqual(t, "summary.format", cfg.Summary.Format, "msgpack")
	assertEqual(t, "logging.level", cfg.Logging.Level, "debug")

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoad_EmptyConfig(t *testing.T) {
	path := writeTemp(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Storage.Backend != "" {
		t.Errorf("Load must not apply defaults, got backend %q", cfg.Storage.Backend)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/triage.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTemp(t, "{{invalid yaml")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_CLASSIFIER_URL", "http://gpu-box:5000/predict")

	path := writeTemp(t, "classifier:\n  url: ${TEST_CLASSIFIER_URL}\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "classifier.url", cfg.Classifier.URL, "http://gpu-box:5000/predict")
}

func TestLoad_RequiredEnvMissing(t *testing.T) {
	path := writeTemp(t, "lock:\n  type: redis\n  url: ${TRIAGE_TEST_REDIS_URL:?set the lock redis url}\n")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for missing required variable")
	}
	if !strings.Contains(err.Error(), "TRIAGE_TEST_REDIS_URL") {
		t.Errorf("error should name the variable, got: %v", err)
	}
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	yaml := `run_id: r1
bogus_key: should_fail
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
	if !strings.Contains(err.Error(), "bogus_key") {
		t.Errorf("error should mention the unknown key, got: %v", err)
	}
}

func TestLoad_UnknownNestedKeyRejected(t *testing.T) {
	yaml := `storage:
  backend: fs
  fs:
    new_dir: ./new
    unknown_field: bad
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown nested key, got nil")
	}
	if !strings.Contains(err.Error(), "unknown_field") {
		t.Errorf("error should mention the unknown key, got: %v", err)
	}
}

func TestLoad_WhitespaceOnlyConfig(t *testing.T) {
	path := writeTemp(t, "   \n  \n  \n")
	if _, err := Load(path); err != nil {
		t.Fatalf("Load failed for whitespace-only config: %v", err)
	}
}

func TestLoad_CommentsOnlyConfig(t *testing.T) {
	path := writeTemp(t, "# This is a comment\n# Another comment\n")
	if _, err := Load(path); err != nil {
		t.Fatalf("Load failed for comments-only config: %v", err)
	}
}

func TestLoad_RetriesZeroDistinctFromNil(t *testing.T) {
	// retries: 0 should parse as *int(0), not nil.
	yaml := `adapter:
  type: webhook
  url: https://example.com
  retries: 0
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Retries == nil {
		t.Fatal("expected retries to be non-nil (*int(0)), got nil")
	}
	if *cfg.Adapter.Retries != 0 {
		t.Errorf("expected retries=0, got %d", *cfg.Adapter.Retries)
	}
}

func TestLoad_ZeroBatchDelayKept(t *testing.T) {
	path := writeTemp(t, "batch:\n  delay: 0s\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg.ApplyDefaults()
	if cfg.BatchDelay() != 0 {
		t.Errorf("explicit zero delay overwritten: %v", cfg.BatchDelay())
	}
}

func TestDuration_InvalidFormat(t *testing.T) {
	yaml := `batch:
  delay: not-a-duration
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("error should mention invalid duration, got: %v", err)
	}
}

func TestDuration_EmptyIsZero(t *testing.T) {
	path := writeTemp(t, "classifier:\n  timeout: \"\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Classifier.Timeout.Duration != 0 {
		t.Errorf("expected zero duration, got %v", cfg.Classifier.Timeout.Duration)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Default()

	assertEqual(t, "storage.backend", cfg.Storage.Backend, types.BackendFS)
	assertEqual(t, "storage.fs.new_dir", cfg.Storage.FS.NewDir, DefaultNewDir)
	assertEqual(t, "storage.fs.processed_dir", cfg.Storage.FS.ProcessedDir, DefaultProcessedDir)
	assertEqual(t, "storage.fs.failed_dir", cfg.Storage.FS.FailedDir, DefaultFailedDir)
	assertEqual(t, "storage.fs.reports_dir", cfg.Storage.FS.ReportsDir, DefaultReportsDir)
	assertEqual(t, "storage.fs.log_file", cfg.Storage.FS.LogFile, "classification_log.csv")
	assertEqual(t, "storage.s3.new_prefix", cfg.Storage.S3.NewPrefix, "new-images/")
	assertEqual(t, "storage.s3.reports_prefix", cfg.Storage.S3.ReportsPrefix, "reports/")
	assertEqual(t, "classifier.url", cfg.Classifier.URL, DefaultClassifierURL)
	assertEqual(t, "summary.format", cfg.Summary.Format, "json")
	assertEqual(t, "logging.level", cfg.Logging.Level, "info")

	if cfg.Batch.Size != runtime.DefaultBatchSize {
		t.Errorf("batch.size: got %d, want %d", cfg.Batch.Size, runtime.DefaultBatchSize)
	}
	if cfg.BatchDelay() != runtime.DefaultBatchDelay {
		t.Errorf("batch.delay: got %v, want %v", cfg.BatchDelay(), runtime.DefaultBatchDelay)
	}
	if len(cfg.Classifier.Labels) != len(types.DefaultLabels) {
		t.Errorf("labels: got %d, want %d", len(cfg.Classifier.Labels), len(types.DefaultLabels))
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestApplyDefaults_LabelsNotAliased(t *testing.T) {
	cfg := Default()
	cfg.Classifier.Labels[0] = "mutated"
	if types.DefaultLabels[0] == "mutated" {
		t.Fatal("defaults share the DefaultLabels backing array")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown backend", func(c *Config) { c.Storage.Backend = "gcs" }, "storage.backend"},
		{"s3 without bucket", func(c *Config) { c.Storage.Backend = types.BackendS3 }, "bucket"},
		{"empty fs dir", func(c *Config) { c.Storage.FS.NewDir = "" }, "new_dir"},
		{"non-http classifier", func(c *Config) { c.Classifier.URL = "ftp://x" }, "classifier.url"},
		{"zero batch size", func(c *Config) { c.Batch.Size = 0 }, "batch.size"},
		{"negative delay", func(c *Config) { c.Batch.Delay = &Duration{Duration: -time.Second} }, "batch.delay"},
		{"duplicate labels", func(c *Config) { c.Classifier.Labels = []string{"a", "a"} }, "classifier.labels"},
		{"redis lock without url", func(c *Config) { c.Lock.Type = "redis" }, "lock.url"},
		{"unknown lock", func(c *Config) { c.Lock.Type = "etcd" }, "lock.type"},
		{"webhook without url", func(c *Config) { c.Adapter.Type = "webhook" }, "adapter.url"},
		{"unknown adapter", func(c *Config) { c.Adapter.Type = "kafka" }, "adapter.type"},
		{"negative stream cap", func(c *Config) {
			c.Adapter = AdapterConfig{Type: "redis", URL: "redis://localhost:6379", StreamMaxLen: -1}
		}, "adapter.stream_max_len"},
		{"summary without path", func(c *Config) { c.Summary.Backend = "fs" }, "summary.path"},
		{"bad summary format", func(c *Config) { c.Summary.Format = "xml" }, "summary.format"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, runtime.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Batch.Size = -1
	cfg.Lock.Type = "etcd"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"batch.size", "lock.type"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %q", err, want)
		}
	}
}

func TestBackendConfigConversion(t *testing.T) {
	cfg := Default()
	cfg.Storage.Extensions = []string{".png"}
	cfg.Storage.S3.Bucket = "refunds"
	cfg.Storage.S3.PathStyle = true

	fs := cfg.FSBackendConfig()
	if fs.NewDir != DefaultNewDir || fs.LogFileName != "classification_log.csv" {
		t.Errorf("unexpected fs config: %+v", fs)
	}
	if len(fs.Extensions) != 1 {
		t.Errorf("extensions not carried: %v", fs.Extensions)
	}

	s3 := cfg.S3BackendConfig()
	if s3.Bucket != "refunds" || !s3.UsePathStyle || s3.NewPrefix != "new-images/" {
		t.Errorf("unexpected s3 config: %+v", s3)
	}

	cc := cfg.ClientConfig()
	if cc.URL != DefaultClassifierURL || len(cc.Labels) != len(types.DefaultLabels) {
		t.Errorf("unexpected classifier config: %+v", cc)
	}
}

// writeTemp writes content to a temp file and returns the path.
func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "triage.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}
