package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pithecene-io/triage/types"
)

// Default S3 prefixes.
const (
	DefaultNewPrefix       = "new-images/"
	DefaultProcessedPrefix = "processed-images/"
	DefaultFailedPrefix    = "failed-images/"
	DefaultReportsPrefix   = "reports/"
)

// S3API is the subset of the S3 client used by S3Backend.
// *s3.Client satisfies it; tests use s3mem.Bucket.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// ClientConfig holds connection settings for an S3-compatible endpoint.
type ClientConfig struct {
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom endpoint URL for S3-compatible providers
	// (e.g. MinIO, Cloudflare R2). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not subdomain).
	UsePathStyle bool
}

// NewS3Client builds an S3 client using the AWS SDK default credential chain
// (env vars, shared config, IAM role).
func NewS3Client(ctx context.Context, cc ClientConfig) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error
	if cc.Region != "" {
		opts = append(opts, config.WithRegion(cc.Region))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cc.Endpoint != "" {
		endpoint := cc.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cc.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsConfig, s3Opts...), nil
}

// S3Config configures the S3 backend.
type S3Config struct {
	ClientConfig

	// Bucket is the bucket name (required).
	Bucket string
	// NewPrefix holds pending images (default new-images/).
	NewPrefix string
	// ProcessedPrefix is the base of dated processed prefixes (default processed-images/).
	ProcessedPrefix string
	// FailedPrefix is the base of dated failed prefixes (default failed-images/).
	FailedPrefix string
	// ReportsPrefix holds the per-day audit logs (default reports/).
	ReportsPrefix string
	// Extensions recognized by discovery; matched case-insensitively.
	Extensions []string
}

// Validate checks required settings.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

func (c *S3Config) applyDefaults() {
	c.NewPrefix = normalizePrefix(c.NewPrefix, DefaultNewPrefix)
	c.ProcessedPrefix = normalizePrefix(c.ProcessedPrefix, DefaultProcessedPrefix)
	c.FailedPrefix = normalizePrefix(c.FailedPrefix, DefaultFailedPrefix)
	c.ReportsPrefix = normalizePrefix(c.ReportsPrefix, DefaultReportsPrefix)
}

func normalizePrefix(p, def string) string {
	if p == "" {
		return def
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// S3Backend stores artifacts in an S3-compatible bucket.
//
// Atomicity is weaker than FSBackend:
//   - Relocate is HeadObject, CopyObject, then DeleteObject. A failure between
//     copy and delete leaves the object at both locations; Relocate then
//     returns an error of kind ErrPartialMove and the source stays in New.
//     The next run finds identical bytes at the destination and only retries
//     the delete. The existence check and the copy are not atomic.
//   - AppendLog has no native append. It reads the day's log object, appends
//     one row and overwrites it. Two runs appending concurrently can race and
//     one row can be silently lost. Only one run may target a bucket at a time.
type S3Backend struct {
	config     S3Config
	client     S3API
	extensions []string

	mu sync.Mutex // serializes read-modify-write appends within this process
}

// NewS3Backend creates an S3 backend with a client from the default AWS chain.
func NewS3Backend(ctx context.Context, cfg S3Config) (*S3Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := NewS3Client(ctx, cfg.ClientConfig)
	if err != nil {
		return nil, WrapError(err, OpInit, cfg.Bucket)
	}
	return NewS3BackendWithClient(cfg, client)
}

// NewS3BackendWithClient creates an S3 backend over an existing client.
func NewS3BackendWithClient(cfg S3Config, client S3API) (*S3Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	exts, err := types.NormalizeExtensions(cfg.Extensions)
	if err != nil {
		return nil, fmt.Errorf("s3 backend: %w", err)
	}
	cfg.applyDefaults()
	return &S3Backend{
		config:     cfg,
		client:     client,
		extensions: exts,
	}, nil
}

// Name implements Backend.
func (b *S3Backend) Name() string { return types.BackendS3 }

// ListPending implements Backend. All pages are listed. Only objects
// directly under NewPrefix are pending; keys under nested prefixes are
// ignored, as FSBackend ignores subdirectories.
func (b *S3Backend) ListPending(ctx context.Context) ([]*types.Item, error) {
	p := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.config.Bucket),
		Prefix:    aws.String(b.config.NewPrefix),
		Delimiter: aws.String("/"),
	})

	var items []*types.Item
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, WrapError(err, OpList, b.config.Bucket+"/"+b.config.NewPrefix)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name := strings.TrimPrefix(key, b.config.NewPrefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			if !types.HasExtension(key, b.extensions) {
				continue
			}
			items = append(items, types.NewItem(key))
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	return items, nil
}

// ReadBytes implements Backend.
func (b *S3Backend) ReadBytes(ctx context.Context, item *types.Item) ([]byte, error) {
	data, err := b.getObject(ctx, item.Key)
	if err != nil {
		return nil, WrapError(err, OpRead, item.Key)
	}
	return data, nil
}

func (b *S3Backend) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = out.Body.Close() }()
	return io.ReadAll(out.Body)
}

// Relocate implements Backend with copy-then-delete into <prefix><day>/<filename>.
//
// An occupied destination is never overwritten. If it already holds the
// same bytes as the source (a previous run copied it but failed to delete
// the source) only the delete is retried. Otherwise Relocate returns
// ErrAlreadyExists and leaves both objects alone.
func (b *S3Backend) Relocate(ctx context.Context, item *types.Item, dest types.Location, day string) (string, error) {
	var base string
	switch dest {
	case types.LocationProcessed:
		base = b.config.ProcessedPrefix
	case types.LocationFailed:
		base = b.config.FailedPrefix
	default:
		return "", NewStorageError(errUnclassified, OpRelocate, item.Key,
			fmt.Errorf("cannot relocate to non-terminal location %q", dest))
	}
	destKey := base + day + "/" + item.Filename

	occupied, err := b.exists(ctx, destKey)
	if err != nil {
		return destKey, WrapError(err, OpRelocate, destKey)
	}
	if occupied {
		same, err := b.sameObject(ctx, item.Key, destKey)
		if err != nil {
			return destKey, WrapError(err, OpRelocate, item.Key)
		}
		if !same {
			return destKey, NewStorageError(ErrAlreadyExists, OpRelocate, destKey,
				fmt.Errorf("destination %s holds a different object", destKey))
		}
	} else {
		_, err = b.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(b.config.Bucket),
			CopySource: aws.String(copySource(b.config.Bucket, item.Key)),
			Key:        aws.String(destKey),
		})
		if err != nil {
			return destKey, WrapError(err, OpRelocate, item.Key)
		}
	}

	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(item.Key),
	})
	if err != nil {
		return destKey, NewStorageError(ErrPartialMove, OpRelocate, item.Key, err)
	}
	return destKey, nil
}

// exists reports whether key is present.
func (b *S3Backend) exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if errors.Is(WrapError(err, OpRelocate, key), ErrNotFound) {
		return false, nil
	}
	return false, err
}

// sameObject compares two objects by size, then ETag, then bytes.
// ETags of equal content can differ across multipart uploads and copies,
// so a mismatch alone is not conclusive.
func (b *S3Backend) sameObject(ctx context.Context, srcKey, destKey string) (bool, error) {
	src, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(srcKey),
	})
	if err != nil {
		return false, err
	}
	dst, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(destKey),
	})
	if err != nil {
		return false, err
	}
	if aws.ToInt64(src.ContentLength) != aws.ToInt64(dst.ContentLength) {
		return false, nil
	}
	if aws.ToString(src.ETag) != "" && aws.ToString(src.ETag) == aws.ToString(dst.ETag) {
		return true, nil
	}

	a, err := b.getObject(ctx, srcKey)
	if err != nil {
		return false, err
	}
	c, err := b.getObject(ctx, destKey)
	if err != nil {
		return false, err
	}
	return bytes.Equal(a, c), nil
}

// copySource builds the URL-encoded "bucket/key" CopySource value.
func copySource(bucket, key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return bucket + "/" + strings.Join(parts, "/")
}

// LogKey returns the audit log key for day.
func (b *S3Backend) LogKey(day string) string {
	return path.Join(b.config.ReportsPrefix, LogObjectName(day))
}

// AppendLog implements Backend with read-modify-write on the log object of
// the run's day. An empty day falls back to the entry's timestamp.
// See the S3Backend documentation for the concurrency caveat.
func (b *S3Backend) AppendLog(ctx context.Context, entry *types.LogEntry, day string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if day == "" {
		day = types.DeriveDay(entry.Timestamp)
	}
	key := b.LogKey(day)

	existing, err := b.getObject(ctx, key)
	header := false
	if err != nil {
		wrapped := WrapError(err, OpAppendLog, key)
		if !errors.Is(wrapped, ErrNotFound) {
			return wrapped
		}
		header = true
		existing = nil
	}

	row, err := encodeAuditRows(header, entry)
	if err != nil {
		return NewStorageError(errUnclassified, OpAppendLog, key, err)
	}

	body := make([]byte, 0, len(existing)+len(row)+1)
	body = append(body, existing...)
	if len(body) > 0 && body[len(body)-1] != '\n' {
		body = append(body, '\n')
	}
	body = append(body, row...)

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return WrapError(err, OpAppendLog, key)
	}
	return nil
}

// ReadLog implements LogReader. A missing log object yields no entries.
func (b *S3Backend) ReadLog(ctx context.Context, day string) ([]*types.LogEntry, error) {
	if day == "" {
		return nil, NewStorageError(errUnclassified, OpReadLog, b.config.ReportsPrefix,
			errors.New("s3 audit logs are per day; a day is required"))
	}
	key := b.LogKey(day)
	data, err := b.getObject(ctx, key)
	if err != nil {
		wrapped := WrapError(err, OpReadLog, key)
		if errors.Is(wrapped, ErrNotFound) {
			return nil, nil
		}
		return nil, wrapped
	}
	entries, err := decodeAuditRows(bytes.NewReader(data))
	if err != nil {
		return nil, NewStorageError(errUnclassified, OpReadLog, key, err)
	}
	return entries, nil
}

// Verify S3Backend implements Backend and LogReader.
var (
	_ Backend   = (*S3Backend)(nil)
	_ LogReader = (*S3Backend)(nil)
)
