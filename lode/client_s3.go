package lode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"

	"github.com/pithecene-io/triage/storage"
)

// S3Config holds configuration for an S3 summary store.
type S3Config struct {
	storage.ClientConfig
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// ParseS3Path parses a path in format "bucket/prefix" or "bucket".
func ParseS3Path(path string) (bucket, prefix string) {
	parts := strings.SplitN(path, "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = parts[1]
	}
	return bucket, prefix
}

// NewS3SummaryStore creates a summary store backed by S3.
// Uses AWS SDK default credential chain (env vars, shared config, IAM role).
func NewS3SummaryStore(ctx context.Context, cfg S3Config, format string) (*SummaryStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s3Client, err := storage.NewS3Client(ctx, cfg.ClientConfig)
	if err != nil {
		return nil, fmt.Errorf("summary store: %w", err)
	}

	// StoreFactory is func() (Store, error)
	factory := func() (lode.Store, error) {
		return lodes3.New(s3Client, lodes3.Config{
			Bucket: cfg.Bucket,
			Prefix: cfg.Prefix,
		})
	}
	return NewSummaryStore(factory, format)
}
