// Package s3mem is an in-memory, single-bucket implementation of the S3
// calls the storage backend makes. It is meant for tests.
//
// Listing honors Prefix, Delimiter and continuation tokens. Objects carry an
// MD5 ETag so HeadObject can be used to compare contents. Errors can be
// injected per call and per key.
package s3mem

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Bucket is an in-memory bucket.
type Bucket struct {
	mu      sync.Mutex
	name    string
	objects map[string][]byte
	puts    int

	// PageSize limits keys per ListObjectsV2 page. Zero means unlimited.
	PageSize int

	ListErr   error
	PutErr    error
	GetErr    map[string]error
	HeadErr   map[string]error
	CopyErr   map[string]error // keyed by copy source
	DeleteErr map[string]error
}

// New returns an empty bucket.
func New(name string) *Bucket {
	return &Bucket{
		name:      name,
		objects:   make(map[string][]byte),
		GetErr:    make(map[string]error),
		HeadErr:   make(map[string]error),
		CopyErr:   make(map[string]error),
		DeleteErr: make(map[string]error),
	}
}

// Put stores body at key.
func (b *Bucket) Put(key, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = []byte(body)
}

// Has reports whether key exists.
func (b *Bucket) Has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

// Body returns the object at key, or "" if absent.
func (b *Bucket) Body(key string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.objects[key])
}

// Keys returns every key with prefix, sorted.
func (b *Bucket) Keys(prefix string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var keys []string
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Puts counts successful PutObject calls.
func (b *Bucket) Puts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.puts
}

func etag(data []byte) string {
	sum := md5.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func noSuchKey(key string) error {
	return &s3types.NoSuchKey{Message: aws.String("The specified key does not exist: " + key)}
}

// ListObjectsV2 lists keys under Prefix. With a Delimiter, keys containing
// it after the prefix are rolled up into CommonPrefixes.
func (b *Bucket) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ListErr != nil {
		return nil, b.ListErr
	}

	prefix := aws.ToString(in.Prefix)
	delim := aws.ToString(in.Delimiter)

	var entries []string // keys and common prefixes, sorted
	isPrefix := make(map[string]bool)
	for k := range b.objects {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if delim != "" {
			if i := strings.Index(k[len(prefix):], delim); i >= 0 {
				cp := k[:len(prefix)+i+len(delim)]
				if !isPrefix[cp] {
					isPrefix[cp] = true
					entries = append(entries, cp)
				}
				continue
			}
		}
		entries = append(entries, k)
	}
	sort.Strings(entries)

	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		start, _ = strconv.Atoi(tok)
	}
	end := len(entries)
	if b.PageSize > 0 && start+b.PageSize < end {
		end = start + b.PageSize
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(entries))}
	for _, e := range entries[start:end] {
		if isPrefix[e] {
			out.CommonPrefixes = append(out.CommonPrefixes, s3types.CommonPrefix{Prefix: aws.String(e)})
			continue
		}
		out.Contents = append(out.Contents, s3types.Object{
			Key:  aws.String(e),
			Size: aws.Int64(int64(len(b.objects[e]))),
			ETag: aws.String(etag(b.objects[e])),
		})
	}
	if end < len(entries) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

// GetObject returns a copy of the object.
func (b *Bucket) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := aws.ToString(in.Key)
	if err := b.GetErr[key]; err != nil {
		return nil, err
	}
	data, ok := b.objects[key]
	if !ok {
		return nil, noSuchKey(key)
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(append([]byte(nil), data...))),
		ContentLength: aws.Int64(int64(len(data))),
		ETag:          aws.String(etag(data)),
	}, nil
}

// HeadObject returns size and ETag. A missing key yields *types.NotFound,
// as the real service does for HEAD.
func (b *Bucket) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := aws.ToString(in.Key)
	if err := b.HeadErr[key]; err != nil {
		return nil, err
	}
	data, ok := b.objects[key]
	if !ok {
		return nil, &s3types.NotFound{Message: aws.String("Not Found")}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(data))),
		ETag:          aws.String(etag(data)),
	}, nil
}

// PutObject stores the body.
func (b *Bucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.PutErr != nil {
		return nil, b.PutErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	b.objects[aws.ToString(in.Key)] = data
	b.puts++
	return &s3.PutObjectOutput{ETag: aws.String(etag(data))}, nil
}

// CopyObject copies within the bucket. CopySource is "bucket/escaped-key".
func (b *Bucket) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	src, err := url.PathUnescape(strings.TrimPrefix(aws.ToString(in.CopySource), b.name+"/"))
	if err != nil {
		return nil, err
	}
	if err := b.CopyErr[src]; err != nil {
		return nil, err
	}
	data, ok := b.objects[src]
	if !ok {
		return nil, noSuchKey(src)
	}
	b.objects[aws.ToString(in.Key)] = append([]byte(nil), data...)
	return &s3.CopyObjectOutput{}, nil
}

// DeleteObject removes key. Deleting a missing key succeeds.
func (b *Bucket) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := aws.ToString(in.Key)
	if err := b.DeleteErr[key]; err != nil {
		return nil, err
	}
	delete(b.objects, key)
	return &s3.DeleteObjectOutput{}, nil
}
