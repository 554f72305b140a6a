package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pithecene-io/triage/types"
)

// DefaultLogFileName is the filesystem audit log file name.
const DefaultLogFileName = "classification_log.csv"

// FSConfig configures the filesystem backend.
type FSConfig struct {
	// NewDir holds pending images (required).
	NewDir string
	// ProcessedDir is the base of dated processed directories (required).
	ProcessedDir string
	// FailedDir is the base of dated failed directories (required).
	FailedDir string
	// ReportsDir holds the audit log (required).
	ReportsDir string
	// LogFileName defaults to classification_log.csv.
	LogFileName string
	// Extensions recognized by discovery; matched case-insensitively.
	// Defaults to .jpg, .jpeg, .png.
	Extensions []string
}

// Validate checks that all directories are configured.
func (c *FSConfig) Validate() error {
	switch {
	case c.NewDir == "":
		return errors.New("fs backend: new_dir is required")
	case c.ProcessedDir == "":
		return errors.New("fs backend: processed_dir is required")
	case c.FailedDir == "":
		return errors.New("fs backend: failed_dir is required")
	case c.ReportsDir == "":
		return errors.New("fs backend: reports_dir is required")
	}
	return nil
}

// FSBackend stores artifacts in local directories.
//
// Relocate is an os.Rename and is atomic when source and destination share a
// filesystem. AppendLog opens the log in append mode, so concurrent appends
// from overlapping runs do not overwrite each other.
type FSBackend struct {
	config     FSConfig
	extensions []string
	logPath    string

	mu sync.Mutex // serializes AppendLog header detection
}

// NewFSBackend creates the backend and ensures all directories exist.
func NewFSBackend(cfg FSConfig) (*FSBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	exts, err := types.NormalizeExtensions(cfg.Extensions)
	if err != nil {
		return nil, fmt.Errorf("fs backend: %w", err)
	}
	if cfg.LogFileName == "" {
		cfg.LogFileName = DefaultLogFileName
	}

	for _, dir := range []string{cfg.NewDir, cfg.ProcessedDir, cfg.FailedDir, cfg.ReportsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, WrapError(err, OpInit, dir)
		}
	}

	return &FSBackend{
		config:     cfg,
		extensions: exts,
		logPath:    filepath.Join(cfg.ReportsDir, cfg.LogFileName),
	}, nil
}

// Name implements Backend.
func (b *FSBackend) Name() string { return types.BackendFS }

// LogPath returns the audit log file path.
func (b *FSBackend) LogPath() string { return b.logPath }

// ListPending implements Backend.
func (b *FSBackend) ListPending(_ context.Context) ([]*types.Item, error) {
	entries, err := os.ReadDir(b.config.NewDir)
	if err != nil {
		return nil, WrapError(err, OpList, b.config.NewDir)
	}

	var items []*types.Item
	for _, e := range entries {
		if e.IsDir() || !e.Type().IsRegular() {
			continue
		}
		if !types.HasExtension(e.Name(), b.extensions) {
			continue
		}
		key := filepath.Join(b.config.NewDir, e.Name())
		items = append(items, types.NewItemWithFilename(key, e.Name()))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	return items, nil
}

// ReadBytes implements Backend.
func (b *FSBackend) ReadBytes(_ context.Context, item *types.Item) ([]byte, error) {
	data, err := os.ReadFile(item.Key)
	if err != nil {
		return nil, WrapError(err, OpRead, item.Key)
	}
	return data, nil
}

// Relocate implements Backend with a rename into <base>/<day>/<filename>.
// An existing destination is never overwritten; see Backend.Relocate.
func (b *FSBackend) Relocate(_ context.Context, item *types.Item, dest types.Location, day string) (string, error) {
	base, err := b.locationDir(dest)
	if err != nil {
		return "", NewStorageError(errUnclassified, OpRelocate, item.Key, err)
	}
	dir := filepath.Join(base, day)
	destKey := filepath.Join(dir, item.Filename)

	if _, err := os.Stat(item.Key); err != nil {
		return destKey, WrapError(err, OpRelocate, item.Key)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return destKey, WrapError(err, OpRelocate, dir)
	}
	if _, err := os.Lstat(destKey); err == nil {
		same, err := sameFile(item.Key, destKey)
		if err != nil {
			return destKey, WrapError(err, OpRelocate, item.Key)
		}
		if !same {
			return destKey, NewStorageError(ErrAlreadyExists, OpRelocate, destKey,
				fmt.Errorf("destination %s holds a different file", destKey))
		}
		if err := os.Remove(item.Key); err != nil {
			return destKey, WrapError(err, OpRelocate, item.Key)
		}
		return destKey, nil
	}
	if err := os.Rename(item.Key, destKey); err != nil {
		return destKey, WrapError(err, OpRelocate, item.Key)
	}
	return destKey, nil
}

// sameFile reports whether two regular files have identical contents.
func sameFile(a, b string) (bool, error) {
	ia, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	ib, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	if !ib.Mode().IsRegular() || ia.Size() != ib.Size() {
		return false, nil
	}
	da, err := os.ReadFile(a)
	if err != nil {
		return false, err
	}
	db, err := os.ReadFile(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(da, db), nil
}

func (b *FSBackend) locationDir(loc types.Location) (string, error) {
	switch loc {
	case types.LocationProcessed:
		return b.config.ProcessedDir, nil
	case types.LocationFailed:
		return b.config.FailedDir, nil
	default:
		return "", fmt.Errorf("cannot relocate to non-terminal location %q", loc)
	}
}

// AppendLog implements Backend. The header is written when the file is empty.
// The filesystem log is a single file for all days, so day is unused.
func (b *FSBackend) AppendLog(_ context.Context, entry *types.LogEntry, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, err := os.OpenFile(b.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return WrapError(err, OpAppendLog, b.logPath)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return WrapError(err, OpAppendLog, b.logPath)
	}

	data, err := encodeAuditRows(info.Size() == 0, entry)
	if err != nil {
		return NewStorageError(errUnclassified, OpAppendLog, b.logPath, err)
	}
	if _, err := f.Write(data); err != nil {
		return WrapError(err, OpAppendLog, b.logPath)
	}
	return nil
}

// ReadLog implements LogReader. The filesystem log is a single file, so
// entries are filtered by the UTC day of their timestamp. An empty day
// returns every entry. A missing log yields no entries.
func (b *FSBackend) ReadLog(_ context.Context, day string) ([]*types.LogEntry, error) {
	f, err := os.Open(b.logPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, WrapError(err, OpReadLog, b.logPath)
	}
	defer func() { _ = f.Close() }()

	entries, err := decodeAuditRows(f)
	if err != nil {
		return nil, NewStorageError(errUnclassified, OpReadLog, b.logPath, err)
	}
	if day == "" {
		return entries, nil
	}
	filtered := entries[:0]
	for _, e := range entries {
		if types.DeriveDay(e.Timestamp) == day {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

// Verify FSBackend implements Backend and LogReader.
var (
	_ Backend   = (*FSBackend)(nil)
	_ LogReader = (*FSBackend)(nil)
)
