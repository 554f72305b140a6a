// Package lode persists run summaries through a Lode store.
//
// Each run writes one summary object at a Hive-style path:
//
//	runs/day=<YYYY-MM-DD>/run_id=<id>/summary.<json|msgpack>
//
// The store is a filesystem root or an S3 bucket/prefix. Summaries are
// written once per run and never rewritten.
package lode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/triage/runtime"
	"github.com/pithecene-io/triage/storage"
)

// SummaryStore writes run reports to a Lode store.
type SummaryStore struct {
	factory lode.StoreFactory
	codec   Codec

	storeOnce sync.Once
	store     lode.Store
	storeErr  error
}

// NewSummaryStore creates a store over factory with the named codec.
// Use lode.NewMemoryFactory() for testing.
func NewSummaryStore(factory lode.StoreFactory, format string) (*SummaryStore, error) {
	if factory == nil {
		return nil, errors.New("summary store requires a store factory")
	}
	codec, err := CodecFor(format)
	if err != nil {
		return nil, err
	}
	return &SummaryStore{factory: factory, codec: codec}, nil
}

// NewFSSummaryStore creates a store rooted at a local directory.
func NewFSSummaryStore(root, format string) (*SummaryStore, error) {
	if root == "" {
		return nil, errors.New("summary store root is required")
	}
	return NewSummaryStore(lode.NewFSFactory(root), format)
}

// Path returns the object path for a run's summary.
func (s *SummaryStore) Path(day, runID string) string {
	return fmt.Sprintf("runs/day=%s/run_id=%s/summary.%s", day, runID, s.codec.Extension())
}

// Put encodes report and writes it. Returns the object path.
func (s *SummaryStore) Put(ctx context.Context, report *runtime.RunReport) (string, error) {
	if report == nil {
		return "", errors.New("summary store: nil report")
	}
	if report.Day == "" || report.RunID == "" {
		return "", errors.New("summary store: report requires day and run_id")
	}
	if strings.ContainsAny(report.RunID, "/\\") {
		return "", fmt.Errorf("summary store: run_id %q must not contain path separators", report.RunID)
	}

	data, err := s.codec.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("summary store: encode: %w", err)
	}

	store, err := s.getOrCreateStore()
	if err != nil {
		return "", storage.WrapError(err, storage.OpInit, "")
	}

	path := s.Path(report.Day, report.RunID)
	if err := store.Put(ctx, path, bytes.NewReader(data)); err != nil {
		return path, storage.WrapError(err, storage.OpPutSummary, path)
	}
	return path, nil
}

// Get reads back the summary written for a run.
func (s *SummaryStore) Get(ctx context.Context, day, runID string) (*runtime.RunReport, error) {
	store, err := s.getOrCreateStore()
	if err != nil {
		return nil, storage.WrapError(err, storage.OpInit, "")
	}

	path := s.Path(day, runID)
	rc, err := store.Get(ctx, path)
	if err != nil {
		return nil, storage.WrapError(err, storage.OpGetSummary, path)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("summary store: read %s: %w", path, err)
	}
	var report runtime.RunReport
	if err := s.codec.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("summary store: decode %s: %w", path, err)
	}
	return &report, nil
}

// getOrCreateStore lazily initializes the Store from the factory.
func (s *SummaryStore) getOrCreateStore() (lode.Store, error) {
	s.storeOnce.Do(func() {
		s.store, s.storeErr = s.factory()
	})
	return s.store, s.storeErr
}
