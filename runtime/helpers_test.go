package runtime

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pithecene-io/triage/classify"
	"github.com/pithecene-io/triage/log"
	"github.com/pithecene-io/triage/storage"
	"github.com/pithecene-io/triage/storage/s3mem"
	"github.com/pithecene-io/triage/types"
)

var testStart = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// fakeClassifier answers with a canned function and records every call.
type fakeClassifier struct {
	mu      sync.Mutex
	calls   [][]string
	respond func(images []classify.Image) ([]types.PredictionResult, error)
}

func (f *fakeClassifier) Classify(_ context.Context, images []classify.Image) ([]types.PredictionResult, error) {
	names := make([]string, len(images))
	for i, img := range images {
		names[i] = img.Filename
	}
	f.mu.Lock()
	f.calls = append(f.calls, names)
	f.mu.Unlock()
	if f.respond == nil {
		return predictAll(images), nil
	}
	return f.respond(images)
}

func (f *fakeClassifier) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

func testPrediction() types.Prediction {
	return types.Prediction{
		Class:      "shirt",
		ClassIndex: 5,
		Probabilities: map[string]float64{
			"shirt": 0.9,
			"pants": 0.1,
		},
	}
}

func predictAll(images []classify.Image) []types.PredictionResult {
	out := make([]types.PredictionResult, len(images))
	for i, img := range images {
		out[i] = types.OK(img.Filename, testPrediction())
	}
	return out
}

func items(names ...string) []*types.Item {
	out := make([]*types.Item, len(names))
	for i, n := range names {
		out[i] = types.NewItem("new/" + n)
	}
	return out
}

// fsFixture is an FSBackend rooted in a temp dir.
type fsFixture struct {
	root    string
	backend *storage.FSBackend
}

func newFSFixture(t *testing.T, files ...string) *fsFixture {
	t.Helper()
	root := t.TempDir()
	b, err := storage.NewFSBackend(storage.FSConfig{
		NewDir:       filepath.Join(root, "new"),
		ProcessedDir: filepath.Join(root, "processed"),
		FailedDir:    filepath.Join(root, "failed"),
		ReportsDir:   filepath.Join(root, "reports"),
	})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	fx := &fsFixture{root: root, backend: b}
	for _, f := range files {
		fx.addFile(t, f)
	}
	return fx
}

func (fx *fsFixture) addFile(t *testing.T, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(fx.root, "new", name), []byte("img:"+name), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func (fx *fsFixture) exists(parts ...string) bool {
	_, err := os.Stat(filepath.Join(append([]string{fx.root}, parts...)...))
	return err == nil
}

func (fx *fsFixture) logEntries(t *testing.T) []*types.LogEntry {
	t.Helper()
	entries, err := fx.backend.ReadLog(t.Context(), "")
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	return entries
}

func (fx *fsFixture) store() storage.Backend { return fx.backend }
func (fx *fsFixture) kind() string { return types.BackendFS }

func (fx *fsFixture) addNested(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(fx.root, "new", dir), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(fx.root, "new", dir, name), []byte("nested:"+name), 0o644); err != nil {
		t.Fatalf("write %s/%s: %v", dir, name, err)
	}
}

func (fx *fsFixture) place(t *testing.T, loc types.Location, name, body string) {
	t.Helper()
	dir := filepath.Join(fx.root, string(loc), testDay)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func (fx *fsFixture) pending(name string) bool { return fx.exists("new", name) }

func (fx *fsFixture) at(loc types.Location, name string) bool {
	return fx.exists(string(loc), testDay, name)
}

func (fx *fsFixture) body(loc types.Location, name string) string {
	data, _ := os.ReadFile(fx.destKey(loc, name))
	return string(data)
}

func (fx *fsFixture) destKey(loc types.Location, name string) string {
	return filepath.Join(fx.root, string(loc), testDay, name)
}

// s3Fixture is an S3Backend over an in-memory bucket with default prefixes.
type s3Fixture struct {
	bucket  *s3mem.Bucket
	backend *storage.S3Backend
}

func newS3Fixture(t *testing.T, files ...string) *s3Fixture {
	t.Helper()
	bucket := s3mem.New("bucket")
	b, err := storage.NewS3BackendWithClient(storage.S3Config{Bucket: "bucket"}, bucket)
	if err != nil {
		t.Fatalf("new s3 backend: %v", err)
	}
	fx := &s3Fixture{bucket: bucket, backend: b}
	for _, f := range files {
		fx.addFile(t, f)
	}
	return fx
}

func (fx *s3Fixture) store() storage.Backend { return fx.backend }
func (fx *s3Fixture) kind() string { return types.BackendS3 }

func (fx *s3Fixture) addFile(_ *testing.T, name string) {
	fx.bucket.Put(storage.DefaultNewPrefix+name, "img:"+name)
}

func (fx *s3Fixture) addNested(_ *testing.T, dir, name string) {
	fx.bucket.Put(storage.DefaultNewPrefix+dir+"/"+name, "nested:"+name)
}

func (fx *s3Fixture) place(_ *testing.T, loc types.Location, name, body string) {
	fx.bucket.Put(fx.destKey(loc, name), body)
}

func (fx *s3Fixture) pending(name string) bool {
	return fx.bucket.Has(storage.DefaultNewPrefix + name)
}

func (fx *s3Fixture) at(loc types.Location, name string) bool {
	return fx.bucket.Has(fx.destKey(loc, name))
}

func (fx *s3Fixture) body(loc types.Location, name string) string {
	return fx.bucket.Body(fx.destKey(loc, name))
}

func (fx *s3Fixture) destKey(loc types.Location, name string) string {
	prefix := storage.DefaultProcessedPrefix
	if loc == types.LocationFailed {
		prefix = storage.DefaultFailedPrefix
	}
	return prefix + testDay + "/" + name
}

func (fx *s3Fixture) logEntries(t *testing.T) []*types.LogEntry {
	t.Helper()
	entries, err := fx.backend.ReadLog(t.Context(), testDay)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	return entries
}

// backendFixture seeds and inspects a backend in terms of lifecycle
// locations, so orchestrator scenarios can run against either one.
type backendFixture interface {
	store() storage.Backend
	kind() string
	addFile(t *testing.T, name string)
	addNested(t *testing.T, dir, name string)
	place(t *testing.T, loc types.Location, name, body string)
	pending(name string) bool
	at(loc types.Location, name string) bool
	body(loc types.Location, name string) string
	destKey(loc types.Location, name string) string
	logEntries(t *testing.T) []*types.LogEntry
}

var backendFixtures = []struct {
	name string
	new  func(t *testing.T, files ...string) backendFixture
}{
	{"fs", func(t *testing.T, files ...string) backendFixture { return newFSFixture(t, files...) }},
	{"s3", func(t *testing.T, files ...string) backendFixture { return newS3Fixture(t, files...) }},
}

// forEachBackend runs fn once per backend as a subtest.
func forEachBackend(t *testing.T, fn func(t *testing.T, newFixture func(t *testing.T, files ...string) backendFixture)) {
	t.Helper()
	for _, bf := range backendFixtures {
		t.Run(bf.name, func(t *testing.T) {
			fn(t, bf.new)
		})
	}
}

// newFixtureConfig is newTestConfig with the run metadata matching fx.
func newFixtureConfig(fx backendFixture, backend storage.Backend, classifier classify.Classifier) *RunConfig {
	cfg := newTestConfig(backend, classifier)
	cfg.RunMeta.Backend = fx.kind()
	return cfg
}

// faultyBackend wraps a Backend and injects failures by item filename.
type faultyBackend struct {
	storage.Backend

	listErr     error
	readErr     map[string]error
	relocateErr map[string]error
	logErr      map[string]error
}

func (f *faultyBackend) ListPending(ctx context.Context) ([]*types.Item, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Backend.ListPending(ctx)
}

func (f *faultyBackend) ReadBytes(ctx context.Context, item *types.Item) ([]byte, error) {
	if err, ok := f.readErr[item.Filename]; ok {
		return nil, err
	}
	return f.Backend.ReadBytes(ctx, item)
}

func (f *faultyBackend) Relocate(ctx context.Context, item *types.Item, dest types.Location, day string) (string, error) {
	if err, ok := f.relocateErr[item.Filename]; ok {
		return "attempted/" + item.Filename, err
	}
	return f.Backend.Relocate(ctx, item, dest, day)
}

func (f *faultyBackend) AppendLog(ctx context.Context, entry *types.LogEntry, day string) error {
	if err, ok := f.logErr[filepath.Base(entry.OriginalKey)]; ok {
		return err
	}
	return f.Backend.AppendLog(ctx, entry, day)
}

// recordingSleeper records requested delays without waiting.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func (s *recordingSleeper) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delays)
}

func newTestConfig(backend storage.Backend, classifier classify.Classifier) *RunConfig {
	return &RunConfig{
		RunMeta:    &types.RunMeta{RunID: "run-001", Backend: types.BackendFS},
		Backend:    backend,
		Classifier: classifier,
		BatchSize:  10,
		BatchDelay: time.Second,
		Sleep:      (&recordingSleeper{}).Sleep,
		Now:        func() time.Time { return testStart },
		Logger:     log.NewNop(),
	}
}

func execute(t *testing.T, cfg *RunConfig) *RunResult {
	t.Helper()
	orch, err := NewRunOrchestrator(cfg)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	result, err := orch.Execute(t.Context())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	return result
}
