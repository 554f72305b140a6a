package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/urfave/cli/v2"
)

// classifierServer fakes the classification service. Files whose name
// starts with "bad" get a per-item error; everything else is a shirt.
type classifierServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests int
	status   int // non-zero forces a transport failure
	health   string
}

func newClassifierServer(t *testing.T) *classifierServer {
	t.Helper()
	cs := &classifierServer{health: `{"status":"ok","model_loaded":true}`}
	mux := http.NewServeMux()
	mux.HandleFunc("/predict", cs.predict)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, cs.health)
	})
	cs.Server = httptest.NewServer(mux)
	t.Cleanup(cs.Close)
	return cs
}

func (cs *classifierServer) predict(w http.ResponseWriter, r *http.Request) {
	cs.mu.Lock()
	cs.requests++
	status := cs.status
	cs.mu.Unlock()

	if status != 0 {
		http.Error(w, "model crashed", status)
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var out []map[string]any
	for _, fh := range r.MultipartForm.File["image_files"] {
		if strings.HasPrefix(fh.Filename, "bad") {
			out = append(out, map[string]any{"filename": fh.Filename, "error": "cannot identify image file"})
			continue
		}
		out = append(out, map[string]any{
			"filename":              fh.Filename,
			"predicted_class":       "shirt",
			"predicted_class_index": 5,
			"probabilities":         map[string]float64{"shirt": 0.9, "dress": 0.1},
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (cs *classifierServer) requestCount() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.requests
}

func (cs *classifierServer) predictURL() string { return cs.URL + "/predict" }

// workspace is a filesystem layout plus a config file pointing at it.
type workspace struct {
	root       string
	configPath string
}

func (ws *workspace) dir(name string) string { return filepath.Join(ws.root, name) }

func newWorkspace(t *testing.T, classifierURL string, extra string) *workspace {
	t.Helper()
	root := t.TempDir()
	ws := &workspace{root: root}
	for _, d := range []string{"new", "processed", "failed", "reports"} {
		if err := os.MkdirAll(ws.dir(d), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	cfg := fmt.Sprintf(`storage:
  backend: fs
  fs:
    new_dir: %s
    processed_dir: %s
    failed_dir: %s
    reports_dir: %s
classifier:
  url: %s
batch:
  size: 2
  delay: 0s
logging:
  level: error
%s`, ws.dir("new"), ws.dir("processed"), ws.dir("failed"), ws.dir("reports"), classifierURL, extra)
	ws.configPath = writeConfig(t, cfg)
	return ws
}

func (ws *workspace) addImages(t *testing.T, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(ws.dir("new"), n), []byte("img:"+n), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// filed returns the dated path of name under location, or "" if absent.
func (ws *workspace) filed(t *testing.T, location, name string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(ws.dir(location), "*", name))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) == 0 {
		return ""
	}
	return matches[0]
}

func (ws *workspace) pending(t *testing.T, name string) bool {
	t.Helper()
	_, err := os.Stat(filepath.Join(ws.dir("new"), name))
	return err == nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "triage.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// runApp runs the CLI with os.Exit suppressed and returns stdout.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := cli.NewApp()
	app.Name = "triage"
	app.Commands = Commands("test")
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"triage"}, args...))
	return out.String(), err
}

// exitCode maps a returned error to the process exit code main would use.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return 1
}
