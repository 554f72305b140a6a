// Package types defines core domain types for the triage runtime.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"fmt"
	"path"
	"strings"
)

// Location is a lifecycle location. It is encoded by where an artifact
// lives in the backend, never stored as a field.
type Location string

const (
	// LocationNew holds artifacts awaiting classification.
	LocationNew Location = "new"
	// LocationProcessed holds artifacts with a successful prediction.
	LocationProcessed Location = "processed"
	// LocationFailed holds artifacts whose classification failed.
	LocationFailed Location = "failed"
)

// IsTerminal reports whether l is a terminal lifecycle location.
func (l Location) IsTerminal() bool {
	return l == LocationProcessed || l == LocationFailed
}

// Item identifies one pending artifact.
// Items are created by discovery and passed by pointer through the pipeline.
type Item struct {
	// Key is the backend-specific identifier (absolute path or object key).
	Key string
	// Filename is the basename of Key and the join key with service results.
	Filename string
}

// NewItem creates an Item from a backend key. Filename is derived from the
// last slash-separated element of key; callers with OS paths should pass
// filepath.ToSlash(key) or use NewItemWithFilename.
func NewItem(key string) *Item {
	return &Item{Key: key, Filename: path.Base(key)}
}

// NewItemWithFilename creates an Item with an explicit filename.
func NewItemWithFilename(key, filename string) *Item {
	return &Item{Key: key, Filename: filename}
}

func (i *Item) String() string {
	return i.Key
}

// Batch is an ordered group of items submitted together.
type Batch struct {
	// Index is the zero-based position of the batch within a run.
	Index int
	// Items holds at most the configured batch size.
	Items []*Item
}

// Len returns the number of items in the batch.
func (b Batch) Len() int {
	return len(b.Items)
}

// DefaultExtensions are the image extensions recognized by discovery.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png"}

// HasExtension reports whether name ends in one of exts.
// Matching is case-insensitive, so "IMG.JPG" matches ".jpg".
func HasExtension(name string, exts []string) bool {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// NormalizeExtensions lowercases exts and ensures a leading dot.
func NormalizeExtensions(exts []string) ([]string, error) {
	if len(exts) == 0 {
		return append([]string(nil), DefaultExtensions...), nil
	}
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || e == "." {
			return nil, fmt.Errorf("invalid extension %q", e)
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out, nil
}
