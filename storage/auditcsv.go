package storage

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pithecene-io/triage/types"
)

// AuditHeader is the audit log header row.
var AuditHeader = []string{
	"timestamp",
	"original_key",
	"destination_key",
	"status",
	"predicted_class",
	"predicted_class_index",
	"probabilities_json",
	"error_message",
}

// encodeAuditRows renders entries as CSV, preceded by the header when
// withHeader is set.
func encodeAuditRows(withHeader bool, entries ...*types.LogEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if withHeader {
		if err := w.Write(AuditHeader); err != nil {
			return nil, err
		}
	}
	for _, e := range entries {
		if err := w.Write(auditRecord(e)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func auditRecord(e *types.LogEntry) []string {
	return []string{
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.OriginalKey,
		e.DestinationKey,
		string(e.Status),
		e.PredictedClass,
		e.ClassIndexString(),
		e.ProbabilitiesJSON,
		e.ErrorMessage,
	}
}

// decodeAuditRows parses an audit log. The header row is skipped.
// Rows written before the error_message column existed are accepted.
func decodeAuditRows(r io.Reader) ([]*types.LogEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var entries []*types.LogEntry
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
		line++
		if line == 1 && len(rec) > 0 && rec[0] == AuditHeader[0] {
			continue
		}
		if len(rec) < 7 {
			return nil, fmt.Errorf("audit row %d: expected at least 7 columns, got %d", line, len(rec))
		}
		entry, err := parseAuditRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("audit row %d: %w", line, err)
		}
		entries = append(entries, entry)
	}
}

func parseAuditRecord(rec []string) (*types.LogEntry, error) {
	ts, err := time.Parse(time.RFC3339Nano, rec[0])
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q: %w", rec[0], err)
	}
	entry := &types.LogEntry{
		Timestamp:         ts,
		OriginalKey:       rec[1],
		DestinationKey:    rec[2],
		Status:            types.Status(rec[3]),
		PredictedClass:    rec[4],
		ProbabilitiesJSON: rec[6],
	}
	if rec[5] != "" {
		idx, err := strconv.Atoi(rec[5])
		if err != nil {
			return nil, fmt.Errorf("invalid class index %q: %w", rec[5], err)
		}
		entry.PredictedClassIndex = &idx
	}
	if len(rec) > 7 {
		entry.ErrorMessage = rec[7]
	}
	return entry, nil
}
