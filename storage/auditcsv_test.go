package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/triage/types"
)

func TestAuditRows_QuotesEmbeddedCommas(t *testing.T) {
	entry := &types.LogEntry{
		Timestamp:         time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		OriginalKey:       "new-images/a.jpg",
		Status:            types.StatusFailed,
		ProbabilitiesJSON: `{"a":0.5,"b":0.5}`,
		ErrorMessage:      "bad request, retry later",
	}
	data, err := encodeAuditRows(false, entry)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(data), `"{""a"":0.5,""b"":0.5}"`) {
		t.Errorf("probabilities not quoted: %s", data)
	}

	entries, err := decodeAuditRows(strings.NewReader(string(data)))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].ErrorMessage != "bad request, retry later" {
		t.Errorf("unexpected decode: %+v", entries)
	}
}

func TestDecodeAuditRows_SevenColumnRows(t *testing.T) {
	input := "timestamp,original_key,destination_key,status,predicted_class,predicted_class_index,probabilities_json\n" +
		"2026-03-01T00:00:00Z,a.jpg,p/a.jpg,processed,hat,1,{}\n"
	entries, err := decodeAuditRows(strings.NewReader(input))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].PredictedClass != "hat" || entries[0].ErrorMessage != "" {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestDecodeAuditRows_Malformed(t *testing.T) {
	if _, err := decodeAuditRows(strings.NewReader("not-a-time,a,b,c,d,e,f\n")); err == nil {
		t.Error("expected error for bad timestamp")
	}
	if _, err := decodeAuditRows(strings.NewReader("2026-03-01T00:00:00Z,a\n")); err == nil {
		t.Error("expected error for short row")
	}
}
