package config

import (
	"strings"
	"testing"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("TRIAGE_SET", "value")
	t.Setenv("TRIAGE_EMPTY", "")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set", "${TRIAGE_SET}", "value"},
		{"unset", "${TRIAGE_UNSET}", ""},
		{"default when unset", "${TRIAGE_UNSET:-fallback}", "fallback"},
		{"default when empty", "${TRIAGE_EMPTY:-fallback}", "fallback"},
		{"default ignored when set", "${TRIAGE_SET:-fallback}", "value"},
		{"required and set", "${TRIAGE_SET:?set me}", "value"},
		{"several", "${TRIAGE_SET}-${TRIAGE_UNSET:-x}-${TRIAGE_SET}", "value-x-value"},
		{"no references", "no variables here", "no variables here"},
		{"bare dollar untouched", "$TRIAGE_SET and ${not valid}", "$TRIAGE_SET and ${not valid}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandEnv(tt.input)
			if err != nil {
				t.Fatalf("ExpandEnv: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExpandEnv_RequiredMissing(t *testing.T) {
	t.Setenv("TRIAGE_EMPTY", "")

	_, err := ExpandEnv("url: ${TRIAGE_UNSET:?lock url}\nkey: ${TRIAGE_EMPTY:?}")
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"${TRIAGE_UNSET}: lock url", "${TRIAGE_EMPTY}: required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestExpandEnv_NestedInYAML(t *testing.T) {
	t.Setenv("TRIAGE_BUCKET", "refunds")
	t.Setenv("TRIAGE_REGION", "eu-west-1")

	got, err := ExpandEnv("storage:\n  s3:\n    bucket: ${TRIAGE_BUCKET}\n    region: ${TRIAGE_REGION}")
	if err != nil {
		t.Fatalf("ExpandEnv: %v", err)
	}
	want := "storage:\n  s3:\n    bucket: refunds\n    region: eu-west-1"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}
