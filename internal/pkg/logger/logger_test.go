package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestRedactEmail(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"jane.doe@acme.com", "ja***@acme.com"},
		{"ab@acme.com", "***@acme.com"},
		{"not-an-email", "***@***"},
		{"trailing@", "***@***"},
		{"  jo@x.io ", "***@x.io"},
	}
	for _, tt := range tests {
		if got := RedactEmail(tt.in); got != tt.want {
			t.Errorf("RedactEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{"debug": DEBUG, "": INFO, "INFO": INFO, "warning": WARN, "error": ERROR} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestLoggerRedactsAndFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, INFO, true).Named("batch")

	l.Debug("hidden")
	l.Info("processed", "recipient_email", "jane@acme.com", "note", "contact bob@corp.io")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]string
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry["component"] != "batch" {
		t.Errorf("component = %q", entry["component"])
	}
	if entry["recipient_email"] != "ja***@acme.com" {
		t.Errorf("recipient_email = %q", entry["recipient_email"])
	}
	if entry["note"] != "contact bo***@corp.io" {
		t.Errorf("note = %q", entry["note"])
	}
}
