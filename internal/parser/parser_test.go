package parser

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/atikulmunna/strand/internal/model"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var fixedNow = time.Date(2026, 2, 17, 12, 0, 0, 0, time.UTC)

func withFixedClock(t *testing.T) {
	t.Helper()
	prev := Now
	Now = func() time.Time { return fixedNow }
	t.Cleanup(func() { Now = prev })
}

// ignoreID compares entries without the synthesized identifier.
var ignoreID = cmpopts.IgnoreFields(model.LogEntry{}, "ID")

func TestParseLineDelimited(t *testing.T) {
	withFixedClock(t)

	entry := ParseLine("2024-01-01T10:00:00Z — disk usage high")

	want := model.LogEntry{
		Message:   "disk usage high",
		Timestamp: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		Level:     model.LevelInfo,
	}
	if diff := cmp.Diff(want, entry, ignoreID); diff != "" {
		t.Errorf("ParseLine mismatch (-want +got):\n%s", diff)
	}
	if entry.ID == "" {
		t.Error("expected a synthesized id")
	}
}

func TestParseLineKeepsMessageAfterFirstDelimiter(t *testing.T) {
	entry := ParseLine("2024-01-01T10:00:00Z — a — b")
	if entry.Message != "a — b" {
		t.Errorf("expected message 'a — b', got %q", entry.Message)
	}
}

func TestParseLineInvalidTimestampFailsOpen(t *testing.T) {
	withFixedClock(t)

	entry := ParseLine("yesterday-ish — backup finished")

	if entry.Message != "backup finished" {
		t.Errorf("expected message 'backup finished', got %q", entry.Message)
	}
	if !entry.Timestamp.Equal(fixedNow) {
		t.Errorf("expected receipt time %v, got %v", fixedNow, entry.Timestamp)
	}
}

func TestParseLinePlain(t *testing.T) {
	withFixedClock(t)

	tests := []string{
		"server started",
		"2024-01-01T10:00:00Z - hyphen is not the delimiter",
		"",
		"—no spaces—",
	}
	for _, line := range tests {
		t.Run(line, func(t *testing.T) {
			entry := ParseLine(line)
			if entry.Message != line {
				t.Errorf("expected whole string as message, got %q", entry.Message)
			}
			if entry.Level != model.LevelInfo {
				t.Errorf("expected level info, got %s", entry.Level)
			}
			if !entry.Timestamp.Equal(fixedNow) {
				t.Errorf("expected receipt time, got %v", entry.Timestamp)
			}
		})
	}
}

func TestNormalizeObject(t *testing.T) {
	withFixedClock(t)

	entries, ok := Normalize(json.RawMessage(`{"id":"abc","message":"oom killed","level":"error","timestamp":"2026-02-17T11:00:00Z"}`))
	if !ok {
		t.Fatal("expected object with message to be accepted")
	}

	want := []model.LogEntry{{
		ID:        "abc",
		Message:   "oom killed",
		Timestamp: time.Date(2026, 2, 17, 11, 0, 0, 0, time.UTC),
		Level:     model.LevelError,
	}}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeObjectDefaults(t *testing.T) {
	withFixedClock(t)

	entries, ok := Normalize(json.RawMessage(`{"message":"hello"}`))
	if !ok || len(entries) != 1 {
		t.Fatalf("expected one entry, got %d (ok=%v)", len(entries), ok)
	}

	e := entries[0]
	if e.ID == "" {
		t.Error("expected synthesized id")
	}
	if e.Level != model.LevelInfo {
		t.Errorf("expected default level info, got %s", e.Level)
	}
	if !e.Timestamp.Equal(fixedNow) {
		t.Errorf("expected receipt time, got %v", e.Timestamp)
	}
}

func TestNormalizeObjectNumericFields(t *testing.T) {
	entries, ok := Normalize(json.RawMessage(`{"id":12345678901234567890,"message":42,"timestamp":1704103200000}`))
	if !ok || len(entries) != 1 {
		t.Fatalf("expected one entry, got %d (ok=%v)", len(entries), ok)
	}

	e := entries[0]
	if e.ID != "12345678901234567890" {
		t.Errorf("expected id preserved verbatim, got %q", e.ID)
	}
	if e.Message != "42" {
		t.Errorf("expected message '42', got %q", e.Message)
	}
	if want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC); !e.Timestamp.Equal(want) {
		t.Errorf("expected %v, got %v", want, e.Timestamp)
	}
}

func TestNormalizeArrayMixed(t *testing.T) {
	withFixedClock(t)

	payload := json.RawMessage(`[
		"2024-01-01T10:00:00Z — first",
		{"message":"second","level":"warning"},
		"third",
		{"id":"x","message":"fourth","level":"debug"}
	]`)

	entries, ok := Normalize(payload)
	if !ok {
		t.Fatal("expected array to be accepted")
	}

	want := []model.LogEntry{
		{Message: "first", Timestamp: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), Level: model.LevelInfo},
		{Message: "second", Timestamp: fixedNow, Level: model.LevelWarn},
		{Message: "third", Timestamp: fixedNow, Level: model.LevelInfo},
		{Message: "fourth", Timestamp: fixedNow, Level: model.LevelDebug},
	}
	if diff := cmp.Diff(want, entries, ignoreID); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}
	if entries[3].ID != "x" {
		t.Errorf("expected server id to be kept, got %q", entries[3].ID)
	}
}

func TestNormalizeArraySkipsScalars(t *testing.T) {
	entries, ok := Normalize(json.RawMessage(`["a", 1, null, true, {"level":"error"}]`))
	if !ok {
		t.Fatal("expected array to be accepted")
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].Message != "" || entries[1].Level != model.LevelError {
		t.Errorf("expected message-less object to keep its level, got %+v", entries[1])
	}
}

func TestNormalizeTopLevelString(t *testing.T) {
	entries, ok := Normalize(json.RawMessage(`"2024-01-01T10:00:00Z — disk usage high"`))
	if !ok || len(entries) != 1 {
		t.Fatalf("expected one entry, got %d (ok=%v)", len(entries), ok)
	}
	if entries[0].Message != "disk usage high" {
		t.Errorf("expected 'disk usage high', got %q", entries[0].Message)
	}
}

func TestNormalizeMalformed(t *testing.T) {
	tests := map[string]string{
		"object without message": `{"level":"error"}`,
		"number":                 `42`,
		"bool":                   `true`,
		"null":                   `null`,
		"invalid json":           `not json`,
		"empty":                  ``,
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			entries, ok := Normalize(json.RawMessage(payload))
			if ok || len(entries) != 0 {
				t.Errorf("expected no-op, got %d entries (ok=%v)", len(entries), ok)
			}
		})
	}
}

func TestNormalizeUniqueIDs(t *testing.T) {
	entries, _ := Normalize(json.RawMessage(`["a","b","c","d","e"]`))
	seen := make(map[string]bool)
	for _, e := range entries {
		if seen[e.ID] {
			t.Fatalf("duplicate id %q", e.ID)
		}
		seen[e.ID] = true
	}
}

func TestNormalizeLevel(t *testing.T) {
	tests := []struct {
		in   string
		want model.Level
	}{
		{"error", model.LevelError},
		{"ERR", model.LevelError},
		{"fatal", model.LevelError},
		{"warning", model.LevelWarn},
		{"WARN", model.LevelWarn},
		{"trace", model.LevelDebug},
		{"debug", model.LevelDebug},
		{"notice", model.LevelInfo},
		{"", model.LevelInfo},
	}
	for _, tt := range tests {
		if got := NormalizeLevel(tt.in); got != tt.want {
			t.Errorf("NormalizeLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
