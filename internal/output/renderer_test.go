package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/atikulmunna/strand/internal/model"
	"github.com/goccy/go-yaml"
)

func sampleEntry() model.LogEntry {
	return model.LogEntry{
		ID:        "e-1",
		Timestamp: time.Date(2026, 2, 17, 12, 0, 0, 0, time.UTC),
		Level:     model.LevelError,
		Message:   "something broke",
	}
}

func TestJSONRenderer(t *testing.T) {
	var buf bytes.Buffer
	renderer := NewJSONRenderer(&buf)

	if err := renderer.Render(sampleEntry()); err != nil {
		t.Fatal(err)
	}

	// Parse the output JSON.
	var got model.LogEntry
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON output: %v\nraw: %s", err, buf.String())
	}

	if got.Level != model.LevelError {
		t.Errorf("expected level error, got %s", got.Level)
	}
	if got.Message != "something broke" {
		t.Errorf("expected message 'something broke', got %q", got.Message)
	}
	if got.ID != "e-1" {
		t.Errorf("expected id e-1, got %q", got.ID)
	}
	if !got.Timestamp.Equal(sampleEntry().Timestamp) {
		t.Errorf("expected timestamp to survive, got %s", got.Timestamp)
	}
}

func TestYAMLRenderer(t *testing.T) {
	var buf bytes.Buffer
	renderer := NewYAMLRenderer(&buf)

	if err := renderer.Render(sampleEntry()); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "---\n") {
		t.Errorf("expected document separator, got %q", buf.String())
	}

	var got map[string]string
	if err := yaml.Unmarshal(bytes.TrimPrefix(buf.Bytes(), []byte("---\n")), &got); err != nil {
		t.Fatalf("invalid YAML output: %v\nraw: %s", err, buf.String())
	}
	if got["message"] != "something broke" || got["level"] != "error" || got["id"] != "e-1" {
		t.Errorf("unexpected document %v", got)
	}
	if got["timestamp"] != "2026-02-17T12:00:00.000Z" {
		t.Errorf("unexpected timestamp %q", got["timestamp"])
	}
}

func TestTextRenderer(t *testing.T) {
	var buf bytes.Buffer
	renderer := NewTextRenderer(&buf)

	entry := sampleEntry()
	if err := renderer.Render(entry); err != nil {
		t.Fatal(err)
	}

	// A buffer is not a terminal, so no escape codes are written.
	want := entry.Timestamp.Local().Format("15:04:05.000") + " ERROR something broke\n"
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	tests := []struct {
		format string
		want   string
	}{
		{"auto", "*output.JSONRenderer"},
		{"", "*output.JSONRenderer"},
		{"text", "*output.TextRenderer"},
		{"JSON", "*output.JSONRenderer"},
		{"yaml", "*output.YAMLRenderer"},
	}
	for _, tt := range tests {
		r, err := New(tt.format, &buf)
		if err != nil {
			t.Errorf("New(%q): %v", tt.format, err)
			continue
		}
		if got := typeName(r); got != tt.want {
			t.Errorf("New(%q): expected %s, got %s", tt.format, tt.want, got)
		}
	}

	if _, err := New("xml", &buf); err == nil {
		t.Error("expected error for unknown format")
	}
}

func typeName(r Renderer) string {
	switch r.(type) {
	case *TextRenderer:
		return "*output.TextRenderer"
	case *JSONRenderer:
		return "*output.JSONRenderer"
	case *YAMLRenderer:
		return "*output.YAMLRenderer"
	}
	return "unknown"
}
