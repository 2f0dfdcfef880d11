package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/atikulmunna/strand/internal/model"
	"github.com/google/uuid"
)

// Delimiter separates the timestamp from the message in delimited lines:
// "<ISO-timestamp> — <message>".
const Delimiter = " — "

// Now is the clock used for entries without a usable timestamp.
var Now = time.Now

// timestampLayouts are tried in order when parsing a timestamp string.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
	time.UnixDate,
}

// ---------------------------------------------------------------------------
// Single items
// ---------------------------------------------------------------------------

// ParseLine converts one string payload into a LogEntry.
// A delimited string yields the timestamp before the delimiter and the
// message after it; anything else is taken whole as the message.
func ParseLine(s string) model.LogEntry {
	entry := base(s)

	idx := strings.Index(s, Delimiter)
	if idx == -1 {
		return entry
	}

	entry.Message = s[idx+len(Delimiter):]
	if t, ok := parseTimestamp(s[:idx]); ok {
		entry.Timestamp = t
	}
	return entry
}

// fromObject maps a structured payload onto a LogEntry, synthesizing
// whatever the server left out.
func fromObject(data map[string]interface{}) model.LogEntry {
	entry := base("")

	if v, ok := strField(data, "message"); ok {
		entry.Message = v
	}
	if v, ok := strField(data, "id"); ok {
		entry.ID = v
	}
	if v, ok := strField(data, "level"); ok {
		entry.Level = NormalizeLevel(v)
	}

	switch ts := data["timestamp"].(type) {
	case string:
		if t, ok := parseTimestamp(ts); ok {
			entry.Timestamp = t
		}
	case json.Number:
		// Epoch milliseconds.
		if ms, err := ts.Int64(); err == nil && ms != 0 {
			entry.Timestamp = time.UnixMilli(ms)
		} else if f, err := ts.Float64(); err == nil && f != 0 {
			entry.Timestamp = time.UnixMilli(int64(f))
		}
	case float64:
		if ts != 0 && !math.IsInf(ts, 0) && !math.IsNaN(ts) {
			entry.Timestamp = time.UnixMilli(int64(ts))
		}
	}

	return entry
}

// ---------------------------------------------------------------------------
// Payloads
// ---------------------------------------------------------------------------

// Normalize converts a raw server payload into an ordered entry sequence.
// Accepted shapes: a string, an object with a "message" field, or an array
// of strings and objects. Anything else reports ok=false and must be
// dropped silently by the caller.
func Normalize(payload json.RawMessage) ([]model.LogEntry, bool) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, false
	}

	var data interface{}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return nil, false
	}
	return NormalizeValue(data)
}

// NormalizeValue is Normalize for payloads that were already decoded into
// generic JSON values (string, map[string]interface{}, []interface{}).
// Numbers may be float64 or json.Number.
func NormalizeValue(data interface{}) ([]model.LogEntry, bool) {
	switch v := data.(type) {
	case []interface{}:
		entries := make([]model.LogEntry, 0, len(v))
		for _, item := range v {
			switch it := item.(type) {
			case string:
				entries = append(entries, ParseLine(it))
			case map[string]interface{}:
				entries = append(entries, fromObject(it))
			}
		}
		return entries, true

	case string:
		return []model.LogEntry{ParseLine(v)}, true

	case map[string]interface{}:
		if _, ok := v["message"]; !ok {
			return nil, false
		}
		return []model.LogEntry{fromObject(v)}, true
	}

	return nil, false
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// NewID returns a fresh entry identifier.
func NewID() string {
	return uuid.NewString()
}

// NewEntry builds a locally generated entry stamped with the current time.
func NewEntry(level model.Level, message string) model.LogEntry {
	return model.LogEntry{
		ID:        NewID(),
		Message:   message,
		Timestamp: Now(),
		Level:     level,
	}
}

// base returns a LogEntry with defaults populated.
func base(message string) model.LogEntry {
	return NewEntry(model.LevelInfo, message)
}

// parseTimestamp tries the known layouts. Unparseable input reports false
// so callers keep the receipt time.
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), true
	}
	return time.Time{}, false
}

// NormalizeLevel maps common level spellings onto the four known levels.
func NormalizeLevel(s string) model.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error", "err", "fatal", "critical", "crit":
		return model.LevelError
	case "warn", "warning":
		return model.LevelWarn
	case "debug", "trace":
		return model.LevelDebug
	default:
		return model.LevelInfo
	}
}

// strField returns the first non-empty scalar value from a map as a string.
func strField(data map[string]interface{}, keys ...string) (string, bool) {
	for _, k := range keys {
		v, ok := data[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case json.Number:
			s = t.String()
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(t)
		default:
			b, err := json.Marshal(t)
			if err != nil {
				s = fmt.Sprintf("%v", t)
			} else {
				s = string(b)
			}
		}
		if s != "" {
			return s, true
		}
	}
	return "", false
}
