package transport

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// streamEvent is one dispatched server-sent event.
type streamEvent struct {
	Name string // empty means the default "message" channel
	Data string
	ID   string
}

// ---------------------------------------------------------------------------
// Event stream parsing
// ---------------------------------------------------------------------------

// readEventStream parses a text/event-stream body and calls onEvent for each
// complete event. onRetry receives server-advertised reconnection delays.
// It returns when the body ends or fails.
func readEventStream(body io.Reader, onEvent func(streamEvent), onRetry func(time.Duration)) error {
	scanner := bufio.NewScanner(body)
	// A batched payload line may be as large as a polling body.
	scanner.Buffer(make([]byte, 0, 64*1024), maxBody)

	var (
		name    string
		id      string
		data    strings.Builder
		hasData bool
	)

	for scanner.Scan() {
		line := scanner.Text()

		// A blank line dispatches the buffered event.
		if line == "" {
			if hasData {
				onEvent(streamEvent{Name: name, Data: data.String(), ID: id})
			}
			name = ""
			data.Reset()
			hasData = false
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue // comment / keep-alive
		}

		field, value := line, ""
		if i := strings.IndexByte(line, ':'); i >= 0 {
			field = line[:i]
			value = strings.TrimPrefix(line[i+1:], " ")
		}

		switch field {
		case "event":
			name = value
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				id = value
			}
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 && onRetry != nil {
				onRetry(time.Duration(ms) * time.Millisecond)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}
