package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/atikulmunna/strand/internal/model"
)

// EventSource holds one server-sent event stream open for as long as it is
// active. A dropped stream is reopened after the server-advertised retry
// delay; a response that is not an event stream ends the strategy for good,
// the way a browser EventSource fails.
type EventSource struct {
	cfg  Config
	sink Sink

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	retry  time.Duration
	lastID string
}

// NewEventSource creates an idle SSE strategy.
func NewEventSource(cfg Config, sink Sink) *EventSource {
	cfg = cfg.withDefaults()
	return &EventSource{cfg: cfg, sink: sink, retry: cfg.SSERetry}
}

func (e *EventSource) Kind() model.TransportKind { return model.SSE }

func (e *EventSource) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.releaseLocked()
	e.gen++
	e.retry = e.cfg.SSERetry
	e.lastID = ""

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go e.run(ctx, e.gen)
}

func (e *EventSource) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gen++
	e.releaseLocked()
}

func (e *EventSource) releaseLocked() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// errNotEventStream marks a response the stream cannot recover from.
var errNotEventStream = errors.New("response is not an event stream")

func (e *EventSource) run(ctx context.Context, gen uint64) {
	for {
		err := e.connect(ctx, gen)
		if ctx.Err() != nil {
			return
		}
		slog.Debug("sse: stream ended", "error", err)
		if !e.fail(gen) || errors.Is(err, errNotEventStream) {
			return
		}

		t := time.NewTimer(e.retryDelay())
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// connect opens the stream and reads it until it ends.
func (e *EventSource) connect(ctx context.Context, gen uint64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.endpoint("/messages/sse"), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	e.mu.Lock()
	if e.lastID != "" {
		req.Header.Set("Last-Event-ID", e.lastID)
	}
	e.mu.Unlock()

	resp, err := e.cfg.client().Do(req)
	if err != nil {
		return fmt.Errorf("opening stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", errNotEventStream, resp.StatusCode)
	}
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt != "text/event-stream" {
		return fmt.Errorf("%w: content type %q", errNotEventStream, mt)
	}

	if !e.opened(gen) {
		return nil
	}
	return readEventStream(resp.Body,
		func(ev streamEvent) { e.handle(gen, ev) },
		func(d time.Duration) { e.setRetry(gen, d) },
	)
}

func (e *EventSource) opened(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		return false
	}
	e.sink.Log(model.LevelInfo, fmt.Sprintf("SSE connection established for instance %s", e.cfg.InstanceID))
	markConnected(e.sink)
	return true
}

// fail reports a stream error. It returns false once the strategy has been
// stopped or restarted.
func (e *EventSource) fail(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		return false
	}
	e.sink.Log(model.LevelError, "SSE connection error")
	markDisconnected(e.sink)
	return true
}

func (e *EventSource) handle(gen uint64, ev streamEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		return
	}
	if ev.ID != "" {
		e.lastID = ev.ID
	}

	switch ev.Name {
	case "", "message":
		if !json.Valid([]byte(ev.Data)) {
			// Unparseable text is surfaced as-is and says nothing about
			// connectivity.
			e.sink.Log(model.LevelInfo, "SSE message: "+ev.Data)
			return
		}
		Deliver(e.sink, json.RawMessage(ev.Data), false)
		markConnected(e.sink)
	case "log":
		if !json.Valid([]byte(ev.Data)) {
			slog.Debug("sse: ignoring malformed log event", "data", ev.Data)
			return
		}
		Deliver(e.sink, json.RawMessage(ev.Data), false)
	default:
		slog.Debug("sse: ignoring event", "event", ev.Name)
	}
}

func (e *EventSource) setRetry(gen uint64, d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen == e.gen {
		e.retry = d
	}
}

func (e *EventSource) retryDelay() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.retry
}
