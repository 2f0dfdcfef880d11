// Package transport implements the four interchangeable ways of receiving the
// instance log stream: short polling, long polling, server-sent events and a
// socket.io channel.
//
// Every strategy reports upward only through a Sink and never returns
// errors to its caller. A strategy serializes its own state behind a mutex
// and delivers to the sink while holding it, after checking that the
// operation still belongs to the current generation. Stop bumps the
// generation under the same mutex, so once Stop returns nothing started
// before it can touch the sink again.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/atikulmunna/strand/internal/model"
	"github.com/atikulmunna/strand/internal/parser"
)

// maxBody caps how much of a polling response is read.
const maxBody = 8 << 20

// Sink receives everything a strategy reports: log entries, status changes
// and the aborted/busy flags shown by the view.
type Sink interface {
	Log(level model.Level, message string)
	Apply(entries []model.LogEntry, replace bool)
	UpdateStatus(fn func(*model.ConnectionStatus))
	SetAborted(aborted bool)
	SetBusy(busy bool)
}

// Strategy owns the connection lifecycle of one transport.
type Strategy interface {
	Kind() model.TransportKind
	// Start acquires the transport's resources. It never blocks on I/O.
	Start()
	// Stop releases every resource and discards anything still in flight.
	// It is always safe to call, including on a stopped strategy.
	Stop()
}

// Refresher is implemented by strategies that can be re-triggered by hand.
// ManualRefresh reports whether a request was dispatched.
type Refresher interface {
	ManualRefresh() bool
}

// Controller is implemented by strategies that can ask the server to pause
// and resume emission. Both report whether a control signal was sent.
type Controller interface {
	Abort() bool
	Continue() bool
}

// Config holds the settings shared by all strategies.
type Config struct {
	BaseURL    string
	InstanceID string

	// HTTPClient is used for polling and streaming. It must not carry a
	// client-wide timeout; per-request deadlines come from the fields below.
	HTTPClient *http.Client

	ShortPollTimeout   time.Duration
	ShortPollInterval  time.Duration // 0 means manual refresh only
	LongPollTimeout    time.Duration
	LongPollMaxRetries int
	LongPollRetryDelay time.Duration
	SSERetry           time.Duration
	SocketTimeout      time.Duration
	SocketVerifyAfter  time.Duration
}

// DefaultConfig returns the stock deadlines and retry policy.
func DefaultConfig(baseURL, instanceID string) Config {
	return Config{
		BaseURL:            baseURL,
		InstanceID:         instanceID,
		ShortPollTimeout:   5 * time.Second,
		LongPollTimeout:    30 * time.Second,
		LongPollMaxRetries: 1000,
		LongPollRetryDelay: time.Second,
		SSERetry:           3 * time.Second,
		SocketTimeout:      5 * time.Second,
		SocketVerifyAfter:  3 * time.Second,
	}
}

// withDefaults fills zero deadlines from DefaultConfig. A zero retry budget
// and a zero short-poll interval are meaningful and kept.
func (c Config) withDefaults() Config {
	d := DefaultConfig(c.BaseURL, c.InstanceID)
	if c.ShortPollTimeout <= 0 {
		c.ShortPollTimeout = d.ShortPollTimeout
	}
	if c.LongPollTimeout <= 0 {
		c.LongPollTimeout = d.LongPollTimeout
	}
	if c.LongPollMaxRetries < 0 {
		c.LongPollMaxRetries = 0
	}
	if c.LongPollRetryDelay <= 0 {
		c.LongPollRetryDelay = d.LongPollRetryDelay
	}
	if c.SSERetry <= 0 {
		c.SSERetry = d.SSERetry
	}
	if c.SocketTimeout <= 0 {
		c.SocketTimeout = d.SocketTimeout
	}
	if c.SocketVerifyAfter <= 0 {
		c.SocketVerifyAfter = d.SocketVerifyAfter
	}
	return c
}

func (c Config) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c Config) endpoint(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}

// NewAll builds one strategy per transport kind, in selector order.
func NewAll(cfg Config, sink Sink) []Strategy {
	return []Strategy{
		NewShortPoller(cfg, sink),
		NewLongPoller(cfg, sink),
		NewEventSource(cfg, sink),
		NewSocket(cfg, sink),
	}
}

// ---------------------------------------------------------------------------
// Delivery
// ---------------------------------------------------------------------------

// Deliver normalizes payload and applies it to the sink. Malformed payloads
// are dropped silently. It reports whether anything was applied.
func Deliver(sink Sink, payload json.RawMessage, replace bool) bool {
	entries, ok := parser.Normalize(payload)
	if !ok {
		return false
	}
	sink.Apply(entries, replace)
	return true
}

// deliverValue is Deliver for payloads a client library already decoded.
func deliverValue(sink Sink, data any, replace bool) bool {
	entries, ok := parser.NormalizeValue(data)
	if !ok {
		return false
	}
	sink.Apply(entries, replace)
	return true
}

// deliverBody is Deliver for HTTP response bodies, which may also be plain
// text. An empty body is a no-op.
func deliverBody(sink Sink, body []byte, replace bool) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return false
	}
	if !json.Valid(trimmed) {
		sink.Apply([]model.LogEntry{parser.ParseLine(string(trimmed))}, replace)
		return true
	}
	return Deliver(sink, trimmed, replace)
}

func markConnected(sink Sink) {
	sink.UpdateStatus(func(s *model.ConnectionStatus) {
		s.Connected = true
		s.Touch(time.Now())
	})
}

func markDisconnected(sink Sink) {
	sink.UpdateStatus(func(s *model.ConnectionStatus) {
		s.Connected = false
	})
}

// ---------------------------------------------------------------------------
// HTTP helpers
// ---------------------------------------------------------------------------

// fetch performs a GET and returns the body of a 2xx response.
func fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}

// isTimeout reports whether err is a client-side deadline expiry.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
