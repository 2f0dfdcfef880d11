package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/atikulmunna/strand/internal/model"
)

// LongPoller issues one held-open request per Start and deactivates after
// the first successful response. Failures are retried after a fixed delay
// until LongPollMaxRetries is exhausted; the counter resets on success.
type LongPoller struct {
	cfg  Config
	sink Sink

	mu         sync.Mutex
	gen        uint64
	active     bool
	inFlight   bool
	retries    int
	cancel     context.CancelFunc
	retryTimer *time.Timer
}

// NewLongPoller creates an idle long-polling strategy.
func NewLongPoller(cfg Config, sink Sink) *LongPoller {
	return &LongPoller{cfg: cfg.withDefaults(), sink: sink}
}

func (p *LongPoller) Kind() model.TransportKind { return model.LongPolling }

func (p *LongPoller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startLocked()
}

func (p *LongPoller) startLocked() {
	p.releaseLocked()
	p.gen++
	p.active = true
	p.retries = 0

	p.sink.Log(model.LevelInfo, fmt.Sprintf("Long polling started for instance %s", p.cfg.InstanceID))
	// Not connected until the server actually answers.
	p.sink.UpdateStatus(func(s *model.ConnectionStatus) {
		s.Connected = false
		s.Touch(time.Now())
	})
	p.pollLocked()
}

// ManualRefresh re-arms a completed long poll. It is a no-op while a poll
// or a scheduled retry is pending.
func (p *LongPoller) ManualRefresh() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active {
		return false
	}
	p.startLocked()
	return true
}

// Active reports whether a poll or retry is pending.
func (p *LongPoller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// pollLocked issues one request. Must be called with mu held.
func (p *LongPoller) pollLocked() {
	if !p.active {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.LongPollTimeout)
	p.cancel = cancel
	p.inFlight = true
	p.sink.SetBusy(true)

	go p.run(ctx, cancel, p.gen)
}

func (p *LongPoller) run(ctx context.Context, cancel context.CancelFunc, gen uint64) {
	defer cancel()
	body, err := fetch(ctx, p.cfg.client(), p.cfg.endpoint("/messages/long"))

	p.mu.Lock()
	defer p.mu.Unlock()

	// A response that resolves after Stop is discarded untouched.
	if gen != p.gen || !p.active {
		return
	}
	p.cancel = nil
	p.inFlight = false
	p.sink.SetBusy(false)

	if err == nil {
		deliverBody(p.sink, body, false)
		p.retries = 0
		markConnected(p.sink)
		p.active = false
		p.sink.Log(model.LevelInfo, "Long polling completed - data received")
		return
	}

	if errors.Is(err, context.Canceled) {
		return
	}

	slog.Debug("long polling: request failed", "error", err, "attempt", p.retries+1)
	p.sink.Log(model.LevelError, "Long polling error: Connection failed")
	// An expired hold is the normal outcome of a quiet long poll.
	if !isTimeout(err) {
		markDisconnected(p.sink)
	}

	if p.retries < p.cfg.LongPollMaxRetries {
		p.retries++
		p.sink.Log(model.LevelWarn, fmt.Sprintf("Long polling failed, retrying (%d/%d)...", p.retries, p.cfg.LongPollMaxRetries))
		p.retryTimer = time.AfterFunc(p.cfg.LongPollRetryDelay, func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if gen != p.gen {
				return
			}
			p.retryTimer = nil
			p.pollLocked()
		})
		return
	}

	p.sink.Log(model.LevelError, "Long polling failed after maximum retries")
	p.active = false
}

func (p *LongPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.gen++
	p.active = false
	p.retries = 0
	p.releaseLocked()
}

// releaseLocked cancels the in-flight request and any pending retry.
func (p *LongPoller) releaseLocked() {
	if p.retryTimer != nil {
		p.retryTimer.Stop()
		p.retryTimer = nil
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if p.inFlight {
		p.inFlight = false
		p.sink.SetBusy(false)
	}
}
