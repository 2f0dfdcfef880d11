package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/atikulmunna/strand/internal/model"
)

// ShortPoller fetches a snapshot of the log only when asked to. Each
// successful refresh replaces the session's sequence.
//
// With a non-zero ShortPollInterval it also refreshes on a ticker, which is
// the only resource it then holds.
type ShortPoller struct {
	cfg  Config
	sink Sink

	mu         sync.Mutex
	gen        uint64
	refreshing bool
	cancel     context.CancelFunc
	stopTick   chan struct{}
}

// NewShortPoller creates an idle short-polling strategy.
func NewShortPoller(cfg Config, sink Sink) *ShortPoller {
	return &ShortPoller{cfg: cfg.withDefaults(), sink: sink}
}

func (p *ShortPoller) Kind() model.TransportKind { return model.ShortPolling }

func (p *ShortPoller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.releaseLocked()
	p.gen++
	mode := "manual refresh only"
	if p.cfg.ShortPollInterval > 0 {
		mode = fmt.Sprintf("refreshing every %s", p.cfg.ShortPollInterval)
	}
	p.sink.Log(model.LevelInfo, fmt.Sprintf("Short polling ready for instance %s (%s)", p.cfg.InstanceID, mode))
	p.sink.UpdateStatus(func(s *model.ConnectionStatus) {
		s.Connected = false
		s.Touch(time.Now())
	})

	if p.cfg.ShortPollInterval > 0 {
		stop := make(chan struct{})
		p.stopTick = stop
		go p.tick(p.gen, p.cfg.ShortPollInterval, stop)
	}
}

func (p *ShortPoller) tick(gen uint64, every time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		p.mu.Lock()
		if gen == p.gen {
			p.dispatch()
		}
		p.mu.Unlock()

		select {
		case <-stop:
			return
		case <-t.C:
		}
	}
}

// ManualRefresh dispatches one snapshot request. A call made while a
// refresh is already in flight is a no-op and reports false.
func (p *ShortPoller) ManualRefresh() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dispatch()
}

// dispatch must be called with mu held.
func (p *ShortPoller) dispatch() bool {
	if p.refreshing {
		return false
	}
	p.refreshing = true

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ShortPollTimeout)
	p.cancel = cancel
	p.sink.SetBusy(true)

	go p.refresh(ctx, cancel, p.gen)
	return true
}

func (p *ShortPoller) refresh(ctx context.Context, cancel context.CancelFunc, gen uint64) {
	defer cancel()
	body, err := fetch(ctx, p.cfg.client(), p.cfg.endpoint("/messages/short"))

	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.gen {
		return // stopped while in flight
	}
	p.refreshing = false
	p.cancel = nil
	p.sink.SetBusy(false)

	if err != nil {
		slog.Debug("short polling: refresh failed", "error", err)
		p.sink.Log(model.LevelError, "Manual refresh error: Failed to fetch messages")
		markDisconnected(p.sink)
		return
	}

	deliverBody(p.sink, body, true)
	markConnected(p.sink)
}

func (p *ShortPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.gen++
	p.releaseLocked()
}

// releaseLocked stops the ticker and abandons any in-flight refresh.
func (p *ShortPoller) releaseLocked() {
	if p.stopTick != nil {
		close(p.stopTick)
		p.stopTick = nil
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if p.refreshing {
		p.refreshing = false
		p.sink.SetBusy(false)
	}
}
