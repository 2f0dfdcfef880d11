package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/atikulmunna/strand/internal/model"
	"github.com/atikulmunna/strand/internal/session"
)

const epsWindow = 5 * time.Second

// Stats holds a point-in-time snapshot of session metrics.
type Stats struct {
	Uptime        string                `json:"uptime" yaml:"uptime"`
	TotalReceived int64                 `json:"total_received" yaml:"total_received"`
	Visible       int                   `json:"visible" yaml:"visible"`
	EPS           float64               `json:"eps" yaml:"eps"`
	LevelCounts   map[model.Level]int64 `json:"level_counts" yaml:"level_counts"`
	DroppedEvents int64                 `json:"dropped_events" yaml:"dropped_events"`
	Transport     model.TransportKind   `json:"transport" yaml:"transport"`
	Connected     bool                  `json:"connected" yaml:"connected"`
}

// Aggregator subscribes to a Session and computes time-windowed metrics.
// Level counts describe the visible sequence, so a snapshot refresh or a
// clear resets them; TotalReceived only ever grows.
type Aggregator struct {
	mu          sync.RWMutex
	startTime   time.Time
	received    int64
	visible     int
	levelCounts map[model.Level]int64
	window      []time.Time // arrival times for EPS calculation
	status      model.ConnectionStatus
	dropped     func() int64
	events      <-chan session.Event
}

// New creates an Aggregator that reads from the given session subscriber
// channel. droppedFn provides the live drop count from the session.
func New(events <-chan session.Event, droppedFn func() int64) *Aggregator {
	return &Aggregator{
		startTime:   time.Now(),
		levelCounts: make(map[model.Level]int64),
		dropped:     droppedFn,
		events:      events,
	}
}

// Snapshot returns the current metrics.
func (a *Aggregator) Snapshot() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	counts := make(map[model.Level]int64, len(a.levelCounts))
	for k, v := range a.levelCounts {
		counts[k] = v
	}

	cutoff := time.Now().Add(-epsWindow)
	var recent int
	for _, t := range a.window {
		if t.After(cutoff) {
			recent++
		}
	}

	var dropped int64
	if a.dropped != nil {
		dropped = a.dropped()
	}

	return Stats{
		Uptime:        time.Since(a.startTime).Truncate(time.Second).String(),
		TotalReceived: a.received,
		Visible:       a.visible,
		EPS:           float64(recent) / epsWindow.Seconds(),
		LevelCounts:   counts,
		DroppedEvents: dropped,
		Transport:     a.status.Method,
		Connected:     a.status.Connected,
	}
}

// Start begins consuming events and updating metrics. Blocks until the
// context is cancelled or the session closes.
func (a *Aggregator) Start(ctx context.Context) {
	// Periodically prune the sliding window.
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-a.events:
			if !ok {
				return
			}
			a.Record(ev)
		case <-ticker.C:
			a.prune()
		}
	}
}

// Record applies one session event to the metrics.
func (a *Aggregator) Record(ev session.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	switch ev.Kind {
	case session.EntriesAppended:
		a.count(ev.Entries, now)
		a.visible += len(ev.Entries)
	case session.EntriesReplaced:
		a.levelCounts = make(map[model.Level]int64)
		a.count(ev.Entries, now)
		a.visible = len(ev.Entries)
	case session.Cleared:
		a.levelCounts = make(map[model.Level]int64)
		a.visible = 0
	case session.StatusChanged:
		a.status = ev.Status
	}
}

// count must be called with mu held.
func (a *Aggregator) count(entries []model.LogEntry, now time.Time) {
	for _, e := range entries {
		a.received++
		a.levelCounts[e.Level]++
		a.window = append(a.window, now)
	}
}

// prune removes arrival times older than the EPS window.
func (a *Aggregator) prune() {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := time.Now().Add(-epsWindow)
	i := 0
	for _, t := range a.window {
		if t.After(cutoff) {
			a.window[i] = t
			i++
		}
	}
	a.window = a.window[:i]
}
