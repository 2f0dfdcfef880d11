// Package coordinator keeps exactly one transport strategy active for a
// session and handles switching between them.
package coordinator

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/atikulmunna/strand/internal/model"
	"github.com/atikulmunna/strand/internal/transport"
)

// DefaultSettle is the pause between stopping one strategy and starting the
// next.
const DefaultSettle = 500 * time.Millisecond

var (
	// ErrUnknownTransport is returned for a kind with no registered strategy.
	ErrUnknownTransport = errors.New("unknown transport")
	// ErrUnsupported is returned when the active strategy does not offer the
	// requested operation.
	ErrUnsupported = errors.New("operation not supported by the active transport")
	// ErrSwitching is returned while the next strategy is waiting to start.
	ErrSwitching = errors.New("transport switch in progress")
	// ErrClosed is returned after Shutdown.
	ErrClosed = errors.New("coordinator is shut down")
)

// Coordinator owns the strategy lifecycle. At most one strategy holds
// resources at any time: the previous one is always stopped before the next
// is started.
type Coordinator struct {
	sink       transport.Sink
	strategies map[model.TransportKind]transport.Strategy
	settle     time.Duration

	mu      sync.Mutex
	active  model.TransportKind
	running bool
	gen     uint64
	pending *time.Timer
	closed  bool
}

// New creates a coordinator over the given strategies. Nothing is started
// until Start or SwitchTo is called.
func New(sink transport.Sink, strategies []transport.Strategy, settle time.Duration) *Coordinator {
	byKind := make(map[model.TransportKind]transport.Strategy, len(strategies))
	for _, s := range strategies {
		byKind[s.Kind()] = s
	}
	if settle < 0 {
		settle = 0
	}
	return &Coordinator{sink: sink, strategies: byKind, settle: settle}
}

// Start activates kind immediately. It is used for the initial transport and
// does not announce a switch.
func (c *Coordinator) Start(kind model.TransportKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := c.lookupLocked(kind)
	if err != nil {
		return err
	}
	c.haltLocked()
	c.active = kind
	c.sink.UpdateStatus(func(s *model.ConnectionStatus) {
		*s = model.ConnectionStatus{Method: kind}
	})
	next.Start()
	c.running = true
	return nil
}

// SwitchTo stops the active strategy, resets the connection status and
// starts kind after the settle delay. A second switch during the delay
// supersedes the first.
func (c *Coordinator) SwitchTo(kind model.TransportKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := c.lookupLocked(kind)
	if err != nil {
		return err
	}
	c.haltLocked()
	c.active = kind
	c.sink.UpdateStatus(func(s *model.ConnectionStatus) {
		*s = model.ConnectionStatus{Method: kind}
	})
	c.sink.Log(model.LevelInfo, fmt.Sprintf("Switching to %s...", kind.Label()))
	slog.Info("switching transport", "transport", string(kind))

	gen := c.gen
	c.pending = time.AfterFunc(c.settle, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.gen || c.closed {
			return
		}
		c.pending = nil
		next.Start()
		c.running = true
	})
	return nil
}

// Active returns the selected transport, which may still be waiting to
// start.
func (c *Coordinator) Active() model.TransportKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Switching reports whether a delayed start is pending.
func (c *Coordinator) Switching() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// ManualRefresh asks the active strategy for a refresh. A refresh that is
// already in flight makes this a no-op.
func (c *Coordinator) ManualRefresh() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.runningLocked()
	if err != nil {
		return err
	}
	r, ok := s.(transport.Refresher)
	if !ok {
		return fmt.Errorf("refresh on %s: %w", c.active, ErrUnsupported)
	}
	r.ManualRefresh()
	return nil
}

// Abort asks the server to pause emission on the active strategy.
func (c *Coordinator) Abort() error {
	return c.control("abort", func(ctl transport.Controller) bool { return ctl.Abort() })
}

// Continue asks the server to resume emission on the active strategy.
func (c *Coordinator) Continue() error {
	return c.control("continue", func(ctl transport.Controller) bool { return ctl.Continue() })
}

func (c *Coordinator) control(op string, fn func(transport.Controller) bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.runningLocked()
	if err != nil {
		return err
	}
	ctl, ok := s.(transport.Controller)
	if !ok {
		return fmt.Errorf("%s on %s: %w", op, c.active, ErrUnsupported)
	}
	fn(ctl)
	return nil
}

// Shutdown stops every strategy and cancels any pending start. It is safe
// to call more than once.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.haltLocked()
	for _, kind := range model.TransportKinds {
		if s, ok := c.strategies[kind]; ok {
			s.Stop()
		}
	}
	c.closed = true
}

// haltLocked cancels a pending start and stops the running strategy.
func (c *Coordinator) haltLocked() {
	c.gen++
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	if c.running {
		if s, ok := c.strategies[c.active]; ok {
			s.Stop()
		}
		c.running = false
	}
}

func (c *Coordinator) lookupLocked(kind model.TransportKind) (transport.Strategy, error) {
	if c.closed {
		return nil, ErrClosed
	}
	s, ok := c.strategies[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, kind)
	}
	return s, nil
}

func (c *Coordinator) runningLocked() (transport.Strategy, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if c.pending != nil {
		return nil, ErrSwitching
	}
	if !c.running {
		return nil, fmt.Errorf("no active transport: %w", ErrUnsupported)
	}
	return c.strategies[c.active], nil
}
