package session

import (
	"log/slog"
	"sync"

	"github.com/atikulmunna/strand/internal/model"
	"github.com/atikulmunna/strand/internal/parser"
)

const subscriberBuffer = 1024

// EventKind says what changed in the session.
type EventKind int

const (
	// EntriesAppended carries the entries added to the end of the sequence.
	EntriesAppended EventKind = iota
	// EntriesReplaced carries the full new sequence.
	EntriesReplaced
	// Cleared means the sequence was emptied.
	Cleared
	// StatusChanged carries the new connection status.
	StatusChanged
	// FlagsChanged means the aborted or busy flag flipped.
	FlagsChanged
)

// Event is broadcast to subscribers after every mutation.
type Event struct {
	Kind    EventKind
	Entries []model.LogEntry
	Status  model.ConnectionStatus
	Aborted bool
	Busy    bool

	// ScrollToLatest asks the view to jump to the newest entry.
	ScrollToLatest bool
}

// Session owns the log sequence and connection status for one instance and
// broadcasts every change to its subscribers.
//
// Strategies mutate it only through the methods below, which makes Session
// the sink every transport reports into.
type Session struct {
	instanceID string

	mu          sync.RWMutex
	entries     []model.LogEntry
	status      model.ConnectionStatus
	aborted     bool
	busy        bool
	subscribers []chan Event
	dropped     int64
	closed      bool
}

// New creates a Session for the given instance. The status starts
// disconnected on the given transport.
func New(instanceID string, method model.TransportKind) *Session {
	return &Session{
		instanceID: instanceID,
		status:     model.ConnectionStatus{Method: method},
	}
}

// InstanceID returns the instance whose logs this session shows.
func (s *Session) InstanceID() string { return s.instanceID }

// Subscribe returns a buffered channel that will receive every change.
// Multiple consumers can subscribe; each gets a copy of every event.
func (s *Session) Subscribe() <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	s.mu.Lock()
	if s.closed {
		close(ch)
	} else {
		s.subscribers = append(s.subscribers, ch)
	}
	s.mu.Unlock()
	return ch
}

// Dropped returns the total number of events dropped due to slow consumers.
func (s *Session) Dropped() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}

// ---------------------------------------------------------------------------
// Mutations
// ---------------------------------------------------------------------------

// Log appends a locally generated entry (status messages, errors).
func (s *Session) Log(level model.Level, message string) {
	s.Apply([]model.LogEntry{parser.NewEntry(level, message)}, false)
}

// Apply appends entries, or replaces the whole sequence when replace is set.
func (s *Session) Apply(entries []model.LogEntry, replace bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := make([]model.LogEntry, len(entries))
	copy(added, entries)

	kind := EntriesAppended
	if replace {
		s.entries = added
		kind = EntriesReplaced
	} else {
		s.entries = append(s.entries, added...)
	}
	s.broadcast(Event{Kind: kind, Entries: added, ScrollToLatest: true})
}

// Clear empties the sequence and notes it in the log.
func (s *Session) Clear() {
	s.mu.Lock()
	s.entries = nil
	s.broadcast(Event{Kind: Cleared})
	s.mu.Unlock()

	s.Log(model.LevelInfo, "Logs cleared")
}

// UpdateStatus applies fn to the connection status.
func (s *Session) UpdateStatus(fn func(*model.ConnectionStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.status)
	s.broadcast(Event{Kind: StatusChanged, Status: s.status})
}

// SetAborted records whether the server was asked to pause emission.
func (s *Session) SetAborted(aborted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.aborted == aborted {
		return
	}
	s.aborted = aborted
	s.broadcast(Event{Kind: FlagsChanged, Aborted: s.aborted, Busy: s.busy})
}

// SetBusy records whether a request is in flight.
func (s *Session) SetBusy(busy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy == busy {
		return
	}
	s.busy = busy
	s.broadcast(Event{Kind: FlagsChanged, Aborted: s.aborted, Busy: s.busy})
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// Entries returns a copy of the log sequence in append order.
func (s *Session) Entries() []model.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.LogEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Status returns the current connection status.
func (s *Session) Status() model.ConnectionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Aborted reports whether log emission is paused on the socket transport.
func (s *Session) Aborted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aborted
}

// Busy reports whether a refresh or long poll is in flight.
func (s *Session) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy
}

// Close closes all subscriber channels. Later mutations are still applied
// but no longer broadcast.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = nil
}

// broadcast sends an event to all subscribers. Must be called with mu held.
// If a subscriber's channel is full, the event is dropped for that subscriber.
func (s *Session) broadcast(ev Event) {
	for _, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			s.dropped++
			slog.Warn("session: dropped event for slow consumer", "total_dropped", s.dropped)
		}
	}
}
