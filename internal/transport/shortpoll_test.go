package transport

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/atikulmunna/strand/internal/model"
)

func TestShortPollStartManualOnly(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	s := newTestSession(model.ShortPolling)
	p := NewShortPoller(testConfig(srv.URL), s)
	p.Start()
	defer p.Stop()

	if !hasMessage(s, "Short polling ready for instance inst-1 (manual refresh only)") {
		t.Errorf("missing ready message, got %v", messages(s))
	}
	if s.Status().Connected {
		t.Error("expected short polling to start disconnected")
	}
	if s.Status().LastUpdate == nil {
		t.Error("expected last update to be set on start")
	}

	time.Sleep(30 * time.Millisecond)
	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Errorf("expected no requests before a manual refresh, got %d", n)
	}
}

func TestShortPollRefreshReplaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages/short" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `[{"message":"a"},{"message":"b","level":"error"}]`)
	}))
	defer srv.Close()

	s := newTestSession(model.ShortPolling)
	p := NewShortPoller(testConfig(srv.URL), s)
	p.Start()
	defer p.Stop()

	if !p.ManualRefresh() {
		t.Fatal("expected refresh to be dispatched")
	}
	waitFor(t, "snapshot", func() bool { return len(s.Entries()) == 2 && s.Status().Connected })

	got := messages(s)
	if got[0] != "a" || got[1] != "b" {
		t.Errorf("expected snapshot to replace the log, got %v", got)
	}
	if s.Entries()[1].Level != model.LevelError {
		t.Errorf("expected level error, got %s", s.Entries()[1].Level)
	}
	waitFor(t, "busy cleared", func() bool { return !s.Busy() })
}

func TestShortPollRefreshInFlightIsNoop(t *testing.T) {
	release := make(chan struct{})
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-release
		fmt.Fprint(w, `["x"]`)
	}))
	defer srv.Close()
	defer close(release)

	s := newTestSession(model.ShortPolling)
	p := NewShortPoller(testConfig(srv.URL), s)
	p.Start()
	defer p.Stop()

	if !p.ManualRefresh() {
		t.Fatal("expected first refresh to be dispatched")
	}
	if p.ManualRefresh() {
		t.Error("expected second refresh to be a no-op while the first is in flight")
	}
	if !s.Busy() {
		t.Error("expected busy while refreshing")
	}
	waitFor(t, "request", func() bool { return atomic.LoadInt32(&hits) == 1 })
}

func TestShortPollRefreshError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := newTestSession(model.ShortPolling)
	p := NewShortPoller(testConfig(srv.URL), s)
	p.Start()
	defer p.Stop()

	p.ManualRefresh()
	waitForMessage(t, s, "Manual refresh error: Failed to fetch messages")

	if s.Status().Connected {
		t.Error("expected disconnected after a failed refresh")
	}
	for _, e := range s.Entries() {
		if e.Message == "Manual refresh error: Failed to fetch messages" && e.Level != model.LevelError {
			t.Errorf("expected error level, got %s", e.Level)
		}
	}
}

func TestShortPollStopDiscardsInFlight(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		fmt.Fprint(w, `["late"]`)
	}))
	defer srv.Close()
	defer close(release)

	s := newTestSession(model.ShortPolling)
	p := NewShortPoller(testConfig(srv.URL), s)
	p.Start()
	p.ManualRefresh()
	p.Stop()

	if s.Busy() {
		t.Error("expected busy cleared by Stop")
	}
	time.Sleep(50 * time.Millisecond)
	if hasMessage(s, "late") || hasMessage(s, "Manual refresh error: Failed to fetch messages") {
		t.Errorf("expected nothing delivered after Stop, got %v", messages(s))
	}
}

func TestShortPollInterval(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		fmt.Fprintf(w, `["tick %d"]`, n)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.ShortPollInterval = 10 * time.Millisecond

	s := newTestSession(model.ShortPolling)
	p := NewShortPoller(cfg, s)
	p.Start()

	if !hasMessage(s, "Short polling ready for instance inst-1 (refreshing every 10ms)") {
		t.Errorf("missing ready message, got %v", messages(s))
	}
	waitFor(t, "repeated refreshes", func() bool { return atomic.LoadInt32(&hits) >= 3 })

	p.Stop()
	time.Sleep(20 * time.Millisecond)
	after := atomic.LoadInt32(&hits)
	time.Sleep(50 * time.Millisecond)
	if n := atomic.LoadInt32(&hits); n != after {
		t.Errorf("expected no refreshes after Stop, got %d more", n-after)
	}
}
