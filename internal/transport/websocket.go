package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/atikulmunna/strand/internal/model"
	"github.com/atikulmunna/strand/internal/parser"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// socketEvents are the server events that carry log payloads besides
// instance_logs.
var socketEvents = []string{"log", "logs", "message"}

// Socket receives the log stream over a socket.io channel. Every Start opens
// a fresh connection and joins the instance's room.
//
// The client library calls handlers synchronously, including from
// Disconnect, so the client is always connected and disconnected outside mu.
type Socket struct {
	cfg  Config
	sink Sink

	mu     sync.Mutex
	gen    uint64
	client *socket.Socket
	verify *time.Timer
}

// NewSocket creates an idle socket strategy.
func NewSocket(cfg Config, sink Sink) *Socket {
	return &Socket{cfg: cfg.withDefaults(), sink: sink}
}

func (s *Socket) Kind() model.TransportKind { return model.WebSocket }

// options returns websocket-only settings for a dedicated connection that
// never reconnects on its own.
func (s *Socket) options() *socket.Options {
	opts := socket.DefaultOptions()
	opts.SetTransports(types.NewSet(socket.WebSocket))
	opts.SetTimeout(s.cfg.SocketTimeout)
	opts.SetForceNew(true)
	opts.SetReconnection(false)
	opts.SetAutoConnect(false)
	return opts
}

func (s *Socket) Start() {
	s.mu.Lock()
	old := s.detachLocked()
	s.gen++
	gen := s.gen

	s.sink.Log(model.LevelInfo, fmt.Sprintf("Attempting WebSocket connection to %s", s.cfg.BaseURL))
	s.sink.UpdateStatus(func(st *model.ConnectionStatus) {
		st.Connected = false
		st.Touch(time.Now())
	})
	s.sink.SetAborted(false)

	client, err := socket.Io(s.cfg.BaseURL, s.options())
	if err != nil {
		s.sink.Log(model.LevelError, fmt.Sprintf("WebSocket connection failed to initialize: %v", err))
		s.mu.Unlock()
		disconnect(old)
		return
	}
	s.client = client
	s.subscribe(client, gen)
	s.verify = time.AfterFunc(s.cfg.SocketVerifyAfter, func() {
		s.guard(gen, func() { s.check(client) })
	})
	s.mu.Unlock()

	disconnect(old)
	go func() {
		client.Connect()
		// A Stop that raced the dial must not leave the connection open.
		s.mu.Lock()
		stale := gen != s.gen
		s.mu.Unlock()
		if stale {
			client.Disconnect()
		}
	}()
}

func (s *Socket) subscribe(client *socket.Socket, gen uint64) {
	client.OnAny(func(args ...any) {
		if len(args) == 0 {
			return
		}
		event, _ := args[0].(string)
		s.guard(gen, func() {
			s.sink.Log(model.LevelDebug, "WebSocket Event: "+event)
		})
	})
	client.On("connect", func(...any) {
		s.guard(gen, func() { s.onConnect(client) })
	})
	client.On("disconnect", func(args ...any) {
		reason := "transport close"
		if len(args) > 0 {
			if r, ok := args[0].(string); ok {
				reason = r
			}
		}
		s.guard(gen, func() {
			s.sink.Log(model.LevelWarn, "WebSocket disconnected: "+reason)
			markDisconnected(s.sink)
			s.sink.SetAborted(false)
		})
	})
	client.On("connect_error", func(args ...any) {
		msg := connectErrorMessage(args)
		s.guard(gen, func() {
			s.sink.Log(model.LevelError, "WebSocket connection failed: "+msg)
			markDisconnected(s.sink)
			s.sink.SetAborted(false)
		})
	})

	client.On("instance_logs", func(args ...any) {
		s.guard(gen, func() {
			if len(args) > 0 {
				s.onInstanceLogs(args[0])
			}
			markConnected(s.sink)
		})
	})
	for _, event := range socketEvents {
		client.On(types.EventName(event), func(args ...any) {
			s.guard(gen, func() {
				if len(args) > 0 {
					deliverValue(s.sink, args[0], false)
				}
			})
		})
	}
}

// guard runs fn under the strategy lock if gen is still current.
func (s *Socket) guard(gen uint64, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	fn()
}

func (s *Socket) onConnect(client *socket.Socket) {
	s.sink.Log(model.LevelInfo, fmt.Sprintf("WebSocket connection established for instance %s (ID: %s)", s.cfg.InstanceID, client.Id()))

	if err := client.Emit("join_instance_room", s.cfg.InstanceID); err != nil {
		slog.Debug("websocket: join failed", "error", err)
	}
	test := map[string]string{
		"message":    "Frontend test message",
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		"instanceId": s.cfg.InstanceID,
	}
	if err := client.Emit("test", test); err != nil {
		slog.Debug("websocket: test emit failed", "error", err)
	}
	markConnected(s.sink)
}

// onInstanceLogs handles the primary event. A bare string is one delimited
// line; anything else goes through the normalizer.
func (s *Socket) onInstanceLogs(arg any) {
	if line, ok := arg.(string); ok {
		s.sink.Apply([]model.LogEntry{parser.ParseLine(line)}, false)
		return
	}
	deliverValue(s.sink, arg, false)
}

func (s *Socket) check(client *socket.Socket) {
	s.verify = nil
	if client.Connected() {
		s.sink.Log(model.LevelInfo, "WebSocket connection verified")
		return
	}
	s.sink.Log(model.LevelError, "WebSocket failed to connect - check server and network")
}

// Abort asks the server to pause log emission. It is a no-op unless the
// socket is connected.
func (s *Socket) Abort() bool {
	return s.control("abort", true, model.LevelWarn, "WebSocket log emission aborted")
}

// Continue asks the server to resume log emission. It is a no-op unless the
// socket is connected.
func (s *Socket) Continue() bool {
	return s.control("continue", false, model.LevelInfo, "WebSocket log emission resumed")
}

func (s *Socket) control(signal string, aborted bool, level model.Level, msg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil || !s.client.Connected() {
		return false
	}
	if err := s.client.Emit("control", signal); err != nil {
		slog.Debug("websocket: control emit failed", "signal", signal, "error", err)
		return false
	}
	s.sink.SetAborted(aborted)
	s.sink.Log(level, msg)
	return true
}

func (s *Socket) Stop() {
	s.mu.Lock()
	s.gen++
	old := s.detachLocked()
	s.sink.SetAborted(false)
	s.mu.Unlock()

	disconnect(old)
}

// detachLocked cancels the verification timer and hands back the current
// client for the caller to disconnect once mu is released.
func (s *Socket) detachLocked() *socket.Socket {
	if s.verify != nil {
		s.verify.Stop()
		s.verify = nil
	}
	old := s.client
	s.client = nil
	return old
}

func disconnect(client *socket.Socket) {
	if client != nil {
		client.Disconnect()
	}
}

func connectErrorMessage(args []any) string {
	if len(args) == 0 {
		return "unknown error"
	}
	switch v := args[0].(type) {
	case error:
		var ext *socket.ExtendedError
		if errors.As(v, &ext) {
			return ext.Message
		}
		return v.Error()
	case string:
		return v
	}
	return fmt.Sprint(args[0])
}
