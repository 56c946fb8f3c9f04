package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/postersmith/postersmith/internal/progress"
	"github.com/postersmith/postersmith/pkg/interfaces"
)

// ProgressEventType is the event-bus topic carrying snapshot copies.
const ProgressEventType = "progress.snapshot"

// ProgressEvent wraps a snapshot for the event bus.
type ProgressEvent struct {
	Snapshot progress.Snapshot
	At       time.Time
}

// EventType implements interfaces.Event.
func (e ProgressEvent) EventType() string { return ProgressEventType }

// Timestamp implements interfaces.Event.
func (e ProgressEvent) Timestamp() int64 { return e.At.Unix() }

// NewProgressEvent builds the event published on every tracker transition.
func NewProgressEvent(snap progress.Snapshot) ProgressEvent {
	return ProgressEvent{Snapshot: snap, At: time.Now()}
}

// progressStream fans tracker snapshots out to websocket subscribers. The
// poll endpoints stay authoritative; the stream only pushes the same payload
// sooner.
type progressStream struct {
	bus      interfaces.EventBus
	logger   interfaces.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	subs   map[*streamSub]struct{}
	closed bool
}

type streamSub struct {
	ch chan progress.Snapshot
}

// Handle implements interfaces.EventHandler for the stream as a whole.
func (ps *progressStream) Handle(ctx context.Context, event interfaces.Event) error {
	pe, ok := event.(ProgressEvent)
	if !ok {
		return nil
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	for sub := range ps.subs {
		select {
		case sub.ch <- pe.Snapshot:
		default:
			// Slow consumer: drop, the next snapshot supersedes this one.
		}
	}
	return nil
}

// EventType implements interfaces.EventHandler.
func (ps *progressStream) EventType() string { return ProgressEventType }

func newProgressStream(bus interfaces.EventBus, logger interfaces.Logger) *progressStream {
	ps := &progressStream{
		bus:    bus,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Same-origin browsers and the Go client both pass.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		subs: map[*streamSub]struct{}{},
	}
	if bus != nil {
		if err := bus.Subscribe(ProgressEventType, ps); err != nil {
			logger.Error("Progress stream subscription failed", interfaces.Error(err))
		}
	}
	return ps
}

func (ps *progressStream) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := ps.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ps.logger.Warn("Websocket upgrade failed", interfaces.Error(err))
		return
	}
	defer conn.Close()

	sub := &streamSub{ch: make(chan progress.Snapshot, 16)}
	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		return
	}
	ps.subs[sub] = struct{}{}
	ps.mu.Unlock()

	defer func() {
		ps.mu.Lock()
		delete(ps.subs, sub)
		ps.mu.Unlock()
	}()

	// Reader goroutine: we never expect client messages, but reading is how
	// close frames and dead peers are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case snap := <-sub.ch:
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		}
	}
}

func (ps *progressStream) close() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.closed = true
}
