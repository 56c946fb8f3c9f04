package client

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/postersmith/postersmith/pkg/models"
)

// HideDelay is how long a completion stays on screen before auto-hiding.
const HideDelay = 5 * time.Second

// Projection is the UI-ready state derived from raw snapshots.
type Projection struct {
	Visible     bool
	State       models.State
	Processed   int
	Total       int
	CurrentItem string
	CurrentStep string
	Error       string
}

// Projector is a session-scoped presentation state machine. Its one subtle
// job: a terminal snapshot from a run this session never saw running is
// stale and must not flash a completion banner.
type Projector struct {
	mu    sync.Mutex
	clock clockwork.Clock

	projection       Projection
	activeRunStarted bool
	hideTimer        clockwork.Timer
	hideGen          int
}

// NewProjector creates a projector. A nil clock means the wall clock.
func NewProjector(clock clockwork.Clock) *Projector {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Projector{
		clock:      clock,
		projection: Projection{State: models.StateIdle},
	}
}

// Apply feeds one snapshot into the state machine. Snapshots are total
// overwrites, so a late-arriving older snapshot is self-correcting.
func (p *Projector) Apply(snap models.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case snap.State == models.StateRunning:
		p.cancelHideLocked()
		p.activeRunStarted = true
		p.projection = Projection{
			Visible:     true,
			State:       models.StateRunning,
			Processed:   snap.Processed,
			Total:       snap.Total,
			CurrentItem: snap.CurrentItem,
			CurrentStep: snap.CurrentStep,
		}

	case snap.Terminal():
		if !p.activeRunStarted {
			// The poller re-fetches a terminal snapshot once to confirm the
			// run is over; that re-delivery must not count as stale while
			// the completion is still on screen waiting for its hide timer.
			if p.projection.Visible && p.projection.State == snap.State {
				return
			}
			// Stale completion from a run this session never watched.
			p.cancelHideLocked()
			p.projection = Projection{State: snap.State}
			return
		}
		p.activeRunStarted = false
		p.projection = Projection{
			Visible:   true,
			State:     snap.State,
			Processed: snap.Processed,
			Total:     snap.Total,
			Error:     snap.Error,
		}
		p.scheduleHideLocked()

	default: // idle
		p.projection = Projection{State: models.StateIdle}
	}
}

// Reset forces idle, clearing every field and any pending hide timer.
func (p *Projector) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelHideLocked()
	p.activeRunStarted = false
	p.projection = Projection{State: models.StateIdle}
}

// Projection returns a copy of the current UI state.
func (p *Projector) Projection() Projection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.projection
}

func (p *Projector) scheduleHideLocked() {
	p.cancelHideLocked()
	p.hideGen++
	gen := p.hideGen
	p.hideTimer = p.clock.AfterFunc(HideDelay, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		// A newer run may have started between fire and lock acquisition.
		if gen != p.hideGen {
			return
		}
		p.projection = Projection{State: models.StateIdle}
	})
}

func (p *Projector) cancelHideLocked() {
	p.hideGen++
	if p.hideTimer != nil {
		p.hideTimer.Stop()
		p.hideTimer = nil
	}
}
