// Package progress holds the authoritative server-side record of the two
// long-running operation kinds. The tracker is the single shared mutable
// resource in the service: one writer per kind (the active runner), any
// number of polling readers.
package progress

import (
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/postersmith/postersmith/pkg/errors"
	"github.com/postersmith/postersmith/pkg/models"
)

// The snapshot record and its enums live in pkg/models so pollers outside
// the module can decode them; the tracker here is their single writer.
type (
	Kind     = models.Kind
	State    = models.State
	Snapshot = models.Snapshot
)

const (
	KindScan  = models.KindScan
	KindBatch = models.KindBatch

	StateIdle    = models.StateIdle
	StateRunning = models.StateRunning
	StateDone    = models.StateDone
	StateError   = models.StateError
)

// maxLogLines bounds the per-operation log kept in memory.
const maxLogLines = 200

// Update is a partial merge applied to a running snapshot. Nil fields are
// left unchanged.
type Update struct {
	Processed   *int
	Total       *int
	CurrentItem *string
	CurrentStep *string
	AppendLog   string
}

// Tracker records progress for each operation kind.
type Tracker struct {
	mu        sync.RWMutex
	snapshots map[Kind]*Snapshot
	clock     clockwork.Clock
	notify    func(Snapshot)
}

// NewTracker creates a tracker with idle snapshots for both kinds.
func NewTracker(clock clockwork.Clock) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tracker{
		snapshots: map[Kind]*Snapshot{
			KindScan:  {Kind: KindScan, State: StateIdle, Log: []string{}},
			KindBatch: {Kind: KindBatch, State: StateIdle, Log: []string{}},
		},
		clock: clock,
	}
}

// SetNotify registers a callback invoked with a snapshot copy after every
// successful transition. Used to feed the streaming endpoint; pollers do not
// depend on it.
func (t *Tracker) SetNotify(fn func(Snapshot)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notify = fn
}

// Start transitions kind to running, resetting all fields. A second Start
// while running fails with a conflict and leaves the live snapshot untouched.
func (t *Tracker) Start(kind Kind) error {
	t.mu.Lock()
	snap, ok := t.snapshots[kind]
	if !ok {
		t.mu.Unlock()
		return errors.BadRequest(fmt.Sprintf("unknown operation kind %q", kind))
	}
	if snap.State == StateRunning {
		t.mu.Unlock()
		return errors.Conflict(fmt.Sprintf("%s already running", kind))
	}
	t.snapshots[kind] = &Snapshot{Kind: kind, State: StateRunning, Log: []string{}}
	out := t.copyLocked(kind)
	notify := t.notify
	t.mu.Unlock()

	if notify != nil {
		notify(out)
	}
	return nil
}

// Apply merges an update into the running snapshot for kind. Updates against
// a non-running snapshot fail with a conflict.
func (t *Tracker) Apply(kind Kind, u Update) error {
	t.mu.Lock()
	snap, ok := t.snapshots[kind]
	if !ok || snap.State != StateRunning {
		t.mu.Unlock()
		return errors.Conflict(fmt.Sprintf("%s not running", kind))
	}

	if u.Total != nil && *u.Total >= 0 {
		snap.Total = *u.Total
	}
	if u.Processed != nil && *u.Processed >= snap.Processed {
		snap.Processed = *u.Processed
		// processed never exceeds total once total is known
		if snap.Total > 0 && snap.Processed > snap.Total {
			snap.Processed = snap.Total
		}
	}
	if u.CurrentItem != nil {
		snap.CurrentItem = *u.CurrentItem
	}
	if u.CurrentStep != nil {
		snap.CurrentStep = *u.CurrentStep
	}
	if u.AppendLog != "" {
		snap.Log = append(snap.Log, u.AppendLog)
		if len(snap.Log) > maxLogLines {
			snap.Log = snap.Log[len(snap.Log)-maxLogLines:]
		}
	}

	out := t.copyLocked(kind)
	notify := t.notify
	t.mu.Unlock()

	if notify != nil {
		notify(out)
	}
	return nil
}

// Finish transitions running → done with the final counters.
func (t *Tracker) Finish(kind Kind, processed, total int) error {
	return t.complete(kind, StateDone, processed, total, "")
}

// Fail transitions running → error with a descriptive message.
func (t *Tracker) Fail(kind Kind, message string) error {
	t.mu.RLock()
	snap := t.snapshots[kind]
	processed, total := 0, 0
	if snap != nil {
		processed, total = snap.Processed, snap.Total
	}
	t.mu.RUnlock()
	return t.complete(kind, StateError, processed, total, message)
}

func (t *Tracker) complete(kind Kind, state State, processed, total int, errMsg string) error {
	t.mu.Lock()
	snap, ok := t.snapshots[kind]
	if !ok || snap.State != StateRunning {
		t.mu.Unlock()
		return errors.Conflict(fmt.Sprintf("%s not running", kind))
	}

	now := t.clock.Now()
	snap.State = state
	snap.Processed = processed
	snap.Total = total
	snap.CurrentItem = ""
	snap.CurrentStep = ""
	snap.Error = errMsg
	snap.FinishedAt = &now

	out := t.copyLocked(kind)
	notify := t.notify
	t.mu.Unlock()

	if notify != nil {
		notify(out)
	}
	return nil
}

// Snapshot returns a read-only copy of the last known snapshot for kind. It
// never blocks on a running job.
func (t *Tracker) Snapshot(kind Kind) Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.copyLocked(kind)
}

func (t *Tracker) copyLocked(kind Kind) Snapshot {
	snap, ok := t.snapshots[kind]
	if !ok {
		return Snapshot{Kind: kind, State: StateIdle, Log: []string{}}
	}
	out := *snap
	out.Log = append([]string(nil), snap.Log...)
	if snap.FinishedAt != nil {
		ts := *snap.FinishedAt
		out.FinishedAt = &ts
	}
	return out
}

// IntPtr is a convenience for building Updates.
func IntPtr(v int) *int { return &v }

// StrPtr is a convenience for building Updates.
func StrPtr(v string) *string { return &v }
