package client

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/postersmith/postersmith/pkg/models"
)

// Poll interval tiers. Scans run for minutes and are polled coarsely; batch
// runs are watched live in a modal and poll fast.
const (
	ScanPollInterval  = 3 * time.Second
	BatchPollInterval = 200 * time.Millisecond
)

// SnapshotFetcher retrieves the current snapshot for one kind. *Client's
// Progress method satisfies it via a closure.
type SnapshotFetcher func(ctx context.Context) (models.Snapshot, error)

// Poller repeatedly fetches a snapshot and hands it to a sink, typically a
// Projector. It stops itself once a run is confirmed over, and must be
// stopped explicitly on teardown so no timer outlives the view that reads it.
type Poller struct {
	fetch    SnapshotFetcher
	sink     func(models.Snapshot)
	interval time.Duration
	clock    clockwork.Clock

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	done      chan struct{}
}

// NewPoller creates a poller. A nil clock means the wall clock.
func NewPoller(fetch SnapshotFetcher, sink func(models.Snapshot), interval time.Duration, clock clockwork.Clock) *Poller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Poller{
		fetch:    fetch,
		sink:     sink,
		interval: interval,
		clock:    clock,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start issues an immediate fetch and then polls on the interval until Stop
// is called or the run is confirmed terminal. Calling Start twice is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		go p.loop(ctx)
	})
}

// Stop halts polling. It is idempotent and safe to call before Start.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
}

// Done is closed when the poll loop has exited, whether by Stop or by the
// self-stop condition.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	state := p.poll(ctx, notTerminal)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			state = p.poll(ctx, state)
			// Stop only after a terminal snapshot was seen twice: the first
			// observation is delivered to the sink, the second confirms the
			// job is no longer running.
			if state == confirmedTerminal {
				return
			}
		}
	}
}

type terminalState = int

const (
	notTerminal terminalState = iota
	seenTerminal
	confirmedTerminal
)

// poll runs one fetch. Transport errors are skipped silently: they must not
// reach the sink, and the poller just tries again next tick.
func (p *Poller) poll(ctx context.Context, prev terminalState) terminalState {
	snap, err := p.fetch(ctx)
	if err != nil {
		return prev
	}
	p.sink(snap)

	if !snap.Terminal() {
		return notTerminal
	}
	if prev >= seenTerminal {
		return confirmedTerminal
	}
	return seenTerminal
}
