package client

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postersmith/postersmith/pkg/models"
)

func runningSnap(processed, total int) models.Snapshot {
	return models.Snapshot{
		Kind:        models.KindBatch,
		State:       models.StateRunning,
		Processed:   processed,
		Total:       total,
		CurrentItem: "item",
		CurrentStep: "rendering",
	}
}

func doneSnap(processed, total int) models.Snapshot {
	return models.Snapshot{
		Kind:      models.KindBatch,
		State:     models.StateDone,
		Processed: processed,
		Total:     total,
	}
}

func TestStaleCompletionStaysHidden(t *testing.T) {
	projector := NewProjector(clockwork.NewFakeClock())

	projector.Apply(doneSnap(10, 10))

	proj := projector.Projection()
	assert.False(t, proj.Visible)
}

func TestWatchedRunShowsCompletionThenAutoHides(t *testing.T) {
	clock := clockwork.NewFakeClock()
	projector := NewProjector(clock)

	projector.Apply(runningSnap(3, 10))
	proj := projector.Projection()
	assert.True(t, proj.Visible)
	assert.Equal(t, models.StateRunning, proj.State)
	assert.Equal(t, 3, proj.Processed)
	assert.Equal(t, "rendering", proj.CurrentStep)

	projector.Apply(doneSnap(10, 10))
	proj = projector.Projection()
	assert.True(t, proj.Visible)
	assert.Equal(t, models.StateDone, proj.State)
	assert.Equal(t, 10, proj.Processed)

	clock.Advance(HideDelay + time.Millisecond)
	require.Eventually(t, func() bool {
		return !projector.Projection().Visible
	}, time.Second, 5*time.Millisecond)

	proj = projector.Projection()
	assert.Equal(t, models.StateIdle, proj.State)
	assert.Empty(t, proj.CurrentItem)
	assert.Empty(t, proj.CurrentStep)
	assert.Zero(t, proj.Processed)
}

func TestConfirmingRedeliveryKeepsBannerUntilHideDelay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	projector := NewProjector(clock)

	projector.Apply(runningSnap(9, 10))
	projector.Apply(doneSnap(10, 10))
	require.True(t, projector.Projection().Visible)

	// The poller re-fetches the terminal snapshot one tick later to confirm
	// the run is over. That identical delivery must not tear the banner down.
	clock.Advance(BatchPollInterval)
	projector.Apply(doneSnap(10, 10))

	proj := projector.Projection()
	assert.True(t, proj.Visible)
	assert.Equal(t, models.StateDone, proj.State)
	assert.Equal(t, 10, proj.Processed)

	// Only the hide delay takes it down.
	clock.Advance(HideDelay + time.Millisecond)
	require.Eventually(t, func() bool {
		return !projector.Projection().Visible
	}, time.Second, 5*time.Millisecond)
}

func TestNewRunningCancelsPendingHide(t *testing.T) {
	clock := clockwork.NewFakeClock()
	projector := NewProjector(clock)

	projector.Apply(runningSnap(9, 10))
	projector.Apply(doneSnap(10, 10))

	// New run starts while the old run's hide timer is pending.
	clock.Advance(2 * time.Second)
	projector.Apply(runningSnap(1, 20))

	// The old timer would have fired by now; the new run must stay visible.
	clock.Advance(HideDelay)
	time.Sleep(20 * time.Millisecond)

	proj := projector.Projection()
	assert.True(t, proj.Visible)
	assert.Equal(t, models.StateRunning, proj.State)
	assert.Equal(t, 1, proj.Processed)
	assert.Equal(t, 20, proj.Total)
}

func TestErrorCompletionShowsErrorState(t *testing.T) {
	projector := NewProjector(clockwork.NewFakeClock())

	projector.Apply(runningSnap(2, 5))
	projector.Apply(models.Snapshot{
		Kind:      models.KindScan,
		State:     models.StateError,
		Processed: 2,
		Total:     5,
		Error:     "plex unreachable",
	})

	proj := projector.Projection()
	assert.True(t, proj.Visible)
	assert.Equal(t, models.StateError, proj.State)
	assert.Equal(t, "plex unreachable", proj.Error)
}

func TestSecondCompletionAfterHideIsStale(t *testing.T) {
	clock := clockwork.NewFakeClock()
	projector := NewProjector(clock)

	projector.Apply(runningSnap(1, 2))
	projector.Apply(doneSnap(2, 2))

	clock.Advance(HideDelay + time.Millisecond)
	require.Eventually(t, func() bool {
		return !projector.Projection().Visible
	}, time.Second, 5*time.Millisecond)

	// The same terminal snapshot arriving again (e.g. one more poll) must
	// not resurrect the banner: activeRunStarted was cleared.
	projector.Apply(doneSnap(2, 2))
	assert.False(t, projector.Projection().Visible)
}

func TestResetClearsEverything(t *testing.T) {
	clock := clockwork.NewFakeClock()
	projector := NewProjector(clock)

	projector.Apply(runningSnap(3, 10))
	projector.Reset()

	proj := projector.Projection()
	assert.False(t, proj.Visible)
	assert.Equal(t, models.StateIdle, proj.State)

	// A terminal snapshot after reset is stale: the active-run mark is gone.
	projector.Apply(doneSnap(10, 10))
	assert.False(t, projector.Projection().Visible)
}

func TestIdleSnapshotHides(t *testing.T) {
	projector := NewProjector(clockwork.NewFakeClock())

	projector.Apply(runningSnap(1, 2))
	projector.Apply(models.Snapshot{Kind: models.KindBatch, State: models.StateIdle})

	assert.False(t, projector.Projection().Visible)
}
