package session

// ============================================================================
// Session tracker tests
// Purpose: Verify presence transitions, bounded playtime accumulation,
// persistence on flush, and the checkpoint bucket predicate.
// ============================================================================

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okvist/hardwarden/internal/playtime"
)

// fakeClock steps manually so accumulation is deterministic.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTracker(t *testing.T, checkpointMinutes int, loaded time.Duration) (*Tracker, *fakeClock, *playtime.Store) {
	t.Helper()
	store := playtime.NewStore(t.TempDir())
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	tracker := NewTracker(store, checkpointMinutes, loaded)
	tracker.SetClock(clock.Now)
	return tracker, clock, store
}

// TestNoAdvanceWhileOffline verifies playtime never moves while nobody is
// online, however much wall time passes.
func TestNoAdvanceWhileOffline(t *testing.T) {
	tracker, clock, _ := newTracker(t, 10, 0)

	clock.Advance(time.Hour)
	due, err := tracker.Tick()
	require.NoError(t, err)
	assert.False(t, due)
	assert.Equal(t, time.Duration(0), tracker.Playtime())
}

// TestAdvanceAndPersist verifies a flush adds exactly the elapsed wall time
// and writes it to the store.
func TestAdvanceAndPersist(t *testing.T) {
	tracker, clock, store := newTracker(t, 10, 0)

	tracker.Join("Steve")
	clock.Advance(10 * time.Second)
	due, err := tracker.Tick()
	require.NoError(t, err)
	assert.False(t, due)
	assert.Equal(t, 10*time.Second, tracker.Playtime())

	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, persisted)
}

// TestBoundedIncrements verifies no flush happens under the 8s threshold
// and that a flush is never double-counted.
func TestBoundedIncrements(t *testing.T) {
	tracker, clock, _ := newTracker(t, 10, 0)

	tracker.Join("Steve")
	clock.Advance(5 * time.Second)
	due, err := tracker.Tick()
	require.NoError(t, err)
	assert.False(t, due)
	assert.Equal(t, time.Duration(0), tracker.Playtime(), "below threshold, no flush")

	clock.Advance(5 * time.Second)
	_, err = tracker.Tick()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, tracker.Playtime(), "full elapsed time counted once")

	// Immediately ticking again adds nothing.
	_, err = tracker.Tick()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, tracker.Playtime())
}

// TestClockStopsWithLastPlayer verifies leave transitions stop accumulation
// only when the online set empties.
func TestClockStopsWithLastPlayer(t *testing.T) {
	tracker, clock, _ := newTracker(t, 10, 0)

	tracker.Join("Steve")
	tracker.Join("Alex")
	assert.Equal(t, 2, tracker.OnlineCount())

	tracker.Leave("Steve")
	clock.Advance(10 * time.Second)
	_, err := tracker.Tick()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, tracker.Playtime(), "still counting with one player online")

	tracker.Leave("Alex")
	clock.Advance(time.Hour)
	_, err = tracker.Tick()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, tracker.Playtime(), "stopped counting when empty")
}

// TestLoadedPlaytimeCarriesOver verifies the tracker continues from the
// playtime loaded at session start.
func TestLoadedPlaytimeCarriesOver(t *testing.T) {
	tracker, clock, _ := newTracker(t, 10, 550*time.Second)

	tracker.Join("Steve")
	clock.Advance(51 * time.Second)
	due, err := tracker.Tick()
	require.NoError(t, err)
	assert.Equal(t, 601*time.Second, tracker.Playtime())
	assert.True(t, due, "550s -> 601s crosses the 10 minute boundary")
}

// TestCheckpointDue verifies the bucket arithmetic, including the 30s
// margin that biases checkpoints slightly before interval multiples.
func TestCheckpointDue(t *testing.T) {
	interval := 10 * time.Minute

	tests := []struct {
		name   string
		before time.Duration
		after  time.Duration
		want   bool
	}{
		{"crosses shifted boundary", 550 * time.Second, 601 * time.Second, true},
		{"inside same bucket", 100 * time.Second, 200 * time.Second, false},
		{"exactly at shifted boundary", 560 * time.Second, 570 * time.Second, true},
		{"just under shifted boundary", 550 * time.Second, 569 * time.Second, false},
		{"second interval", 1150 * time.Second, 1200 * time.Second, true},
		{"no movement", 601 * time.Second, 601 * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckpointDue(tt.before, tt.after, interval)
			assert.Equal(t, tt.want, got)

			// Idempotent: the same pair always yields the same answer.
			assert.Equal(t, got, CheckpointDue(tt.before, tt.after, interval))
		})
	}
}
