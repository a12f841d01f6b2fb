// ============================================================================
// Session state machine
// ============================================================================
//
// Package: internal/session
// Purpose: Track which players are online, accumulate playtime while any
// are, and decide when a checkpoint is due.
//
// Invariants:
//   - onlineSince is set iff the online set is non-empty.
//   - Playtime only advances while onlineSince is set, in increments of at
//     least flushThreshold, so the durable store is written at a bounded
//     rate rather than on every line.
//   - The checkpoint predicate compares interval buckets before and after
//     an advance; the 30s margin biases checkpoints to land slightly
//     before exact interval multiples rather than after.
//
// ============================================================================

package session

import (
	"log/slog"
	"time"

	"github.com/okvist/hardwarden/internal/playtime"
	"github.com/okvist/hardwarden/pkg/types"
)

var log = slog.Default()

const (
	// flushThreshold is the minimum accumulated wall time before playtime
	// is advanced and persisted.
	flushThreshold = 8 * time.Second

	// checkpointMargin shifts the checkpoint boundary so a checkpoint
	// lands up to this much before an exact interval multiple.
	checkpointMargin = 30 * time.Second
)

// Tracker is the per-session presence and playtime accumulator. It is only
// touched from the single consumer goroutine and needs no locking.
type Tracker struct {
	online      map[types.PlayerID]struct{}
	onlineSince time.Time // zero while nobody is online
	playtime    time.Duration

	store    *playtime.Store
	interval time.Duration // checkpoint interval

	now func() time.Time // injectable clock
}

// NewTracker builds a tracker starting from an already-loaded playtime.
func NewTracker(store *playtime.Store, checkpointMinutes int, loaded time.Duration) *Tracker {
	return &Tracker{
		online:   make(map[types.PlayerID]struct{}),
		playtime: loaded,
		store:    store,
		interval: time.Duration(checkpointMinutes) * time.Minute,
		now:      time.Now,
	}
}

// SetClock overrides the tracker's clock. Tests only.
func (t *Tracker) SetClock(now func() time.Time) { t.now = now }

// Join records a player coming online. The clock starts with the first one.
func (t *Tracker) Join(id types.PlayerID) {
	if len(t.online) == 0 {
		log.Info("started counting time")
		t.onlineSince = t.now()
	}
	t.online[id] = struct{}{}
	log.Info("player went online", "player", id, "online", len(t.online))
}

// Leave records a player going offline. The clock stops with the last one.
func (t *Tracker) Leave(id types.PlayerID) {
	delete(t.online, id)
	log.Info("player went offline", "player", id, "online", len(t.online))
	if len(t.online) == 0 {
		log.Info("stopped counting time")
		t.onlineSince = time.Time{}
	}
}

// Tick advances playtime if players are online and enough wall time has
// passed since the last flush. It persists the new playtime and reports
// whether a checkpoint is due. Called for every consumed line, heartbeats
// included.
func (t *Tracker) Tick() (checkpointDue bool, err error) {
	if t.onlineSince.IsZero() {
		return false, nil
	}

	now := t.now()
	adv := now.Sub(t.onlineSince)
	if adv <= flushThreshold {
		return false, nil
	}

	before := t.playtime
	t.playtime += adv
	t.onlineSince = now
	log.Debug("advancing playtime",
		"advance", adv,
		"playtime", t.playtime)

	if err := t.store.Save(t.playtime); err != nil {
		return false, err
	}

	return CheckpointDue(before, t.playtime, t.interval), nil
}

// CheckpointDue reports whether the advance from before to after crosses a
// checkpoint boundary. Deterministic in its inputs: calling it twice with
// the same pair yields the same answer.
func CheckpointDue(before, after, interval time.Duration) bool {
	if interval <= 0 {
		return false
	}
	return bucket(after, interval) > bucket(before, interval)
}

// bucket maps a playtime onto its checkpoint interval index. The margin
// shifts every boundary to land 30s before the exact interval multiple
// (570s, 1170s, ... for a 10 minute interval). Integer arithmetic over
// whole seconds.
func bucket(t, interval time.Duration) uint64 {
	secs := uint64(t / time.Second)
	ival := uint64(interval / time.Second)
	margin := uint64(checkpointMargin / time.Second)
	return (secs + margin) / ival
}

// Playtime returns the accumulated playtime as of the last flush.
func (t *Tracker) Playtime() time.Duration { return t.playtime }

// OnlineCount returns how many tracked players are currently online.
func (t *Tracker) OnlineCount() int { return len(t.online) }
