// ============================================================================
// Death / penalty decision procedure
// ============================================================================
//
// Package: internal/penalty
// Purpose: Run the randomized death ritual and yield a verdict.
//
// The ritual deliberately runs synchronously on the event-loop goroutine
// and sleeps between chat announcements: the pacing is part of the game,
// and handling a second death concurrently is explicitly unsupported.
//
// ============================================================================

package penalty

import (
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/okvist/hardwarden/pkg/types"
)

var log = slog.Default()

// usernamePlaceholder is substituted in the configured on-death command.
const usernamePlaceholder = "{username}"

// Roller runs the dice ritual for death events.
type Roller struct {
	min, max       int
	deadly         map[int]struct{}
	onDeathCommand string

	send   func(string)                  // command sink, fire-and-forget
	sleep  func(time.Duration)          // injectable for tests
	roll   func(lo, hi int) int         // uniform in [lo, hi], injectable
	onRoll func(value int, deadly bool) // optional observer (journal/metrics)
}

// Config holds the ritual parameters from the supervisor configuration.
type Config struct {
	RollMin        int
	RollMax        int
	DeadlyRolls    []int
	OnDeathCommand string
}

// New builds a roller that announces through send.
func New(cfg Config, send func(string)) *Roller {
	deadly := make(map[int]struct{}, len(cfg.DeadlyRolls))
	for _, n := range cfg.DeadlyRolls {
		deadly[n] = struct{}{}
	}
	return &Roller{
		min:            cfg.RollMin,
		max:            cfg.RollMax,
		deadly:         deadly,
		onDeathCommand: cfg.OnDeathCommand,
		send:           send,
		sleep:          time.Sleep,
		roll: func(lo, hi int) int {
			return lo + rand.Intn(hi-lo+1)
		},
	}
}

// SetSleep overrides the pacing sleep. Tests only.
func (r *Roller) SetSleep(sleep func(time.Duration)) { r.sleep = sleep }

// SetRoll overrides the dice draw. Tests only.
func (r *Roller) SetRoll(roll func(lo, hi int) int) { r.roll = roll }

// SetRollObserver registers a callback invoked with every roll result.
func (r *Roller) SetRollObserver(fn func(value int, deadly bool)) { r.onRoll = fn }

// OnDeath runs the ritual for one death and returns the verdict. It blocks
// for the duration of the announcements.
func (r *Roller) OnDeath(player types.PlayerID) types.Penalty {
	log.Info("player died, rolling dice", "player", player)

	if r.onDeathCommand != "" {
		r.send(strings.ReplaceAll(r.onDeathCommand, usernamePlaceholder, string(player)))
	}

	r.send(fmt.Sprintf("say %s died", player))
	r.sleep(3 * time.Second)

	r.send("say Rolling dice...")
	r.sleep(6 * time.Second)

	value := r.roll(r.min, r.max)
	r.send(fmt.Sprintf("say Rolled %d", value))
	r.sleep(2 * time.Second)

	_, fatal := r.deadly[value]
	if r.onRoll != nil {
		r.onRoll(value, fatal)
	}

	if fatal {
		r.send("say Always lucky boii")
		r.sleep(1 * time.Second)
		log.Info("rolled bad number", "roll", value)
		return types.PenaltyReset
	}

	log.Info("rolled good number", "roll", value)
	return types.PenaltyNone
}
