// ============================================================================
// hardwarden controller - session loop and outer supervision loop
// ============================================================================
//
// Package: internal/controller
// Purpose: Wire the pump, classifier, tracker, penalty procedure and
// recovery manager into one supervised session, and restart sessions when
// a penalty demands it.
//
// Concurrency model:
//   The pump's producers run concurrently, but everything below them - the
//   classification, the presence/playtime bookkeeping, the dice ritual and
//   the filesystem recovery - executes on this single consumer goroutine.
//   The multi-second waits inside the ritual and the recovery procedures
//   block further event consumption by design; the narrative needs its
//   pacing, and a second death during a ritual is explicitly unsupported.
//   There is no cancellation: a wedged server wedges the supervisor on its
//   exit wait.
//
// Session lifecycle:
//   spawn -> consume lines -> (death -> ritual -> verdict)
//     verdict None + server exit   -> supervisor terminates normally
//     verdict Reset                -> stop, destroy world+backup, restart
//     verdict Rewind               -> stop, restore backup, restart
//
// Playtime is re-read from durable storage at every session start, so a
// reset that deleted the world also zeroes the clock.
//
// ============================================================================

package controller

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/okvist/hardwarden/internal/classify"
	"github.com/okvist/hardwarden/internal/config"
	"github.com/okvist/hardwarden/internal/journal"
	"github.com/okvist/hardwarden/internal/metrics"
	"github.com/okvist/hardwarden/internal/penalty"
	"github.com/okvist/hardwarden/internal/playtime"
	"github.com/okvist/hardwarden/internal/process"
	"github.com/okvist/hardwarden/internal/recovery"
	"github.com/okvist/hardwarden/internal/session"
	"github.com/okvist/hardwarden/pkg/types"
)

var log = slog.Default()

// Config wires a controller. Conf and Templates are required; the rest are
// optional collaborators and test overrides.
type Config struct {
	Conf      *config.Config
	Templates []string

	Console io.Reader          // operator console relayed to the server
	Metrics *metrics.Collector // nil disables metrics
	Journal *journal.Journal   // nil disables the journal

	// Test overrides; zero values select production behavior.
	Sleep     func(time.Duration)
	Roll      func(lo, hi int) int
	Clock     func() time.Time
	Heartbeat time.Duration
	Echo      func(string)
}

// Controller runs supervised sessions until the server exits without a
// pending penalty.
type Controller struct {
	cfg        Config
	rules      classify.Rules
	backupPath string
}

// New validates the wiring and prepares the immutable classification rules.
func New(cfg Config) (*Controller, error) {
	if cfg.Conf == nil {
		return nil, fmt.Errorf("controller requires a configuration")
	}
	backupPath, err := cfg.Conf.BackupPath()
	if err != nil {
		return nil, err
	}

	return &Controller{
		cfg: cfg,
		rules: classify.Rules{
			BracketCount:   cfg.Conf.BracketCount,
			Players:        cfg.Conf.PlayerSet(),
			AllowAll:       cfg.Conf.AllowAllPlayers,
			IgnorePhrases:  cfg.Conf.IgnorePhrases,
			DeathTemplates: cfg.Templates,
		},
		backupPath: backupPath,
	}, nil
}

// Run executes sessions until one ends without a restart signal. Setup and
// filesystem failures abort with an error; a server that exits on its own
// terminates the loop normally.
func (c *Controller) Run() error {
	for {
		restart, err := c.runSession()
		if err != nil {
			return err
		}
		if !restart {
			log.Info("server exited without penalty, shutting down")
			return nil
		}
		log.Info("restarting session")
	}
}

// runSession spawns the server and consumes its event stream until a
// penalty verdict or a self-exit. The returned bool signals a restart.
func (c *Controller) runSession() (bool, error) {
	conf := c.cfg.Conf
	sessionID := uuid.NewString()[:8]

	// Re-read persisted playtime; unreadable defaults to zero.
	store := playtime.NewStore(conf.World)
	loaded, err := store.Load()
	if err != nil {
		log.Warn("failed to read playtime, starting from zero", "error", err)
		loaded = 0
	}
	log.Info("session starting",
		"session", sessionID,
		"playtime", loaded)

	srv, err := process.Start(conf.Server, process.Options{
		Heartbeat: c.cfg.Heartbeat,
		Console:   c.cfg.Console,
		Echo:      c.cfg.Echo,
	})
	if err != nil {
		return false, err
	}
	defer srv.Close()

	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordSession()
	}
	c.journal(journal.EntrySessionStart, "", sessionID)

	tracker := session.NewTracker(store, conf.CheckpointMins, loaded)
	if c.cfg.Clock != nil {
		tracker.SetClock(c.cfg.Clock)
	}

	roller := penalty.New(penalty.Config{
		RollMin:        conf.RollRange.Min,
		RollMax:        conf.RollRange.Max,
		DeadlyRolls:    conf.DeadlyRolls,
		OnDeathCommand: conf.OnDeathCommand,
	}, srv.Send)
	roller.SetRollObserver(func(value int, deadly bool) {
		c.journal(journal.EntryRoll, "", fmt.Sprintf("rolled %d (deadly=%t)", value, deadly))
	})
	if c.cfg.Sleep != nil {
		roller.SetSleep(c.cfg.Sleep)
	}
	if c.cfg.Roll != nil {
		roller.SetRoll(c.cfg.Roll)
	}

	rec := recovery.NewManager(conf.World, c.backupPath, srv.Send)
	if c.cfg.Sleep != nil {
		rec.SetSleep(c.cfg.Sleep)
	}

	verdict := types.PenaltyNone

consume:
	for {
		select {
		case <-srv.Exited():
			// Server stopped on its own.
			break consume

		case line := <-srv.Events():
			if c.cfg.Metrics != nil {
				c.cfg.Metrics.RecordLine()
			}

			// Bookkeep playtime before anything else; a due checkpoint
			// runs synchronously, pausing further consumption.
			due, err := tracker.Tick()
			if err != nil {
				return false, err
			}
			if due && conf.MakeBackups {
				if err := rec.Checkpoint(); err != nil {
					return false, err
				}
				c.journal(journal.EntryCheckpoint, "", fmt.Sprintf("playtime %s", tracker.Playtime()))
				if c.cfg.Metrics != nil {
					c.cfg.Metrics.RecordCheckpoint()
				}
			}

			event := classify.Classify(line, c.rules)
			switch event.Kind {
			case types.EventJoin:
				tracker.Join(event.Player)
				c.journal(journal.EntryJoin, string(event.Player), "")
				if c.cfg.Metrics != nil {
					c.cfg.Metrics.RecordJoin()
				}

			case types.EventLeave:
				tracker.Leave(event.Player)
				c.journal(journal.EntryLeave, string(event.Player), "")
				if c.cfg.Metrics != nil {
					c.cfg.Metrics.RecordLeave()
				}

			case types.EventDeath:
				c.journal(journal.EntryDeath, string(event.Player), "")
				if c.cfg.Metrics != nil {
					c.cfg.Metrics.RecordDeath()
				}
				verdict = roller.OnDeath(event.Player)
				if verdict != types.PenaltyNone {
					// Stop consuming the instant a penalty is pending.
					break consume
				}
			}

			if c.cfg.Metrics != nil {
				c.cfg.Metrics.UpdateState(tracker.Playtime().Seconds(), tracker.OnlineCount())
			}
		}
	}

	switch verdict {
	case types.PenaltyRewind:
		// Degrades to a reset when no backup exists. The drain matters:
		// nothing else consumes events anymore, and a chatty server could
		// otherwise back up the pipe readers and never be reaped.
		hadBackup := rec.BackupExists()
		if err := rec.Rewind(srv.WaitDrain); err != nil {
			return false, err
		}
		if hadBackup {
			c.journal(journal.EntryRewind, "", "")
			if c.cfg.Metrics != nil {
				c.cfg.Metrics.RecordRewind()
			}
		} else {
			c.journal(journal.EntryReset, "", "rewind without backup")
			if c.cfg.Metrics != nil {
				c.cfg.Metrics.RecordReset()
			}
		}
		return true, nil

	case types.PenaltyReset:
		if err := rec.Reset(srv.WaitDrain); err != nil {
			return false, err
		}
		c.journal(journal.EntryReset, "", "")
		if c.cfg.Metrics != nil {
			c.cfg.Metrics.RecordReset()
		}
		return true, nil

	default:
		c.journal(journal.EntrySessionEnd, "", sessionID)
		return false, nil
	}
}

// journal appends an entry when a journal is configured. Journal failures
// never interrupt the game.
func (c *Controller) journal(t journal.EntryType, player, detail string) {
	if c.cfg.Journal == nil {
		return
	}
	if err := c.cfg.Journal.Append(t, player, detail); err != nil {
		log.Warn("failed to append journal entry", "type", t, "error", err)
	}
}
