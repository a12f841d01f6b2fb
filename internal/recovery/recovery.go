// ============================================================================
// Backup & world recovery manager
// ============================================================================
//
// Package: internal/recovery
// Purpose: Checkpoint backups, world resets and rewinds, coordinated with
// the managed process's lifecycle.
//
// Sequencing rules:
//   - A checkpoint pauses the server's own saving (save-all / save-off)
//     before copying and re-enables it after. Not transactional: a crash
//     mid-copy leaves a partial backup, accepted because the server is
//     paused for the duration.
//   - Reset and rewind first stop the server and join on its exit; only
//     then is the world directory mutated. The world and backup trees are
//     touched by no one else while the process is down, so no filesystem
//     locking is needed.
//   - A rewind without an existing backup degrades to the reset behavior.
//
// ============================================================================

package recovery

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

var log = slog.Default()

// Manager mutates the world and backup directories for one session.
type Manager struct {
	worldDir  string
	backupDir string // full backup path: backup_dir/<world name>

	send  func(string)        // command sink, fire-and-forget
	sleep func(time.Duration) // injectable for tests
}

// NewManager builds a manager announcing through send.
func NewManager(worldDir, backupDir string, send func(string)) *Manager {
	return &Manager{
		worldDir:  worldDir,
		backupDir: backupDir,
		send:      send,
		sleep:     time.Sleep,
	}
}

// SetSleep overrides the pacing sleep. Tests only.
func (m *Manager) SetSleep(sleep func(time.Duration)) { m.sleep = sleep }

// BackupExists reports whether a checkpoint backup is present.
func (m *Manager) BackupExists() bool {
	_, err := os.Stat(m.backupDir)
	return err == nil
}

// Checkpoint replaces the backup with a fresh recursive copy of the world,
// pausing the server's autosave around the copy.
func (m *Manager) Checkpoint() error {
	log.Info("making backup", "world", m.worldDir, "backup", m.backupDir)

	if m.BackupExists() {
		if err := os.RemoveAll(m.backupDir); err != nil {
			return fmt.Errorf("failed to remove old backup: %w", err)
		}
	}

	m.send("save-all")
	m.sleep(5 * time.Second)
	m.send("save-off")
	m.sleep(1 * time.Second)

	if err := copyDir(m.worldDir, m.backupDir); err != nil {
		return fmt.Errorf("failed to copy world to backup: %w", err)
	}

	m.send("save-on")
	m.send("say Checkpoint!")
	return nil
}

// Reset destroys the world and any backup after stopping the server.
// wait must block until the managed process has fully exited.
func (m *Manager) Reset(wait func() error) error {
	log.Info("resetting world")

	m.send("say Destroying world...")
	m.sleep(2 * time.Second)
	m.send("stop")
	if err := wait(); err != nil {
		log.Warn("server exited with error during reset", "error", err)
	}

	log.Info("deleting world directory", "path", m.worldDir)
	if err := os.RemoveAll(m.worldDir); err != nil {
		return fmt.Errorf("failed to delete world: %w", err)
	}
	if m.BackupExists() {
		log.Info("deleting backup directory", "path", m.backupDir)
		if err := os.RemoveAll(m.backupDir); err != nil {
			return fmt.Errorf("failed to delete backup: %w", err)
		}
	}
	return nil
}

// Rewind restores the world from the last backup after stopping the
// server. Without a backup it degrades to Reset.
func (m *Manager) Rewind(wait func() error) error {
	if !m.BackupExists() {
		log.Warn("no backup to rewind to, resetting instead")
		return m.Reset(wait)
	}

	log.Info("restoring backup")

	m.send("say Winding back...")
	m.sleep(2 * time.Second)
	m.send("stop")
	if err := wait(); err != nil {
		log.Warn("server exited with error during rewind", "error", err)
	}

	log.Info("deleting world directory", "path", m.worldDir)
	if err := os.RemoveAll(m.worldDir); err != nil {
		return fmt.Errorf("failed to delete world: %w", err)
	}

	log.Info("copying backup to world", "backup", m.backupDir, "world", m.worldDir)
	if err := copyDir(m.backupDir, m.worldDir); err != nil {
		return fmt.Errorf("failed to restore backup: %w", err)
	}
	return nil
}

// copyDir recursively copies src into dst, creating missing directories
// and copying regular file contents byte for byte. Symbolic links and
// other special files are skipped with a warning.
func copyDir(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		from := filepath.Join(src, entry.Name())
		to := filepath.Join(dst, entry.Name())

		switch {
		case entry.IsDir():
			if err := copyDir(from, to); err != nil {
				return err
			}
		case entry.Type().IsRegular():
			if err := copyFile(from, to); err != nil {
				return err
			}
		default:
			log.Warn("skipping non-regular file in copy", "path", from)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
