// ============================================================================
// Playtime store
// ============================================================================
//
// Package: internal/playtime
// Purpose: Persist the accumulated playtime for a world as a single scalar
// (seconds elapsed), read at session start and overwritten after each
// playtime advance.
//
// The file lives inside the world directory, so a world reset wipes the
// clock along with everything else — which is the intended permadeath
// semantics.
//
// ============================================================================

package playtime

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const fileName = "playtime.txt"

// Store reads and writes the playtime file of one world.
type Store struct {
	path string
}

// NewStore returns a store rooted at the given world directory.
func NewStore(worldDir string) *Store {
	return &Store{path: filepath.Join(worldDir, fileName)}
}

// Path returns the playtime file location.
func (s *Store) Path() string { return s.path }

// Load reads the persisted playtime. Callers are expected to downgrade a
// load failure to a warning and start from zero.
func (s *Store) Load() (time.Duration, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0, fmt.Errorf("failed to read playtime: %w", err)
	}
	secs, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse playtime: %w", err)
	}
	return time.Duration(secs) * time.Second, nil
}

// Save overwrites the persisted playtime. The write is atomic (temp file +
// rename) so a crash mid-write never leaves a corrupt clock.
func (s *Store) Save(d time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create world directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	data := strconv.FormatUint(uint64(d/time.Second), 10)
	if err := os.WriteFile(tmpPath, []byte(data), 0o644); err != nil {
		return fmt.Errorf("failed to write temp playtime: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename playtime: %w", err)
	}
	return nil
}
