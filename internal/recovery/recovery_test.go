package recovery

// ============================================================================
// Recovery manager tests
// Purpose: Verify checkpoint backups, resets, rewinds, degradation without
// a backup, and the recursive copy semantics.
// ============================================================================

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// harness builds a world tree with nested content and a manager whose
// sends are captured and whose sleeps are skipped.
type harness struct {
	world   string
	backup  string
	sent    []string
	manager *Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	base := t.TempDir()
	h := &harness{
		world:  filepath.Join(base, "world"),
		backup: filepath.Join(base, "backups", "world"),
	}

	require.NoError(t, os.MkdirAll(filepath.Join(h.world, "region"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(h.world, "level.dat"), []byte("level"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(h.world, "region", "r.0.0.mca"), []byte("chunks"), 0o644))

	h.manager = NewManager(h.world, h.backup, func(cmd string) { h.sent = append(h.sent, cmd) })
	h.manager.SetSleep(func(time.Duration) {})
	return h
}

func waitOK() error { return nil }

func TestCheckpointCreatesBackup(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.manager.Checkpoint())

	assert.True(t, h.manager.BackupExists())
	data, err := os.ReadFile(filepath.Join(h.backup, "region", "r.0.0.mca"))
	require.NoError(t, err)
	assert.Equal(t, []byte("chunks"), data)

	// The server is paused around the copy and resumed after.
	assert.Equal(t, []string{"save-all", "save-off", "save-on", "say Checkpoint!"}, h.sent)
}

func TestCheckpointReplacesOldBackup(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, os.MkdirAll(h.backup, 0o755))
	stale := filepath.Join(h.backup, "stale.dat")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	require.NoError(t, h.manager.Checkpoint())

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "stale backup content must be gone")
	assert.FileExists(t, filepath.Join(h.backup, "level.dat"))
}

func TestResetDestroysWorldAndBackup(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.manager.Checkpoint())
	h.sent = nil

	require.NoError(t, h.manager.Reset(waitOK))

	assert.NoDirExists(t, h.world)
	assert.NoDirExists(t, h.backup)
	assert.Equal(t, []string{"say Destroying world...", "stop"}, h.sent)
}

func TestResetWithoutBackup(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.manager.Reset(waitOK))

	assert.NoDirExists(t, h.world)
	assert.NoDirExists(t, h.backup)
}

func TestRewindRestoresBackup(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.manager.Checkpoint())

	// Mutate the world after the checkpoint.
	require.NoError(t, os.WriteFile(filepath.Join(h.world, "level.dat"), []byte("corrupted"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(h.world, "new.dat"), []byte("post-checkpoint"), 0o644))
	h.sent = nil

	require.NoError(t, h.manager.Rewind(waitOK))

	data, err := os.ReadFile(filepath.Join(h.world, "level.dat"))
	require.NoError(t, err)
	assert.Equal(t, []byte("level"), data, "world content rewound to checkpoint")

	_, err = os.Stat(filepath.Join(h.world, "new.dat"))
	assert.True(t, os.IsNotExist(err), "post-checkpoint files must be gone")

	assert.True(t, h.manager.BackupExists(), "rewind keeps the backup")
	assert.Equal(t, []string{"say Winding back...", "stop"}, h.sent)
}

// TestRewindWithoutBackupDegradesToReset verifies the deterministic
// degradation: world deleted, no restore attempted.
func TestRewindWithoutBackupDegradesToReset(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.manager.Rewind(waitOK))

	assert.NoDirExists(t, h.world)
	assert.NoDirExists(t, h.backup)
	assert.Equal(t, []string{"say Destroying world...", "stop"}, h.sent)
}

func TestCopySkipsSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks not exercised on windows")
	}
	h := newHarness(t)
	require.NoError(t, os.Symlink(filepath.Join(h.world, "level.dat"), filepath.Join(h.world, "link.dat")))

	require.NoError(t, h.manager.Checkpoint())

	assert.FileExists(t, filepath.Join(h.backup, "level.dat"))
	_, err := os.Lstat(filepath.Join(h.backup, "link.dat"))
	assert.True(t, os.IsNotExist(err), "symlink skipped, not copied")
}
