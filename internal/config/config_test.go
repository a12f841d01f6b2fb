package config

// ============================================================================
// Configuration tests
// Purpose: Verify YAML loading, validation rules, the player set, and the
// backup path derivation.
// ============================================================================

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hardwarden.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// validConfig returns a configuration passing every validation rule, with
// world and backup directories that actually exist.
func validConfig(t *testing.T) Config {
	t.Helper()
	base := t.TempDir()
	world := filepath.Join(base, "world")
	backups := filepath.Join(base, "backups")
	require.NoError(t, os.MkdirAll(world, 0o755))
	require.NoError(t, os.MkdirAll(backups, 0o755))

	return Config{
		Server:         []string{"java", "-jar", "server.jar", "nogui"},
		World:          world,
		Lang:           filepath.Join(base, "en_us.json"),
		MakeBackups:    true,
		BackupDir:      backups,
		Players:        []string{"Steve", "Alex"},
		CheckpointMins: 10,
		RollRange:      RollRange{Min: 1, Max: 20},
		DeadlyRolls:    []int{13},
		BracketCount:   1,
	}
}

func TestLoad(t *testing.T) {
	base := t.TempDir()
	world := filepath.Join(base, "world")
	backups := filepath.Join(base, "backups")
	require.NoError(t, os.MkdirAll(world, 0o755))
	require.NoError(t, os.MkdirAll(backups, 0o755))

	path := writeConfig(t, `
server: ["java", "-jar", "server.jar", "nogui"]
world: "`+world+`"
lang: "`+filepath.Join(base, "en_us.json")+`"
ignore_phrases:
  - "Villager"
make_backups: true
backup_dir: "`+backups+`"
players:
  - Steve
  - Alex
allow_all_players: false
on_death_command: "gamemode spectator {username}"
checkpoint_minutes: 10
roll_range:
  min: 1
  max: 20
deadly_rolls: [13]
bracket_count: 1
journal: "`+filepath.Join(base, "journal.log")+`"
metrics:
  enabled: true
  port: 9184
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"java", "-jar", "server.jar", "nogui"}, cfg.Server)
	assert.Equal(t, world, cfg.World)
	assert.Equal(t, []string{"Villager"}, cfg.IgnorePhrases)
	assert.True(t, cfg.MakeBackups)
	assert.Equal(t, "gamemode spectator {username}", cfg.OnDeathCommand)
	assert.Equal(t, 10, cfg.CheckpointMins)
	assert.Equal(t, RollRange{Min: 1, Max: 20}, cfg.RollRange)
	assert.Equal(t, []int{13}, cfg.DeadlyRolls)
	assert.Equal(t, 1, cfg.BracketCount)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9184, cfg.Metrics.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config, *testing.T)
		errMsg string
	}{
		{"valid", func(*Config, *testing.T) {}, ""},
		{"empty server", func(c *Config, _ *testing.T) { c.Server = nil }, "server launch command"},
		{"empty world", func(c *Config, _ *testing.T) { c.World = "" }, "world directory path"},
		{"world is a file", func(c *Config, t *testing.T) {
			file := filepath.Join(t.TempDir(), "world.dat")
			require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
			c.World = file
		}, "must be a directory"},
		{"empty lang", func(c *Config, _ *testing.T) { c.Lang = "" }, "lang file path"},
		{"missing backup dir", func(c *Config, t *testing.T) {
			c.BackupDir = filepath.Join(t.TempDir(), "nope")
		}, "backup_dir"},
		{"missing backup dir with backups disabled", func(c *Config, t *testing.T) {
			c.MakeBackups = false
			c.BackupDir = filepath.Join(t.TempDir(), "nope")
		}, "backup_dir"},
		{"backup dir is a file", func(c *Config, t *testing.T) {
			file := filepath.Join(t.TempDir(), "backups")
			require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
			c.BackupDir = file
		}, "backup_dir"},
		{"zero checkpoint interval", func(c *Config, _ *testing.T) { c.CheckpointMins = 0 }, "checkpoint_minutes"},
		{"inverted roll range", func(c *Config, _ *testing.T) {
			c.RollRange = RollRange{Min: 20, Max: 1}
		}, "roll range"},
		{"negative bracket count", func(c *Config, _ *testing.T) { c.BracketCount = -1 }, "bracket_count"},
		{"deadly roll outside range only warns", func(c *Config, _ *testing.T) {
			c.DeadlyRolls = []int{99}
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(&cfg, t)

			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestPlayerSet(t *testing.T) {
	cfg := Config{Players: []string{"Steve", "  ", "Alex", "", " Notch "}}

	set := cfg.PlayerSet()

	assert.Equal(t, map[string]struct{}{
		"Steve": {},
		"Alex":  {},
		"Notch": {},
	}, set)
}

func TestBackupPath(t *testing.T) {
	cfg := Config{World: "/srv/minecraft/world", BackupDir: "/srv/backups"}

	path, err := cfg.BackupPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/srv/backups", "world"), path)
}

func TestBackupPathTrailingSlash(t *testing.T) {
	cfg := Config{World: "/srv/minecraft/world/", BackupDir: "/srv/backups"}

	path, err := cfg.BackupPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/srv/backups", "world"), path)
}

func TestBackupPathInvalidWorld(t *testing.T) {
	cfg := Config{World: "/", BackupDir: "/srv/backups"}

	_, err := cfg.BackupPath()
	assert.Error(t, err)
}
