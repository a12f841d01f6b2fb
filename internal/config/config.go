// ============================================================================
// hardwarden configuration
// ============================================================================
//
// Package: internal/config
// Purpose: Load and validate the supervisor configuration from a YAML file.
//
// Recognized options:
//   server             launch command for the managed server (argv list)
//   world              world directory path
//   lang               path to the language file holding death messages
//   ignore_phrases     message prefixes that suppress death detection
//   make_backups       whether checkpoint backups are taken
//   backup_dir         existing directory holding the world backup
//   players            tracked player names
//   allow_all_players  track every player regardless of the list
//   on_death_command   optional command template with a {username} placeholder
//   checkpoint_minutes minutes of playtime between checkpoints
//   roll_range         inclusive [min, max] dice range
//   deadly_rolls       roll values that trigger a world reset
//   bracket_count      leading [...] segments stripped from each log line
//   journal            optional path enabling the session event journal
//   metrics            Prometheus endpoint settings
//
// ============================================================================

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var log = slog.Default()

// RollRange is the inclusive range the dice ritual draws from.
type RollRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Config is the complete supervisor configuration.
type Config struct {
	Server          []string  `yaml:"server"`
	World           string    `yaml:"world"`
	Lang            string    `yaml:"lang"`
	IgnorePhrases   []string  `yaml:"ignore_phrases"`
	MakeBackups     bool      `yaml:"make_backups"`
	BackupDir       string    `yaml:"backup_dir"`
	Players         []string  `yaml:"players"`
	AllowAllPlayers bool      `yaml:"allow_all_players"`
	OnDeathCommand  string    `yaml:"on_death_command"`
	CheckpointMins  int       `yaml:"checkpoint_minutes"`
	RollRange       RollRange `yaml:"roll_range"`
	DeadlyRolls     []int     `yaml:"deadly_rolls"`
	BracketCount    int       `yaml:"bracket_count"`
	Journal         string    `yaml:"journal"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration invariants. Recoverable oddities
// (deadly rolls outside the range, blank player entries) are reported as
// warnings and never block execution.
func (c *Config) Validate() error {
	if len(c.Server) == 0 {
		return fmt.Errorf("server launch command must not be empty")
	}
	if c.World == "" {
		return fmt.Errorf("world directory path must not be empty")
	}
	if info, err := os.Stat(c.World); err == nil && !info.IsDir() {
		return fmt.Errorf("world %q must be a directory", c.World)
	}
	if c.Lang == "" {
		return fmt.Errorf("lang file path must not be empty")
	}
	// Required even with backups disabled: the backup path is derived
	// from it unconditionally, and a rewind may read from it.
	info, err := os.Stat(c.BackupDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("backup_dir %q must be an existing directory", c.BackupDir)
	}
	if c.CheckpointMins <= 0 {
		return fmt.Errorf("checkpoint_minutes must be positive, got %d", c.CheckpointMins)
	}
	if c.RollRange.Min > c.RollRange.Max {
		return fmt.Errorf("start of roll range must not be greater than its end: [%d, %d]",
			c.RollRange.Min, c.RollRange.Max)
	}
	if c.BracketCount < 0 {
		return fmt.Errorf("bracket_count must not be negative, got %d", c.BracketCount)
	}

	for _, n := range c.DeadlyRolls {
		if n < c.RollRange.Min || n > c.RollRange.Max {
			log.Warn("deadly roll is outside of roll range",
				"roll", n,
				"min", c.RollRange.Min,
				"max", c.RollRange.Max)
		}
	}

	return nil
}

// PlayerSet returns the tracked players as a lookup set. Blank entries are
// skipped with a warning.
func (c *Config) PlayerSet() map[string]struct{} {
	players := make(map[string]struct{}, len(c.Players))
	for _, p := range c.Players {
		name := strings.TrimSpace(p)
		if name == "" {
			log.Warn("skipping blank player entry")
			continue
		}
		players[name] = struct{}{}
	}
	return players
}

// BackupPath derives the backup directory for the configured world: a
// directory named after the world, inside backup_dir.
func (c *Config) BackupPath() (string, error) {
	name := filepath.Base(filepath.Clean(c.World))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "", fmt.Errorf("no world name (invalid world path %q)", c.World)
	}
	return filepath.Join(c.BackupDir, name), nil
}
