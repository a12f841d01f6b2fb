// ============================================================================
// hardwarden CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// Purpose: Cobra-based command line interface for the supervisor.
//
// Command structure:
//   hardwarden                     # Root command
//   ├── run                        # Supervise the configured server
//   ├── check                      # Validate config and templates
//   ├── history                    # Print the session event journal
//   ├── --config, -c               # Config file path (persistent)
//   ├── --version                  # Version information
//   └── --help                     # Help information
//
// The run command loads the configuration and death-message templates,
// starts the Prometheus endpoint when enabled, opens the journal when
// configured, and hands control to the supervision loop. It blocks until
// the managed server exits without a pending penalty.
//
// ============================================================================

package cli

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/okvist/hardwarden/internal/config"
	"github.com/okvist/hardwarden/internal/controller"
	"github.com/okvist/hardwarden/internal/journal"
	"github.com/okvist/hardwarden/internal/lang"
	"github.com/okvist/hardwarden/internal/metrics"
)

var log = slog.Default()

var configFile string

// BuildCLI assembles the command tree.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hardwarden",
		Short: "hardwarden: a permadeath supervisor for a managed game server",
		Long: `hardwarden supervises a long-running game server, watches its log for
tracked player deaths, and enforces a dice-rolled permadeath rule:
a deadly roll destroys the world (or rewinds it to the last checkpoint)
and restarts the server fresh.`,
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/hardwarden.yaml", "config file path")

	rootCmd.AddCommand(buildRunCommand())
	rootCmd.AddCommand(buildCheckCommand())
	rootCmd.AddCommand(buildHistoryCommand())

	return rootCmd
}

func buildRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Supervise the configured server",
		Long:  "Start the managed server and enforce the permadeath rule until it exits for good.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupervisor()
		},
	}
}

func runSupervisor() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	templates, err := lang.Load(cfg.Lang)
	if err != nil {
		return fmt.Errorf("failed to load death messages: %w", err)
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
		go func() {
			addr := cfg.Metrics.Port
			log.Info("starting metrics server", "port", addr)
			if err := collector.StartServer(addr); err != nil {
				log.Error("metrics server failed", "error", err)
			}
		}()
	}

	var jnl *journal.Journal
	if cfg.Journal != "" {
		jnl, err = journal.Open(cfg.Journal)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer jnl.Close()
	}

	ctrl, err := controller.New(controller.Config{
		Conf:      cfg,
		Templates: templates,
		Console:   os.Stdin,
		Metrics:   collector,
		Journal:   jnl,
	})
	if err != nil {
		return err
	}

	return ctrl.Run()
}

func buildCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and templates",
		Long:  "Load the config and language file, report what would be tracked, and exit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkConfig()
		},
	}
}

func checkConfig() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	templates, err := lang.Load(cfg.Lang)
	if err != nil {
		return fmt.Errorf("failed to load death messages: %w", err)
	}

	backupPath, err := cfg.BackupPath()
	if err != nil {
		return err
	}

	fmt.Println("Configuration:")
	fmt.Printf("  Config File:     %s\n", configFile)
	fmt.Printf("  Server Command:  %v\n", cfg.Server)
	fmt.Printf("  World:           %s\n", cfg.World)
	fmt.Printf("  Backups:         %t (dir: %s)\n", cfg.MakeBackups, backupPath)
	fmt.Printf("  Checkpoint:      every %d minutes\n", cfg.CheckpointMins)
	fmt.Printf("  Roll Range:      [%d, %d], deadly %v\n", cfg.RollRange.Min, cfg.RollRange.Max, cfg.DeadlyRolls)
	fmt.Println()

	players := cfg.PlayerSet()
	if cfg.AllowAllPlayers {
		fmt.Println("Tracked players: all")
	} else {
		fmt.Printf("Tracked players (%d):\n", len(players))
		names := make([]string, 0, len(players))
		for name := range players {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %s\n", name)
		}
	}
	fmt.Println()

	fmt.Printf("Death messages (%d):\n", len(templates))
	for _, tpl := range templates {
		fmt.Printf("  %q\n", tpl)
	}

	return nil
}

func buildHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print the session event journal",
		Long:  "Replay the configured journal file and print every recorded session event.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printHistory()
		},
	}
}

func printHistory() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Journal == "" {
		return fmt.Errorf("no journal path configured")
	}

	return journal.Replay(cfg.Journal, func(e journal.Entry) error {
		line := fmt.Sprintf("%6d  %-14s", e.Seq, e.Type)
		if e.Player != "" {
			line += "  " + e.Player
		}
		if e.Detail != "" {
			line += "  " + e.Detail
		}
		fmt.Println(line)
		return nil
	})
}
