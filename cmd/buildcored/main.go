// Command buildcored is a thin cobra CLI driver over the engine's
// importable packages (spec.md §6.3), mirroring cmd/bd's layout: a root
// command plus a small set of subcommands, with all real logic living in
// internal packages.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/buildcore/engine/internal/config"
	"github.com/buildcore/engine/internal/logging"
)

var (
	configPath  string
	jsonOutput  bool
	verbose     bool
	watchConfig bool

	settings *config.Settings
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "buildcored",
	Short: "buildcored - build execution core driver",
	Long:  `A thin CLI over the batching/lookup/entry/cache-aggregator engine.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		settings = s
		logger = logging.New(logging.Options{JSON: jsonOutput, Verbose: verbose})

		if watchConfig && configPath != "" {
			watchConfigFile(cmd.Context(), configPath)
		}
		return nil
	},
}

// watchConfigFile reloads settings whenever configPath is written to,
// grounded on the teacher's cmd/bd watchIssues fsnotify loop.
func watchConfigFile(ctx context.Context, path string) {
	reload, stop, err := config.WatchFile(path)
	if err != nil {
		logger.Warn("config watch disabled", "error", err)
		return
	}
	go func() {
		<-ctx.Done()
		stop()
	}()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-reload:
			}
			s, err := config.Load(path)
			if err != nil {
				logger.Warn("config reload failed", "error", err)
				continue
			}
			settings = s
			logger.Info("config reloaded", "path", path)
		}
	}()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to buildcore.yaml")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit JSON output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&watchConfig, "watch-config", false, "reload settings when --config changes")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(aggregateCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(resolveCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
