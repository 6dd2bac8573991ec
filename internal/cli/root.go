package cli

import (
	"fmt"
	"os"

	"streakTracker/internal/config"
	"streakTracker/internal/logger"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "sweeper",
		Short: "Midnight streak sweep for streakTracker",
		Long: `sweeper settles daily and per-series streaks for users whose local midnight
has just passed.

"run" sweeps once against the configured store. "schedule" keeps firing the
API's cron endpoint on the configured cadence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yml (default ./config.yml)")
}

// Execute runs the root command
func Execute(version string) error {
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newScheduleCmd())

	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging.Development); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}
