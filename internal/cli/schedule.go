package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"streakTracker/internal/logger"
	"streakTracker/internal/worker"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newScheduleCmd() *cobra.Command {
	var immediately bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Fire the API cron endpoint on the configured cadence",
		Long: `Runs until interrupted, POSTing sweep.target_url every sweep.cadence with the
cron secret as a bearer token.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			trigger := worker.NewHTTPTrigger(cfg.Sweep.TargetURL, cfg.Sweep.CronSecret, nil)
			fire := func() {
				fireCtx, cancel := context.WithTimeout(ctx, cfg.Sweep.Cadence)
				defer cancel()
				if _, err := trigger.Fire(fireCtx); err != nil {
					logger.Error("Sweeper: trigger failed", err, zap.String("url", cfg.Sweep.TargetURL))
				}
			}

			scheduler := worker.NewScheduler(time.UTC)
			if _, err := scheduler.Every(cfg.Sweep.Cadence, fire); err != nil {
				return err
			}

			logger.Info("Sweeper: scheduled",
				zap.Duration("cadence", cfg.Sweep.Cadence),
				zap.String("url", cfg.Sweep.TargetURL))

			if immediately {
				fire()
			}
			scheduler.Start()
			<-ctx.Done()
			scheduler.Stop()

			logger.Info("Sweeper: stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&immediately, "now", false, "fire once right away before waiting for the first tick")
	return cmd
}
