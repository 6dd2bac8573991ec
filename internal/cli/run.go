package cli

import (
	"fmt"
	"time"

	"streakTracker/internal/app"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		output string
		at     string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sweep once against the configured store",
		Long: `Loads every user from the configured repository, picks the ones near their
local midnight and reconciles the day that just ended. Prints the report.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at must be RFC3339: %w", err)
				}
				now = parsed
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			a, err := app.New(cfg).Init(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Shutdown()

			report, err := a.Sweep().Sweep(cmd.Context(), now)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), output, report)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputYAML, "report format: yaml or json")
	cmd.Flags().StringVar(&at, "at", "", "pretend the sweep runs at this RFC3339 instant")
	return cmd
}
