package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/plantao/plantao/pkg/core/services"
)

// GenerateWeekCmd creates the generateWeek command
func GenerateWeekCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generateWeek <week_start> [week_start...]",
		Short: "Regenerate the schedule for one or more weeks (Mondays, YYYY-MM-DD)",
		Long: "Regenerate the given weeks against the stored history, with the tighter " +
			"interactive attempt budget. Useful after roster or location changes.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			forceCommit, _ := cmd.Flags().GetBool("force-commit")

			app.Logger.Debug("generateWeek command",
				zap.Strings("week_starts", args),
				zap.Bool("dry_run", dryRun),
				zap.Bool("force_commit", forceCommit))

			for _, weekStart := range args {
				week, err := services.RegenerateWeek(
					app.Ctx, app.Database, app.Cfg, app.Logger, weekStart, dryRun, forceCommit)
				if err != nil {
					return fmt.Errorf("generation of week %s failed: %w", weekStart, err)
				}

				fmt.Println()
				printWeekResult(week)
			}
			if dryRun {
				fmt.Println("This was a dry run. Use without --dry-run to save the schedule.")
			}
			return nil
		},
	}

	cmd.Flags().Bool("dry-run", false, "Run without saving to database")
	cmd.Flags().Bool("force-commit", false, "Save the last attempt even if unacceptable")

	return cmd
}
