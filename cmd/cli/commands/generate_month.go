package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/plantao/plantao/pkg/core/services"
)

// GenerateMonthCmd creates the generateMonth command
func GenerateMonthCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generateMonth <month>",
		Short: "Generate the duty schedule for every week of a month (YYYY-MM)",
		Long: "Run the allocation engine week by week across the month. Weekend counts, " +
			"rotation queues and cross-week rules carry from one week to the next.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			month := args[0]
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			forceCommit, _ := cmd.Flags().GetBool("force-commit")

			app.Logger.Debug("generateMonth command",
				zap.String("month", month),
				zap.Bool("dry_run", dryRun),
				zap.Bool("force_commit", forceCommit))

			result, err := services.GenerateMonth(
				app.Ctx, app.Database, app.Cfg, app.Logger, month, dryRun, forceCommit)
			if result != nil {
				printMonthResult(result, dryRun)
			}
			if err != nil {
				return fmt.Errorf("month generation failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().Bool("dry-run", false, "Run without saving to database")
	cmd.Flags().Bool("force-commit", false, "Save each week's last attempt even if unacceptable")

	return cmd
}

func printMonthResult(result *services.GenerateMonthResult, dryRun bool) {
	fmt.Printf("\nSchedule generation for %s\n\n", result.Month)
	if dryRun {
		fmt.Println("Mode: DRY RUN (nothing saved)")
		fmt.Println()
	}

	for _, week := range result.Weeks {
		printWeekResult(week)
	}
}

func printWeekResult(week *services.GenerateWeekResult) {
	status := "accepted"
	if !week.Accepted {
		status = "FORCED"
	}
	fmt.Printf("Week %s — %s on attempt %d, %d assignments\n",
		week.WeekStart, status, week.Attempt, len(week.Assignments))

	if len(week.Impossible) > 0 {
		fmt.Printf("  %d impossible demands (no eligible broker configured):\n", len(week.Impossible))
		for _, imp := range week.Impossible {
			fmt.Printf("    - %s %s %s: %s\n",
				imp.Demand.LocationName, imp.Demand.Date, imp.Demand.Shift, imp.Reason)
		}
	}
	if len(week.Unallocated) > 0 {
		fmt.Printf("  %d demands left unallocated:\n", len(week.Unallocated))
		for _, d := range week.Unallocated {
			fmt.Printf("    - %s %s %s\n", d.LocationName, d.Date, d.Shift)
		}
	}
	if len(week.Violations) > 0 {
		fmt.Printf("  %d validation findings:\n", len(week.Violations))
		for _, v := range week.Violations {
			fmt.Printf("    - [%s] %s: %s %s\n", v.Severity, v.Rule, v.BrokerName, v.Description)
		}
	}
	fmt.Println()
}
