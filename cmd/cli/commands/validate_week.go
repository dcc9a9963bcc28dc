package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/plantao/plantao/pkg/core/model"
	"github.com/plantao/plantao/pkg/core/services"
)

// ValidateWeekCmd creates the validateWeek command
func ValidateWeekCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validateWeek <week_start>",
		Short: "Audit the stored schedule of a week (Monday, YYYY-MM-DD)",
		Long: "Run the rule validator against a week's persisted assignments without " +
			"regenerating anything. Catches violations introduced by manual edits.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			weekStart := args[0]
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			app.Logger.Debug("validateWeek command", zap.String("week_start", weekStart))

			result, err := services.ValidateWeek(
				app.Ctx, app.Database, app.Cfg, app.Logger, weekStart, dryRun)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			fmt.Printf("\nValidation of week %s (%d assignments)\n\n", result.WeekStart, result.Assignments)
			if result.Valid {
				fmt.Println("Result: VALID")
			} else {
				fmt.Println("Result: INVALID")
			}

			criticals, warnings := 0, 0
			for _, v := range result.Violations {
				if v.Severity == model.SeverityCritical {
					criticals++
				} else {
					warnings++
				}
			}
			if len(result.Violations) > 0 {
				fmt.Printf("\nFindings (%d critical, %d warnings):\n", criticals, warnings)
				for _, v := range result.Violations {
					fmt.Printf("  - [%s] %s: %s %s (%s)\n",
						v.Severity, v.Rule, v.BrokerName, v.Description, v.Date)
				}
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().Bool("dry-run", false, "Do not persist the validation report")

	return cmd
}
