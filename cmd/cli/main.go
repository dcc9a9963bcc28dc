package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/plantao/plantao/cmd/cli/commands"
	"github.com/plantao/plantao/internal/config"
	"github.com/plantao/plantao/pkg/postgres"
	"github.com/plantao/plantao/pkg/utils/logging"
)

var (
	env string
	app = &commands.AppContext{}
	db  *postgres.DB
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "plantao",
		Short: "Plantao CLI - Generate and audit broker duty schedules",
		Long:  `A CLI tool for generating weekly broker duty schedules across sales stands and offices, and auditing stored schedules against the duty rules.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil && app.Logger != nil {
				app.Logger.Sync()
			}
			if db != nil {
				db.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.MarkPersistentFlagRequired("env")

	rootCmd.AddCommand(commands.GenerateMonthCmd(app))
	rootCmd.AddCommand(commands.GenerateWeekCmd(app))
	rootCmd.AddCommand(commands.ValidateWeekCmd(app))
	rootCmd.AddCommand(commands.InteractiveCmd(app))
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config and database, then registers the commands
// that need them
func initApp() error {
	var err error
	ctx := context.Background()
	app.Ctx = ctx

	app.Logger, err = logging.InitLogger(env)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.Logger.Info("Starting application", zap.String("environment", env))

	app.Logger.Info("Loading configuration")
	app.Cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.Logger.Debug("Configuration loaded successfully")

	app.Logger.Info("Connecting to database")
	db, err = postgres.NewDB(ctx, app.Cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.Database = db
	app.Logger.Info("Database connected")

	return nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Logger.Info("Running migrations")
			if err := db.RunMigrations(app.Ctx); err != nil {
				return fmt.Errorf("migrations failed: %w", err)
			}
			fmt.Println("Migrations applied.")
			return nil
		},
	}
}
