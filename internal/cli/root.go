// Package cli provides the command-line interface for the screener.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"vrp-screener/internal/config"
	"vrp-screener/internal/logging"
	"vrp-screener/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-08-29"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  store.MoveStore
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	moveStore, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, backtest commands will be unavailable")
	} else {
		app.Store = moveStore
		logger.Debug().Str("path", cfg.DBPath).Msg("SQLite store initialized")
	}

	rootCmd := &cobra.Command{
		Use:   "vrp-screener",
		Short: "Earnings variance-risk-premium screener",
		Long: `vrp-screener builds and ranks defined-risk option structures around
earnings events, and backtests the selection model against recorded
historical moves.

Use 'vrp-screener help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			} else {
				logging.SetInfoLevel()
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/vrp-screener)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newAnalyzeCmd(app))
	rootCmd.AddCommand(newBacktestCmd(app))
	rootCmd.AddCommand(newWalkForwardCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("vrp-screener v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Strategy Configuration")
	output.Printf("  Short Delta Target: %.2f\n", cfg.Strategy.ShortDeltaTarget)
	output.Printf("  Long Delta Target:  %.2f\n", cfg.Strategy.LongDeltaTarget)
	output.Printf("  Min Credit:         $%.2f\n", cfg.Strategy.MinCredit)
	output.Printf("  Min Open Interest:  %d\n", cfg.Strategy.MinOI)
	output.Printf("  Risk Budget:        $%.2f\n", cfg.Strategy.RiskBudget)
	output.Printf("  Max Contracts:      %d\n", cfg.Strategy.MaxContracts)
	output.Println()

	output.Bold("Scoring Weights")
	output.Printf("  POP/Liq/VRP/Kelly/Greeks: %.0f/%.0f/%.0f/%.0f/%.0f\n",
		cfg.Scoring.POPWeight, cfg.Scoring.LiquidityWeight, cfg.Scoring.VRPWeight,
		cfg.Scoring.KellyWeight, cfg.Scoring.GreeksWeight)
	output.Printf("  Target POP:  %.2f\n", cfg.Scoring.TargetPOP)
	output.Printf("  Target VRP:  %.2f\n", cfg.Scoring.TargetVRP)
	output.Printf("  Target Edge: %.2f\n", cfg.Scoring.TargetEdge)
	output.Println()

	output.Bold("Backtest Configuration")
	output.Printf("  Quarters:      %d\n", cfg.Backtest.NQuarters)
	output.Printf("  Top K:         %d\n", cfg.Backtest.TopK)
	output.Printf("  IV Inflation:  %.2f\n", cfg.Backtest.IVInflation)
	output.Printf("  Sizing:        %v\n", cfg.Backtest.SizingEnabled)
	output.Println()

	output.Bold("Walk-Forward")
	output.Printf("  Train/Test/Step: %d/%d/%d days\n",
		cfg.WalkForward.TrainDays, cfg.WalkForward.TestDays, cfg.WalkForward.StepDays)
	output.Println()

	output.Printf("Database: %s\n", cfg.DBPath)
}
