package main

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"CrashSentinel/internal/config"
)

const (
	appName = "CrashSentinel"
	version = "v0.4.0"
)

var cfgPath string

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})

	rootCmd := &cobra.Command{
		Use:           "sentinel",
		Short:         "Composite crash-risk scoring and SELL/REBUY signals",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	defaultPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultPath, "Path to the YAML config")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the scheduler, status server and Telegram polling",
		RunE:  runDaemon,
	}
	runCmd.Flags().Bool("now", os.Getenv("RUN_ON_START") == "true", "Run one evaluation cycle immediately")

	evaluateCmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run one evaluation cycle against the persisted position and exit",
		RunE:  runEvaluate,
	}
	evaluateCmd.Flags().Bool("dry-run", false, "Score the market without touching the position or sending alerts")

	replayCmd := &cobra.Command{
		Use:   "replay <file.csv>",
		Short: "Replay the engine over dated indicator rows",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplay,
	}
	replayCmd.Flags().Bool("json", false, "Print the report as JSON")
	replayCmd.Flags().Bool("scores", false, "Indicator columns are already normalized to [0, 1]")

	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or reset the persisted position",
	}
	stateCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the persisted position state",
		RunE:  runStateShow,
	})
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset the position to HOLDING with no cooldown",
		RunE:  runStateReset,
	}
	resetCmd.Flags().Bool("yes", false, "Confirm the reset")
	stateCmd.AddCommand(resetCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent evaluation cycles from the audit log",
		RunE:  runHistory,
	}
	historyCmd.Flags().IntP("limit", "n", 10, "Number of cycles")
	historyCmd.Flags().String("id", "", "Show the composite breakdown of one cycle")

	portfolioCmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Analyze the configured stock holdings once",
		RunE:  runPortfolio,
	}
	portfolioCmd.Flags().Bool("json", false, "Print the report as JSON")
	portfolioCmd.Flags().Bool("notify", false, "Send the report through the configured notifier")

	rootCmd.AddCommand(runCmd, evaluateCmd, replayCmd, stateCmd, historyCmd, portfolioCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg(appName + " failed")
		if errors.Is(err, config.ErrConfiguration) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// loadConfig loads, validates and applies the logging settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	setupLogging(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

func setupLogging(level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("app", appName).Logger()
	}
}
