package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"CrashSentinel/internal/backtest"
	"CrashSentinel/internal/collector"
	"CrashSentinel/internal/config"
	"CrashSentinel/internal/metrics"
	"CrashSentinel/internal/model"
	"CrashSentinel/internal/normalize"
	"CrashSentinel/internal/notifier"
	"CrashSentinel/internal/scheduler"
	"CrashSentinel/internal/server"
	"CrashSentinel/internal/strategy"
)

func newScheduler(ctx context.Context, cfg *config.Config, cl *closers) (*scheduler.Scheduler, *notifier.TelegramNotifier, *metrics.Registry, error) {
	eng, err := newEngine(cfg, normalize.NewDefault())
	if err != nil {
		return nil, nil, nil, err
	}
	pm, err := newPositionManager(ctx, cfg, cl)
	if err != nil {
		return nil, nil, nil, err
	}
	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}
	n, tn := newNotifier(cfg)
	m := metrics.NewRegistry()
	f := newFetcher(cfg)
	mon, err := newMonitor(cfg, f)
	if err != nil {
		return nil, nil, nil, err
	}
	col := collector.NewCollector(f, cfg.DataSource.Symbols)
	s := scheduler.NewScheduler(ctx, col, eng, pm, n, newRecorder(cfg, cl), m, loc)
	if mon != nil {
		s.Portfolio = mon
	}
	return s, tn, m, nil
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log.Info().Str("version", version).Str("x_date", cfg.DebtCeiling.XDate).Msg(appName + " starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cl closers
	defer cl.Close()

	sched, tn, m, err := newScheduler(ctx, cfg, &cl)
	if err != nil {
		return err
	}
	if err := sched.RegisterAll(cfg.Schedule.DailyCron, cfg.Schedule.IntradayCron, cfg.Schedule.WeeklyCron); err != nil {
		return fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}
	if err := sched.RegisterPortfolio(cfg.Schedule.PortfolioCron); err != nil {
		return fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(cfg.HTTP.Listen, sched, sched.Position, sched.Recorder, m.Handler())
	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("status server")
		}
	}()

	if tn != nil && cfg.Telegram.Polling {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("telegram polling started")
	}

	if now, _ := cmd.Flags().GetBool("now"); now {
		log.Info().Msg("running one cycle at start")
		go func() {
			if sig, err := sched.RunCycle(ctx); err == nil {
				sched.RunDashboard(ctx, sig)
			}
		}()
	}

	log.Info().Msg(appName + " is running. Press Ctrl+C to stop.")
	<-ctx.Done()

	log.Info().Msg("shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn().Err(err).Msg("status server shutdown")
	}
	return nil
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
		eng, err := newEngine(cfg, normalize.NewDefault())
		if err != nil {
			return err
		}
		snap, err := collector.NewCollector(newFetcher(cfg), cfg.DataSource.Symbols).Collect(ctx)
		if err != nil {
			return err
		}
		cs, dc, err := eng.Assess(strategy.Input{Indicators: snap.Indicators, DebtCeiling: snap.DebtCeiling}, time.Now())
		if err != nil {
			return err
		}
		return printJSON(struct {
			Composite   model.CompositeScore   `json:"composite"`
			DebtCeiling model.DebtCeilingState `json:"debt_ceiling"`
			Failed      []string               `json:"failed_symbols,omitempty"`
		}{cs, dc, snap.Failed})
	}

	var cl closers
	defer cl.Close()
	sched, _, _, err := newScheduler(ctx, cfg, &cl)
	if err != nil {
		return err
	}
	sig, err := sched.RunCycle(ctx)
	if err != nil {
		return err
	}
	return printJSON(sig)
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := backtest.ParseCSV(f)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	n := normalize.NewDefault()
	if scores, _ := cmd.Flags().GetBool("scores"); scores {
		n = normalize.New(nil)
	}
	eng, err := newEngine(cfg, n)
	if err != nil {
		return err
	}
	rep, err := backtest.Run(rows, eng, model.NewPositionState())
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(rep)
	}
	return rep.WriteText(os.Stdout)
}

func runPortfolio(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if send, _ := cmd.Flags().GetBool("notify"); send {
		var cl closers
		defer cl.Close()
		sched, _, _, err := newScheduler(ctx, cfg, &cl)
		if err != nil {
			return err
		}
		rep, err := sched.RunPortfolio(ctx)
		if err != nil {
			return err
		}
		return printJSON(rep)
	}

	mon, err := newMonitor(cfg, newFetcher(cfg))
	if err != nil {
		return err
	}
	if mon == nil {
		return fmt.Errorf("%w: portfolio.holdings is empty", config.ErrConfiguration)
	}
	rep, err := mon.Run(ctx)
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(rep)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tSIGNAL\tPRICE\tGAIN%\tRSI\tDRAWDOWN%\tRISK\tNOTE")
	for _, a := range rep.Positions {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%+.1f\t%.0f\t%.1f\t%d\t%s\n",
			a.Symbol, a.Signal, a.Price, a.GainPct, a.RSI, a.Drawdown*100, a.RiskScore, a.ActionNote)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Printf("value=%.2f gain=%.2f (%+.1f%%) beta=%.2f reduce=%d failed=%d\n",
		rep.TotalValue, rep.TotalGain, rep.TotalGainPct, rep.Beta, rep.Reducing(), len(rep.Failed))
	for _, w := range append(rep.Warnings, rep.NewAlerts...) {
		fmt.Println(w)
	}
	return nil
}

func runStateShow(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	var cl closers
	defer cl.Close()
	pm, err := newPositionManager(context.Background(), cfg, &cl)
	if err != nil {
		return err
	}
	return printJSON(pm.State())
}

func runStateReset(cmd *cobra.Command, _ []string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		return errors.New("refusing to reset without --yes")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	var cl closers
	defer cl.Close()
	pm, err := newPositionManager(context.Background(), cfg, &cl)
	if err != nil {
		return err
	}
	if err := pm.Reset(context.Background()); err != nil {
		return err
	}
	return printJSON(pm.State())
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	var cl closers
	defer cl.Close()
	rec := newRecorder(cfg, &cl)

	if id, _ := cmd.Flags().GetString("id"); id != "" {
		rows, err := rec.Contributions(id)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return fmt.Errorf("no cycle %s", id)
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "INDICATOR\tSCORE\tWEIGHT\tWEIGHTED\tDEFAULTED")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%.3f\t%.2f\t%.3f\t%t\n", r.Name, r.Score, r.Weight, r.Weighted, r.Defaulted)
		}
		return tw.Flush()
	}

	limit, _ := cmd.Flags().GetInt("limit")
	rows, err := rec.Recent(limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tACTION\tSCORE\tALERT\tPOSITION\tERROR")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\t%s\t%s\n",
			r.ID, r.Time().Format(time.DateTime), r.Action, r.Score, r.AlertState, r.Position, r.Error)
	}
	return tw.Flush()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
