package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"CrashSentinel/internal/collector"
	"CrashSentinel/internal/config"
	"CrashSentinel/internal/debtceiling"
	"CrashSentinel/internal/normalize"
	"CrashSentinel/internal/notifier"
	"CrashSentinel/internal/portfolio"
	"CrashSentinel/internal/position"
	"CrashSentinel/internal/recorder"
	"CrashSentinel/internal/strategy"
)

// closers collects resources to release on exit, in reverse order.
type closers []io.Closer

func (c closers) Close() {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].Close(); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}
}

func newEngine(cfg *config.Config, n *normalize.Normalizer) (*strategy.Engine, error) {
	dcCfg, err := cfg.DebtCeilingConfig()
	if err != nil {
		return nil, err
	}
	timer, err := debtceiling.NewTimer(dcCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}
	scorer, err := strategy.NewScorer(cfg.WeightTable())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}
	return strategy.NewEngine(cfg.EngineConfig(), n, scorer, timer), nil
}

func newFetcher(cfg *config.Config) collector.Fetcher {
	var f collector.Fetcher
	switch cfg.DataSource.Provider {
	case "rest":
		f = collector.NewRESTFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy)
	case "mock":
		f = &collector.MockFetcher{Price: 100}
	default:
		f = collector.NewYahooFetcher(cfg.Proxy)
	}
	log.Info().Str("provider", f.Name()).Msg("data source")
	return collector.NewResilientFetcher(f, cfg.ResilienceConfig())
}

func newStore(cfg *config.Config, cl *closers) position.Store {
	if cfg.Storage.Backend == "redis" {
		client := position.NewRedisClient(cfg.Storage.RedisAddr)
		*cl = append(*cl, client)
		log.Info().Str("addr", cfg.Storage.RedisAddr).Str("key", cfg.Storage.RedisKey).Msg("position store: redis")
		return position.NewRedisStore(client, cfg.Storage.RedisKey)
	}
	log.Info().Str("path", cfg.Storage.StateFile).Msg("position store: file")
	return position.NewFileStore(cfg.Storage.StateFile)
}

func newPositionManager(ctx context.Context, cfg *config.Config, cl *closers) (*position.Manager, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return position.NewManager(ctx, newStore(cfg, cl))
}

// newRecorder falls back to a no-op log when the database cannot be opened.
func newRecorder(cfg *config.Config, cl *closers) recorder.Recorder {
	if cfg.Database.SQLitePath == "" {
		return recorder.NewNoopRecorder()
	}
	sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
	if err != nil {
		log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		return recorder.NewNoopRecorder()
	}
	*cl = append(*cl, sr)
	return sr
}

func newNotifier(cfg *config.Config) (notifier.Notifier, *notifier.TelegramNotifier) {
	if cfg.Telegram.BotToken == "" {
		log.Warn().Msg("telegram not configured, alerts go to the log")
		return notifier.LogNotifier{}, nil
	}
	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
	return tn, tn
}

// newMonitor returns nil when no holdings are configured.
func newMonitor(cfg *config.Config, f collector.Fetcher) (*portfolio.Monitor, error) {
	pc, err := cfg.PortfolioConfig()
	if err != nil {
		return nil, err
	}
	if len(pc.Holdings) == 0 {
		return nil, nil
	}
	log.Info().Int("holdings", len(pc.Holdings)).Str("state_file", pc.StateFile).Msg("portfolio monitor")
	return portfolio.NewMonitor(f, pc), nil
}
