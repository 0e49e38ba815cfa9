// Package main runs the trade lifecycle service: a streaming quote
// feed, the trailing-stop exit monitor on its evaluation schedule,
// session-close handling, weekly capital reallocation, and a metrics
// endpoint. Trailing state survives restarts through a state file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"equity-signal-lab/internal/config"
	"equity-signal-lab/internal/exitmonitor"
	"equity-signal-lab/internal/logging"
	"equity-signal-lab/internal/marketdata"
	"equity-signal-lab/internal/notify"
	"equity-signal-lab/internal/observability"
	"equity-signal-lab/internal/risk"
	"equity-signal-lab/internal/scheduler"
	"equity-signal-lab/internal/storage"
	chstore "equity-signal-lab/internal/storage/clickhouse"
	"equity-signal-lab/internal/storage/memory"
	"equity-signal-lab/internal/storage/migrations"
	pgstore "equity-signal-lab/internal/storage/postgres"
)

// monitorStores holds the storage backends for the lifecycle service.
type monitorStores struct {
	trades      storage.TradeStore
	performance storage.PerformanceStore
	weightLog   storage.WeightChangeStore
	tickArchive storage.TickArchive
	alerts      storage.AlertArchive
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config file")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL and ClickHouse")
	flag.Parse()

	log := logging.New(*logLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if cfg.Feed.Endpoint == "" {
		log.Fatal().Msg("feed.endpoint must be set (config or FEED_ENDPOINT)")
	}
	if !*useMemory && cfg.Database.PostgresDSN == "" {
		log.Fatal().Msg("database.postgres_dsn must be set (use --use-memory for in-memory storage)")
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("resolve timezone")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, cfg, *useMemory)
	if err != nil {
		log.Fatal().Err(err).Msg("create stores")
	}
	defer cleanup()

	// Tick cache fed by the websocket stream; the monitor reads the
	// latest tick per symbol from it on every evaluation.
	cache := marketdata.NewStaticProvider()
	feed, err := marketdata.NewWSFeed(ctx, marketdata.FeedOptions{
		Config: marketdata.FeedConfig{
			Endpoint: cfg.Feed.Endpoint,
			Symbols:  cfg.Feed.Symbols,
		},
		Cache:   cache,
		Archive: stores.tickArchive,
		Logger:  log.With().Str("component", "feed").Logger(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect quote feed")
	}

	var sink exitmonitor.AlertSink
	if cfg.Telegram.BotToken != "" {
		tg, err := notify.NewTelegramSink(cfg.Telegram.BotToken, cfg.Telegram.ChatID, log)
		if err != nil {
			log.Fatal().Err(err).Msg("connect telegram")
		}
		sink = tg
	} else {
		log.Warn().Msg("telegram token not set; alerts go to the log only")
		sink = notify.NewLogSink(log)
	}

	monitor, err := exitmonitor.NewMonitor(exitmonitor.Options{
		Trades:      stores.trades,
		Performance: stores.performance,
		Ticks:       cache,
		Alerts:      sink,
		Archive:     stores.alerts,
		Configs:     exitmonitor.NewConfigLookup(cfg.Trailing.Strategies, cfg.Trailing.Default),
		Logger:      log.With().Str("component", "exitmonitor").Logger(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("create exit monitor")
	}

	restoreState(ctx, monitor, cfg.StateFile, log)
	bootstrapOpenTrades(ctx, monitor, stores.trades, log)

	allocator := risk.NewCapitalAllocator(stores.performance, stores.weightLog, cfg.Capital.ReservePct, log)

	sched, err := scheduler.New(scheduler.Options{
		Monitor:      monitor,
		Allocator:    allocator,
		Strategies:   cfg.Signals.Strategies,
		TotalCapital: cfg.Capital.Total,
		MaxPositions: cfg.Capital.MaxPositions,
		Location:     loc,
		Logger:       log.With().Str("component", "scheduler").Logger(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("create scheduler")
	}
	if err := sched.RegisterAll(ctx,
		cfg.Schedule.EvaluateCron,
		cfg.Schedule.AdvisoryCron,
		cfg.Schedule.CloseCron,
		cfg.Schedule.ReallocCron,
	); err != nil {
		log.Fatal().Err(err).Msg("register schedules")
	}
	sched.Start()

	go serveMetrics(cfg.Metrics.Addr, log)

	log.Info().
		Int("symbols", len(cfg.Feed.Symbols)).
		Int("monitored", monitor.MonitoredCount()).
		Str("timezone", cfg.Schedule.Timezone).
		Msg("lifecycle service started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	sched.Stop()
	if err := feed.Close(); err != nil {
		log.Warn().Err(err).Msg("close feed")
	}
	saveState(monitor, cfg.StateFile, log)
	cancel()

	log.Info().Msg("shutdown complete")
}

// createStores returns the storage backends, using PostgreSQL for
// trades and outcomes and ClickHouse for tick and alert archives.
// Migrations run on startup.
func createStores(ctx context.Context, cfg *config.Config, useMemory bool) (*monitorStores, func(), error) {
	if useMemory {
		stores := &monitorStores{
			trades:      memory.NewTradeStore(),
			performance: memory.NewPerformanceStore(),
			weightLog:   memory.NewWeightChangeStore(),
			tickArchive: memory.NewTickArchive(),
			alerts:      memory.NewAlertArchive(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Database.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	stores := &monitorStores{
		trades:      pgstore.NewTradeStore(pool),
		performance: pgstore.NewPerformanceStore(pool),
		weightLog:   pgstore.NewWeightChangeStore(pool),
	}

	// Archives are optional; without ClickHouse the service keeps no
	// tick or alert history.
	if cfg.Database.ClickhouseDSN == "" {
		return stores, pool.Close, nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Database.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
	}
	stores.tickArchive = chstore.NewTickArchive(conn)
	stores.alerts = chstore.NewAlertArchive(conn)

	cleanup := func() {
		conn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

// restoreState reloads trailing-stop state from the state file. A
// missing file is a clean first start.
func restoreState(ctx context.Context, monitor *exitmonitor.Monitor, path string, log zerolog.Logger) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("read state file")
		}
		return
	}
	if err := monitor.ImportState(ctx, data); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("import trailing state")
		return
	}
	log.Info().Int("restored", monitor.MonitoredCount()).Str("path", path).Msg("trailing state restored")
}

// bootstrapOpenTrades places open trades without restored state under
// watch at their original stops.
func bootstrapOpenTrades(ctx context.Context, monitor *exitmonitor.Monitor, trades storage.TradeStore, log zerolog.Logger) {
	open, err := trades.GetOpen(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("load open trades")
		return
	}
	for _, trade := range open {
		if err := monitor.StartMonitoring(trade); err != nil {
			log.Warn().Err(err).Str("trade_id", trade.TradeID).Msg("monitor trade")
		}
	}
}

// saveState writes trailing-stop state for the next start.
func saveState(monitor *exitmonitor.Monitor, path string, log zerolog.Logger) {
	data, err := monitor.ExportState()
	if err != nil {
		log.Warn().Err(err).Msg("export trailing state")
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("write state file")
		return
	}
	log.Info().Str("path", path).Msg("trailing state saved")
}

// serveMetrics exposes health and Prometheus metrics.
func serveMetrics(addr string, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info().Str("addr", addr).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("metrics server")
	}
}
