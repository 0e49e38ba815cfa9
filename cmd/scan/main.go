// Package main runs one scan cycle: candidate signals are read from a
// JSON file, confirmed, scored, ranked, sized, persisted, and sent to
// the configured notifier.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"equity-signal-lab/internal/config"
	"equity-signal-lab/internal/confirmation"
	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/idhash"
	"equity-signal-lab/internal/logging"
	"equity-signal-lab/internal/notify"
	"equity-signal-lab/internal/orchestrator"
	"equity-signal-lab/internal/risk"
	"equity-signal-lab/internal/scoring"
	"equity-signal-lab/internal/storage"
	"equity-signal-lab/internal/storage/memory"
	"equity-signal-lab/internal/storage/migrations"
	pgstore "equity-signal-lab/internal/storage/postgres"
)

// candidateInput is the JSON shape of one candidate in the input file.
type candidateInput struct {
	Symbol        string   `json:"symbol"`
	Direction     string   `json:"direction"`
	Strategy      string   `json:"strategy"`
	Setup         string   `json:"setup"`
	Entry         float64  `json:"entry"`
	StopLoss      float64  `json:"stop_loss"`
	Target1       float64  `json:"target1"`
	Target2       float64  `json:"target2"`
	StrategyScore *float64 `json:"strategy_score"`
	GapPct        float64  `json:"gap_pct"`
	VolumeRatio   float64  `json:"volume_ratio"`
	DistancePct   float64  `json:"distance_pct"`
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config file")
	candidatesPath := flag.String("candidates", "", "Path to JSON file with candidate signals")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	dryRun := flag.Bool("dry-run", false, "Log signals instead of sending to Telegram")
	flag.Parse()

	log := logging.New(*logLevel)

	if *candidatesPath == "" {
		log.Fatal().Msg("--candidates is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if cfg.Capital.Total <= 0 {
		log.Fatal().Msg("capital.total must be set (config or TOTAL_CAPITAL)")
	}

	candidates, err := loadCandidates(*candidatesPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *candidatesPath).Msg("load candidates")
	}
	if len(candidates) == 0 {
		log.Fatal().Str("path", *candidatesPath).Msg("no candidates in input file")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	signals, trades, perf, cleanup, err := createStores(ctx, cfg.Database.PostgresDSN, *useMemory)
	if err != nil {
		log.Fatal().Err(err).Msg("create stores")
	}
	defer cleanup()

	var notifier orchestrator.SignalNotifier
	if *dryRun || cfg.Telegram.BotToken == "" {
		notifier = notify.NewLogSink(log)
	} else {
		sink, err := notify.NewTelegramSink(cfg.Telegram.BotToken, cfg.Telegram.ChatID, log)
		if err != nil {
			log.Fatal().Err(err).Msg("connect telegram")
		}
		notifier = sink
	}

	orch, err := orchestrator.New(orchestrator.Options{
		SignalStore: signals,
		TradeStore:  trades,
		Detector:    confirmation.NewDetector(signals, cfg.ConfirmationWindow(), log),
		Legacy:      scoring.NewSignalScorer(),
		Composite:   scoring.NewCompositeScorer(perf, log),
		Ranker:      scoring.NewSignalRanker(cfg.Signals.TopN),
		Risk:        risk.NewManager(log),
		RiskCfg: risk.Config{
			TotalCapital: cfg.Capital.Total,
			MaxPositions: cfg.Capital.MaxPositions,
			SignalTTL:    cfg.SignalTTL(),
		},
		Notifier: notifier,
		Logger:   log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("create orchestrator")
	}

	result, err := orch.RunCycle(ctx, candidates, time.Now())
	if err != nil {
		log.Fatal().Err(err).Msg("scan cycle failed")
	}
	for _, e := range result.Errors {
		log.Warn().Msg(e)
	}

	log.Info().
		Int("candidates", result.CandidatesIn).
		Int("ranked", result.Ranked).
		Int("delivered", len(result.Delivered)).
		Msg("scan cycle complete")

	for _, sig := range result.Delivered {
		log.Info().
			Int("rank", sig.Rank).
			Str("symbol", sig.Candidate.Symbol).
			Str("strategy", sig.Candidate.Strategy).
			Int("stars", sig.Stars).
			Float64("score", sig.Score).
			Int64("quantity", sig.Quantity).
			Float64("capital", sig.CapitalRequired).
			Msg("signal")
	}
}

// loadCandidates reads the input file and assigns deterministic signal
// IDs. All candidates in one file share a generation timestamp.
func loadCandidates(path string) ([]domain.CandidateSignal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read candidates: %w", err)
	}

	var inputs []candidateInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("parse candidates: %w", err)
	}

	now := time.Now()
	candidates := make([]domain.CandidateSignal, 0, len(inputs))
	for i, in := range inputs {
		if in.Symbol == "" || in.Strategy == "" {
			return nil, fmt.Errorf("candidate %d: symbol and strategy are required", i)
		}
		if in.Entry <= 0 || in.StopLoss <= 0 {
			return nil, fmt.Errorf("candidate %d (%s): entry and stop_loss must be positive", i, in.Symbol)
		}

		direction := domain.DirectionLong
		if in.Direction != "" {
			direction = domain.Direction(in.Direction)
		}

		candidates = append(candidates, domain.CandidateSignal{
			SignalID:      idhash.ComputeSignalID(in.Symbol, in.Strategy, in.Setup, now),
			Symbol:        in.Symbol,
			Direction:     direction,
			Strategy:      in.Strategy,
			Setup:         in.Setup,
			Entry:         in.Entry,
			StopLoss:      in.StopLoss,
			Target1:       in.Target1,
			Target2:       in.Target2,
			StrategyScore: in.StrategyScore,
			GapPct:        in.GapPct,
			VolumeRatio:   in.VolumeRatio,
			DistancePct:   in.DistancePct,
			GeneratedAt:   now,
		})
	}
	return candidates, nil
}

// createStores returns the signal, trade, and performance stores.
func createStores(ctx context.Context, postgresDSN string, useMemory bool) (storage.SignalStore, storage.TradeStore, storage.PerformanceStore, func(), error) {
	if useMemory || postgresDSN == "" {
		return memory.NewSignalStore(), memory.NewTradeStore(), memory.NewPerformanceStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	return pgstore.NewSignalStore(pool), pgstore.NewTradeStore(pool), pgstore.NewPerformanceStore(pool), pool.Close, nil
}
