// Package scheduler drives the session clock: periodic exit
// evaluation, the pre-close advisory, the mandatory close, and the
// nightly capital reallocation.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"equity-signal-lab/internal/exitmonitor"
	"equity-signal-lab/internal/risk"
)

// Default cron specs (with seconds), in the exchange's timezone.
const (
	DefaultEvaluateSpec = "*/5 * * * * *"  // every 5s during the session
	DefaultAdvisorySpec = "0 0 15 * * 1-5" // 15:00 weekdays
	DefaultCloseSpec    = "0 15 15 * * 1-5"
	DefaultReallocSpec  = "0 0 18 * * 1-5"
	DefaultMaxPositions = 5
)

// Scheduler registers and runs the cron tasks.
type Scheduler struct {
	cron      *cron.Cron
	monitor   *exitmonitor.Monitor
	allocator *risk.CapitalAllocator

	strategies   []string
	totalCapital float64
	maxPositions int

	log zerolog.Logger
}

// Options for creating a Scheduler. Location defaults to UTC.
type Options struct {
	Monitor   *exitmonitor.Monitor
	Allocator *risk.CapitalAllocator

	Strategies   []string
	TotalCapital float64
	MaxPositions int

	Location *time.Location
	Logger   zerolog.Logger
}

// New creates a Scheduler.
func New(opts Options) (*Scheduler, error) {
	if opts.Monitor == nil {
		return nil, fmt.Errorf("scheduler: exit monitor is required")
	}
	if opts.Allocator == nil {
		return nil, fmt.Errorf("scheduler: capital allocator is required")
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	maxPositions := opts.MaxPositions
	if maxPositions <= 0 {
		maxPositions = DefaultMaxPositions
	}

	return &Scheduler{
		cron:         cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		monitor:      opts.Monitor,
		allocator:    opts.Allocator,
		strategies:   opts.Strategies,
		totalCapital: opts.TotalCapital,
		maxPositions: maxPositions,
		log:          opts.Logger,
	}, nil
}

// RegisterAll registers the four session tasks. Empty specs select the
// defaults.
func (s *Scheduler) RegisterAll(ctx context.Context, evaluateSpec, advisorySpec, closeSpec, reallocSpec string) error {
	if evaluateSpec == "" {
		evaluateSpec = DefaultEvaluateSpec
	}
	if advisorySpec == "" {
		advisorySpec = DefaultAdvisorySpec
	}
	if closeSpec == "" {
		closeSpec = DefaultCloseSpec
	}
	if reallocSpec == "" {
		reallocSpec = DefaultReallocSpec
	}

	if _, err := s.cron.AddFunc(evaluateSpec, func() {
		s.monitor.EvaluateAll(ctx, time.Now().UTC())
	}); err != nil {
		return fmt.Errorf("scheduler: register evaluate task: %w", err)
	}
	if _, err := s.cron.AddFunc(advisorySpec, func() {
		s.log.Info().Msg("emitting pre-close advisories")
		s.monitor.EmitTimeAdvisories(ctx, time.Now().UTC())
	}); err != nil {
		return fmt.Errorf("scheduler: register advisory task: %w", err)
	}
	if _, err := s.cron.AddFunc(closeSpec, func() {
		s.log.Info().Msg("mandatory session close")
		s.monitor.ForceCloseAll(ctx, time.Now().UTC())
	}); err != nil {
		return fmt.Errorf("scheduler: register close task: %w", err)
	}
	if _, err := s.cron.AddFunc(reallocSpec, func() { s.Reallocate(ctx) }); err != nil {
		return fmt.Errorf("scheduler: register reallocation task: %w", err)
	}
	return nil
}

// Reallocate recomputes and logs per-strategy capital weights from
// trailing performance. Also callable on demand.
func (s *Scheduler) Reallocate(ctx context.Context) {
	allocations, err := s.allocator.Allocate(ctx, s.strategies, s.totalCapital, s.maxPositions, time.Now().UTC())
	if err != nil {
		s.log.Error().Err(err).Msg("capital reallocation failed")
		return
	}
	for _, a := range allocations {
		s.log.Info().
			Str("strategy", a.Strategy).
			Float64("weight", a.Weight).
			Float64("capital", a.Capital).
			Bool("auto_paused", a.AutoPaused).
			Msg("strategy allocation")
	}
}

// Start starts the cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the cron loop and waits for running tasks.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}
