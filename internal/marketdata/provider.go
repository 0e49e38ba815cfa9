// Package marketdata supplies latest-tick quotes to the pipeline and
// the exit monitor.
package marketdata

import (
	"context"
	"errors"
	"sync"

	"equity-signal-lab/internal/domain"
)

// ErrNoTick is returned when no quote is available for a symbol. Callers
// treat it as a data-unavailable condition, never fatal.
var ErrNoTick = errors.New("no tick available")

// TickProvider returns the latest observed tick for a symbol. Callers
// supply timeouts through ctx; a failed fetch for one symbol must not
// stall other symbols.
type TickProvider interface {
	LatestTick(ctx context.Context, symbol string) (*domain.Tick, error)
}

// StaticProvider is an in-memory TickProvider fed by SetTick. Used in
// tests and as the cache behind the streaming feed.
type StaticProvider struct {
	mu    sync.RWMutex
	ticks map[string]domain.Tick
}

// NewStaticProvider creates an empty static provider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{ticks: make(map[string]domain.Tick)}
}

// Compile-time interface check.
var _ TickProvider = (*StaticProvider)(nil)

// SetTick stores the latest tick for its symbol.
func (p *StaticProvider) SetTick(t domain.Tick) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ticks[t.Symbol] = t
}

// LatestTick returns the stored tick. Returns ErrNoTick when the symbol
// has never been set.
func (p *StaticProvider) LatestTick(_ context.Context, symbol string) (*domain.Tick, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	t, ok := p.ticks[symbol]
	if !ok {
		return nil, ErrNoTick
	}
	cp := t
	return &cp, nil
}
