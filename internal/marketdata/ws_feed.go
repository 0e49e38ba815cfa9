package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/observability"
	"equity-signal-lab/internal/storage"
)

// FeedConfig configures the streaming quote feed.
type FeedConfig struct {
	// Endpoint is the websocket URL of the quote stream.
	Endpoint string
	// Symbols to subscribe to on connect and after every reconnect.
	Symbols []string
	// PingInterval is the keepalive ping cadence.
	PingInterval time.Duration
	// ReadTimeout bounds each read; a stalled stream triggers reconnect.
	ReadTimeout time.Duration
	// WriteTimeout bounds subscribe and ping writes.
	WriteTimeout time.Duration
	// ArchiveFlushSize batches ticks before an archive insert.
	ArchiveFlushSize int
}

// DefaultFeedConfig returns the default feed timings.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		PingInterval:     30 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		ArchiveFlushSize: 200,
	}
}

// WSFeed streams quote messages over a websocket into the tick cache,
// reconnecting with exponential backoff and resubscribing on every new
// connection. Ticks are also batched into the archive when one is
// configured.
type WSFeed struct {
	cfg     FeedConfig
	cache   *StaticProvider
	archive storage.TickArchive
	onTick  func(domain.Tick)
	log     zerolog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup

	batchMu sync.Mutex
	batch   []*domain.Tick
}

// FeedOptions wires the feed's collaborators. OnTick and Archive are
// optional.
type FeedOptions struct {
	Config  FeedConfig
	Cache   *StaticProvider
	Archive storage.TickArchive
	OnTick  func(domain.Tick)
	Logger  zerolog.Logger
}

// NewWSFeed connects to the endpoint, subscribes, and starts the read
// and ping loops.
func NewWSFeed(ctx context.Context, opts FeedOptions) (*WSFeed, error) {
	if opts.Config.Endpoint == "" {
		return nil, fmt.Errorf("marketdata: feed endpoint is required")
	}
	if opts.Cache == nil {
		return nil, fmt.Errorf("marketdata: tick cache is required")
	}

	f := &WSFeed{
		cfg:     opts.Config,
		cache:   opts.Cache,
		archive: opts.Archive,
		onTick:  opts.OnTick,
		log:     opts.Logger,
		done:    make(chan struct{}),
	}
	defaults := DefaultFeedConfig()
	if f.cfg.PingInterval <= 0 {
		f.cfg.PingInterval = defaults.PingInterval
	}
	if f.cfg.ReadTimeout <= 0 {
		f.cfg.ReadTimeout = defaults.ReadTimeout
	}
	if f.cfg.WriteTimeout <= 0 {
		f.cfg.WriteTimeout = defaults.WriteTimeout
	}
	if f.cfg.ArchiveFlushSize <= 0 {
		f.cfg.ArchiveFlushSize = defaults.ArchiveFlushSize
	}

	if err := f.connect(ctx); err != nil {
		return nil, err
	}
	if err := f.subscribe(); err != nil {
		f.closeConn()
		return nil, err
	}

	f.wg.Add(2)
	go f.readLoop()
	go f.pingLoop()
	return f, nil
}

func (f *WSFeed) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, f.cfg.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("marketdata: websocket dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()
	return nil
}

type subscribeRequest struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
}

func (f *WSFeed) subscribe() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	if f.conn == nil {
		return fmt.Errorf("marketdata: not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(f.cfg.WriteTimeout))
	if err := f.conn.WriteJSON(subscribeRequest{Action: "subscribe", Symbols: f.cfg.Symbols}); err != nil {
		return fmt.Errorf("marketdata: write subscribe: %w", err)
	}
	return nil
}

// Close stops the loops, flushes the archive batch, and closes the
// connection. Idempotent.
func (f *WSFeed) Close() error {
	if f.closed.Swap(true) {
		return nil
	}
	close(f.done)
	f.closeConn()
	f.wg.Wait()
	f.flushArchive(context.Background())
	return nil
}

func (f *WSFeed) closeConn() {
	f.connMu.Lock()
	if f.conn != nil {
		f.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		f.conn.Close()
		f.conn = nil
	}
	f.connMu.Unlock()
}

func (f *WSFeed) readLoop() {
	defer f.wg.Done()

	for !f.closed.Load() {
		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		if conn == nil {
			if !f.reconnect() {
				return
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if f.closed.Load() {
				return
			}
			f.log.Warn().Err(err).Msg("quote stream read failed, reconnecting")
			f.closeConn()
			continue
		}
		f.handleMessage(message)
	}
}

// reconnect dials until connected or the feed is closed. Returns false
// on shutdown.
func (f *WSFeed) reconnect() bool {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0

	for {
		select {
		case <-f.done:
			return false
		case <-time.After(bo.NextBackOff()):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := f.connect(ctx)
		cancel()
		if err != nil {
			f.log.Warn().Err(err).Msg("quote stream reconnect failed")
			continue
		}
		if err := f.subscribe(); err != nil {
			f.log.Warn().Err(err).Msg("resubscribe failed")
			f.closeConn()
			continue
		}
		observability.RecordFeedReconnect()
		f.log.Info().Msg("quote stream reconnected")
		return true
	}
}

type quoteMessage struct {
	Type      string  `json:"type"`
	Symbol    string  `json:"symbol"`
	Last      float64 `json:"last"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	PrevClose float64 `json:"prev_close"`
	TsMillis  int64   `json:"ts"`
}

func (f *WSFeed) handleMessage(message []byte) {
	var q quoteMessage
	if err := json.Unmarshal(message, &q); err != nil || q.Type != "quote" {
		return
	}
	if q.Symbol == "" || q.Last <= 0 {
		return
	}

	tick := domain.Tick{
		Symbol:    q.Symbol,
		Last:      q.Last,
		Open:      q.Open,
		High:      q.High,
		Low:       q.Low,
		PrevClose: q.PrevClose,
		At:        time.UnixMilli(q.TsMillis).UTC(),
	}
	observability.RecordTick()
	f.cache.SetTick(tick)
	if f.onTick != nil {
		f.onTick(tick)
	}
	f.enqueueArchive(tick)
}

func (f *WSFeed) enqueueArchive(tick domain.Tick) {
	if f.archive == nil {
		return
	}

	f.batchMu.Lock()
	cp := tick
	f.batch = append(f.batch, &cp)
	full := len(f.batch) >= f.cfg.ArchiveFlushSize
	f.batchMu.Unlock()

	if full {
		f.flushArchive(context.Background())
	}
}

// flushArchive writes the pending batch. Archive failures drop the
// batch: the archive is best-effort and must never stall the stream.
func (f *WSFeed) flushArchive(ctx context.Context) {
	if f.archive == nil {
		return
	}

	f.batchMu.Lock()
	batch := f.batch
	f.batch = nil
	f.batchMu.Unlock()

	if len(batch) == 0 {
		return
	}
	if err := f.archive.InsertBulk(ctx, batch); err != nil {
		f.log.Error().Err(err).Int("ticks", len(batch)).Msg("tick archive insert failed")
	}
}

func (f *WSFeed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.connMu.Lock()
			if f.conn != nil {
				f.conn.SetWriteDeadline(time.Now().Add(f.cfg.WriteTimeout))
				f.conn.WriteMessage(websocket.PingMessage, nil)
			}
			f.connMu.Unlock()
		}
	}
}
