package marketdata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/storage/memory"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// quoteServer upgrades each connection, records the subscribe request,
// and pushes the configured quotes.
func quoteServer(t *testing.T, quotes []quoteMessage, gotSubscribe *sync.WaitGroup) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req subscribeRequest
		if err := json.Unmarshal(msg, &req); err != nil || req.Action != "subscribe" {
			t.Errorf("unexpected subscribe request: %s", msg)
			return
		}
		gotSubscribe.Done()

		for _, q := range quotes {
			if err := conn.WriteJSON(q); err != nil {
				return
			}
		}
		// Keep the connection open until the client closes it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWSFeedCachesQuotes(t *testing.T) {
	var subscribed sync.WaitGroup
	subscribed.Add(1)

	quotes := []quoteMessage{
		{Type: "quote", Symbol: "INFY", Last: 1501.5, Open: 1490, TsMillis: 1767337800000},
		{Type: "quote", Symbol: "INFY", Last: 1503.0, Open: 1490, TsMillis: 1767337801000},
		{Type: "heartbeat"},
		{Type: "quote", Symbol: "TCS", Last: 3900.25, TsMillis: 1767337802000},
	}
	server := quoteServer(t, quotes, &subscribed)
	defer server.Close()

	cache := NewStaticProvider()
	cfg := DefaultFeedConfig()
	cfg.Endpoint = wsURL(server)
	cfg.Symbols = []string{"INFY", "TCS"}

	feed, err := NewWSFeed(context.Background(), FeedOptions{
		Config: cfg,
		Cache:  cache,
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewWSFeed: %v", err)
	}
	defer feed.Close()
	subscribed.Wait()

	waitFor(t, 2*time.Second, func() bool {
		tick, err := cache.LatestTick(context.Background(), "TCS")
		return err == nil && tick.Last == 3900.25
	})

	// The cache holds the latest quote per symbol.
	tick, err := cache.LatestTick(context.Background(), "INFY")
	if err != nil {
		t.Fatalf("LatestTick: %v", err)
	}
	if tick.Last != 1503.0 {
		t.Errorf("INFY last: got %v, want 1503.0", tick.Last)
	}
	if tick.At.IsZero() {
		t.Error("tick timestamp not set")
	}
}

func TestWSFeedArchivesOnClose(t *testing.T) {
	var subscribed sync.WaitGroup
	subscribed.Add(1)

	quotes := []quoteMessage{
		{Type: "quote", Symbol: "INFY", Last: 1501.5, TsMillis: 1767337800000},
		{Type: "quote", Symbol: "INFY", Last: 1502.5, TsMillis: 1767337801000},
	}
	server := quoteServer(t, quotes, &subscribed)
	defer server.Close()

	cache := NewStaticProvider()
	archive := memory.NewTickArchive()
	cfg := DefaultFeedConfig()
	cfg.Endpoint = wsURL(server)
	cfg.Symbols = []string{"INFY"}

	var seen int
	var seenMu sync.Mutex
	feed, err := NewWSFeed(context.Background(), FeedOptions{
		Config:  cfg,
		Cache:   cache,
		Archive: archive,
		OnTick: func(domain.Tick) {
			seenMu.Lock()
			seen++
			seenMu.Unlock()
		},
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewWSFeed: %v", err)
	}
	subscribed.Wait()

	waitFor(t, 2*time.Second, func() bool {
		seenMu.Lock()
		defer seenMu.Unlock()
		return seen == 2
	})
	if err := feed.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := feed.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	// Close flushed the pending batch.
	start := time.UnixMilli(1767337800000).UTC()
	ticks, err := archive.GetBySymbolRange(context.Background(), "INFY", start, start.Add(time.Minute))
	if err != nil {
		t.Fatalf("GetBySymbolRange: %v", err)
	}
	if len(ticks) != 2 {
		t.Fatalf("archived ticks: got %d, want 2", len(ticks))
	}
	if ticks[0].Last != 1501.5 || ticks[1].Last != 1502.5 {
		t.Errorf("archive order: got %v then %v", ticks[0].Last, ticks[1].Last)
	}
}

func TestWSFeedRejectsMissingEndpoint(t *testing.T) {
	_, err := NewWSFeed(context.Background(), FeedOptions{Cache: NewStaticProvider()})
	if err == nil {
		t.Fatal("expected an error for missing endpoint")
	}
}
