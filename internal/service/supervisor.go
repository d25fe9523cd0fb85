package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Lumaria/Bot-Extended/internal/domain"
	"github.com/Lumaria/Bot-Extended/internal/infra"
)

const (
	defaultReconnectDelay = 10 * time.Second
	defaultReadRetryDelay = 5 * time.Second
)

// streamHandle is the supervision record for one market.
type streamHandle struct {
	market  string
	desired atomic.Bool // single source of truth for "keep running"
	cancel  context.CancelFunc
	conn    domain.QuoteStream // guarded by the supervisor mutex
	done    chan struct{}      // closed once the listener has fully exited
}

func (h *streamHandle) exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// StreamSupervisor owns one supervised push connection per active market.
// Each listener independently connects, parses and writes into the
// snapshot store, reconnecting with a fixed backoff for as long as its
// market stays desired-active. Connection failures are never fatal to the
// process; a market that cannot connect simply never populates the store.
type StreamSupervisor struct {
	dialer domain.QuoteDialer
	store  *SnapshotStore

	reconnectDelay time.Duration
	readRetryDelay time.Duration

	mu      sync.Mutex
	handles map[string]*streamHandle
}

// NewStreamSupervisor creates a supervisor writing into the given store.
func NewStreamSupervisor(dialer domain.QuoteDialer, store *SnapshotStore) *StreamSupervisor {
	return &StreamSupervisor{
		dialer:         dialer,
		store:          store,
		reconnectDelay: defaultReconnectDelay,
		readRetryDelay: defaultReadRetryDelay,
		handles:        make(map[string]*streamHandle),
	}
}

// SetRetryDelays overrides the fixed backoff intervals.
func (s *StreamSupervisor) SetRetryDelays(reconnect, readRetry time.Duration) {
	s.reconnectDelay = reconnect
	s.readRetryDelay = readRetry
}

// StartStreams marks every market desired-active and spawns a listener
// for any that lacks a live one. Idempotent: starting an already-active
// market only ensures the flag is set. Returns the markets that got a
// new listener.
func (s *StreamSupervisor) StartStreams(ctx context.Context, markets []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var started []string
	for _, raw := range markets {
		market := strings.ToUpper(raw)

		if h, ok := s.handles[market]; ok && !h.exited() {
			h.desired.Store(true)
			continue
		}

		h := &streamHandle{market: market, done: make(chan struct{})}
		h.desired.Store(true)
		lctx, cancel := context.WithCancel(ctx)
		h.cancel = cancel
		s.handles[market] = h

		go s.listen(lctx, h)
		started = append(started, market)
	}

	if len(started) > 0 {
		slog.Info("stream listeners started", slog.Any("markets", started))
	}
	return started
}

// StopStreams flips each market's flag off, cancels its listener, closes
// any open connection, and waits for the listener to acknowledge exit.
// Cancellation is the expected outcome, not an error. There is no timeout
// on the wait: a listener that fails to exit is waited on indefinitely.
func (s *StreamSupervisor) StopStreams(markets []string) {
	for _, raw := range markets {
		market := strings.ToUpper(raw)

		s.mu.Lock()
		h, ok := s.handles[market]
		if !ok {
			s.mu.Unlock()
			continue
		}
		h.desired.Store(false)
		if h.cancel != nil {
			h.cancel()
		}
		// Cancellation alone may not unblock an in-progress receive
		// promptly; close the connection explicitly as well.
		if h.conn != nil {
			h.conn.Close()
		}
		s.mu.Unlock()

		<-h.done

		s.mu.Lock()
		if s.handles[market] == h {
			delete(s.handles, market)
		}
		s.mu.Unlock()

		slog.Info("stream stopped", slog.String("market", market))
	}
}

// CloseAll stops every known market and clears all bookkeeping.
func (s *StreamSupervisor) CloseAll() {
	s.mu.Lock()
	markets := make([]string, 0, len(s.handles))
	for market := range s.handles {
		markets = append(markets, market)
	}
	s.mu.Unlock()

	s.StopStreams(markets)

	s.mu.Lock()
	s.handles = make(map[string]*streamHandle)
	s.mu.Unlock()

	slog.Info("all streams closed")
}

// BestBidAsk returns the latest cached quote for the market. It never
// triggers a connection attempt.
func (s *StreamSupervisor) BestBidAsk(market string) (domain.MarketQuote, bool) {
	return s.store.Get(strings.ToUpper(market))
}

// ActiveMarkets returns the sorted names of desired-active markets. A
// market mid-reconnect still counts as active.
func (s *StreamSupervisor) ActiveMarkets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	markets := make([]string, 0, len(s.handles))
	for market, h := range s.handles {
		if h.desired.Load() {
			markets = append(markets, market)
		}
	}
	sort.Strings(markets)
	return markets
}

// listen supervises one market's connection for as long as the market is
// desired-active. On exit it removes its own snapshot and connection
// entries; cleanup is the exiting listener's responsibility, not the
// stopper's.
func (s *StreamSupervisor) listen(ctx context.Context, h *streamHandle) {
	infra.GlobalMetrics.IncrementStreams()
	defer func() {
		s.mu.Lock()
		if h.conn != nil {
			h.conn.Close()
			h.conn = nil
		}
		s.mu.Unlock()
		s.store.Remove(h.market)
		infra.GlobalMetrics.DecrementStreams()
		slog.Info("stream listener stopped", slog.String("market", h.market))
		close(h.done)
	}()

	for h.desired.Load() && ctx.Err() == nil {
		stream, err := s.dialer.Dial(ctx, h.market)
		if err != nil {
			slog.Warn("stream connect failed",
				slog.String("market", h.market),
				slog.Any("error", err),
			)
			if !s.pause(ctx, h, s.reconnectDelay) {
				return
			}
			infra.GlobalMetrics.RecordReconnect()
			continue
		}

		s.mu.Lock()
		if !h.desired.Load() { // a stop raced the dial
			s.mu.Unlock()
			stream.Close()
			return
		}
		h.conn = stream
		s.mu.Unlock()

		slog.Info("stream connected", slog.String("market", h.market))
		s.readLoop(ctx, h, stream)

		s.mu.Lock()
		if h.conn == stream {
			h.conn = nil
		}
		s.mu.Unlock()
		stream.Close()

		if !h.desired.Load() || ctx.Err() != nil {
			return
		}
		if !s.pause(ctx, h, s.reconnectDelay) {
			return
		}
		infra.GlobalMetrics.RecordReconnect()
	}
}

// readLoop receives until the connection drops or the market stops being
// desired. Malformed or mismatched messages are skipped with the
// connection kept alive.
func (s *StreamSupervisor) readLoop(ctx context.Context, h *streamHandle, stream domain.QuoteStream) {
	for h.desired.Load() && ctx.Err() == nil {
		quote, ok, err := stream.Recv()
		if err != nil {
			if errors.Is(err, domain.ErrStreamClosed) {
				slog.Warn("stream connection closed", slog.String("market", h.market))
				return
			}
			slog.Error("stream receive failed",
				slog.String("market", h.market),
				slog.Any("error", err),
			)
			// Short pause before the connection is torn down and redialed.
			s.pause(ctx, h, s.readRetryDelay)
			return
		}
		if !ok {
			infra.GlobalMetrics.RecordQuoteDropped()
			continue
		}
		// Recheck after the blocking receive: a stop may have completed
		// while this message was in flight, and the write must not
		// resurrect data for a stopped market.
		if !h.desired.Load() {
			return
		}
		s.store.Put(h.market, quote)
		infra.GlobalMetrics.RecordQuoteApplied()
	}
}

// pause waits out a backoff interval; false means the listener should
// exit instead of retrying.
func (s *StreamSupervisor) pause(ctx context.Context, h *streamHandle, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return h.desired.Load()
	}
}
