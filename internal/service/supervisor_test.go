package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Lumaria/Bot-Extended/internal/domain"

	"github.com/shopspring/decimal"
)

type fakeStream struct {
	quotes chan domain.MarketQuote
	closed chan struct{}
	once   sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		quotes: make(chan domain.MarketQuote, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeStream) Recv() (domain.MarketQuote, bool, error) {
	select {
	case q := <-f.quotes:
		return q, q.Complete(), nil
	case <-f.closed:
		return domain.MarketQuote{}, false, domain.ErrStreamClosed
	}
}

func (f *fakeStream) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

// dropFromServer simulates the exchange closing the connection.
func (f *fakeStream) dropFromServer() {
	f.Close()
}

type fakeDialer struct {
	mu       sync.Mutex
	dials    map[string]int
	streams  map[string]*fakeStream
	failures map[string]int // remaining dial attempts to refuse
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		dials:    make(map[string]int),
		streams:  make(map[string]*fakeStream),
		failures: make(map[string]int),
	}
}

func (d *fakeDialer) Dial(ctx context.Context, market string) (domain.QuoteStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials[market]++
	if d.failures[market] > 0 {
		d.failures[market]--
		return nil, errors.New("connection refused")
	}

	st := newFakeStream()
	d.streams[market] = st
	return st, nil
}

func (d *fakeDialer) dialCount(market string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials[market]
}

func (d *fakeDialer) current(market string) *fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streams[market]
}

func newTestSupervisor(dialer *fakeDialer) (*StreamSupervisor, *SnapshotStore) {
	store := NewSnapshotStore()
	sup := NewStreamSupervisor(dialer, store)
	sup.SetRetryDelays(10*time.Millisecond, 5*time.Millisecond)
	return sup, store
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

func streamQuote(market string, bid, ask int64, ts int64) domain.MarketQuote {
	return domain.MarketQuote{
		Market:     market,
		BidPrice:   decimal.NewFromInt(bid),
		AskPrice:   decimal.NewFromInt(ask),
		ObservedAt: ts,
	}
}

func TestSupervisor_LatestQuoteVisible(t *testing.T) {
	dialer := newFakeDialer()
	sup, _ := newTestSupervisor(dialer)
	defer sup.CloseAll()

	sup.StartStreams(context.Background(), []string{"BTC-USD"})

	if !waitFor(t, time.Second, func() bool { return dialer.current("BTC-USD") != nil }) {
		t.Fatal("listener never connected")
	}

	st := dialer.current("BTC-USD")
	st.quotes <- streamQuote("BTC-USD", 100, 101, 1)
	st.quotes <- streamQuote("BTC-USD", 102, 103, 2)

	ok := waitFor(t, time.Second, func() bool {
		q, ok := sup.BestBidAsk("BTC-USD")
		return ok && q.ObservedAt == 2
	})
	if !ok {
		t.Fatal("latest quote never became visible")
	}

	q, _ := sup.BestBidAsk("BTC-USD")
	if !q.BidPrice.Equal(decimal.NewFromInt(102)) || !q.AskPrice.Equal(decimal.NewFromInt(103)) {
		t.Errorf("quote = %v/%v, want 102/103", q.BidPrice, q.AskPrice)
	}
}

func TestSupervisor_LowercaseMarketNormalized(t *testing.T) {
	dialer := newFakeDialer()
	sup, _ := newTestSupervisor(dialer)
	defer sup.CloseAll()

	sup.StartStreams(context.Background(), []string{"btc-usd"})

	if !waitFor(t, time.Second, func() bool { return dialer.current("BTC-USD") != nil }) {
		t.Fatal("listener should dial the upper-cased market name")
	}

	active := sup.ActiveMarkets()
	if len(active) != 1 || active[0] != "BTC-USD" {
		t.Errorf("ActiveMarkets = %v, want [BTC-USD]", active)
	}
}

func TestSupervisor_StopRemovesQuote(t *testing.T) {
	dialer := newFakeDialer()
	sup, store := newTestSupervisor(dialer)

	sup.StartStreams(context.Background(), []string{"BTC-USD"})
	if !waitFor(t, time.Second, func() bool { return dialer.current("BTC-USD") != nil }) {
		t.Fatal("listener never connected")
	}

	dialer.current("BTC-USD").quotes <- streamQuote("BTC-USD", 100, 101, 1)
	if !waitFor(t, time.Second, func() bool { _, ok := sup.BestBidAsk("BTC-USD"); return ok }) {
		t.Fatal("quote never cached")
	}

	sup.StopStreams([]string{"BTC-USD"})

	// StopStreams waits for the listener, so the removal is already
	// visible; no polling needed.
	if _, ok := sup.BestBidAsk("BTC-USD"); ok {
		t.Error("quote must be absent after stop")
	}
	if store.Len() != 0 {
		t.Errorf("store still holds %d quotes after stop", store.Len())
	}
	if got := sup.ActiveMarkets(); len(got) != 0 {
		t.Errorf("ActiveMarkets = %v, want empty", got)
	}
}

// gateStream delivers a quote only when the test releases it, ignoring
// the connection close. It models a message already in flight when a
// stop begins: the read completes with data even though the market has
// been flagged off.
type gateStream struct {
	release   chan domain.MarketQuote
	reading   chan struct{}
	closed    chan struct{}
	readOnce  sync.Once
	closeOnce sync.Once
}

func newGateStream() *gateStream {
	return &gateStream{
		release: make(chan domain.MarketQuote),
		reading: make(chan struct{}),
		closed:  make(chan struct{}),
	}
}

func (g *gateStream) Recv() (domain.MarketQuote, bool, error) {
	g.readOnce.Do(func() { close(g.reading) })
	q, ok := <-g.release
	if !ok {
		return domain.MarketQuote{}, false, domain.ErrStreamClosed
	}
	return q, true, nil
}

func (g *gateStream) Close() error {
	g.closeOnce.Do(func() { close(g.closed) })
	return nil
}

func (g *gateStream) wasClosed() bool {
	select {
	case <-g.closed:
		return true
	default:
		return false
	}
}

type gateDialer struct {
	stream *gateStream
}

func (d *gateDialer) Dial(ctx context.Context, market string) (domain.QuoteStream, error) {
	return d.stream, nil
}

func TestSupervisor_StopSkipsInFlightQuote(t *testing.T) {
	stream := newGateStream()
	store := NewSnapshotStore()
	sup := NewStreamSupervisor(&gateDialer{stream: stream}, store)
	sup.SetRetryDelays(10*time.Millisecond, 5*time.Millisecond)

	sup.StartStreams(context.Background(), []string{"BTC-USD"})

	// Wait until the listener is blocked in its receive before stopping,
	// so the delivered quote is genuinely in flight across the stop.
	select {
	case <-stream.reading:
	case <-time.After(time.Second):
		t.Fatal("listener never started reading")
	}

	stopDone := make(chan struct{})
	go func() {
		sup.StopStreams([]string{"BTC-USD"})
		close(stopDone)
	}()

	// The stop has flagged the market off and closed the connection, but
	// the listener is still blocked in its receive.
	if !waitFor(t, time.Second, stream.wasClosed) {
		t.Fatal("stop never reached the connection")
	}

	// Deliver the message that was in flight when the stop began.
	stream.release <- streamQuote("BTC-USD", 100, 101, 1)

	select {
	case <-stopDone:
	case <-time.After(time.Second):
		t.Fatal("stop never completed")
	}

	if _, ok := sup.BestBidAsk("BTC-USD"); ok {
		t.Error("in-flight quote must not be written for a stopped market")
	}
	if store.Len() != 0 {
		t.Errorf("store holds %d quotes, want 0", store.Len())
	}
}

func TestSupervisor_StartIsIdempotent(t *testing.T) {
	dialer := newFakeDialer()
	sup, _ := newTestSupervisor(dialer)
	defer sup.CloseAll()

	ctx := context.Background()
	first := sup.StartStreams(ctx, []string{"BTC-USD"})
	if len(first) != 1 {
		t.Fatalf("first start should spawn one listener, got %v", first)
	}

	if !waitFor(t, time.Second, func() bool { return dialer.current("BTC-USD") != nil }) {
		t.Fatal("listener never connected")
	}

	again := sup.StartStreams(ctx, []string{"BTC-USD"})
	if len(again) != 0 {
		t.Errorf("second start must not spawn a listener, got %v", again)
	}

	// Give a duplicate listener the chance to dial, then verify there
	// was only ever one connection.
	time.Sleep(30 * time.Millisecond)
	if got := dialer.dialCount("BTC-USD"); got != 1 {
		t.Errorf("dial count = %d, want 1 (single logical listener)", got)
	}
}

func TestSupervisor_RestartAfterStop(t *testing.T) {
	dialer := newFakeDialer()
	sup, _ := newTestSupervisor(dialer)
	defer sup.CloseAll()

	ctx := context.Background()
	sup.StartStreams(ctx, []string{"BTC-USD"})
	waitFor(t, time.Second, func() bool { return dialer.current("BTC-USD") != nil })
	sup.StopStreams([]string{"BTC-USD"})

	started := sup.StartStreams(ctx, []string{"BTC-USD"})
	if len(started) != 1 {
		t.Fatalf("restart should spawn a fresh listener, got %v", started)
	}

	if !waitFor(t, time.Second, func() bool { return dialer.dialCount("BTC-USD") >= 2 }) {
		t.Error("restarted listener never dialed")
	}
}

func TestSupervisor_ReconnectAfterDrop(t *testing.T) {
	dialer := newFakeDialer()
	sup, _ := newTestSupervisor(dialer)
	defer sup.CloseAll()

	sup.StartStreams(context.Background(), []string{"BTC-USD"})
	if !waitFor(t, time.Second, func() bool { return dialer.current("BTC-USD") != nil }) {
		t.Fatal("listener never connected")
	}

	first := dialer.current("BTC-USD")
	first.dropFromServer()

	if !waitFor(t, time.Second, func() bool { return dialer.dialCount("BTC-USD") >= 2 }) {
		t.Fatal("listener never reconnected after drop")
	}

	// The market stays active throughout the reconnect.
	active := sup.ActiveMarkets()
	if len(active) != 1 || active[0] != "BTC-USD" {
		t.Errorf("ActiveMarkets = %v, want [BTC-USD] mid-reconnect", active)
	}
}

func TestSupervisor_DialFailureRetries(t *testing.T) {
	dialer := newFakeDialer()
	dialer.failures["BTC-USD"] = 2
	sup, _ := newTestSupervisor(dialer)
	defer sup.CloseAll()

	sup.StartStreams(context.Background(), []string{"BTC-USD"})

	if !waitFor(t, time.Second, func() bool { return dialer.current("BTC-USD") != nil }) {
		t.Fatal("listener never connected through dial failures")
	}
	if got := dialer.dialCount("BTC-USD"); got < 3 {
		t.Errorf("dial count = %d, want >= 3 (two refusals then success)", got)
	}

	// Streams that cannot connect fail closed: nothing was ever cached.
	dialer.current("BTC-USD").quotes <- streamQuote("BTC-USD", 100, 101, 1)
	if !waitFor(t, time.Second, func() bool { _, ok := sup.BestBidAsk("BTC-USD"); return ok }) {
		t.Error("quote should flow once the connection succeeds")
	}
}

func TestSupervisor_CloseAll(t *testing.T) {
	dialer := newFakeDialer()
	sup, store := newTestSupervisor(dialer)

	sup.StartStreams(context.Background(), []string{"BTC-USD", "ETH-USD"})
	waitFor(t, time.Second, func() bool {
		return dialer.current("BTC-USD") != nil && dialer.current("ETH-USD") != nil
	})

	dialer.current("BTC-USD").quotes <- streamQuote("BTC-USD", 100, 101, 1)
	dialer.current("ETH-USD").quotes <- streamQuote("ETH-USD", 10, 11, 1)
	waitFor(t, time.Second, func() bool { return store.Len() == 2 })

	sup.CloseAll()

	if got := sup.ActiveMarkets(); len(got) != 0 {
		t.Errorf("ActiveMarkets = %v, want empty after CloseAll", got)
	}
	if _, ok := sup.BestBidAsk("BTC-USD"); ok {
		t.Error("BTC-USD quote must be absent after CloseAll")
	}
	if _, ok := sup.BestBidAsk("ETH-USD"); ok {
		t.Error("ETH-USD quote must be absent after CloseAll")
	}
	if store.Len() != 0 {
		t.Errorf("store still holds %d quotes after CloseAll", store.Len())
	}
}

func TestSupervisor_StopUnknownMarketIsNoop(t *testing.T) {
	dialer := newFakeDialer()
	sup, _ := newTestSupervisor(dialer)

	// Must not block or panic.
	sup.StopStreams([]string{"NOPE-USD"})
}

func TestSupervisor_ParentContextCancelStopsListener(t *testing.T) {
	dialer := newFakeDialer()
	sup, _ := newTestSupervisor(dialer)

	ctx, cancel := context.WithCancel(context.Background())
	sup.StartStreams(ctx, []string{"BTC-USD"})
	waitFor(t, time.Second, func() bool { return dialer.current("BTC-USD") != nil })

	dialer.current("BTC-USD").quotes <- streamQuote("BTC-USD", 100, 101, 1)
	if !waitFor(t, time.Second, func() bool { _, ok := sup.BestBidAsk("BTC-USD"); return ok }) {
		t.Fatal("quote never cached")
	}

	cancel()
	dialer.current("BTC-USD").dropFromServer()

	ok := waitFor(t, time.Second, func() bool {
		_, cached := sup.BestBidAsk("BTC-USD")
		return !cached
	})
	if !ok {
		t.Error("listener should clean up after parent context cancellation")
	}
}
