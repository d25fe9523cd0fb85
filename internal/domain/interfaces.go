package domain

import "context"

// TradingClient is the opaque venue capability boundary. Implementations
// own transport, authentication and order signing; callers never see any
// of that.
type TradingClient interface {
	// GetMarkets fetches the full market list with trading configuration
	// and daily stats in one round trip.
	GetMarkets(ctx context.Context) ([]MarketMetadata, error)

	// PlaceOrder submits a limit order and returns the venue-assigned
	// order identifier.
	PlaceOrder(ctx context.Context, intent OrderIntent) (string, error)

	// MassCancel cancels all open orders, optionally restricted to the
	// given markets.
	MassCancel(ctx context.Context, markets []string) error

	// GetPositions returns open positions, optionally filtered by market.
	GetPositions(ctx context.Context, market string) ([]Position, error)
}

// QuoteStream is one live per-market push connection. Recv blocks until
// the next message; ok is false for messages that are malformed, typed
// other than a snapshot, or addressed to a different market.
type QuoteStream interface {
	Recv() (quote MarketQuote, ok bool, err error)
	Close() error
}

// QuoteDialer opens a QuoteStream for a single market.
type QuoteDialer interface {
	Dial(ctx context.Context, market string) (QuoteStream, error)
}

// QuoteReader exposes the latest cached top-of-book quote. Lookups never
// trigger a connection attempt.
type QuoteReader interface {
	BestBidAsk(market string) (MarketQuote, bool)
}

// MarketFetcher is the metadata subset of the trading client consumed by
// the metadata cache.
type MarketFetcher interface {
	GetMarkets(ctx context.Context) ([]MarketMetadata, error)
}
