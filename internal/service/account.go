package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lumaria/Bot-Extended/internal/domain"

	"github.com/shopspring/decimal"
)

// PositionView is a position enriched with a display price. The price is
// informational only: the live stream mid when the market has an active
// quote, otherwise the exchange's last traded price.
type PositionView struct {
	domain.Position
	DisplayPrice decimal.Decimal
}

// AccountService answers position queries and account-wide order
// operations on top of the trading client.
type AccountService struct {
	client domain.TradingClient
	quotes domain.QuoteReader
	meta   *MetadataCache
	logger *slog.Logger
}

func NewAccountService(client domain.TradingClient, quotes domain.QuoteReader, meta *MetadataCache) *AccountService {
	return &AccountService{
		client: client,
		quotes: quotes,
		meta:   meta,
		logger: slog.Default().With(slog.String("module", "account")),
	}
}

// Positions lists open positions, optionally filtered to one market, each
// annotated with a display price.
func (s *AccountService) Positions(ctx context.Context, market string) ([]PositionView, error) {
	positions, err := s.client.GetPositions(ctx, market)
	if err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}

	views := make([]PositionView, 0, len(positions))
	for _, p := range positions {
		views = append(views, PositionView{
			Position:     p,
			DisplayPrice: s.displayPrice(ctx, p.Market),
		})
	}
	return views, nil
}

// CancelAllOrders revokes every resting order on the account.
func (s *AccountService) CancelAllOrders(ctx context.Context) error {
	if err := s.client.MassCancel(ctx, nil); err != nil {
		return fmt.Errorf("mass cancel: %w", err)
	}
	s.logger.Info("all open orders cancelled")
	return nil
}

// displayPrice prefers the live quote mid over the cached last traded
// price. A zero result means no price source was available.
func (s *AccountService) displayPrice(ctx context.Context, market string) decimal.Decimal {
	if q, ok := s.quotes.BestBidAsk(market); ok && q.Complete() {
		return q.BidPrice.Add(q.AskPrice).DivRound(decimal.NewFromInt(2), 8)
	}
	meta, ok := s.meta.Get(ctx, market)
	if !ok {
		s.logger.Warn("no price source for market", slog.String("market", market))
		return decimal.Zero
	}
	return meta.LastPrice
}
