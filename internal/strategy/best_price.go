package strategy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lumaria/Bot-Extended/internal/domain"
	"github.com/Lumaria/Bot-Extended/internal/infra"

	"github.com/shopspring/decimal"
)

// BestPriceStrategy places a single post-only limit order at the current
// best price on the requested side: buys join the best bid, sells join
// the best ask. The order quantity is the target notional divided by
// that price, snapped to the market's size step.
//
// Prices come exclusively from the local snapshot cache; a market with no
// live stream cannot be traded.
type BestPriceStrategy struct {
	meta   MetadataSource
	quotes domain.QuoteReader
	client domain.TradingClient
	logger *slog.Logger
}

func NewBestPriceStrategy(meta MetadataSource, quotes domain.QuoteReader, client domain.TradingClient) *BestPriceStrategy {
	return &BestPriceStrategy{
		meta:   meta,
		quotes: quotes,
		client: client,
		logger: slog.Default().With(slog.String("module", "best_price")),
	}
}

// Execute validates, sizes and places the order. Failures before
// placement are sentinel errors; placement failures are classified from
// the exchange's message.
func (s *BestPriceStrategy) Execute(ctx context.Context, market string, side domain.Side, notional decimal.Decimal) (string, error) {
	if side != domain.SideBuy && side != domain.SideSell {
		return "", fmt.Errorf("%s: %q: %w", market, side, domain.ErrInvalidSide)
	}
	if notional.Sign() <= 0 {
		return "", fmt.Errorf("notional must be positive, got %s", notional)
	}

	meta, ok := s.meta.Get(ctx, market)
	if !ok || !meta.HasTradingConfig() {
		return "", fmt.Errorf("%s: %w", market, domain.ErrConfigurationUnavailable)
	}

	quote, ok := s.quotes.BestBidAsk(market)
	if !ok || !quote.Complete() {
		return "", fmt.Errorf("%s: %w", market, domain.ErrQuoteUnavailable)
	}

	price := quote.SidePrice(side)
	quantity := quantize(notional.Div(price), meta.MinOrderSizeStep)
	if quantity.LessThan(meta.MinOrderSize) {
		return "", fmt.Errorf("%s: quantity %s below minimum %s: %w",
			market, quantity, meta.MinOrderSize, domain.ErrBelowMinimumSize)
	}

	intent := domain.OrderIntent{
		Market:   market,
		Side:     side,
		Price:    price,
		Quantity: quantity,
		PostOnly: true,
	}

	s.logger.Info("placing order",
		slog.String("market", market),
		slog.String("side", string(side)),
		slog.String("price", price.String()),
		slog.String("quantity", quantity.String()),
	)

	orderID, err := s.client.PlaceOrder(ctx, intent)
	if err != nil {
		infra.GlobalMetrics.RecordOrderRejected()
		execErr := domain.ClassifyExecution(market, err)
		s.logger.Error("order rejected",
			slog.String("market", market),
			slog.Any("error", execErr),
		)
		return "", execErr
	}

	infra.GlobalMetrics.RecordOrderPlaced()
	s.logger.Info("order accepted",
		slog.String("market", market),
		slog.String("order_id", orderID),
	)
	return orderID, nil
}

// quantize snaps a raw quantity onto the market's size grid using
// half-even rounding on the step multiple.
func quantize(raw, step decimal.Decimal) decimal.Decimal {
	if step.Sign() <= 0 {
		return raw
	}
	return raw.Div(step).RoundBank(0).Mul(step)
}
