package strategy

import (
	"context"

	"github.com/Lumaria/Bot-Extended/internal/domain"

	"github.com/shopspring/decimal"
)

// Strategy converts an operator request into at most one exchange order.
// It returns the exchange-assigned order identifier.
type Strategy interface {
	Execute(ctx context.Context, market string, side domain.Side, notional decimal.Decimal) (string, error)
}

// MetadataSource provides per-market trading configuration.
type MetadataSource interface {
	Get(ctx context.Context, market string) (domain.MarketMetadata, bool)
}
