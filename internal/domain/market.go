package domain

import "github.com/shopspring/decimal"

// MarketMetadata holds the slow-moving trading configuration and stats for
// one market, fetched in bulk over REST and cached with a TTL.
type MarketMetadata struct {
	Name             string          `json:"name"`
	LastPrice        decimal.Decimal `json:"last_price"`
	DailyVolume      decimal.Decimal `json:"daily_volume"`
	MinOrderSize     decimal.Decimal `json:"min_order_size"`
	MinOrderSizeStep decimal.Decimal `json:"min_order_size_step"`
}

// HasTradingConfig reports whether the sizing fields required to build an
// order are present. Metadata without them is unusable for execution.
func (m MarketMetadata) HasTradingConfig() bool {
	return m.MinOrderSize.IsPositive() && m.MinOrderSizeStep.IsPositive()
}
