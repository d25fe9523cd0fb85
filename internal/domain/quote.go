package domain

import "github.com/shopspring/decimal"

// MarketQuote is the latest top-of-book snapshot for a single market.
// It is built once from a single stream message and replaced wholesale on
// every update; fields are never mutated in place.
type MarketQuote struct {
	Market     string          `json:"market"`
	BidPrice   decimal.Decimal `json:"bid_price"`
	BidQty     decimal.Decimal `json:"bid_qty"`
	AskPrice   decimal.Decimal `json:"ask_price"`
	AskQty     decimal.Decimal `json:"ask_qty"`
	ObservedAt int64           `json:"observed_at"` // venue timestamp, unix millis
}

// Complete reports whether both sides of the book carry a price.
// Incomplete quotes are dropped before they ever reach the snapshot store.
func (q MarketQuote) Complete() bool {
	return q.BidPrice.IsPositive() && q.AskPrice.IsPositive()
}

// SidePrice returns the reference price for the given order side:
// buys post at the best bid, sells at the best ask.
func (q MarketQuote) SidePrice(side Side) decimal.Decimal {
	if side == SideBuy {
		return q.BidPrice
	}
	return q.AskPrice
}
