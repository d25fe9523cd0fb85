package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide maps the user-facing side aliases onto a Side.
// "bb"/"buy" post at the best bid, "ba"/"sell" at the best ask.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(s) {
	case "bb", "buy":
		return SideBuy, nil
	case "ba", "sell":
		return SideSell, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSide, s)
	}
}

// OrderIntent is the fully-sized order handed to the trading client.
// It lives only for the duration of one strategy invocation.
type OrderIntent struct {
	Market   string
	Side     Side
	Price    decimal.Decimal
	Quantity decimal.Decimal
	PostOnly bool
}

// Position is an open account position as reported by the venue.
type Position struct {
	Market        string          `json:"market"`
	Side          string          `json:"side"`
	Size          decimal.Decimal `json:"size"`
	OpenPrice     decimal.Decimal `json:"openPrice"`
	UnrealisedPnl decimal.Decimal `json:"unrealisedPnl"`
}
