package extended

import (
	"github.com/Lumaria/Bot-Extended/internal/domain"
	"github.com/shopspring/decimal"
)

// API response envelopes. Every endpoint answers {"status":"OK","data":...}
// or {"status":"ERROR","error":{"code":...,"message":...}}.

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type marketStatsModel struct {
	LastPrice   decimal.Decimal `json:"lastPrice"`
	DailyVolume decimal.Decimal `json:"dailyVolume"`
}

type tradingConfigModel struct {
	MinOrderSize       decimal.Decimal `json:"minOrderSize"`
	MinOrderSizeChange decimal.Decimal `json:"minOrderSizeChange"`
}

type marketModel struct {
	Name          string             `json:"name"`
	Active        bool               `json:"active"`
	MarketStats   marketStatsModel   `json:"marketStats"`
	TradingConfig tradingConfigModel `json:"tradingConfig"`
}

func (m marketModel) toDomain() domain.MarketMetadata {
	return domain.MarketMetadata{
		Name:             m.Name,
		LastPrice:        m.MarketStats.LastPrice,
		DailyVolume:      m.MarketStats.DailyVolume,
		MinOrderSize:     m.TradingConfig.MinOrderSize,
		MinOrderSizeStep: m.TradingConfig.MinOrderSizeChange,
	}
}

type marketsResponse struct {
	Status string        `json:"status"`
	Data   []marketModel `json:"data"`
}

// Signature is the (r,s) pair of a settlement signature, hex encoded.
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
}

// Settlement is the signed L2 settlement block attached to an order.
type Settlement struct {
	Signature          Signature `json:"signature"`
	StarkKey           string    `json:"starkKey"`
	CollateralPosition string    `json:"collateralPosition"`
}

// OrderPayload is the order content handed to an OrderSigner. It carries
// everything the settlement hash covers.
type OrderPayload struct {
	ExternalID        string
	Market            string
	Side              domain.Side
	Qty               decimal.Decimal
	Price             decimal.Decimal
	Nonce             string
	ExpiryEpochMillis int64
	Vault             uint64
	PublicKey         string
}

type orderRequest struct {
	ID                string      `json:"id"`
	Market            string      `json:"market"`
	Type              string      `json:"type"`
	Side              string      `json:"side"`
	Qty               string      `json:"qty"`
	Price             string      `json:"price"`
	TimeInForce       string      `json:"timeInForce"`
	ExpiryEpochMillis int64       `json:"expiryEpochMillis"`
	Nonce             string      `json:"nonce"`
	PostOnly          bool        `json:"postOnly"`
	ReduceOnly        bool        `json:"reduceOnly"`
	Settlement        *Settlement `json:"settlement,omitempty"`
}

type orderResponse struct {
	Status string `json:"status"`
	Data   struct {
		ID         uint64 `json:"id"`
		ExternalID string `json:"externalId"`
	} `json:"data"`
}

type positionsResponse struct {
	Status string            `json:"status"`
	Data   []domain.Position `json:"data"`
}

type massCancelRequest struct {
	Markets   []string `json:"markets,omitempty"`
	CancelAll bool     `json:"cancelAll"`
}
