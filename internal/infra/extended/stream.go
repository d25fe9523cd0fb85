package extended

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/Lumaria/Bot-Extended/internal/domain"
	"github.com/Lumaria/Bot-Extended/internal/infra"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const handshakeTimeout = 10 * time.Second

// Dialer opens depth-1 orderbook streams, one connection per market.
type Dialer struct {
	streamURL string
}

// NewDialer creates a stream dialer from configuration.
func NewDialer(cfg *infra.Config) *Dialer {
	return &Dialer{streamURL: strings.TrimRight(cfg.API.Extended.StreamURL, "/")}
}

// Dial connects to the market's orderbook endpoint at top-of-book depth.
func (d *Dialer) Dial(ctx context.Context, market string) (domain.QuoteStream, error) {
	u := fmt.Sprintf("%s/orderbooks/%s?depth=1", d.streamURL, market)

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, domain.NewNetworkError("dial", err)
	}
	return &quoteStream{market: market, conn: conn}, nil
}

type quoteStream struct {
	market    string
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

// Recv blocks on the next message. Orderly closes (including the local
// Close a stop issues) surface as domain.ErrStreamClosed.
func (s *quoteStream) Recv() (domain.MarketQuote, bool, error) {
	_, msg, err := s.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) ||
			errors.Is(err, net.ErrClosed) {
			return domain.MarketQuote{}, false, domain.ErrStreamClosed
		}
		return domain.MarketQuote{}, false, domain.NewNetworkError("read", err)
	}

	quote, ok := ParseSnapshot(s.market, msg)
	return quote, ok, nil
}

func (s *quoteStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// ParseSnapshot extracts a top-of-book quote from one stream message.
// Only full SNAPSHOT envelopes addressed to the given market with a price
// on both sides produce a quote; everything else reports ok=false.
func ParseSnapshot(market string, msg []byte) (domain.MarketQuote, bool) {
	if !gjson.ValidBytes(msg) {
		return domain.MarketQuote{}, false
	}

	root := gjson.ParseBytes(msg)
	if root.Get("type").String() != "SNAPSHOT" {
		return domain.MarketQuote{}, false
	}

	data := root.Get("data")
	if data.Get("m").String() != market {
		return domain.MarketQuote{}, false
	}

	bidPx := data.Get("b.0.p").String()
	askPx := data.Get("a.0.p").String()
	if bidPx == "" || askPx == "" {
		return domain.MarketQuote{}, false
	}

	bidPrice, err := decimal.NewFromString(bidPx)
	if err != nil {
		return domain.MarketQuote{}, false
	}
	askPrice, err := decimal.NewFromString(askPx)
	if err != nil {
		return domain.MarketQuote{}, false
	}

	observed := root.Get("ts").Int()
	if observed == 0 {
		observed = time.Now().UnixMilli()
	}

	quote := domain.MarketQuote{
		Market:     market,
		BidPrice:   bidPrice,
		BidQty:     parseQty(data.Get("b.0.q")),
		AskPrice:   askPrice,
		AskQty:     parseQty(data.Get("a.0.q")),
		ObservedAt: observed,
	}
	return quote, quote.Complete()
}

func parseQty(res gjson.Result) decimal.Decimal {
	if !res.Exists() {
		return decimal.Zero
	}
	qty, err := decimal.NewFromString(res.String())
	if err != nil {
		return decimal.Zero
	}
	return qty
}
