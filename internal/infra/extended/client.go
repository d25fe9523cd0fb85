package extended

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Lumaria/Bot-Extended/internal/domain"
	"github.com/Lumaria/Bot-Extended/internal/infra"

	"github.com/google/uuid"
)

const orderExpiry = 1 * time.Hour

// OrderSigner produces the settlement block for an order payload. Hashing
// and stark signing live outside this module; a nil signer submits orders
// without a settlement block (the venue rejects them on funded accounts,
// which keeps signing a purely external capability).
type OrderSigner func(payload OrderPayload) (Settlement, error)

// Client is the Extended exchange REST client (boundary layer).
type Client struct {
	baseURL    string
	apiKey     string
	vault      uint64
	publicKey  string
	signer     OrderSigner
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Extended API client.
func NewClient(cfg *infra.Config, signer OrderSigner) *Client {
	return &Client{
		baseURL:   cfg.API.Extended.RestURL,
		apiKey:    cfg.API.Extended.APIKey,
		vault:     cfg.API.Extended.Vault,
		publicKey: cfg.API.Extended.PublicKey,
		signer:    signer,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		logger: slog.Default().With("module", "extended_client"),
	}
}

// GetMarkets fetches every market with its trading configuration and
// daily stats in a single call.
func (c *Client) GetMarkets(ctx context.Context) ([]domain.MarketMetadata, error) {
	var resp marketsResponse
	if err := c.doRequest(ctx, http.MethodGet, "/info/markets", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("extended get markets failed: %w", err)
	}

	markets := make([]domain.MarketMetadata, 0, len(resp.Data))
	for _, m := range resp.Data {
		markets = append(markets, m.toDomain())
	}
	return markets, nil
}

// PlaceOrder submits a post-only limit order and returns the venue order ID.
func (c *Client) PlaceOrder(ctx context.Context, intent domain.OrderIntent) (string, error) {
	payload := OrderPayload{
		ExternalID:        uuid.NewString(),
		Market:            intent.Market,
		Side:              intent.Side,
		Qty:               intent.Quantity,
		Price:             intent.Price,
		Nonce:             strconv.FormatInt(time.Now().UnixNano(), 10),
		ExpiryEpochMillis: time.Now().Add(orderExpiry).UnixMilli(),
		Vault:             c.vault,
		PublicKey:         c.publicKey,
	}

	req := orderRequest{
		ID:                payload.ExternalID,
		Market:            payload.Market,
		Type:              "LIMIT",
		Side:              string(payload.Side),
		Qty:               payload.Qty.String(),
		Price:             payload.Price.String(),
		TimeInForce:       "GTT",
		ExpiryEpochMillis: payload.ExpiryEpochMillis,
		Nonce:             payload.Nonce,
		PostOnly:          intent.PostOnly,
	}

	if c.signer != nil {
		settlement, err := c.signer(payload)
		if err != nil {
			return "", fmt.Errorf("order signing failed: %w", err)
		}
		req.Settlement = &settlement
	}

	var resp orderResponse
	if err := c.doRequest(ctx, http.MethodPost, "/user/order", nil, req, &resp); err != nil {
		return "", err
	}

	c.logger.Info("Order placed",
		slog.String("market", intent.Market),
		slog.String("side", string(intent.Side)),
		slog.String("qty", intent.Quantity.String()),
		slog.String("price", intent.Price.String()),
		slog.Uint64("oid", resp.Data.ID),
	)
	return strconv.FormatUint(resp.Data.ID, 10), nil
}

// MassCancel cancels all open orders; with markets given, only those markets.
func (c *Client) MassCancel(ctx context.Context, markets []string) error {
	req := massCancelRequest{
		Markets:   markets,
		CancelAll: len(markets) == 0,
	}
	if err := c.doRequest(ctx, http.MethodPost, "/user/order/massCancel", nil, req, nil); err != nil {
		return fmt.Errorf("extended mass cancel failed: %w", err)
	}
	return nil
}

// GetPositions returns open positions, filtered by market when non-empty.
func (c *Client) GetPositions(ctx context.Context, market string) ([]domain.Position, error) {
	var query map[string]string
	if market != "" {
		query = map[string]string{"market": market}
	}

	var resp positionsResponse
	if err := c.doRequest(ctx, http.MethodGet, "/user/positions", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("extended get positions failed: %w", err)
	}
	return resp.Data, nil
}

// doRequest handles auth headers, serialization, and the status envelope.
func (c *Client) doRequest(ctx context.Context, method, path string, query map[string]string, body, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewBuffer(jsonBytes)
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		values := url.Values{}
		for k, v := range query {
			values.Set(k, v)
		}
		reqURL += "?" + values.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewNetworkError("request", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)

	var envelope struct {
		Status string    `json:"status"`
		Error  *apiError `json:"error"`
	}
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("extended api error: status=%d body=%s", resp.StatusCode, string(bodyBytes))
		}
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if envelope.Status != "OK" {
		// The rejection message matters: strategy-level classification keys
		// off the venue's literal wording.
		if envelope.Error != nil {
			return fmt.Errorf("extended api error: code=%d %s", envelope.Error.Code, envelope.Error.Message)
		}
		return fmt.Errorf("extended api error: status=%s http=%d", envelope.Status, resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(bodyBytes, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}
