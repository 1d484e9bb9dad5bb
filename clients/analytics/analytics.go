package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"nftlens/config"

	"go.uber.org/zap"
)

// ErrNoAPIKey is returned when no analytics API key has been configured.
var ErrNoAPIKey = errors.New("analytics api key not set")

// KeySource supplies the user's analytics API key.
// The store implements this; tests use a literal.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// MetricPoint is one entry of a collection's time series. The panel chart
// consumes these records directly, so field names are part of the panel
// protocol.
type MetricPoint struct {
	Timestamp  time.Time `json:"timestamp"`
	Volume     float64   `json:"volume"`
	WashVolume float64   `json:"wash_volume"`
	Sales      int       `json:"sales"`
	Buyers     int       `json:"buyers"`
	Sellers    int       `json:"sellers"`
}

// Traders returns the distinct trader count for the point.
func (p MetricPoint) Traders() int {
	return p.Buyers + p.Sellers
}

// CollectionRef identifies a collection resolved from a slug.
type CollectionRef struct {
	Blockchain      string `json:"blockchain"`
	ContractAddress string `json:"contract_address"`
	Slug            string `json:"slug"`
	Name            string `json:"name,omitempty"`
}

type metricsResponse struct {
	Points []MetricPoint `json:"points"`
}

// Client talks to the NFT analytics API.
type Client struct {
	logger     *zap.Logger
	httpClient *http.Client
	baseURL    string
	keys       KeySource
}

// NewClient creates a new analytics API client.
func NewClient(logger *zap.Logger, cfg *config.Config, keys KeySource) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		logger: logger,
		httpClient: &http.Client{
			Timeout: cfg.Analytics.Timeout,
		},
		baseURL: cfg.Analytics.BaseURL,
		keys:    keys,
	}
}

// CollectionMetrics fetches the daily time series for a collection over the
// given trailing window.
func (c *Client) CollectionMetrics(ctx context.Context, blockchain, contract string, windowDays int) ([]MetricPoint, error) {
	endpoint := fmt.Sprintf("%s/v1/collections/%s/%s/metrics?window=%dd",
		c.baseURL, url.PathEscape(blockchain), url.PathEscape(contract), windowDays)

	var resp metricsResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("fetch collection metrics: %w", err)
	}

	c.logger.Debug("fetched collection metrics",
		zap.String("blockchain", blockchain),
		zap.String("contract", contract),
		zap.Int("points", len(resp.Points)),
	)

	return resp.Points, nil
}

// ResolveSlug resolves a marketplace collection slug to a verified contract
// address. Used for low-confidence identities extracted from collection URLs.
func (c *Client) ResolveSlug(ctx context.Context, slug string) (*CollectionRef, error) {
	endpoint := fmt.Sprintf("%s/v1/collections/slug/%s", c.baseURL, url.PathEscape(slug))

	var ref CollectionRef
	if err := c.getJSON(ctx, endpoint, &ref); err != nil {
		return nil, fmt.Errorf("resolve slug %q: %w", slug, err)
	}
	if ref.ContractAddress == "" {
		return nil, fmt.Errorf("resolve slug %q: empty contract address", slug)
	}

	return &ref, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, dest any) error {
	key, err := c.keys.APIKey(ctx)
	if err != nil {
		return fmt.Errorf("read api key: %w", err)
	}
	if key == "" {
		return ErrNoAPIKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
