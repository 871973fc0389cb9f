package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// DefaultBaseURL is the public DolarAPI endpoint.
const DefaultBaseURL = "https://dolarapi.com"

// DolarAPIClient fetches quotes from a DolarAPI compatible service.
type DolarAPIClient struct {
	baseURL    string
	httpClient *http.Client
	attempts   int
	backoff    time.Duration
}

type dolarQuote struct {
	Moneda             string          `json:"moneda"`
	Casa               string          `json:"casa"`
	Nombre             string          `json:"nombre"`
	Compra             decimal.Decimal `json:"compra"`
	Venta              decimal.Decimal `json:"venta"`
	FechaActualizacion time.Time       `json:"fechaActualizacion"`
}

// NewDolarAPIClient builds a client that gives up on a single request after
// timeout and retries failed requests a couple of times.
func NewDolarAPIClient(baseURL string, timeout time.Duration) *DolarAPIClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DolarAPIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		attempts:   3,
		backoff:    200 * time.Millisecond,
	}
}

// WithRetry overrides the retry policy.
func (c *DolarAPIClient) WithRetry(attempts int, backoff time.Duration) *DolarAPIClient {
	if attempts < 1 {
		attempts = 1
	}
	c.attempts = attempts
	c.backoff = backoff
	return c
}

// BlueRate fetches /v1/dolares/blue.
func (c *DolarAPIClient) BlueRate(ctx context.Context) (core.Rate, error) {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		rate, err := c.fetch(ctx)
		if err == nil {
			return rate, nil
		}
		lastErr = err
		slog.WarnContext(ctx, "Blue rate fetch failed",
			"component", "rates",
			"attempt", attempt,
			"error", err)

		if attempt == c.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return core.Rate{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		case <-time.After(c.backoff * time.Duration(attempt)):
		}
	}
	return core.Rate{}, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (c *DolarAPIClient) fetch(ctx context.Context) (core.Rate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/dolares/blue", nil)
	if err != nil {
		return core.Rate{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.Rate{}, fmt.Errorf("request blue rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.Rate{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var q dolarQuote
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		return core.Rate{}, fmt.Errorf("decode blue rate: %w", err)
	}
	if !q.Venta.IsPositive() {
		return core.Rate{}, errors.New("blue rate has no sell price")
	}

	name := q.Nombre
	if name == "" {
		name = "Blue"
	}
	return core.Rate{
		Name:      name,
		Buy:       q.Compra,
		Sell:      q.Venta,
		UpdatedAt: q.FechaActualizacion.UTC(),
	}, nil
}
