// Package client is a typed HTTP client for the saldo API plus the balance
// cache front-ends keep per signed-in user.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/api"
	"saldo/internal/core"
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("saldo api: %d %s", e.StatusCode, e.Message)
}

// Is maps status codes back onto the core error taxonomy so callers can use
// errors.Is(err, core.ErrUnauthorized).
func (e *APIError) Is(target error) bool {
	switch target {
	case core.ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case core.ErrInvalidInput:
		return e.StatusCode == http.StatusBadRequest
	}
	return false
}

// Client calls the API on behalf of one user.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client, which times out after 10s.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Balance(ctx context.Context) (api.Balance, error) {
	var out api.Balance
	err := c.do(ctx, http.MethodGet, "/balance", nil, &out)
	return out, err
}

func (c *Client) SetMonthlyIncome(ctx context.Context, amount decimal.Decimal) (api.SetMonthlyIncomeResponse, error) {
	d := api.Dec(amount)
	var out api.SetMonthlyIncomeResponse
	err := c.do(ctx, http.MethodPost, "/balance", api.SetMonthlyIncomeRequest{MonthlyIncome: &d}, &out)
	return out, err
}

func (c *Client) CloseBalance(ctx context.Context) (api.CloseResponse, error) {
	var out api.CloseResponse
	err := c.do(ctx, http.MethodPost, "/balance/close", nil, &out)
	return out, err
}

// Closures lists closures newest first; limit 0 asks for the server default.
func (c *Client) Closures(ctx context.Context, limit int) ([]api.Closure, error) {
	path := "/balance/close"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	var out api.ClosuresResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Closures, nil
}

func (c *Client) CreateTransaction(ctx context.Context, req api.CreateTransactionRequest) (api.Transaction, error) {
	var out api.Transaction
	err := c.do(ctx, http.MethodPost, "/transactions", req, &out)
	return out, err
}

func (c *Client) AddSavings(ctx context.Context, req api.CreateSavingsRequest) (api.Savings, error) {
	var out api.Savings
	err := c.do(ctx, http.MethodPost, "/savings", req, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e api.ErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
