package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"saldo/internal/api"
	"saldo/internal/core"
)

func newFakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/balance", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Unauthorized"}`))
			return
		}
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"current_month_income":1500,"current_month_expenses":300,"current_month_balance":1200,"currency_code":"USD","exchange_rate":{"USD_to_ARS":1,"blue_dollar":null,"fallback":true}}`))
		case http.MethodPost:
			var req api.SetMonthlyIncomeRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MonthlyIncome == nil || req.MonthlyIncome.IsNegative() {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"Invalid monthly income"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(api.SetMonthlyIncomeResponse{Success: true, MonthlyIncome: *req.MonthlyIncome})
		}
	})
	mux.HandleFunc("/balance/close", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			_, _ = w.Write([]byte(`{"success":true,"closure_id":3,"closed_at":"2026-03-05T14:30:00Z","summary":{"net_balance":1200,"transactions_count":2,"accumulated_balance":1200}}`))
		case http.MethodGet:
			if r.URL.Query().Get("limit") != "2" {
				_, _ = w.Write([]byte(`{"closures":[]}`))
				return
			}
			_, _ = w.Write([]byte(`{"closures":[{"closure_id":2,"net_balance":"10.5"},{"closure_id":1,"net_balance":-3}]}`))
		}
	})
	mux.HandleFunc("/transactions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal server error"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Balance(t *testing.T) {
	srv := newFakeAPI(t)
	c := New(srv.URL+"/", "tok", WithHTTPClient(srv.Client()))

	b, err := c.Balance(context.Background())
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if !b.CurrentMonthBalance.Equal(decimal.NewFromInt(1200)) || !b.ExchangeRate.Fallback || b.ExchangeRate.BlueDollar != nil {
		t.Fatalf("balance = %+v", b)
	}
}

func TestClient_ErrorsMapToTaxonomy(t *testing.T) {
	srv := newFakeAPI(t)
	ctx := context.Background()

	_, err := New(srv.URL, "wrong", WithHTTPClient(srv.Client())).Balance(ctx)
	if !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("err = %v, want unauthorized", err)
	}

	c := New(srv.URL, "tok", WithHTTPClient(srv.Client()))
	_, err = c.SetMonthlyIncome(ctx, decimal.NewFromInt(-1))
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Invalid monthly income" || !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}

	_, err = c.CreateTransaction(ctx, api.CreateTransactionRequest{Type: "income"})
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("err = %v", err)
	}
	if errors.Is(err, core.ErrInvalidInput) || errors.Is(err, core.ErrUnauthorized) {
		t.Fatal("500 must not match a client error")
	}
}

func TestClient_SetMonthlyIncomeAndClose(t *testing.T) {
	srv := newFakeAPI(t)
	c := New(srv.URL, "tok", WithHTTPClient(srv.Client()))
	ctx := context.Background()

	res, err := c.SetMonthlyIncome(ctx, decimal.RequireFromString("500.25"))
	if err != nil || !res.Success || res.MonthlyIncome.String() != "500.25" {
		t.Fatalf("SetMonthlyIncome = %+v, %v", res, err)
	}

	closed, err := c.CloseBalance(ctx)
	if err != nil || closed.ClosureID != 3 || closed.Summary.TransactionsCount != 2 {
		t.Fatalf("CloseBalance = %+v, %v", closed, err)
	}
}

func TestClient_Closures(t *testing.T) {
	srv := newFakeAPI(t)
	c := New(srv.URL, "tok", WithHTTPClient(srv.Client()))

	cs, err := c.Closures(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(cs) != 2 || cs[0].ClosureID != 2 || cs[0].NetBalance.String() != "10.5" || cs[1].NetBalance.String() != "-3" {
		t.Fatalf("closures = %+v", cs)
	}
	if cs, err := c.Closures(context.Background(), 0); err != nil || cs == nil || len(cs) != 0 {
		t.Fatalf("default closures = %+v, %v", cs, err)
	}
}
