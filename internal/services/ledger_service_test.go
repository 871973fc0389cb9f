package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"saldo/internal/core"
)

func TestRecordTransaction_Validation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		tx   core.Transaction
		want error
	}{
		{"no user", core.Transaction{Type: core.Income, Amount: core.Money{Cents: 1}, Description: "x"}, core.ErrUnauthorized},
		{"bad type", core.Transaction{UserID: "u1", Type: "gift", Amount: core.Money{Cents: 1}, Description: "x"}, core.ErrInvalidInput},
		{"zero amount", core.Transaction{UserID: "u1", Type: core.Income, Description: "x"}, core.ErrInvalidInput},
		{"amount over cap", core.Transaction{UserID: "u1", Type: core.Expense, Amount: core.Money{Cents: core.MaxAmountCents + 1}, Description: "x"}, core.ErrInvalidAmount},
		{"blank description", core.Transaction{UserID: "u1", Type: core.Income, Amount: core.Money{Cents: 1}, Description: "   "}, core.ErrInvalidInput},
		{"long description", core.Transaction{UserID: "u1", Type: core.Income, Amount: core.Money{Cents: 1}, Description: strings.Repeat("a", 201)}, core.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.ledger.RecordTransaction(ctx, tt.tx); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRecordTransaction_AssignsIdentityAndTimes(t *testing.T) {
	f := newFixture(t, nil)
	occurred := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)

	tx, err := f.ledger.RecordTransaction(context.Background(), core.Transaction{
		UserID: "u1", Type: core.Expense, Amount: core.Money{Cents: 990}, Description: " rent ", OccurredAt: occurred,
	})
	if err != nil {
		t.Fatal(err)
	}
	if tx.ID == "" || tx.Description != "rent" {
		t.Fatalf("tx = %+v", tx)
	}
	if !tx.CreatedAt.Equal(f.clock.Now()) || !tx.OccurredAt.Equal(occurred) {
		t.Fatalf("created %v occurred %v", tx.CreatedAt, tx.OccurredAt)
	}
}

func TestRecordTransaction_ClockBehindClosureStillCounts(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.closures.ClosePeriod(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(-time.Hour)
	record(t, f.ledger, "u1", core.Income, 1234)

	v, err := f.balance.ComputeBalance(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if v.ExtraIncome.Cents != 1234 {
		t.Fatalf("transaction lost between periods: extra income %d", v.ExtraIncome.Cents)
	}
}

func TestRecordSavings(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.ledger.RecordSavings(ctx, core.SavingsContribution{UserID: "u1"}); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("zero savings err = %v", err)
	}
	c, err := f.ledger.RecordSavings(ctx, core.SavingsContribution{UserID: "u1", Amount: core.Money{Cents: 5000}, Note: "emergency fund"})
	if err != nil || c.ID == "" {
		t.Fatalf("RecordSavings = %+v, %v", c, err)
	}
}
