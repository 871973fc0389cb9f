// Package rates provides the USD to ARS quote used to convert balances.
package rates

import (
	"context"
	"errors"

	"saldo/internal/core"
)

// ErrUnavailable is returned when no quote can be produced.
var ErrUnavailable = errors.New("exchange rate unavailable")

// Provider returns the current "blue" USD quote in ARS.
type Provider interface {
	BlueRate(ctx context.Context) (core.Rate, error)
}

// StaticProvider always answers with the same quote or error. It backs
// deployments without network access and tests.
type StaticProvider struct {
	Rate core.Rate
	Err  error
}

func (p StaticProvider) BlueRate(context.Context) (core.Rate, error) {
	if p.Err != nil {
		return core.Rate{}, p.Err
	}
	if !p.Rate.Sell.IsPositive() {
		return core.Rate{}, ErrUnavailable
	}
	return p.Rate, nil
}
