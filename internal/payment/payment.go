// Package payment adapts payment providers used to settle outstanding fines.
package payment

import (
	"context"
	"math"

	"github.com/google/uuid"
)

// ChargeRequest describes one charge.
type ChargeRequest struct {
	Amount         float64
	Currency       string
	Description    string
	IdempotencyKey string
}

// ChargeResult is the provider's answer to a charge.
type ChargeResult struct {
	Success   bool
	Reference string
}

// Provider is a payment service provider.
type Provider interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

// Simulated always confirms the charge.
type Simulated struct{}

// NewSimulated creates a Simulated provider.
func NewSimulated() *Simulated {
	return &Simulated{}
}

// Charge simulates a payment charge. Always succeeds.
func (p *Simulated) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	return ChargeResult{Success: true, Reference: "sim_" + uuid.New().String()}, nil
}

// minorUnits converts a decimal amount to the currency's smallest unit.
func minorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
