package payment

import (
	"context"
	"fmt"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

// Stripe charges through a confirmed PaymentIntent.
type Stripe struct {
	paymentMethod string
}

// NewStripe sets the API key and returns a Stripe provider. paymentMethod is
// the saved method to confirm against (pm_card_visa in test mode).
func NewStripe(apiKey, paymentMethod string) *Stripe {
	stripe.Key = apiKey
	if paymentMethod == "" {
		paymentMethod = "pm_card_visa"
	}
	return &Stripe{paymentMethod: paymentMethod}
}

// Charge creates and confirms a PaymentIntent for the amount.
func (s *Stripe) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(minorUnits(req.Amount)),
		Currency:           stripe.String(req.Currency),
		Description:        stripe.String(req.Description),
		PaymentMethod:      stripe.String(s.paymentMethod),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Confirm:            stripe.Bool(true),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return ChargeResult{}, fmt.Errorf("stripe payment intent: %w", err)
	}

	return ChargeResult{
		Success:   pi.Status == stripe.PaymentIntentStatusSucceeded,
		Reference: pi.ID,
	}, nil
}
