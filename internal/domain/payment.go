package domain

import "time"

// ChargeStatus represents the current status of a payment charge.
type ChargeStatus string

const (
	ChargeStatusPending ChargeStatus = "pending"
	ChargeStatusSuccess ChargeStatus = "success"
	ChargeStatusFailed  ChargeStatus = "failed"
)

// PaymentPurpose says what a payment settles.
type PaymentPurpose string

const (
	PaymentPurposeFare PaymentPurpose = "fare"
	PaymentPurposeFine PaymentPurpose = "fine"
)

// Payment is one charge attempt against the payment provider.
type Payment struct {
	ID             string
	UserID         string
	RideID         string // empty for fine payments
	Purpose        PaymentPurpose
	Amount         float64
	Status         ChargeStatus
	ProviderRef    string
	IdempotencyKey string
	CreatedAt      time.Time
}
