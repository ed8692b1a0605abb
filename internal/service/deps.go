package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"time"

	"cabride/internal/domain"
	"cabride/internal/events"
	"cabride/internal/realtime"
)

// Bus is the fanout bus services publish committed changes to.
type Bus interface {
	Publish(group string, e realtime.Event)
	// Restrict drops members of group whose user is not one of userIDs.
	Restrict(group string, userIDs ...string) int
}

// EventEmitter forwards lifecycle events to the durable sink without blocking.
type EventEmitter interface {
	Emit(e events.LifecycleEvent)
}

// DistanceEstimator returns a travel distance in kilometers. It never fails.
type DistanceEstimator interface {
	DistanceKm(ctx context.Context, a, b domain.Location) float64
}

// Policy holds the ride policy constants.
type Policy struct {
	FreshnessWindow    time.Duration
	CancelGracePeriod  time.Duration
	CustomerCancelFine float64
	DriverCancelFine   float64
	NearbyRadiusKm     float64
	FarePerKm          map[domain.VehicleType]float64
}

// DefaultPolicy returns the stock policy values.
func DefaultPolicy() Policy {
	return Policy{
		FreshnessWindow:    60 * time.Minute,
		CancelGracePeriod:  3 * time.Minute,
		CustomerCancelFine: 50,
		DriverCancelFine:   30,
		NearbyRadiusKm:     10,
		FarePerKm: map[domain.VehicleType]float64{
			domain.VehicleBike:      8,
			domain.VehicleHatchback: 12,
			domain.VehicleSedan:     15,
			domain.VehicleSUV:       20,
		},
	}
}

// Fare prices distanceKm for the vehicle type.
func (p Policy) Fare(vt domain.VehicleType, distanceKm float64) float64 {
	return roundTo2(distanceKm * p.FarePerKm[vt])
}

// NewOTP returns a uniformly random 4-digit code in 1000..9999.
func NewOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()+1000), nil
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}

func isValidOTP(code string) bool {
	if len(code) != 4 {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
