// Package geo estimates travel distances between coordinates.
package geo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cabride/internal/domain"
	"cabride/internal/observability"
)

// ErrUpstreamUnavailable marks a failed routing lookup. Estimator never returns it;
// it is logged and counted before falling back.
var ErrUpstreamUnavailable = errors.New("routing service unavailable")

// Router resolves a road distance between two coordinates.
type Router interface {
	Name() string
	RouteKm(ctx context.Context, a, b domain.Location) (float64, error)
}

// Estimator tries each router in order and falls back to the great-circle distance.
type Estimator struct {
	routers []Router
	logger  *slog.Logger
}

// NewEstimator creates an Estimator. With no routers it always uses haversine.
func NewEstimator(logger *slog.Logger, routers ...Router) *Estimator {
	return &Estimator{routers: routers, logger: logger}
}

// DistanceKm returns the travel distance between a and b in kilometers. It does not fail.
func (e *Estimator) DistanceKm(ctx context.Context, a, b domain.Location) float64 {
	for _, r := range e.routers {
		km, err := r.RouteKm(ctx, a, b)
		if err == nil && km >= 0 {
			observability.RoutingLookups.WithLabelValues(r.Name(), "ok").Inc()
			return km
		}
		if err == nil {
			err = fmt.Errorf("negative distance %v", km)
		}

		observability.RoutingLookups.WithLabelValues(r.Name(), "error").Inc()
		e.logger.Warn("routing lookup failed",
			"router", r.Name(),
			"error", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err),
		)

		if ctx.Err() != nil {
			break
		}
	}

	observability.RoutingLookups.WithLabelValues("haversine", "ok").Inc()
	return Haversine(a, b)
}
