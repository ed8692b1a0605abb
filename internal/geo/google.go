package geo

import (
	"context"
	"errors"
	"fmt"

	"googlemaps.github.io/maps"

	"cabride/internal/domain"
)

// GoogleRouter looks up driving distances with the Google Maps Directions API.
type GoogleRouter struct {
	client *maps.Client
}

// NewGoogleRouter creates a GoogleRouter with the given API key.
func NewGoogleRouter(apiKey string) (*GoogleRouter, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GoogleRouter{client: client}, nil
}

// Name identifies the router in logs and metrics.
func (g *GoogleRouter) Name() string { return "google" }

// RouteKm returns the driving distance of the first route's legs.
func (g *GoogleRouter) RouteKm(ctx context.Context, a, b domain.Location) (float64, error) {
	r := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", a.Lat, a.Lng),
		Destination: fmt.Sprintf("%f,%f", b.Lat, b.Lng),
		Mode:        maps.TravelModeDriving,
	}

	routes, _, err := g.client.Directions(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, errors.New("no route found")
	}

	meters := 0
	for _, leg := range routes[0].Legs {
		meters += leg.Distance.Meters
	}
	return float64(meters) / 1000, nil
}
