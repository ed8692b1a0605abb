package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"cabride/internal/domain"
)

const driverLocationKey = "drivers:locations"

// DriverLocation is one GEO index hit.
type DriverLocation struct {
	DriverID   string
	Location   domain.Location
	DistanceKm float64
}

// LocationStore keeps the GEO index of online drivers.
type LocationStore struct {
	client *redis.Client
}

// NewLocationStore creates a new LocationStore.
func NewLocationStore(client *redis.Client) *LocationStore {
	return &LocationStore{client: client}
}

// UpdateLocation indexes or moves the driver.
func (s *LocationStore) UpdateLocation(ctx context.Context, driverID string, loc domain.Location) error {
	return s.client.GeoAdd(ctx, driverLocationKey, &redis.GeoLocation{
		Name:      driverID,
		Longitude: loc.Lng,
		Latitude:  loc.Lat,
	}).Err()
}

// FindNearbyDrivers returns indexed drivers within radiusKm of center, nearest first.
func (s *LocationStore) FindNearbyDrivers(ctx context.Context, center domain.Location, radiusKm float64) ([]DriverLocation, error) {
	hits, err := s.client.GeoSearchLocation(ctx, driverLocationKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  center.Lng,
			Latitude:   center.Lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, err
	}

	out := make([]DriverLocation, len(hits))
	for i, h := range hits {
		out[i] = DriverLocation{
			DriverID:   h.Name,
			Location:   domain.Location{Lat: h.Latitude, Lng: h.Longitude},
			DistanceKm: h.Dist,
		}
	}
	return out, nil
}

// RemoveLocation drops the driver from the index. The GEO set is a sorted set,
// so ZREM removes the member.
func (s *LocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	return s.client.ZRem(ctx, driverLocationKey, driverID).Err()
}
