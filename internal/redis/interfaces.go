package redis

import (
	"context"
	"time"

	"cabride/internal/domain"
)

// LocationStoreInterface defines the interface for driver location operations.
type LocationStoreInterface interface {
	UpdateLocation(ctx context.Context, driverID string, loc domain.Location) error
	FindNearbyDrivers(ctx context.Context, center domain.Location, radiusKm float64) ([]DriverLocation, error)
	RemoveLocation(ctx context.Context, driverID string) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireDriverLock(ctx context.Context, driverID string, ttl time.Duration) (string, bool, error)
	ReleaseDriverLock(ctx context.Context, driverID, token string) error
}

// CacheStoreInterface defines the interface for the driver profile cache.
type CacheStoreInterface interface {
	GetDriver(ctx context.Context, driverID string) (*CachedDriver, error)
	SetDriver(ctx context.Context, driver *CachedDriver) error
	InvalidateDriver(ctx context.Context, driverID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface = (*LocationStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
	_ CacheStoreInterface    = (*CacheStore)(nil)
)
