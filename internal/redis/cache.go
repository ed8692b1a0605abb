package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"cabride/internal/domain"
)

// DriverCacheTTL bounds how stale a cached driver profile may be.
const DriverCacheTTL = 30 * time.Second

const driverCachePrefix = "cache:driver:"

// CachedDriver is the public part of a driver profile shown to customers.
type CachedDriver struct {
	ID            string             `json:"id"`
	Username      string             `json:"username"`
	VehicleType   domain.VehicleType `json:"vehicle_type"`
	VehicleNumber string             `json:"vehicle_number"`
	UPIID         string             `json:"upi_id"`
	Rating        float64            `json:"rating"`
}

// CacheDriver converts a driver profile to its cached form.
func CacheDriver(d *domain.Driver) *CachedDriver {
	return &CachedDriver{
		ID:            d.ID,
		Username:      d.Username,
		VehicleType:   d.VehicleType,
		VehicleNumber: d.VehicleNumber,
		UPIID:         d.UPIID,
		Rating:        d.Rating,
	}
}

// CacheStore handles driver profile caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// GetDriver retrieves a driver from cache. A miss returns nil, nil.
func (s *CacheStore) GetDriver(ctx context.Context, driverID string) (*CachedDriver, error) {
	data, err := s.client.Get(ctx, driverCachePrefix+driverID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var driver CachedDriver
	if err := json.Unmarshal(data, &driver); err != nil {
		return nil, err
	}
	return &driver, nil
}

// SetDriver stores a driver in cache.
func (s *CacheStore) SetDriver(ctx context.Context, driver *CachedDriver) error {
	data, err := json.Marshal(driver)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, driverCachePrefix+driver.ID, data, DriverCacheTTL).Err()
}

// InvalidateDriver removes a driver from cache.
func (s *CacheStore) InvalidateDriver(ctx context.Context, driverID string) error {
	return s.client.Del(ctx, driverCachePrefix+driverID).Err()
}
