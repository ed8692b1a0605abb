package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"cabride/internal/domain"
	"cabride/internal/geo"
	"cabride/internal/redis"
	"cabride/internal/repository"
)

// DriverService handles driver operations.
type DriverService struct {
	locationStore redis.LocationStoreInterface
	cacheStore    redis.CacheStoreInterface
	driverRepo    repository.DriverRepository
	rideRepo      repository.RideRepository
	notifier      *NotificationService
	policy        Policy
	logger        *slog.Logger
	now           func() time.Time
}

// NewDriverService creates a new DriverService. The location and cache stores
// are optional.
func NewDriverService(
	locationStore redis.LocationStoreInterface,
	cacheStore redis.CacheStoreInterface,
	driverRepo repository.DriverRepository,
	rideRepo repository.RideRepository,
	notifier *NotificationService,
	policy Policy,
	logger *slog.Logger,
) *DriverService {
	return &DriverService{
		locationStore: locationStore,
		cacheStore:    cacheStore,
		driverRepo:    driverRepo,
		rideRepo:      rideRepo,
		notifier:      notifier,
		policy:        policy,
		logger:        logger,
		now:           time.Now,
	}
}

// SetClock overrides the time source.
func (s *DriverService) SetClock(now func() time.Time) {
	s.now = now
}

// Get returns the full driver profile.
func (s *DriverService) Get(ctx context.Context, driverID string) (*domain.Driver, error) {
	if driverID == "" {
		return nil, ErrInvalidUserID
	}
	return s.driverRepo.GetByID(ctx, driverID)
}

// PublicProfile returns the customer-facing part of a driver profile, served
// from cache when possible.
func (s *DriverService) PublicProfile(ctx context.Context, driverID string) (*redis.CachedDriver, error) {
	if driverID == "" {
		return nil, ErrInvalidUserID
	}

	if s.cacheStore != nil {
		cached, err := s.cacheStore.GetDriver(ctx, driverID)
		if err != nil {
			s.logger.WarnContext(ctx, "driver cache read", "driver_id", driverID, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}

	profile := redis.CacheDriver(driver)
	if s.cacheStore != nil {
		_ = s.cacheStore.SetDriver(ctx, profile)
	}
	return profile, nil
}

// UpdateProfileRequest contains the driver's vehicle details.
type UpdateProfileRequest struct {
	DriverID      string
	VehicleType   domain.VehicleType
	VehicleNumber string
	UPIID         string
}

// UpdateProfile stores the vehicle details. The profile needs admin
// verification again before the driver can take rides.
func (s *DriverService) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*domain.Driver, error) {
	if req.DriverID == "" {
		return nil, ErrInvalidUserID
	}
	if !req.VehicleType.Valid() {
		return nil, ErrInvalidVehicleType
	}
	if req.VehicleNumber == "" {
		return nil, ErrInvalidInput
	}

	driver, err := s.driverRepo.GetByID(ctx, req.DriverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotDriver
		}
		return nil, err
	}

	driver.VehicleType = req.VehicleType
	driver.VehicleNumber = req.VehicleNumber
	driver.UPIID = req.UPIID
	driver.ProfileCompleted = false
	driver.RejectionReason = ""

	if err := s.driverRepo.UpdateProfile(ctx, driver); err != nil {
		return nil, err
	}
	s.invalidate(ctx, driver.ID)

	return driver, nil
}

// SetAvailability toggles the driver online or offline. Going online requires a
// verified profile and no outstanding fine.
func (s *DriverService) SetAvailability(ctx context.Context, driverID string, online bool, loc *domain.Location) (*domain.Driver, error) {
	if driverID == "" {
		return nil, ErrInvalidUserID
	}
	if loc != nil && !loc.Valid() {
		return nil, ErrInvalidLocation
	}

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotDriver
		}
		return nil, err
	}
	if online {
		if !driver.ProfileCompleted {
			return nil, ErrProfileIncomplete
		}
		if driver.OutstandingFine > 0 {
			return nil, ErrFineOutstanding
		}
	}

	if err := s.driverRepo.SetAvailability(ctx, driverID, online, loc); err != nil {
		return nil, err
	}
	driver.IsOnline = online
	if loc != nil {
		driver.CurrentLocation = loc
	}

	if s.locationStore != nil {
		if online && driver.CurrentLocation != nil {
			if err := s.locationStore.UpdateLocation(ctx, driverID, *driver.CurrentLocation); err != nil {
				return nil, err
			}
		} else if !online {
			if err := s.locationStore.RemoveLocation(ctx, driverID); err != nil {
				return nil, err
			}
		}
	}
	s.invalidate(ctx, driverID)

	s.notifier.NotifyDriverStatus(ctx, driverID, online)
	return driver, nil
}

// UpdateLocation stores the driver's latest fix. Only online drivers are kept
// in the GEO index.
func (s *DriverService) UpdateLocation(ctx context.Context, driverID string, loc domain.Location) error {
	if driverID == "" {
		return ErrInvalidUserID
	}
	if !loc.Valid() {
		return ErrInvalidLocation
	}

	if err := s.driverRepo.UpdateLocation(ctx, driverID, loc); err != nil {
		return err
	}

	if s.locationStore == nil {
		return nil
	}
	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return err
	}
	if driver.IsOnline {
		return s.locationStore.UpdateLocation(ctx, driverID, loc)
	}
	return nil
}

// NearbyDriver is an available driver and its straight-line distance from the query point.
type NearbyDriver struct {
	Driver     *domain.Driver
	DistanceKm float64
}

// NearbyDrivers returns online, verified drivers within the nearby radius,
// closest first.
func (s *DriverService) NearbyDrivers(ctx context.Context, point domain.Location) ([]NearbyDriver, error) {
	if !point.Valid() {
		return nil, ErrInvalidLocation
	}

	var candidates []*domain.Driver
	if s.locationStore != nil {
		hits, err := s.locationStore.FindNearbyDrivers(ctx, point, s.policy.NearbyRadiusKm)
		if err != nil {
			return nil, err
		}
		for _, hit := range hits {
			driver, err := s.driverRepo.GetByID(ctx, hit.DriverID)
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			if driver.CurrentLocation == nil {
				loc := hit.Location
				driver.CurrentLocation = &loc
			}
			candidates = append(candidates, driver)
		}
	} else {
		available, err := s.driverRepo.ListAvailable(ctx)
		if err != nil {
			return nil, err
		}
		candidates = available
	}

	nearby := make([]NearbyDriver, 0, len(candidates))
	for _, d := range candidates {
		if !d.IsOnline || !d.ProfileCompleted || d.CurrentLocation == nil {
			continue
		}
		dist := geo.Haversine(point, *d.CurrentLocation)
		if dist > s.policy.NearbyRadiusKm {
			continue
		}
		nearby = append(nearby, NearbyDriver{Driver: d, DistanceKm: roundTo2(dist)})
	}
	sort.Slice(nearby, func(i, j int) bool { return nearby[i].DistanceKm < nearby[j].DistanceKm })

	return nearby, nil
}

// Trips returns rides assigned to the driver, newest first.
func (s *DriverService) Trips(ctx context.Context, driverID string) ([]*domain.Ride, error) {
	if driverID == "" {
		return nil, ErrInvalidUserID
	}
	return s.rideRepo.ListByDriver(ctx, driverID)
}

// ScheduledRides returns accepted rides whose scheduled time is still ahead,
// soonest first.
func (s *DriverService) ScheduledRides(ctx context.Context, driverID string) ([]*domain.Ride, error) {
	if driverID == "" {
		return nil, ErrInvalidUserID
	}
	return s.rideRepo.ListScheduledForDriver(ctx, driverID, s.now())
}

// InitialRides returns open requests inside the freshness window, oldest first.
// An empty vehicle type matches every type.
func (s *DriverService) InitialRides(ctx context.Context, vehicleType domain.VehicleType) ([]*domain.Ride, error) {
	if vehicleType != "" && !vehicleType.Valid() {
		return nil, ErrInvalidVehicleType
	}
	return s.rideRepo.ListOpen(ctx, vehicleType, s.now().Add(-s.policy.FreshnessWindow))
}

func (s *DriverService) invalidate(ctx context.Context, driverID string) {
	if s.cacheStore == nil {
		return
	}
	if err := s.cacheStore.InvalidateDriver(ctx, driverID); err != nil {
		s.logger.WarnContext(ctx, "driver cache invalidate", "driver_id", driverID, "error", err)
	}
}
