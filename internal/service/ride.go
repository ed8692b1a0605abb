package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"cabride/internal/auth"
	"cabride/internal/domain"
	"cabride/internal/observability"
	"cabride/internal/redis"
	"cabride/internal/repository"
)

const driverLockTTL = 10 * time.Second

// RideService owns the ride state machine: request, accept race, OTP gate,
// status advance and cancellation with fines.
type RideService struct {
	tx         repository.Transactor
	rideRepo   repository.RideRepository
	userRepo   repository.UserRepository
	driverRepo repository.DriverRepository
	lockStore  redis.LockStoreInterface
	estimator  DistanceEstimator
	notifier   *NotificationService
	policy     Policy
	logger     *slog.Logger

	now    func() time.Time
	newOTP func() (string, error)
}

// RideServiceDeps groups the collaborators of RideService.
type RideServiceDeps struct {
	Transactor   repository.Transactor
	RideRepo     repository.RideRepository
	UserRepo     repository.UserRepository
	DriverRepo   repository.DriverRepository
	LockStore    redis.LockStoreInterface // optional
	Estimator    DistanceEstimator
	Notification *NotificationService
	Policy       Policy
	Logger       *slog.Logger
}

// NewRideService creates a new RideService.
func NewRideService(deps RideServiceDeps) *RideService {
	return &RideService{
		tx:         deps.Transactor,
		rideRepo:   deps.RideRepo,
		userRepo:   deps.UserRepo,
		driverRepo: deps.DriverRepo,
		lockStore:  deps.LockStore,
		estimator:  deps.Estimator,
		notifier:   deps.Notification,
		policy:     deps.Policy,
		logger:     deps.Logger,
		now:        time.Now,
		newOTP:     NewOTP,
	}
}

// SetClock overrides the time source.
func (s *RideService) SetClock(now func() time.Time) {
	s.now = now
}

// SetOTPGenerator overrides the OTP source.
func (s *RideService) SetOTPGenerator(gen func() (string, error)) {
	s.newOTP = gen
}

// RequestRideInput contains the parameters for requesting a ride.
type RequestRideInput struct {
	CustomerID   string
	Pickup       domain.Place
	Dropoff      domain.Place
	VehicleType  domain.VehicleType
	ScheduledFor time.Time // zero for an immediate ride
}

// RequestRide creates a ride and offers it to drivers of the vehicle type.
// The fare is priced server-side from the estimated distance.
func (s *RideService) RequestRide(ctx context.Context, in RequestRideInput) (*domain.Ride, error) {
	if in.CustomerID == "" {
		return nil, ErrInvalidUserID
	}
	if !in.Pickup.Location.Valid() || !in.Dropoff.Location.Valid() {
		return nil, ErrInvalidLocation
	}
	if !in.VehicleType.Valid() {
		return nil, ErrInvalidVehicleType
	}

	customer, err := s.userRepo.GetByID(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer.OutstandingFine > 0 {
		return nil, ErrFineOutstanding
	}

	now := s.now()
	distance := s.estimator.DistanceKm(ctx, in.Pickup.Location, in.Dropoff.Location)

	ride := &domain.Ride{
		ID:            uuid.New().String(),
		CustomerID:    in.CustomerID,
		Pickup:        in.Pickup,
		Dropoff:       in.Dropoff,
		VehicleType:   in.VehicleType,
		DistanceKm:    distance,
		Fare:          s.policy.Fare(in.VehicleType, distance),
		Status:        domain.RideStatusRequested,
		PaymentStatus: domain.PaymentStatusUnpaid,
		CreatedAt:     now,
	}
	if !in.ScheduledFor.IsZero() && in.ScheduledFor.After(now) {
		ride.Status = domain.RideStatusScheduled
		ride.ScheduledFor = in.ScheduledFor
	}

	err = s.tx.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.Rides().Create(ctx, ride); err != nil {
			return err
		}
		session, err := tx.Chats().EnsureSession(ctx, ride.ID)
		if err != nil {
			return err
		}
		ride.ChatSessionID = session.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.RidesRequested.WithLabelValues(string(ride.VehicleType)).Inc()
	s.notifier.NotifyRideRequested(ctx, ride)

	return ride, nil
}

// GetRide returns a ride the principal may see: its participants, admins, or
// any driver while the ride is still open.
func (s *RideService) GetRide(ctx context.Context, p auth.Principal, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if ride.IsParticipant(p.UserID) || p.IsAdmin() || (p.IsDriver && ride.Status.IsOpen()) {
		return ride, nil
	}
	return nil, ErrForbidden
}

// History returns the customer's rides, newest first.
func (s *RideService) History(ctx context.Context, customerID string, limit int) ([]*domain.Ride, error) {
	if customerID == "" {
		return nil, ErrInvalidUserID
	}
	return s.rideRepo.ListByCustomer(ctx, customerID, limit)
}

// FrequentLocation is an address the customer often travels from or to.
type FrequentLocation struct {
	Address string          `json:"address"`
	Coords  domain.Location `json:"coords"`
	Count   int             `json:"count"`
}

// FrequentLocations returns the customer's five most used addresses over completed rides.
func (s *RideService) FrequentLocations(ctx context.Context, customerID string) ([]FrequentLocation, error) {
	rides, err := s.rideRepo.ListByCustomer(ctx, customerID, 0)
	if err != nil {
		return nil, err
	}

	byAddress := make(map[string]*FrequentLocation)
	var order []string
	count := func(p domain.Place) {
		if p.Address == "" {
			return
		}
		fl, ok := byAddress[p.Address]
		if !ok {
			fl = &FrequentLocation{Address: p.Address, Coords: p.Location}
			byAddress[p.Address] = fl
			order = append(order, p.Address)
		}
		fl.Count++
	}
	for _, r := range rides {
		if r.Status != domain.RideStatusCompleted {
			continue
		}
		count(r.Pickup)
		count(r.Dropoff)
	}

	out := make([]FrequentLocation, 0, len(order))
	for _, addr := range order {
		out = append(out, *byAddress[addr])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > 5 {
		out = out[:5]
	}
	return out, nil
}

// AcceptRide assigns the driver to the ride. Concurrent callers race on one
// conditional update; every loser gets ErrRideUnavailable.
func (s *RideService) AcceptRide(ctx context.Context, driverID, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotDriver
		}
		return nil, err
	}
	switch {
	case !driver.ProfileCompleted:
		return nil, ErrProfileIncomplete
	case driver.OutstandingFine > 0:
		return nil, ErrFineOutstanding
	case !driver.IsOnline:
		return nil, ErrDriverOffline
	}

	// Serialize this driver's accepts so the busy check and the assignment agree.
	if s.lockStore != nil {
		token, acquired, err := s.lockStore.AcquireDriverLock(ctx, driverID, driverLockTTL)
		if err != nil {
			return nil, err
		}
		if !acquired {
			return nil, ErrDriverBusy
		}
		defer func() {
			if err := s.lockStore.ReleaseDriverLock(context.WithoutCancel(ctx), driverID, token); err != nil {
				s.logger.Warn("release driver lock", "driver_id", driverID, "error", err)
			}
		}()
	}

	now := s.now()
	if _, err := s.rideRepo.ActiveForDriver(ctx, driverID, now); err == nil {
		return nil, ErrDriverBusy
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	otp, err := s.newOTP()
	if err != nil {
		return nil, err
	}

	ride, err := s.rideRepo.Accept(ctx, rideID, driverID, otp, now)
	if err != nil {
		if !errors.Is(err, repository.ErrConditionFailed) {
			return nil, err
		}
		if _, getErr := s.rideRepo.GetByID(ctx, rideID); getErr != nil {
			return nil, getErr
		}
		observability.AcceptOutcomes.WithLabelValues("lost").Inc()
		s.logger.DebugContext(ctx, "accept race lost", "ride_id", rideID, "driver_id", driverID)
		return nil, ErrRideUnavailable
	}

	observability.AcceptOutcomes.WithLabelValues("won").Inc()
	s.notifier.NotifyRideAccepted(ctx, ride, driver)

	return ride, nil
}

// VerifyOtp consumes the ride's OTP. Only the assigned driver may call it and
// a code verifies at most once.
func (s *RideService) VerifyOtp(ctx context.Context, driverID, rideID, code string) error {
	if rideID == "" {
		return ErrInvalidRideID
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return err
	}
	if !ride.IsAssignedDriver(driverID) {
		return ErrForbidden
	}
	if ride.Status.IsTerminal() {
		return ErrAlreadyTerminal
	}
	if ride.OTP == "" || !isValidOTP(code) {
		return ErrInvalidOtp
	}

	if err := s.rideRepo.ConsumeOTP(ctx, rideID, driverID, code); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return ErrInvalidOtp
		}
		return err
	}

	ride.OTP = ""
	s.notifier.NotifyOtpVerified(ctx, ride)
	return nil
}

// AdvanceStatus moves the ride forward to arrived, started or completed.
func (s *RideService) AdvanceStatus(ctx context.Context, callerID, rideID string, target domain.RideStatus) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	switch target {
	case domain.RideStatusArrived, domain.RideStatusStarted, domain.RideStatusCompleted:
	default:
		return nil, ErrInvalidStatus
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !ride.IsParticipant(callerID) {
		return nil, ErrForbidden
	}
	if err := checkAdvance(ride, target); err != nil {
		return nil, err
	}

	var updated *domain.Ride
	err = s.tx.InTx(ctx, func(tx repository.Tx) error {
		var err error
		updated, err = tx.Rides().Transition(ctx, rideID, ride.Status, target, s.now())
		if err != nil {
			return err
		}
		if target == domain.RideStatusCompleted {
			return tx.Drivers().IncrementCompletedTrips(ctx, updated.DriverID)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, repository.ErrConditionFailed) {
			return nil, err
		}
		// Lost to a concurrent change; report against the fresh state.
		current, getErr := s.rideRepo.GetByID(ctx, rideID)
		if getErr != nil {
			return nil, getErr
		}
		if err := checkAdvance(current, target); err != nil {
			return nil, err
		}
		return nil, ErrInvalidState
	}

	observability.StatusTransitions.WithLabelValues(string(target)).Inc()
	s.notifier.NotifyStatusChanged(ctx, updated)

	return updated, nil
}

func checkAdvance(ride *domain.Ride, target domain.RideStatus) error {
	if ride.Status.IsTerminal() {
		return ErrAlreadyTerminal
	}
	if !ride.Status.CanAdvanceTo(target) {
		return ErrInvalidState
	}
	if target == domain.RideStatusStarted && ride.OTP != "" {
		return ErrOtpNotVerified
	}
	return nil
}
