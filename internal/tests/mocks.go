package tests

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"cabride/internal/domain"
	"cabride/internal/events"
	"cabride/internal/realtime"
	"cabride/internal/redis"
	"cabride/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK RIDE REPOSITORY
// ──────────────────────────────────────────────

// MockRideRepository is a mock implementation of RideRepository. Conditional
// updates are evaluated under the write lock so concurrent callers observe
// real compare-and-swap semantics.
type MockRideRepository struct {
	mu    sync.RWMutex
	rides map[string]*domain.Ride

	// Counters for verification
	AcceptCallCount int32
	CancelCallCount int32

	// Error injection
	CreateError error
	GetError    error
}

// NewMockRideRepository creates a new mock ride repository.
func NewMockRideRepository() *MockRideRepository {
	return &MockRideRepository{
		rides: make(map[string]*domain.Ride),
	}
}

// AddRide adds a ride to the mock repository.
func (m *MockRideRepository) AddRide(ride *domain.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[ride.ID] = ride
}

// GetRide returns a copy of the stored ride for test assertions.
func (m *MockRideRepository) GetRide(id string) *domain.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return nil
	}
	copy := *r
	return &copy
}

func (m *MockRideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rides[ride.ID]; ok {
		return repository.ErrDuplicate
	}
	copy := *ride
	m.rides[ride.ID] = &copy
	return nil
}

func (m *MockRideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *r
	return &copy, nil
}

func (m *MockRideRepository) Accept(ctx context.Context, id, driverID, otp string, at time.Time) (*domain.Ride, error) {
	atomic.AddInt32(&m.AcceptCallCount, 1)
	return m.update(id, func(r *domain.Ride) bool {
		if !r.Status.IsOpen() || r.DriverID != "" {
			return false
		}
		r.DriverID = driverID
		r.Status = domain.RideStatusAccepted
		r.AcceptedAt = at
		r.OTP = otp
		return true
	})
}

func (m *MockRideRepository) ConsumeOTP(ctx context.Context, id, driverID, otp string) error {
	_, err := m.update(id, func(r *domain.Ride) bool {
		if r.DriverID != driverID || r.OTP == "" || r.OTP != otp {
			return false
		}
		if r.Status != domain.RideStatusAccepted && r.Status != domain.RideStatusArrived {
			return false
		}
		r.OTP = ""
		return true
	})
	return err
}

func (m *MockRideRepository) Transition(ctx context.Context, id string, from, to domain.RideStatus, at time.Time) (*domain.Ride, error) {
	return m.update(id, func(r *domain.Ride) bool {
		if r.Status != from || (to == domain.RideStatusStarted && r.OTP != "") {
			return false
		}
		r.Status = to
		switch to {
		case domain.RideStatusStarted:
			r.StartTime = at
		case domain.RideStatusCompleted:
			r.EndTime = at
		}
		return true
	})
}

func (m *MockRideRepository) Cancel(ctx context.Context, id string, from domain.RideStatus, reason string, at time.Time) (*domain.Ride, error) {
	atomic.AddInt32(&m.CancelCallCount, 1)
	return m.update(id, func(r *domain.Ride) bool {
		if r.Status != from {
			return false
		}
		r.Status = domain.RideStatusCancelled
		r.CancellationReason = reason
		r.CancelledAt = at
		r.OTP = ""
		return true
	})
}

func (m *MockRideRepository) MarkPaid(ctx context.Context, id string) error {
	_, err := m.update(id, func(r *domain.Ride) bool {
		if r.Status != domain.RideStatusCompleted {
			return false
		}
		r.PaymentStatus = domain.PaymentStatusPaid
		return true
	})
	return err
}

func (m *MockRideRepository) SetRating(ctx context.Context, id string, rating int, review string) error {
	_, err := m.update(id, func(r *domain.Ride) bool {
		if r.Status != domain.RideStatusCompleted {
			return false
		}
		if rating > 0 {
			r.Rating = rating
		}
		if review != "" {
			r.Review = review
		}
		return true
	})
	return err
}

func (m *MockRideRepository) ListOpen(ctx context.Context, vehicleType domain.VehicleType, since time.Time) ([]*domain.Ride, error) {
	rides := m.filter(func(r *domain.Ride) bool {
		return r.Status == domain.RideStatusRequested && r.DriverID == "" && !r.CreatedAt.Before(since) &&
			(vehicleType == "" || r.VehicleType == vehicleType)
	})
	sort.Slice(rides, func(i, j int) bool { return rides[i].CreatedAt.Before(rides[j].CreatedAt) })
	return rides, nil
}

func (m *MockRideRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]*domain.Ride, error) {
	rides := m.filter(func(r *domain.Ride) bool { return r.CustomerID == customerID })
	sort.Slice(rides, func(i, j int) bool { return rides[i].CreatedAt.After(rides[j].CreatedAt) })
	if limit > 0 && len(rides) > limit {
		rides = rides[:limit]
	}
	return rides, nil
}

func (m *MockRideRepository) ListByDriver(ctx context.Context, driverID string) ([]*domain.Ride, error) {
	rides := m.filter(func(r *domain.Ride) bool { return r.DriverID == driverID })
	sort.Slice(rides, func(i, j int) bool { return rides[i].CreatedAt.After(rides[j].CreatedAt) })
	return rides, nil
}

func (m *MockRideRepository) ListScheduledForDriver(ctx context.Context, driverID string, after time.Time) ([]*domain.Ride, error) {
	rides := m.filter(func(r *domain.Ride) bool {
		return r.DriverID == driverID && !r.ScheduledFor.IsZero() && !r.ScheduledFor.Before(after) && !r.Status.IsTerminal()
	})
	sort.Slice(rides, func(i, j int) bool { return rides[i].ScheduledFor.Before(rides[j].ScheduledFor) })
	return rides, nil
}

func (m *MockRideRepository) ActiveForDriver(ctx context.Context, driverID string, now time.Time) (*domain.Ride, error) {
	rides := m.filter(func(r *domain.Ride) bool {
		switch r.Status {
		case domain.RideStatusAccepted, domain.RideStatusArrived, domain.RideStatusStarted:
		default:
			return false
		}
		return r.DriverID == driverID && (r.ScheduledFor.IsZero() || !r.ScheduledFor.After(now))
	})
	if len(rides) == 0 {
		return nil, repository.ErrNotFound
	}
	return rides[0], nil
}

func (m *MockRideRepository) DriverRatingStats(ctx context.Context, driverID string) (float64, int, error) {
	rides := m.filter(func(r *domain.Ride) bool { return r.DriverID == driverID && r.Rating > 0 })
	if len(rides) == 0 {
		return 0, 0, nil
	}
	var sum int
	for _, r := range rides {
		sum += r.Rating
	}
	return float64(sum) / float64(len(rides)), len(rides), nil
}

// update applies fn to the stored ride under the write lock. fn returning
// false leaves the ride untouched and yields ErrConditionFailed.
func (m *MockRideRepository) update(id string, fn func(r *domain.Ride) bool) (*domain.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrConditionFailed
	}
	next := *r
	if !fn(&next) {
		return nil, repository.ErrConditionFailed
	}
	m.rides[id] = &next
	copy := next
	return &copy, nil
}

func (m *MockRideRepository) filter(keep func(r *domain.Ride) bool) []*domain.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Ride, 0)
	for _, r := range m.rides {
		if keep(r) {
			copy := *r
			result = append(result, &copy)
		}
	}
	return result
}

// ──────────────────────────────────────────────
// MOCK DRIVER REPOSITORY
// ──────────────────────────────────────────────

// MockDriverRepository is a mock implementation of DriverRepository.
type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver

	// Counters for verification
	AddFineCallCount int32

	// Error injection
	AddFineError error
}

// NewMockDriverRepository creates a new mock driver repository.
func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{
		drivers: make(map[string]*domain.Driver),
	}
}

// AddDriver adds a driver to the mock repository.
func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
}

// GetDriver returns a copy of the stored driver for test assertions.
func (m *MockDriverRepository) GetDriver(id string) *domain.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[id]
	if !ok {
		return nil
	}
	copy := *d
	return &copy
}

func (m *MockDriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.drivers[driver.ID]; ok {
		return repository.ErrDuplicate
	}
	copy := *driver
	m.drivers[driver.ID] = &copy
	return nil
}

func (m *MockDriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *d
	return &copy, nil
}

func (m *MockDriverRepository) GetAll(ctx context.Context) ([]*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		copy := *d
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockDriverRepository) ListAvailable(ctx context.Context) ([]*domain.Driver, error) {
	all, _ := m.GetAll(ctx)
	result := make([]*domain.Driver, 0, len(all))
	for _, d := range all {
		if d.IsOnline && d.ProfileCompleted && d.CurrentLocation != nil {
			result = append(result, d)
		}
	}
	return result, nil
}

func (m *MockDriverRepository) UpdateProfile(ctx context.Context, driver *domain.Driver) error {
	return m.mutate(driver.ID, func(d *domain.Driver) {
		d.VehicleType = driver.VehicleType
		d.VehicleNumber = driver.VehicleNumber
		d.UPIID = driver.UPIID
		d.ProfileCompleted = false
		d.RejectionReason = ""
	})
}

func (m *MockDriverRepository) SetAvailability(ctx context.Context, id string, online bool, loc *domain.Location) error {
	return m.mutate(id, func(d *domain.Driver) {
		d.IsOnline = online
		if loc != nil {
			l := *loc
			d.CurrentLocation = &l
		}
	})
}

func (m *MockDriverRepository) UpdateLocation(ctx context.Context, id string, loc domain.Location) error {
	return m.mutate(id, func(d *domain.Driver) {
		d.CurrentLocation = &loc
	})
}

func (m *MockDriverRepository) AddFine(ctx context.Context, id string, amount float64) error {
	atomic.AddInt32(&m.AddFineCallCount, 1)
	if m.AddFineError != nil {
		return m.AddFineError
	}
	return m.mutate(id, func(d *domain.Driver) {
		d.OutstandingFine += amount
	})
}

func (m *MockDriverRepository) ClearFine(ctx context.Context, id string, amount float64) (float64, error) {
	var cleared float64
	err := m.mutate(id, func(d *domain.Driver) {
		cleared = math.Min(d.OutstandingFine, amount)
		d.OutstandingFine = math.Max(d.OutstandingFine-amount, 0)
	})
	return cleared, err
}

func (m *MockDriverRepository) SetVerification(ctx context.Context, id string, verified bool, rejectionReason string) error {
	return m.mutate(id, func(d *domain.Driver) {
		d.ProfileCompleted = verified
		d.RejectionReason = rejectionReason
	})
}

func (m *MockDriverRepository) SetRating(ctx context.Context, id string, rating float64) error {
	return m.mutate(id, func(d *domain.Driver) {
		d.Rating = rating
	})
}

func (m *MockDriverRepository) IncrementCompletedTrips(ctx context.Context, id string) error {
	return m.mutate(id, func(d *domain.Driver) {
		d.CompletedTrips++
	})
}

func (m *MockDriverRepository) mutate(id string, fn func(d *domain.Driver)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(d)
	return nil
}

// ──────────────────────────────────────────────
// MOCK USER REPOSITORY
// ──────────────────────────────────────────────

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User

	// Counters for verification
	AddFineCallCount int32

	// Error injection
	AddFineError error
}

// NewMockUserRepository creates a new mock user repository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[string]*domain.User),
	}
}

// AddUser adds a user to the mock repository.
func (m *MockUserRepository) AddUser(user *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
}

// GetUser returns a copy of the stored user for test assertions.
func (m *MockUserRepository) GetUser(id string) *domain.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	copy := *u
	return &copy
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	copy := *user
	if copy.Role == "" {
		copy.Role = domain.RoleCustomer
	}
	m.users[user.ID] = &copy
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *u
	return &copy, nil
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockUserRepository) GetAll(ctx context.Context) ([]*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.User, 0, len(m.users))
	for _, u := range m.users {
		copy := *u
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockUserRepository) AddFine(ctx context.Context, id string, amount float64) error {
	atomic.AddInt32(&m.AddFineCallCount, 1)
	if m.AddFineError != nil {
		return m.AddFineError
	}
	return m.mutate(id, func(u *domain.User) {
		u.OutstandingFine += amount
	})
}

func (m *MockUserRepository) ClearFine(ctx context.Context, id string, amount float64) (float64, error) {
	var cleared float64
	err := m.mutate(id, func(u *domain.User) {
		cleared = math.Min(u.OutstandingFine, amount)
		u.OutstandingFine = math.Max(u.OutstandingFine-amount, 0)
	})
	return cleared, err
}

func (m *MockUserRepository) SetSuspendedUntil(ctx context.Context, id string, until time.Time) error {
	return m.mutate(id, func(u *domain.User) {
		u.SuspendedUntil = until
	})
}

func (m *MockUserRepository) SetDriverFlag(ctx context.Context, id string, isDriver bool) error {
	return m.mutate(id, func(u *domain.User) {
		u.IsDriver = isDriver
	})
}

func (m *MockUserRepository) mutate(id string, fn func(u *domain.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(u)
	return nil
}

// ──────────────────────────────────────────────
// MOCK CHAT REPOSITORY
// ──────────────────────────────────────────────

// MockChatRepository is a mock implementation of ChatRepository.
type MockChatRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.ChatSession
	users    *MockUserRepository

	// Counters for verification
	EnsureCallCount int32
}

// NewMockChatRepository creates a new mock chat repository. Sender names are
// resolved through users, like the join done by the real store.
func NewMockChatRepository(users *MockUserRepository) *MockChatRepository {
	return &MockChatRepository{
		sessions: make(map[string]*domain.ChatSession),
		users:    users,
	}
}

func (m *MockChatRepository) EnsureSession(ctx context.Context, rideID string) (*domain.ChatSession, error) {
	atomic.AddInt32(&m.EnsureCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureLocked(rideID), nil
}

func (m *MockChatRepository) Append(ctx context.Context, msg *domain.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session := m.ensureLocked(msg.RideID)
	session.Messages = append(session.Messages, *msg)
	return nil
}

func (m *MockChatRepository) History(ctx context.Context, rideID string) ([]domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[rideID]
	if !ok {
		return []domain.ChatMessage{}, nil
	}
	out := make([]domain.ChatMessage, len(session.Messages))
	copy(out, session.Messages)
	for i := range out {
		if u := m.users.GetUser(out[i].SenderID); u != nil {
			out[i].SenderName = u.Username
		}
	}
	return out, nil
}

// SessionCount returns the number of chat sessions created.
func (m *MockChatRepository) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *MockChatRepository) ensureLocked(rideID string) *domain.ChatSession {
	session, ok := m.sessions[rideID]
	if !ok {
		session = &domain.ChatSession{
			ID:        "chat-" + rideID,
			RideID:    rideID,
			CreatedAt: time.Now(),
		}
		m.sessions[rideID] = session
	}
	return session
}

// ──────────────────────────────────────────────
// MOCK PAYMENT REPOSITORY
// ──────────────────────────────────────────────

// MockPaymentRepository is a mock implementation of PaymentRepository.
type MockPaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*domain.Payment
}

// NewMockPaymentRepository creates a new mock payment repository.
func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{
		payments: make(map[string]*domain.Payment),
	}
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.IdempotencyKey == payment.IdempotencyKey {
			return repository.ErrDuplicate
		}
	}
	copy := *payment
	m.payments[payment.ID] = &copy
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *p
	return &copy, nil
}

func (m *MockPaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.IdempotencyKey == key {
			copy := *p
			return &copy, nil
		}
	}
	return nil, nil
}

func (m *MockPaymentRepository) UpdateStatus(ctx context.Context, id string, status domain.ChargeStatus, providerRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Status = status
	p.ProviderRef = providerRef
	return nil
}

// ──────────────────────────────────────────────
// MOCK REPORT REPOSITORY
// ──────────────────────────────────────────────

// MockReportRepository is a mock implementation of ReportRepository.
type MockReportRepository struct {
	mu      sync.RWMutex
	reports map[string]*domain.Report
}

// NewMockReportRepository creates a new mock report repository.
func NewMockReportRepository() *MockReportRepository {
	return &MockReportRepository{
		reports: make(map[string]*domain.Report),
	}
}

func (m *MockReportRepository) Create(ctx context.Context, report *domain.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reports {
		if r.RideID == report.RideID && r.ReporterID == report.ReporterID {
			return repository.ErrDuplicate
		}
	}
	copy := *report
	m.reports[report.ID] = &copy
	return nil
}

func (m *MockReportRepository) Exists(ctx context.Context, rideID, reporterID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.reports {
		if r.RideID == rideID && r.ReporterID == reporterID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockReportRepository) GetByID(ctx context.Context, id string) (*domain.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *r
	return &copy, nil
}

func (m *MockReportRepository) GetAll(ctx context.Context) ([]*domain.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Report, 0, len(m.reports))
	for _, r := range m.reports {
		copy := *r
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *MockReportRepository) SetResolved(ctx context.Context, id string, resolved bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.IsResolved = resolved
	return nil
}

// ──────────────────────────────────────────────
// MOCK TRANSACTOR
// ──────────────────────────────────────────────

// MockTransactor runs fn against the shared mock repositories. Transactions
// are serialized, and when fn fails the ride, driver, user and payment state
// is restored to what it was before fn ran.
type MockTransactor struct {
	Rides    *MockRideRepository
	Drivers  *MockDriverRepository
	Users    *MockUserRepository
	Chats    *MockChatRepository
	Payments *MockPaymentRepository

	// Counters for verification
	TxCount       int32
	RollbackCount int32

	// Error injection
	BeginError error

	txMu sync.Mutex
}

func (m *MockTransactor) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	atomic.AddInt32(&m.TxCount, 1)
	if m.BeginError != nil {
		return m.BeginError
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	restore := m.snapshot()
	if err := fn(mockTx{m}); err != nil {
		restore()
		atomic.AddInt32(&m.RollbackCount, 1)
		return err
	}
	return nil
}

// snapshot captures the repositories and returns a func that puts them back.
func (m *MockTransactor) snapshot() func() {
	var undo []func()
	if m.Rides != nil {
		undo = append(undo, capture(&m.Rides.mu, m.Rides.rides))
	}
	if m.Drivers != nil {
		undo = append(undo, capture(&m.Drivers.mu, m.Drivers.drivers))
	}
	if m.Users != nil {
		undo = append(undo, capture(&m.Users.mu, m.Users.users))
	}
	if m.Payments != nil {
		undo = append(undo, capture(&m.Payments.mu, m.Payments.payments))
	}
	return func() {
		for _, fn := range undo {
			fn()
		}
	}
}

// capture copies every record in store. The returned func restores the
// records in place, so pointers held by tests stay valid.
func capture[T any](mu *sync.RWMutex, store map[string]*T) func() {
	mu.RLock()
	saved := make(map[string]T, len(store))
	for id, v := range store {
		saved[id] = *v
	}
	mu.RUnlock()

	return func() {
		mu.Lock()
		defer mu.Unlock()
		for id, v := range store {
			if old, ok := saved[id]; ok {
				*v = old
			} else {
				delete(store, id)
			}
		}
		for id, old := range saved {
			if _, ok := store[id]; !ok {
				restored := old
				store[id] = &restored
			}
		}
	}
}

type mockTx struct{ m *MockTransactor }

func (t mockTx) Rides() repository.RideRepository       { return t.m.Rides }
func (t mockTx) Drivers() repository.DriverRepository   { return t.m.Drivers }
func (t mockTx) Users() repository.UserRepository       { return t.m.Users }
func (t mockTx) Chats() repository.ChatRepository       { return t.m.Chats }
func (t mockTx) Payments() repository.PaymentRepository { return t.m.Payments }

// ──────────────────────────────────────────────
// MOCK REDIS STORES
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStoreInterface.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]string
	seq   int64

	// Error injection
	AcquireError error
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]string),
	}
}

func (m *MockLockStore) AcquireDriverLock(ctx context.Context, driverID string, ttl time.Duration) (string, bool, error) {
	if m.AcquireError != nil {
		return "", false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.locks[driverID]; held {
		return "", false, nil
	}
	m.seq++
	token := "lock-" + strconv.FormatInt(m.seq, 10)
	m.locks[driverID] = token
	return token, true, nil
}

func (m *MockLockStore) ReleaseDriverLock(ctx context.Context, driverID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[driverID] == token {
		delete(m.locks, driverID)
	}
	return nil
}

// IsLocked reports whether the driver's lock is held.
func (m *MockLockStore) IsLocked(driverID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, held := m.locks[driverID]
	return held
}

// MockLocationStore is a mock implementation of LocationStoreInterface.
type MockLocationStore struct {
	mu        sync.RWMutex
	locations map[string]domain.Location

	// Error injection
	FindError error
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{
		locations: make(map[string]domain.Location),
	}
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, driverID string, loc domain.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[driverID] = loc
	return nil
}

// FindNearbyDrivers returns every indexed driver; radius filtering is left to the caller.
func (m *MockLocationStore) FindNearbyDrivers(ctx context.Context, center domain.Location, radiusKm float64) ([]redis.DriverLocation, error) {
	if m.FindError != nil {
		return nil, m.FindError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]redis.DriverLocation, 0, len(m.locations))
	for id, loc := range m.locations {
		result = append(result, redis.DriverLocation{DriverID: id, Location: loc})
	}
	return result, nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locations, driverID)
	return nil
}

// Has reports whether the driver is in the index.
func (m *MockLocationStore) Has(driverID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.locations[driverID]
	return ok
}

// MockCacheStore is a mock implementation of CacheStoreInterface.
type MockCacheStore struct {
	mu      sync.RWMutex
	drivers map[string]*redis.CachedDriver

	// Counters for verification
	InvalidateCallCount int32
}

// NewMockCacheStore creates a new mock cache store.
func NewMockCacheStore() *MockCacheStore {
	return &MockCacheStore{
		drivers: make(map[string]*redis.CachedDriver),
	}
}

func (m *MockCacheStore) GetDriver(ctx context.Context, driverID string) (*redis.CachedDriver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[driverID]
	if !ok {
		return nil, nil
	}
	copy := *d
	return &copy, nil
}

func (m *MockCacheStore) SetDriver(ctx context.Context, driver *redis.CachedDriver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *driver
	m.drivers[driver.ID] = &copy
	return nil
}

func (m *MockCacheStore) InvalidateDriver(ctx context.Context, driverID string) error {
	atomic.AddInt32(&m.InvalidateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drivers, driverID)
	return nil
}

// ──────────────────────────────────────────────
// BUS, EMITTER AND CLOCK
// ──────────────────────────────────────────────

// Published is one event captured by RecordingBus.
type Published struct {
	Group string
	Event realtime.Event
}

// RecordingBus captures every publish in order.
type RecordingBus struct {
	// Hub, when set, also receives every publish.
	Hub *realtime.Hub

	mu         sync.Mutex
	events     []Published
	restricted []string
}

// NewRecordingBus creates a new RecordingBus.
func NewRecordingBus() *RecordingBus {
	return &RecordingBus{}
}

func (b *RecordingBus) Publish(group string, e realtime.Event) {
	b.mu.Lock()
	b.events = append(b.events, Published{Group: group, Event: e})
	hub := b.Hub
	b.mu.Unlock()
	if hub != nil {
		hub.Publish(group, e)
	}
}

// Restrict forwards to Hub when set, otherwise only records the call.
func (b *RecordingBus) Restrict(group string, userIDs ...string) int {
	b.mu.Lock()
	b.restricted = append(b.restricted, group)
	hub := b.Hub
	b.mu.Unlock()
	if hub != nil {
		return hub.Restrict(group, userIDs...)
	}
	return 0
}

// Restricted returns the groups passed to Restrict, in order.
func (b *RecordingBus) Restricted() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.restricted...)
}

// Events returns a copy of all captured publishes.
func (b *RecordingBus) Events() []Published {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Published, len(b.events))
	copy(out, b.events)
	return out
}

// Count returns how many events of type t were published to group.
func (b *RecordingBus) Count(group string, t realtime.EventType) int {
	n := 0
	for _, p := range b.Events() {
		if p.Group == group && p.Event.EventType() == t {
			n++
		}
	}
	return n
}

// Find returns the events of type t published to group.
func (b *RecordingBus) Find(group string, t realtime.EventType) []realtime.Event {
	var out []realtime.Event
	for _, p := range b.Events() {
		if p.Group == group && p.Event.EventType() == t {
			out = append(out, p.Event)
		}
	}
	return out
}

// RecordingEmitter captures lifecycle events.
type RecordingEmitter struct {
	mu     sync.Mutex
	events []events.LifecycleEvent
}

func (e *RecordingEmitter) Emit(ev events.LifecycleEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

// Names returns the captured event names in order.
func (e *RecordingEmitter) Names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Name)
	}
	return out
}

// FixedEstimator returns the same distance for every pair of points.
type FixedEstimator struct {
	Km float64
}

func (f FixedEstimator) DistanceKm(ctx context.Context, a, b domain.Location) float64 {
	return f.Km
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a Clock at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ErrInjected is a generic error for failure-path tests.
var ErrInjected = errors.New("injected failure")

// Ensure mocks implement interfaces.
var (
	_ repository.RideRepository    = (*MockRideRepository)(nil)
	_ repository.DriverRepository  = (*MockDriverRepository)(nil)
	_ repository.UserRepository    = (*MockUserRepository)(nil)
	_ repository.ChatRepository    = (*MockChatRepository)(nil)
	_ repository.PaymentRepository = (*MockPaymentRepository)(nil)
	_ repository.ReportRepository  = (*MockReportRepository)(nil)
	_ repository.Transactor        = (*MockTransactor)(nil)
	_ redis.LockStoreInterface     = (*MockLockStore)(nil)
	_ redis.LocationStoreInterface = (*MockLocationStore)(nil)
	_ redis.CacheStoreInterface    = (*MockCacheStore)(nil)
)
