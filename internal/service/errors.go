package service

import "errors"

var (
	// ErrUnauthorized is returned when the caller has no valid identity.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the caller is not allowed to act on the entity.
	ErrForbidden = errors.New("forbidden")

	// ErrRideUnavailable is returned to drivers who lost the accept race.
	ErrRideUnavailable = errors.New("ride is no longer available")

	// ErrInvalidState is returned when a transition is illegal for the current status.
	ErrInvalidState = errors.New("invalid ride state for this action")

	// ErrAlreadyTerminal is returned when the ride is already completed or cancelled.
	ErrAlreadyTerminal = errors.New("ride already completed or cancelled")

	// ErrOtpNotVerified is returned when starting a ride whose OTP is still outstanding.
	ErrOtpNotVerified = errors.New("otp not verified")

	// ErrInvalidOtp is returned when the code does not match the ride's OTP.
	ErrInvalidOtp = errors.New("invalid otp")

	// ErrFineOutstanding is returned when an unpaid fine blocks the action.
	ErrFineOutstanding = errors.New("outstanding fine must be paid first")

	// ErrSuspended is returned when a suspended account tries to authenticate.
	ErrSuspended = errors.New("account suspended")

	// ErrInvalidRideID is returned when ride ID is empty.
	ErrInvalidRideID = errors.New("invalid ride id")

	// ErrInvalidUserID is returned when a user ID is empty.
	ErrInvalidUserID = errors.New("invalid user id")

	// ErrInvalidLocation is returned when location coordinates are invalid.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrInvalidVehicleType is returned for an unknown vehicle type.
	ErrInvalidVehicleType = errors.New("invalid vehicle type")

	// ErrInvalidStatus is returned when the requested target status is not advanceable.
	ErrInvalidStatus = errors.New("invalid target status")

	// ErrInvalidInput is returned when required fields are missing or malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidRating is returned when a rating is outside 0..5.
	ErrInvalidRating = errors.New("rating must be between 0 and 5")

	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("email already registered")

	// ErrReservedUsername is returned when registering a reserved username.
	ErrReservedUsername = errors.New("username is reserved")

	// ErrInvalidCredentials is returned on a failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotDriver is returned when a driver-only action is called by a customer.
	ErrNotDriver = errors.New("caller is not a driver")

	// ErrProfileIncomplete is returned when an unverified driver tries to work.
	ErrProfileIncomplete = errors.New("driver profile not verified")

	// ErrDriverOffline is returned when an offline driver tries to accept a ride.
	ErrDriverOffline = errors.New("driver is offline")

	// ErrDriverBusy is returned when a driver already has a ride in progress.
	ErrDriverBusy = errors.New("driver already has an active ride")

	// ErrNoDriverAssigned is returned when the ride has no driver to act on.
	ErrNoDriverAssigned = errors.New("ride has no assigned driver")

	// ErrRideNotCompleted is returned for payment and rating calls on unfinished rides.
	ErrRideNotCompleted = errors.New("ride must be completed")

	// ErrDuplicateReport is returned when the reporter already reported the ride.
	ErrDuplicateReport = errors.New("report already submitted for this ride")

	// ErrNoFine is returned when paying a fine that is zero.
	ErrNoFine = errors.New("no outstanding fine")

	// ErrPaymentFailed is returned when the provider declines a charge.
	ErrPaymentFailed = errors.New("payment failed")
)
