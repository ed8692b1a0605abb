package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"cabride/internal/auth"
	"cabride/internal/domain"
	"cabride/internal/repository"
)

const minPasswordLength = 6

// AccountService registers and authenticates users.
type AccountService struct {
	tx             repository.Transactor
	userRepo       repository.UserRepository
	issuer         *auth.TokenIssuer
	adminUsernames map[string]struct{}
	now            func() time.Time
}

// NewAccountService creates a new AccountService. Accounts registered under
// one of adminUsernames are given the admin role.
func NewAccountService(
	tx repository.Transactor,
	userRepo repository.UserRepository,
	issuer *auth.TokenIssuer,
	adminUsernames []string,
) *AccountService {
	admins := make(map[string]struct{}, len(adminUsernames))
	for _, name := range adminUsernames {
		admins[strings.ToLower(name)] = struct{}{}
	}
	return &AccountService{
		tx:             tx,
		userRepo:       userRepo,
		issuer:         issuer,
		adminUsernames: admins,
		now:            time.Now,
	}
}

// SetClock overrides the time source.
func (s *AccountService) SetClock(now func() time.Time) {
	s.now = now
}

// RegisterRequest contains the parameters for creating an account.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
}

// AuthResult is an authenticated user and its bearer token.
type AuthResult struct {
	User  *domain.User
	Token string
}

// Register creates a customer account, or an admin account for a configured
// admin username.
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	role := domain.RoleCustomer
	if s.isAdminUsername(req.Username) {
		role = domain.RoleAdmin
	}
	user, err := s.newUser(req, role)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	return s.authenticate(user)
}

// RegisterDriver creates a driver account with an empty, unverified profile.
func (s *AccountService) RegisterDriver(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	if s.isAdminUsername(req.Username) {
		return nil, ErrReservedUsername
	}
	user, err := s.newUser(req, domain.RoleDriver)
	if err != nil {
		return nil, err
	}
	user.IsDriver = true

	err = s.tx.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.Users().Create(ctx, user); err != nil {
			return err
		}
		return tx.Drivers().Create(ctx, &domain.Driver{
			ID:        user.ID,
			Username:  user.Username,
			Rating:    domain.DefaultDriverRating,
			CreatedAt: user.CreatedAt,
		})
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	return s.authenticate(user)
}

// Login checks the credentials and issues a token. Suspended accounts are refused.
func (s *AccountService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if user.IsSuspended(s.now()) {
		return nil, ErrSuspended
	}

	return s.authenticate(user)
}

// Reauthenticate issues a fresh token from the account's current state, so a
// newly verified driver or a changed role takes effect.
func (s *AccountService) Reauthenticate(ctx context.Context, p auth.Principal) (*AuthResult, error) {
	user, err := s.userRepo.GetByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if user.IsSuspended(s.now()) {
		return nil, ErrSuspended
	}
	return s.authenticate(user)
}

// Profile returns a user account.
func (s *AccountService) Profile(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	return s.userRepo.GetByID(ctx, userID)
}

// CheckActive returns ErrSuspended if the account is suspended now.
func (s *AccountService) CheckActive(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if user.IsSuspended(s.now()) {
		return nil, ErrSuspended
	}
	return user, nil
}

func (s *AccountService) newUser(req RegisterRequest, role domain.Role) (*domain.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if username == "" || email == "" || len(req.Password) < minPasswordLength {
		return nil, ErrInvalidInput
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidInput
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	return &domain.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.now(),
	}, nil
}

func (s *AccountService) authenticate(user *domain.User) (*AuthResult, error) {
	token, err := s.issuer.Issue(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (s *AccountService) isAdminUsername(username string) bool {
	_, ok := s.adminUsernames[strings.ToLower(strings.TrimSpace(username))]
	return ok
}
