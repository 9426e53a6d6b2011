package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/edu-platform/credential-service/internal/auth"
	"github.com/edu-platform/credential-service/internal/config"
	"github.com/edu-platform/credential-service/internal/domain"
	"github.com/edu-platform/credential-service/internal/events"
	"github.com/edu-platform/credential-service/internal/repository"
)

const maxPasswordBytes = auth.MaxPasswordBytes

var (
	ErrValidation         = errors.New("validation failed")
	ErrDuplicateAccount   = errors.New("account already exists")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPersistence        = errors.New("account store failure")
	ErrMissingSecret      = errors.New("token signing secret is not configured")
)

// ValidationError lists the offending input fields. It matches ErrValidation.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", ErrValidation, e.Reason, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// CredentialService coordinates registration, login and profile lookups.
type CredentialService struct {
	accounts   repository.AccountRepository
	hasher     auth.PasswordHasher
	tokens     *auth.TokenManager
	profiles   repository.ProfileCache
	dispatcher events.Dispatcher
	logger     *zap.Logger

	dummyOnce sync.Once
	dummyHash string
}

// CredentialDependencies encapsulates collaborators for the credential service.
// Profiles and Dispatcher are optional.
type CredentialDependencies struct {
	Accounts   repository.AccountRepository
	Hasher     auth.PasswordHasher
	Profiles   repository.ProfileCache
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewCredentialService builds the service. It refuses to start without a signing secret.
func NewCredentialService(cfg config.AuthConfig, deps CredentialDependencies) (*CredentialService, error) {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, ErrMissingSecret
	}
	if deps.Accounts == nil {
		return nil, errors.New("credential service: account repository is required")
	}

	hasher := deps.Hasher
	if hasher == nil {
		hasher = auth.NewBcryptHasher(cfg.BcryptCost)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CredentialService{
		accounts:   deps.Accounts,
		hasher:     hasher,
		tokens:     auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL()),
		profiles:   deps.Profiles,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *CredentialService) TokenManager() *auth.TokenManager {
	return s.tokens
}

// Register creates a student account. Uniqueness is enforced by the store; a
// rejected insert surfaces as ErrDuplicateAccount.
func (s *CredentialService) Register(ctx context.Context, username, email, password string) (*domain.AccountProfile, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)

	var missing []string
	if username == "" {
		missing = append(missing, "username")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Fields: missing, Reason: "required"}
	}
	if len(password) > maxPasswordBytes {
		return nil, &ValidationError{Fields: []string{"password"}, Reason: "must be at most 72 bytes"}
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	account := &domain.Account{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleStudent,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.logger.Info("registration rejected: duplicate account", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrDuplicateAccount, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.publish(ctx, events.NewEvent(events.EventAccountRegistered, account.ID, events.AccountRegisteredPayload{
		Username: account.Username,
		Role:     account.Role,
	}))

	profile := account.Profile()
	return &profile, nil
}

// Login verifies the password for email and issues a bearer token.
// ErrAccountNotFound and ErrInvalidCredentials stay distinct here; the HTTP
// layer presents them identically.
func (s *CredentialService) Login(ctx context.Context, email, password string) (domain.IssuedToken, error) {
	email = normalizeEmail(email)

	var missing []string
	if email == "" {
		missing = append(missing, "email")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return domain.IssuedToken{}, &ValidationError{Fields: missing, Reason: "required"}
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.burnVerify(ctx, password)
			s.publish(ctx, events.NewEvent(events.EventLoginFailed, "", events.LoginFailedPayload{
				Reason: events.ReasonAccountNotFound,
			}))
			return domain.IssuedToken{}, ErrAccountNotFound
		}
		return domain.IssuedToken{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	ok, err := s.hasher.Verify(ctx, password, account.PasswordHash)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("login: %w", err)
	}
	if !ok {
		s.publish(ctx, events.NewEvent(events.EventLoginFailed, account.ID, events.LoginFailedPayload{
			Reason: events.ReasonInvalidPassword,
		}))
		return domain.IssuedToken{}, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(account.ID, account.Role)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("login: %w", err)
	}

	s.publish(ctx, events.NewEvent(events.EventLoginSucceeded, account.ID, nil))
	return token, nil
}

// Profile returns the public view of an account, consulting the cache first.
func (s *CredentialService) Profile(ctx context.Context, id string) (*domain.AccountProfile, error) {
	if s.profiles != nil {
		cached, err := s.profiles.Get(ctx, id)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("profile cache read failed", zap.String("account_id", id), zap.Error(err))
		}
	}

	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	profile := account.Profile()
	if s.profiles != nil {
		if err := s.profiles.Set(ctx, profile); err != nil {
			s.logger.Warn("profile cache write failed", zap.String("account_id", id), zap.Error(err))
		}
	}
	return &profile, nil
}

// burnVerify runs a verification against a throwaway hash so that unknown
// accounts cost as much as wrong passwords.
func (s *CredentialService) burnVerify(ctx context.Context, password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(context.WithoutCancel(ctx), "credential-service-dummy-password")
		if err != nil {
			s.logger.Warn("unable to prepare dummy hash", zap.Error(err))
			return
		}
		s.dummyHash = hash
	})
	if s.dummyHash == "" {
		return
	}
	_, _ = s.hasher.Verify(ctx, password, s.dummyHash)
}

func (s *CredentialService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
