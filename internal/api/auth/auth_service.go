package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/stashly/stashly-api/app/metrics"
	"github.com/stashly/stashly-api/config"
	"github.com/stashly/stashly-api/internal/types"
)

var _ AuthService = (*AuthServiceImpl)(nil)

// AuthService defines the business logic contract for account authentication.
type AuthService interface {
	// Register validates and creates a new account. No store write happens on
	// any validation failure.
	Register(ctx context.Context, req types.RegisterRequest) (*types.PublicUser, error)

	// Login authenticates a user, enforcing the progressive lockout policy,
	// and returns an access token with its configured lifetime.
	Login(ctx context.Context, req types.LoginRequest) (*types.LoginResponse, error)

	// RequestPasswordReset issues a one-time code to the account's email.
	// A repeated request replaces any live challenge.
	RequestPasswordReset(ctx context.Context, email string) error

	// ResetPassword swaps the credential digest after verifying the one-time
	// code, consuming the challenge.
	ResetPassword(ctx context.Context, email, otp, newPassword, confirmPassword string) error

	// GetMe returns the public profile of the authenticated account.
	GetMe(ctx context.Context, userID string) (*types.PublicUser, error)
}

// OTPSender delivers one-time codes out of band. Delivery is a collaborator
// concern; the service only hands over the code and its lifetime.
type OTPSender interface {
	SendOTP(ctx context.Context, email, code string, ttl time.Duration) error
}

// AuthServiceImpl provides the implementation for AuthService.
type AuthServiceImpl struct {
	logger     *slog.Logger
	repo       AuthRepo
	hasher     CredentialHasher
	tokens     TokenIssuer
	challenges ChallengeStore
	sender     OTPSender
	clock      Clock
	policy     LockoutPolicy
	cfg        config.AuthConfig
}

// NewAuthService creates a new auth service instance. A nil clock falls back
// to the system clock.
func NewAuthService(
	repo AuthRepo,
	hasher CredentialHasher,
	tokens TokenIssuer,
	challenges ChallengeStore,
	sender OTPSender,
	clock Clock,
	cfg config.AuthConfig,
	logger *slog.Logger,
) *AuthServiceImpl {
	if clock == nil {
		clock = SystemClock()
	}
	return &AuthServiceImpl{
		logger:     logger,
		repo:       repo,
		hasher:     hasher,
		tokens:     tokens,
		challenges: challenges,
		sender:     sender,
		clock:      clock,
		policy:     NewLockoutPolicy(cfg.FailureThreshold, cfg.LockoutWindow),
		cfg:        cfg,
	}
}

// Register validates the registration input in order (first failure wins),
// then hashes the password and persists the new account.
func (s *AuthServiceImpl) Register(ctx context.Context, req types.RegisterRequest) (*types.PublicUser, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Register")
	defer span.End()

	l := s.logger.With(slog.String("method", "Register"), slog.String("username", req.Username))

	if req.Username == "" || req.Email == "" || req.Password == "" || req.ConfirmPassword == "" {
		return nil, fmt.Errorf("%w: username, email, password and confirm_password are required", types.ErrValidation)
	}
	if req.Password != req.ConfirmPassword {
		return nil, types.ErrPasswordMismatch
	}
	if err := validateUsername(req.Username); err != nil {
		return nil, err
	}
	email := normalizeEmail(req.Email)
	if err := validateEmail(email, s.cfg.AllowedEmailDomains); err != nil {
		return nil, err
	}
	if err := validatePassword(req.Password, s.cfg); err != nil {
		return nil, err
	}

	taken, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		l.ErrorContext(ctx, "Failed to check email uniqueness", slog.Any("error", err))
		return nil, fmt.Errorf("error checking email: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("email already registered: %w", types.ErrConflict)
	}
	taken, err = s.repo.UsernameExists(ctx, req.Username)
	if err != nil {
		l.ErrorContext(ctx, "Failed to check username uniqueness", slog.Any("error", err))
		return nil, fmt.Errorf("error checking username: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("username already registered: %w", types.ErrConflict)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, req.Username, email, hash)
	if err != nil {
		// A concurrent registration can still win the race past the
		// uniqueness pre-checks; the unique index is the arbiter.
		if errors.Is(err, types.ErrConflict) {
			return nil, fmt.Errorf("user already registered: %w", types.ErrConflict)
		}
		l.ErrorContext(ctx, "Failed to create user", slog.Any("error", err))
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	metrics.Get().RegistrationsTotal.Add(ctx, 1)
	l.InfoContext(ctx, "User registered", slog.String("userID", user.ID.String()))

	return &types.PublicUser{ID: user.ID, Username: user.Username, Email: user.Email}, nil
}

// Login runs the attempt through the lockout policy before any hash work, so
// a locked account costs nothing and times the same whatever the password.
func (s *AuthServiceImpl) Login(ctx context.Context, req types.LoginRequest) (*types.LoginResponse, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Login")
	defer span.End()

	start := s.clock.Now()
	l := s.logger.With(slog.String("method", "Login"), slog.String("email", req.Email))
	defer func() {
		metrics.Get().LoginDurationSeconds.Record(ctx, s.clock.Now().Sub(start).Seconds())
	}()

	user, err := s.repo.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			// Never reveal which factor was wrong.
			s.countLogin(ctx, "invalid_credentials")
			return nil, types.ErrUnauthenticated
		}
		l.ErrorContext(ctx, "Failed to load account", slog.Any("error", err))
		return nil, fmt.Errorf("error loading account: %w", err)
	}
	if !user.IsActive {
		s.countLogin(ctx, "invalid_credentials")
		return nil, types.ErrUnauthenticated
	}

	now := s.clock.Now()
	state := LoginState{Attempts: user.FailedLoginAttempts, LastFailedAt: user.LastFailedLoginAt}
	decision := s.policy.Evaluate(state, now)
	if !decision.Allowed {
		s.countLogin(ctx, "locked")
		metrics.Get().AccountLockoutsTotal.Add(ctx, 1)
		l.WarnContext(ctx, "Login refused by lockout policy",
			slog.Int("attempts", state.Attempts),
			slog.Int("retry_after", decision.RetryAfter))
		return nil, &types.AccountLockedError{RetryAfter: decision.RetryAfter}
	}
	if decision.WindowExpired {
		// Persist the natural reset before touching the password.
		if err := s.repo.ClearLoginFailures(ctx, user.ID); err != nil {
			l.ErrorContext(ctx, "Failed to clear expired failure window", slog.Any("error", err))
			return nil, fmt.Errorf("error updating login state: %w", err)
		}
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		if err := s.repo.RecordLoginFailure(ctx, user.ID, now); err != nil {
			l.ErrorContext(ctx, "Failed to record login failure", slog.Any("error", err))
			return nil, fmt.Errorf("error updating login state: %w", err)
		}
		s.countLogin(ctx, "invalid_credentials")
		return nil, types.ErrUnauthenticated
	}

	if !decision.WindowExpired {
		// Exactly one failure-state write per attempt; the expired-window
		// branch already persisted the cleared state.
		if err := s.repo.ClearLoginFailures(ctx, user.ID); err != nil {
			l.ErrorContext(ctx, "Failed to clear login failures", slog.Any("error", err))
			return nil, fmt.Errorf("error updating login state: %w", err)
		}
	}

	token, err := s.tokens.Issue(user.ID.String(), user.Username, user.Email)
	if err != nil {
		l.ErrorContext(ctx, "Failed to issue access token", slog.Any("error", err))
		return nil, fmt.Errorf("error issuing token: %w", err)
	}

	s.countLogin(ctx, "success")
	l.InfoContext(ctx, "Login successful", slog.String("userID", user.ID.String()))

	return &types.LoginResponse{
		UserID:      user.ID,
		Username:    user.Username,
		Email:       user.Email,
		AccessToken: token,
		ExpiresIn:   s.tokens.ExpiresIn(),
	}, nil
}

// RequestPasswordReset creates (or replaces) the account's reset challenge
// and hands the code to the delivery collaborator.
func (s *AuthServiceImpl) RequestPasswordReset(ctx context.Context, email string) error {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "RequestPasswordReset")
	defer span.End()

	l := s.logger.With(slog.String("method", "RequestPasswordReset"))

	email = normalizeEmail(email)
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return types.ErrNotFound
		}
		l.ErrorContext(ctx, "Failed to load account", slog.Any("error", err))
		return fmt.Errorf("error loading account: %w", err)
	}

	code, err := GenerateOTP(s.cfg.OTPLength)
	if err != nil {
		return err
	}

	ttl := s.cfg.OTPTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	challenge := types.PasswordResetChallenge{
		Email:     email,
		Code:      code,
		ExpiresAt: s.clock.Now().Add(ttl),
	}
	if err := s.challenges.Put(challenge); err != nil {
		l.ErrorContext(ctx, "Failed to store reset challenge", slog.Any("error", err))
		return fmt.Errorf("error storing reset challenge: %w", err)
	}

	if err := s.sender.SendOTP(ctx, user.Email, code, ttl); err != nil {
		l.ErrorContext(ctx, "Failed to deliver one-time code", slog.Any("error", err))
		return fmt.Errorf("error delivering one-time code: %w", err)
	}

	metrics.Get().PasswordResetRequestsTotal.Add(ctx, 1)
	l.InfoContext(ctx, "Password reset challenge issued", slog.String("userID", user.ID.String()))
	return nil
}

// ResetPassword verifies the one-time code and swaps the credential digest.
// On any failure the stored password is untouched, and a merely-wrong code
// leaves the challenge live until its own expiry.
func (s *AuthServiceImpl) ResetPassword(ctx context.Context, email, otp, newPassword, confirmPassword string) error {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "ResetPassword")
	defer span.End()

	l := s.logger.With(slog.String("method", "ResetPassword"))

	if newPassword != confirmPassword {
		return types.ErrPasswordMismatch
	}
	if err := validatePassword(newPassword, s.cfg); err != nil {
		return err
	}

	email = normalizeEmail(email)
	challenge, err := s.challenges.Get(email)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return types.ErrNotFound
		}
		return fmt.Errorf("error loading reset challenge: %w", err)
	}
	if s.clock.Now().After(challenge.ExpiresAt) {
		_ = s.challenges.Delete(email)
		return types.ErrInvalidOTP
	}
	if challenge.Code != otp {
		return types.ErrInvalidOTP
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return types.ErrNotFound
		}
		l.ErrorContext(ctx, "Failed to load account", slog.Any("error", err))
		return fmt.Errorf("error loading account: %w", err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}
	if err := s.repo.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		l.ErrorContext(ctx, "Failed to update password hash", slog.Any("error", err))
		return fmt.Errorf("error updating password: %w", err)
	}

	// Consume the challenge only after the swap is durable.
	if err := s.challenges.Delete(email); err != nil {
		l.WarnContext(ctx, "Failed to delete consumed reset challenge", slog.Any("error", err))
	}

	metrics.Get().PasswordResetsTotal.Add(ctx, 1)
	l.InfoContext(ctx, "Password reset completed", slog.String("userID", user.ID.String()))
	return nil
}

// GetMe resolves the authenticated account's public profile.
func (s *AuthServiceImpl) GetMe(ctx context.Context, userID string) (*types.PublicUser, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "GetMe")
	defer span.End()

	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, types.ErrUnauthenticated
	}
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrNotFound
		}
		s.logger.ErrorContext(ctx, "Failed to load account", slog.Any("error", err))
		return nil, fmt.Errorf("error loading account: %w", err)
	}
	return &types.PublicUser{ID: user.ID, Username: user.Username, Email: user.Email}, nil
}

func (s *AuthServiceImpl) countLogin(ctx context.Context, outcome string) {
	metrics.Get().LoginAttemptsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
}
