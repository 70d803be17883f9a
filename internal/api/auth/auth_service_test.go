package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stashly/stashly-api/config"
	"github.com/stashly/stashly-api/internal/types"
)

// fakeClock lets tests move through the lockout window and OTP lifetime
// without sleeping.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type MockAuthRepo struct {
	mock.Mock
}

func (m *MockAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.UserAuth, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*types.UserAuth), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.UserAuth, error) {
	args := m.Called(ctx, userID)
	if u := args.Get(0); u != nil {
		return u.(*types.UserAuth), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthRepo) CreateUser(ctx context.Context, username, email, passwordHash string) (*types.UserAuth, error) {
	args := m.Called(ctx, username, email, passwordHash)
	if u := args.Get(0); u != nil {
		return u.(*types.UserAuth), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockAuthRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockAuthRepo) RecordLoginFailure(ctx context.Context, userID uuid.UUID, failedAt time.Time) error {
	args := m.Called(ctx, userID, failedAt)
	return args.Error(0)
}

func (m *MockAuthRepo) ClearLoginFailures(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockAuthRepo) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, newHash string) error {
	args := m.Called(ctx, userID, newHash)
	return args.Error(0)
}

// countingHasher is a deterministic hasher that counts Verify calls, so tests
// can assert that locked-out attempts never reach password verification.
type countingHasher struct {
	verifyCalls int
}

func (h *countingHasher) Hash(password string) (string, error) {
	return "digest:" + password, nil
}

func (h *countingHasher) Verify(password, digest string) bool {
	h.verifyCalls++
	return digest == "digest:"+password
}

type stubTokenIssuer struct{}

func (stubTokenIssuer) Issue(userID, username, email string) (string, error) {
	return "signed-token", nil
}

func (stubTokenIssuer) ExpiresIn() int { return 3600 }

type recordingSender struct {
	email string
	code  string
	ttl   time.Duration
	calls int
	err   error
}

func (s *recordingSender) SendOTP(_ context.Context, email, code string, ttl time.Duration) error {
	s.calls++
	s.email, s.code, s.ttl = email, code, ttl
	return s.err
}

type serviceFixture struct {
	svc        *AuthServiceImpl
	repo       *MockAuthRepo
	hasher     *countingHasher
	challenges *CacheChallengeStore
	sender     *recordingSender
	clock      *fakeClock
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	repo := new(MockAuthRepo)
	hasher := &countingHasher{}
	challenges := NewCacheChallengeStore(10 * time.Minute)
	sender := &recordingSender{}
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	cfg := config.AuthConfig{
		FailureThreshold:    3,
		LockoutWindow:       60 * time.Second,
		OTPLength:           6,
		OTPTTL:              10 * time.Minute,
		AllowedEmailDomains: []string{".com", ".org", ".in"},
		PasswordMinLength:   8,
		PasswordMaxLength:   16,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewAuthService(repo, hasher, stubTokenIssuer{}, challenges, sender, clock, cfg, logger)
	return &serviceFixture{svc: svc, repo: repo, hasher: hasher, challenges: challenges, sender: sender, clock: clock}
}

func (f *serviceFixture) user(attempts int, lastFailedAgo time.Duration) *types.UserAuth {
	u := &types.UserAuth{
		ID:                  uuid.New(),
		Username:            "gopher",
		Email:               "gopher@example.com",
		PasswordHash:        "digest:Sup3r$ecret",
		IsActive:            true,
		FailedLoginAttempts: attempts,
	}
	if attempts > 0 {
		at := f.clock.Now().Add(-lastFailedAgo)
		u.LastFailedLoginAt = &at
	}
	return u
}

func TestAuthServiceRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newServiceFixture(t)
		created := f.user(0, 0)
		f.repo.On("EmailExists", mock.Anything, "gopher@example.com").Return(false, nil)
		f.repo.On("UsernameExists", mock.Anything, "gopher").Return(false, nil)
		f.repo.On("CreateUser", mock.Anything, "gopher", "gopher@example.com", "digest:Sup3r$ecret").
			Return(created, nil)

		got, err := f.svc.Register(ctx, types.RegisterRequest{
			Username:        "gopher",
			Email:           "Gopher@Example.com",
			Password:        "Sup3r$ecret",
			ConfirmPassword: "Sup3r$ecret",
		})
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, "gopher", got.Username)
		f.repo.AssertExpectations(t)
	})

	t.Run("PasswordMismatchWritesNothing", func(t *testing.T) {
		f := newServiceFixture(t)

		_, err := f.svc.Register(ctx, types.RegisterRequest{
			Username:        "gopher",
			Email:           "gopher@example.com",
			Password:        "Sup3r$ecret",
			ConfirmPassword: "Sup3r$ecrets",
		})
		assert.ErrorIs(t, err, types.ErrPasswordMismatch)
		f.repo.AssertNotCalled(t, "EmailExists", mock.Anything, mock.Anything)
		f.repo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("MissingFields", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.svc.Register(ctx, types.RegisterRequest{Username: "gopher"})
		assert.ErrorIs(t, err, types.ErrValidation)
	})

	t.Run("DisallowedEmailDomain", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.svc.Register(ctx, types.RegisterRequest{
			Username:        "gopher",
			Email:           "gopher@example.net",
			Password:        "Sup3r$ecret",
			ConfirmPassword: "Sup3r$ecret",
		})
		assert.ErrorIs(t, err, types.ErrValidation)
		f.repo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		f := newServiceFixture(t)
		f.repo.On("EmailExists", mock.Anything, "gopher@example.com").Return(true, nil)

		_, err := f.svc.Register(ctx, types.RegisterRequest{
			Username:        "gopher",
			Email:           "gopher@example.com",
			Password:        "Sup3r$ecret",
			ConfirmPassword: "Sup3r$ecret",
		})
		assert.ErrorIs(t, err, types.ErrConflict)
		f.repo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("InsertRaceStillConflicts", func(t *testing.T) {
		f := newServiceFixture(t)
		f.repo.On("EmailExists", mock.Anything, "gopher@example.com").Return(false, nil)
		f.repo.On("UsernameExists", mock.Anything, "gopher").Return(false, nil)
		f.repo.On("CreateUser", mock.Anything, "gopher", "gopher@example.com", mock.Anything).
			Return(nil, types.ErrConflict)

		_, err := f.svc.Register(ctx, types.RegisterRequest{
			Username:        "gopher",
			Email:           "gopher@example.com",
			Password:        "Sup3r$ecret",
			ConfirmPassword: "Sup3r$ecret",
		})
		assert.ErrorIs(t, err, types.ErrConflict)
	})
}

func TestAuthServiceLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newServiceFixture(t)
		user := f.user(0, 0)
		f.repo.On("GetUserByEmail", mock.Anything, "gopher@example.com").Return(user, nil)
		f.repo.On("ClearLoginFailures", mock.Anything, user.ID).Return(nil)

		resp, err := f.svc.Login(ctx, types.LoginRequest{Email: "gopher@example.com", Password: "Sup3r$ecret"})
		require.NoError(t, err)
		assert.Equal(t, "signed-token", resp.AccessToken)
		assert.Equal(t, 3600, resp.ExpiresIn)
		assert.Equal(t, user.ID, resp.UserID)
		f.repo.AssertExpectations(t)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		f := newServiceFixture(t)
		f.repo.On("GetUserByEmail", mock.Anything, "nobody@example.com").Return(nil, types.ErrNotFound)

		_, err := f.svc.Login(ctx, types.LoginRequest{Email: "nobody@example.com", Password: "whatever"})
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})

	t.Run("InactiveAccount", func(t *testing.T) {
		f := newServiceFixture(t)
		user := f.user(0, 0)
		user.IsActive = false
		f.repo.On("GetUserByEmail", mock.Anything, "gopher@example.com").Return(user, nil)

		_, err := f.svc.Login(ctx, types.LoginRequest{Email: "gopher@example.com", Password: "Sup3r$ecret"})
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
		assert.Zero(t, f.hasher.verifyCalls)
	})

	t.Run("WrongPasswordRecordsFailure", func(t *testing.T) {
		f := newServiceFixture(t)
		user := f.user(1, 5*time.Second)
		f.repo.On("GetUserByEmail", mock.Anything, "gopher@example.com").Return(user, nil)
		f.repo.On("RecordLoginFailure", mock.Anything, user.ID, f.clock.Now()).Return(nil)

		_, err := f.svc.Login(ctx, types.LoginRequest{Email: "gopher@example.com", Password: "wrong"})
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
		f.repo.AssertExpectations(t)
		f.repo.AssertNotCalled(t, "ClearLoginFailures", mock.Anything, mock.Anything)
	})

	t.Run("LockedRefusesWithoutVerifying", func(t *testing.T) {
		f := newServiceFixture(t)
		user := f.user(3, 10*time.Second)
		f.repo.On("GetUserByEmail", mock.Anything, "gopher@example.com").Return(user, nil)

		// Even the correct password is refused while locked.
		_, err := f.svc.Login(ctx, types.LoginRequest{Email: "gopher@example.com", Password: "Sup3r$ecret"})

		var locked *types.AccountLockedError
		require.ErrorAs(t, err, &locked)
		assert.ErrorIs(t, err, types.ErrAccountLocked)
		assert.Equal(t, 50, locked.RetryAfter)
		assert.Zero(t, f.hasher.verifyCalls)
		f.repo.AssertNotCalled(t, "RecordLoginFailure", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ThreeFailuresLockTheAccount", func(t *testing.T) {
		f := newServiceFixture(t)
		user := f.user(0, 0)
		f.repo.On("GetUserByEmail", mock.Anything, "gopher@example.com").Return(user, nil)
		f.repo.On("RecordLoginFailure", mock.Anything, user.ID, mock.Anything).Return(nil)

		for i := 0; i < 3; i++ {
			_, err := f.svc.Login(ctx, types.LoginRequest{Email: "gopher@example.com", Password: "wrong"})
			assert.ErrorIs(t, err, types.ErrUnauthenticated)
			// Mirror what the repository write did.
			at := f.clock.Now()
			user.FailedLoginAttempts++
			user.LastFailedLoginAt = &at
			f.clock.Advance(time.Second)
		}

		_, err := f.svc.Login(ctx, types.LoginRequest{Email: "gopher@example.com", Password: "Sup3r$ecret"})
		assert.ErrorIs(t, err, types.ErrAccountLocked)
		f.repo.AssertNumberOfCalls(t, "RecordLoginFailure", 3)
	})

	t.Run("WindowExpiryUnlocks", func(t *testing.T) {
		f := newServiceFixture(t)
		user := f.user(3, 61*time.Second)
		f.repo.On("GetUserByEmail", mock.Anything, "gopher@example.com").Return(user, nil)
		f.repo.On("ClearLoginFailures", mock.Anything, user.ID).Return(nil)

		resp, err := f.svc.Login(ctx, types.LoginRequest{Email: "gopher@example.com", Password: "Sup3r$ecret"})
		require.NoError(t, err)
		assert.Equal(t, "signed-token", resp.AccessToken)
		// The expired-window branch persists the reset once; the success path
		// must not write it a second time.
		f.repo.AssertNumberOfCalls(t, "ClearLoginFailures", 1)
	})

	t.Run("WindowExpiryStillCountsWrongPassword", func(t *testing.T) {
		f := newServiceFixture(t)
		user := f.user(3, 2*time.Minute)
		f.repo.On("GetUserByEmail", mock.Anything, "gopher@example.com").Return(user, nil)
		f.repo.On("ClearLoginFailures", mock.Anything, user.ID).Return(nil)
		f.repo.On("RecordLoginFailure", mock.Anything, user.ID, mock.Anything).Return(nil)

		_, err := f.svc.Login(ctx, types.LoginRequest{Email: "gopher@example.com", Password: "wrong"})
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
		f.repo.AssertNumberOfCalls(t, "ClearLoginFailures", 1)
		f.repo.AssertNumberOfCalls(t, "RecordLoginFailure", 1)
	})
}

func TestAuthServicePasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("RequestUnknownEmail", func(t *testing.T) {
		f := newServiceFixture(t)
		f.repo.On("GetUserByEmail", mock.Anything, "nobody@example.com").Return(nil, types.ErrNotFound)

		err := f.svc.RequestPasswordReset(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, types.ErrNotFound)
		assert.Zero(t, f.sender.calls)
	})

	t.Run("RequestDeliversCode", func(t *testing.T) {
		f := newServiceFixture(t)
		user := f.user(0, 0)
		f.repo.On("GetUserByEmail", mock.Anything, "gopher@example.com").Return(user, nil)

		err := f.svc.RequestPasswordReset(ctx, "Gopher@Example.com")
		require.NoError(t, err)
		assert.Equal(t, 1, f.sender.calls)
		assert.Equal(t, user.Email, f.sender.email)
		assert.Len(t, f.sender.code, 6)
		assert.Equal(t, 10*time.Minute, f.sender.ttl)

		challenge, err := f.challenges.Get("gopher@example.com")
		require.NoError(t, err)
		assert.Equal(t, f.sender.code, challenge.Code)
		assert.True(t, challenge.ExpiresAt.Equal(f.clock.Now().Add(10*time.Minute)))
	})

	t.Run("RepeatedRequestReplacesChallenge", func(t *testing.T) {
		f := newServiceFixture(t)
		user := f.user(0, 0)
		f.repo.On("GetUserByEmail", mock.Anything, "gopher@example.com").Return(user, nil)

		require.NoError(t, f.svc.RequestPasswordReset(ctx, "gopher@example.com"))
		first := f.sender.code
		require.NoError(t, f.svc.RequestPasswordReset(ctx, "gopher@example.com"))

		challenge, err := f.challenges.Get("gopher@example.com")
		require.NoError(t, err)
		assert.Equal(t, f.sender.code, challenge.Code)
		// The first code is dead even in the unlikely event of a collision.
		if first != f.sender.code {
			assert.NotEqual(t, first, challenge.Code)
		}
	})

	t.Run("ResetSuccessConsumesChallenge", func(t *testing.T) {
		f := newServiceFixture(t)
		user := f.user(0, 0)
		f.repo.On("GetUserByEmail", mock.Anything, "gopher@example.com").Return(user, nil)
		f.repo.On("UpdatePasswordHash", mock.Anything, user.ID, "digest:N3w$ecret!").Return(nil)

		require.NoError(t, f.svc.RequestPasswordReset(ctx, "gopher@example.com"))
		code := f.sender.code

		err := f.svc.ResetPassword(ctx, "gopher@example.com", code, "N3w$ecret!", "N3w$ecret!")
		require.NoError(t, err)
		f.repo.AssertExpectations(t)

		_, err = f.challenges.Get("gopher@example.com")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("WrongCodeLeavesPasswordAndChallenge", func(t *testing.T) {
		f := newServiceFixture(t)
		user := f.user(0, 0)
		f.repo.On("GetUserByEmail", mock.Anything, "gopher@example.com").Return(user, nil)

		require.NoError(t, f.svc.RequestPasswordReset(ctx, "gopher@example.com"))

		err := f.svc.ResetPassword(ctx, "gopher@example.com", "000000", "N3w$ecret!", "N3w$ecret!")
		if f.sender.code == "000000" {
			t.Skip("generated code collided with the deliberately wrong one")
		}
		assert.ErrorIs(t, err, types.ErrInvalidOTP)
		f.repo.AssertNotCalled(t, "UpdatePasswordHash", mock.Anything, mock.Anything, mock.Anything)

		// A wrong guess does not consume the challenge.
		_, err = f.challenges.Get("gopher@example.com")
		assert.NoError(t, err)
	})

	t.Run("ExpiredCode", func(t *testing.T) {
		f := newServiceFixture(t)
		user := f.user(0, 0)
		f.repo.On("GetUserByEmail", mock.Anything, "gopher@example.com").Return(user, nil)

		require.NoError(t, f.svc.RequestPasswordReset(ctx, "gopher@example.com"))
		code := f.sender.code
		f.clock.Advance(10*time.Minute + time.Second)

		err := f.svc.ResetPassword(ctx, "gopher@example.com", code, "N3w$ecret!", "N3w$ecret!")
		assert.ErrorIs(t, err, types.ErrInvalidOTP)
		f.repo.AssertNotCalled(t, "UpdatePasswordHash", mock.Anything, mock.Anything, mock.Anything)

		// Expiry consumes the challenge.
		_, err = f.challenges.Get("gopher@example.com")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("NoLiveChallenge", func(t *testing.T) {
		f := newServiceFixture(t)

		err := f.svc.ResetPassword(ctx, "gopher@example.com", "123456", "N3w$ecret!", "N3w$ecret!")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("MismatchBeforeAnyLookup", func(t *testing.T) {
		f := newServiceFixture(t)

		err := f.svc.ResetPassword(ctx, "gopher@example.com", "123456", "N3w$ecret!", "different")
		assert.ErrorIs(t, err, types.ErrPasswordMismatch)
		f.repo.AssertNotCalled(t, "GetUserByEmail", mock.Anything, mock.Anything)
	})

	t.Run("WeakNewPassword", func(t *testing.T) {
		f := newServiceFixture(t)

		err := f.svc.ResetPassword(ctx, "gopher@example.com", "123456", "weakpass", "weakpass")
		assert.ErrorIs(t, err, types.ErrValidation)
	})
}

func TestAuthServiceGetMe(t *testing.T) {
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		f := newServiceFixture(t)
		user := f.user(0, 0)
		f.repo.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)

		got, err := f.svc.GetMe(ctx, user.ID.String())
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.Equal(t, "gopher", got.Username)
	})

	t.Run("MalformedID", func(t *testing.T) {
		f := newServiceFixture(t)

		_, err := f.svc.GetMe(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
		f.repo.AssertNotCalled(t, "GetUserByID", mock.Anything, mock.Anything)
	})

	t.Run("Gone", func(t *testing.T) {
		f := newServiceFixture(t)
		id := uuid.New()
		f.repo.On("GetUserByID", mock.Anything, id).Return(nil, types.ErrNotFound)

		_, err := f.svc.GetMe(ctx, id.String())
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}
