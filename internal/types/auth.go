package types

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// UserAuth is the credential-bearing view of an account, as loaded from the
// store. Transitions over the failure-tracking fields are computed as pure
// functions over this snapshot and persisted explicitly.
type UserAuth struct {
	ID                  uuid.UUID  `json:"id" example:"d290f1ee-6c54-4b01-90e6-d701748f0851"` // Unique identifier (UUID).
	Username            string     `json:"username" example:"johndoe"`                        // Unique username.
	Email               string     `json:"email" example:"john.doe@example.com"`              // Unique email address used for login.
	PasswordHash        string     `json:"-"`                                                 // Credential digest (never exposed).
	IsActive            bool       `json:"is_active"`
	FailedLoginAttempts int        `json:"-"` // Consecutive failures; reset on success or window expiry.
	LastFailedLoginAt   *time.Time `json:"-"` // Set iff FailedLoginAttempts > 0.
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// PublicUser is the registration response view. No credential material.
type PublicUser struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

// RegisterRequest represents the expected JSON body for user registration.
type RegisterRequest struct {
	Username        string `json:"username" example:"johndoe"`
	Email           string `json:"email" example:"john.doe@example.com"`
	Password        string `json:"password" example:"Str0ngP@ss"`
	ConfirmPassword string `json:"confirm_password" example:"Str0ngP@ss"`
}

// LoginRequest represents the expected JSON body for user login.
type LoginRequest struct {
	Email    string `json:"email" example:"john.doe@example.com"`
	Password string `json:"password" example:"Str0ngP@ss"`
}

// LoginResponse represents the successful JSON response after login.
type LoginResponse struct {
	UserID      uuid.UUID `json:"user_id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	AccessToken string    `json:"access_token" example:"eyJhbGciOiJI..."`
	ExpiresIn   int       `json:"expires_in" example:"3600"` // Configured token lifetime in seconds.
}

// ForgotPasswordRequest starts the OTP reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" example:"john.doe@example.com"`
}

// ResetPasswordRequest completes the OTP reset flow.
type ResetPasswordRequest struct {
	Email           string `json:"email" example:"john.doe@example.com"`
	OTP             string `json:"otp" example:"482916"`
	NewPassword     string `json:"new_password" example:"N3wStr0ng@Pass"`
	ConfirmPassword string `json:"confirm_password" example:"N3wStr0ng@Pass"`
}

// PasswordResetChallenge is the ephemeral OTP state, keyed by lowercase email.
// At most one live challenge per email; a new request replaces the old one.
type PasswordResetChallenge struct {
	Email     string
	Code      string
	ExpiresAt time.Time
}

// Claims represents the custom claims included in the JWT access token.
type Claims struct {
	UserID               string `json:"uid"`
	Username             string `json:"usr,omitempty"`
	Email                string `json:"eml"`
	Scope                string `json:"scope,omitempty"`
	jwt.RegisteredClaims        // Embed standard claims (ExpiresAt, IssuedAt, Subject, etc.).
}

// Response represents a generic API response for success or error messages.
type Response struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message,omitempty" example:"Operation successful"`
	Error   string `json:"error,omitempty" example:"Resource not found"`
}
