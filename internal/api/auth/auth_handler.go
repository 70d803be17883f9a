package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/stashly/stashly-api/internal/api"
	"github.com/stashly/stashly-api/internal/types"
)

type AuthHandler struct {
	service AuthService
	logger  *slog.Logger
}

func NewAuthHandler(service AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		logger:  logger,
		service: service,
	}
}

// Register godoc
// @Summary      Register a new account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body types.RegisterRequest true "registration input"
// @Success      201 {object} types.PublicUser
// @Failure      400 {object} types.Response
// @Failure      409 {object} types.Response
// @Router       /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, user)
}

// Login godoc
// @Summary      Authenticate and obtain an access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body types.LoginRequest true "credentials"
// @Success      200 {object} types.LoginResponse
// @Failure      401 {object} types.Response
// @Failure      429 {object} types.Response
// @Router       /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		var locked *types.AccountLockedError
		if errors.As(err, &locked) {
			w.Header().Set("Retry-After", strconv.Itoa(locked.RetryAfter))
			api.ErrorResponse(w, r, http.StatusTooManyRequests, locked.Error())
			return
		}
		h.writeAuthError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// ForgotPassword godoc
// @Summary      Request a password reset one-time code
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body types.ForgotPasswordRequest true "account email"
// @Success      202 {object} types.Response
// @Failure      404 {object} types.Response
// @Router       /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req types.ForgotPasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "email is required")
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusAccepted, types.Response{
		Success: true,
		Message: "Password reset code sent",
	})
}

// ResetPassword godoc
// @Summary      Complete a password reset with a one-time code
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body types.ResetPasswordRequest true "reset input"
// @Success      204
// @Failure      400 {object} types.Response
// @Failure      401 {object} types.Response
// @Failure      404 {object} types.Response
// @Router       /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req types.ResetPasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.OTP == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "email and otp are required")
		return
	}

	err := h.service.ResetPassword(r.Context(), req.Email, req.OTP, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

// Me godoc
// @Summary      Get the authenticated account's profile
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} types.PublicUser
// @Failure      401 {object} types.Response
// @Router       /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := h.service.GetMe(r.Context(), userID)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, user)
}

// writeAuthError maps the typed error kinds onto HTTP statuses.
func (h *AuthHandler) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, types.ErrPasswordMismatch):
		api.ErrorResponse(w, r, http.StatusBadRequest, "passwords do not match")
	case errors.Is(err, types.ErrValidation):
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrConflict):
		api.ErrorResponse(w, r, http.StatusConflict, "user already exists")
	case errors.Is(err, types.ErrNotFound):
		api.ErrorResponse(w, r, http.StatusNotFound, "resource not found")
	case errors.Is(err, types.ErrInvalidOTP):
		api.ErrorResponse(w, r, http.StatusUnauthorized, "invalid or expired one-time code")
	case errors.Is(err, types.ErrUnauthenticated):
		api.ErrorResponse(w, r, http.StatusUnauthorized, "invalid credentials")
	default:
		h.logger.ErrorContext(r.Context(), "Unhandled auth error", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "internal server error")
	}
}
