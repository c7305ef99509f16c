package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"authapi/internal/middleware"
	"authapi/internal/service"
)

// RefreshTokenCookie carries the refresh token set on login.
const RefreshTokenCookie = "refreshToken"

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService service.AuthService
	production  bool
}

// NewAuthHandler creates a new auth handler. In production the refresh cookie is Secure.
func NewAuthHandler(authService service.AuthService, production bool) *AuthHandler {
	return &AuthHandler{authService: authService, production: production}
}

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	FirstName string  `json:"firstName" validate:"required,min=2,max=50"`
	LastName  string  `json:"lastName" validate:"required,min=2,max=50"`
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=8,max=72"`
	Avatar    *string `json:"avatar,omitempty" validate:"omitempty,url"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// OTPRequest carries an email and the code sent to it.
type OTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

// EmailRequest carries a single email address.
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest represents a password reset request.
type ResetPasswordRequest struct {
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

// ResetTokenResponse is returned by VerifyOTP.
type ResetTokenResponse struct {
	ResetToken string `json:"resetToken"`
}

// Register godoc
// @Summary Register a new user
// @Description Creates an unverified account and emails a 6-digit verification code.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration data"
// @Success 201 {object} Response{data=model.PublicUser}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.authService.Register(c.Request().Context(), service.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Avatar:    req.Avatar,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "User registered successfully. Please check your email for OTP.", user)
}

// Login godoc
// @Summary Login
// @Description Returns an access and refresh token pair and sets the refresh token cookie.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} Response{data=service.LoginResult}
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	sameSite := http.SameSiteLaxMode
	if h.production {
		sameSite = http.SameSiteNoneMode
	}
	c.SetCookie(&http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    result.RefreshToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.production,
		SameSite: sameSite,
		MaxAge:   int(result.RefreshExpiresIn),
		Expires:  time.Now().Add(time.Duration(result.RefreshExpiresIn) * time.Second),
	})

	return respond(c, http.StatusOK, "User logged in successfully", result)
}

// VerifyEmail godoc
// @Summary Verify email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body OTPRequest true "Email and code"
// @Success 200 {object} Response{data=model.PublicUser}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Router /auth/verify-email [post]
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req OTPRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.authService.VerifyEmail(c.Request().Context(), req.Email, req.OTP)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Email verified successfully. You can now login.", user)
}

// ResendOTP godoc
// @Summary Resend verification code
// @Description Always succeeds for well-formed input so account existence is not revealed.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body EmailRequest true "Email"
// @Success 200 {object} Response
// @Failure 422 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/resend-otp [post]
func (h *AuthHandler) ResendOTP(c echo.Context) error {
	var req EmailRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.authService.ResendOTP(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "If the account exists and is unverified, a new OTP has been sent.", nil)
}

// ForgotPassword godoc
// @Summary Request a password reset code
// @Description Always succeeds for well-formed input so account existence is not revealed.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body EmailRequest true "Email"
// @Success 200 {object} Response
// @Failure 422 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req EmailRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.authService.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "If the email exists, an OTP has been sent.", nil)
}

// VerifyOTP godoc
// @Summary Exchange a reset code for a reset token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body OTPRequest true "Email and code"
// @Success 200 {object} Response{data=ResetTokenResponse}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Router /auth/verify-otp [post]
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req OTPRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	token, err := h.authService.VerifyOTP(c.Request().Context(), req.Email, req.OTP)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "OTP verified successfully", ResetTokenResponse{ResetToken: token})
}

// ResetPassword godoc
// @Summary Reset password
// @Description Requires the reset token from verify-otp as a Bearer token.
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ResetPasswordRequest true "New password"
// @Success 200 {object} Response
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	token := middleware.BearerToken(c)
	if err := h.authService.ResetPassword(c.Request().Context(), token, req.NewPassword); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Password reset successfully", nil)
}
