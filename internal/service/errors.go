package service

import (
	apperrors "authapi/internal/errors"
)

// Domain failures returned by the services. Each carries a stable machine code.
var (
	ErrUserAlreadyExists = apperrors.Conflict("User already exists",
		apperrors.FieldError{Path: "email", Message: "Email is already registered"}).WithCode("USER_ALREADY_EXISTS")
	ErrUserNotFound = apperrors.NotFound("User not found",
		apperrors.FieldError{Path: "email", Message: "User not found"}).WithCode("USER_NOT_FOUND")
	ErrEmailNotVerified = apperrors.Unauthorized("Please verify your email before logging in",
		apperrors.FieldError{Path: "email", Message: "Email is not verified"}).WithCode("EMAIL_NOT_VERIFIED")
	ErrInvalidCredentials = apperrors.Unauthorized("Invalid credentials",
		apperrors.FieldError{Path: "password", Message: "Invalid credentials"}).WithCode("INVALID_CREDENTIALS")
	ErrInvalidOTP = apperrors.Unauthorized("Invalid OTP",
		apperrors.FieldError{Path: "otp", Message: "Invalid OTP"}).WithCode("INVALID_OTP")
	ErrOTPExpired = apperrors.Unauthorized("OTP has expired",
		apperrors.FieldError{Path: "otp", Message: "OTP has expired"}).WithCode("OTP_EXPIRED")
	ErrInvalidOrExpiredOTP = apperrors.BadRequest("Invalid or expired OTP",
		apperrors.FieldError{Path: "otp", Message: "Invalid or expired OTP"}).WithCode("INVALID_OR_EXPIRED_OTP")
	ErrMissingResetToken = apperrors.Unauthorized("Missing reset token",
		apperrors.FieldError{Path: "authorization", Message: "Missing Bearer token"}).WithCode("MISSING_TOKEN")
	ErrInvalidResetToken = apperrors.Unauthorized("Invalid token",
		apperrors.FieldError{Path: "authorization", Message: "Invalid token"}).WithCode("INVALID_TOKEN")
	ErrResetTokenExpired = apperrors.Unauthorized("Token expired",
		apperrors.FieldError{Path: "authorization", Message: "Token expired"}).WithCode("TOKEN_EXPIRED")
	ErrInvalidTokenPurpose = apperrors.Forbidden("Invalid token purpose",
		apperrors.FieldError{Path: "authorization", Message: "Token is not a password reset token"}).WithCode("INVALID_TOKEN_PURPOSE")
	ErrVerificationEmailFailed = apperrors.EmailDeliveryFailed("Failed to send verification email")
	ErrResetEmailFailed        = apperrors.EmailDeliveryFailed("Failed to send password reset email")
	ErrAccountNotVerified      = apperrors.Forbidden("Please verify your email first",
		apperrors.FieldError{Path: "user", Message: "Account is not verified"}).WithCode("ACCOUNT_NOT_VERIFIED")
	ErrPasswordTooLong = apperrors.UnprocessableEntity("Validation failed",
		apperrors.FieldError{Path: "password", Message: "password must be at most 72 bytes"}).WithCode("PASSWORD_TOO_LONG")
	ErrNewPasswordTooLong = apperrors.UnprocessableEntity("Validation failed",
		apperrors.FieldError{Path: "newPassword", Message: "newPassword must be at most 72 bytes"}).WithCode("PASSWORD_TOO_LONG")
	ErrBlankFirstName = apperrors.UnprocessableEntity("Validation failed",
		apperrors.FieldError{Path: "firstName", Message: "firstName must not be blank"}).WithCode("BLANK_FIRST_NAME")
	ErrBlankLastName = apperrors.UnprocessableEntity("Validation failed",
		apperrors.FieldError{Path: "lastName", Message: "lastName must not be blank"}).WithCode("BLANK_LAST_NAME")
	ErrNoProfileChanges = apperrors.BadRequest("No updatable fields provided",
		apperrors.FieldError{Path: "body", Message: "Provide firstName, lastName or avatar"}).WithCode("NO_CHANGES")
)
