package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"authapi/internal/auth"
	"authapi/internal/mail"
	"authapi/internal/model"
	"authapi/internal/otp"
	"authapi/internal/repository"
)

// Auth event names recorded by the service.
const (
	EventRegister       = "register"
	EventVerifyEmail    = "verify_email"
	EventLogin          = "login"
	EventForgotPassword = "forgot_password"
	EventResendOTP      = "resend_otp"
	EventVerifyOTP      = "verify_otp"
	EventResetPassword  = "reset_password"
)

// TokenIssuer signs and checks the tokens the auth flows hand out.
type TokenIssuer interface {
	IssueAccessToken(userID uuid.UUID, email string, role model.Role) (string, error)
	IssueRefreshToken(userID uuid.UUID, email string, role model.Role) (string, error)
	IssueResetToken(email string, role model.Role) (string, error)
	VerifyResetToken(token string) (*auth.ResetClaims, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// Mailer delivers templated mail.
type Mailer interface {
	SendTemplate(ctx context.Context, to string, name mail.Template, p mail.OTPPayload) mail.Result
}

// EventRecorder receives auth outcomes and email attempts.
type EventRecorder interface {
	AuthEvent(event, outcome string)
	EmailSent(template string, ok bool)
}

type nopRecorder struct{}

func (nopRecorder) AuthEvent(string, string) {}
func (nopRecorder) EmailSent(string, bool)   {}

// RegisterInput is the payload for Register.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Avatar    *string
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	AccessToken      string            `json:"accessToken"`
	RefreshToken     string            `json:"refreshToken"`
	TokenType        string            `json:"tokenType"`
	ExpiresIn        int64             `json:"expiresIn"`
	RefreshExpiresIn int64             `json:"refreshExpiresIn"`
	User             *model.PublicUser `json:"user"`
}

// AuthService handles authentication operations.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*model.PublicUser, error)
	VerifyEmail(ctx context.Context, email, code string) (*model.PublicUser, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	ForgotPassword(ctx context.Context, email string) error
	ResendOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) (resetToken string, err error)
	ResetPassword(ctx context.Context, resetToken, newPassword string) error
}

// AuthOption customises the auth service.
type AuthOption func(*authService)

// WithClock overrides the time source used for OTP lookups.
func WithClock(now func() time.Time) AuthOption {
	return func(s *authService) { s.now = now }
}

// WithRecorder attaches an event recorder.
func WithRecorder(r EventRecorder) AuthOption {
	return func(s *authService) { s.events = r }
}

// WithLogger attaches a logger.
func WithLogger(log *zap.Logger) AuthOption {
	return func(s *authService) { s.log = log }
}

type authService struct {
	users  repository.UserRepository
	tokens TokenIssuer
	hasher auth.PasswordHasher
	otps   *otp.Engine
	mailer Mailer
	events EventRecorder
	log    *zap.Logger
	now    func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	users repository.UserRepository,
	tokens TokenIssuer,
	hasher auth.PasswordHasher,
	otps *otp.Engine,
	mailer Mailer,
	opts ...AuthOption,
) AuthService {
	s := &authService{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		otps:   otps,
		mailer: mailer,
		events: nopRecorder{},
		log:    zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an unverified user and emails a verification code.
// A failed delivery removes the user again.
func (s *authService) Register(ctx context.Context, in RegisterInput) (*model.PublicUser, error) {
	email := normalizeEmail(in.Email)

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		s.events.AuthEvent(EventRegister, "conflict")
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("check user existence: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return nil, ErrPasswordTooLong
	}
	if err != nil {
		return nil, err
	}

	user := &model.User{
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleUser,
	}
	if in.Avatar != nil && strings.TrimSpace(*in.Avatar) != "" {
		avatar := strings.TrimSpace(*in.Avatar)
		user.Avatar = &avatar
	}
	code, err := s.otps.Issue(user)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			s.events.AuthEvent(EventRegister, "conflict")
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if !s.sendCode(ctx, user, mail.TemplateOTP, code) {
		if err := s.users.Delete(ctx, user.ID); err != nil {
			s.log.Error("rollback of unverified user failed", zap.String("user_id", user.ID.String()), zap.Error(err))
			return nil, fmt.Errorf("rollback user after failed email: %w", err)
		}
		s.events.AuthEvent(EventRegister, "email_failed")
		return nil, ErrVerificationEmailFailed
	}

	s.events.AuthEvent(EventRegister, "success")
	s.log.Info("user registered", zap.String("user_id", user.ID.String()))
	return user.Public(), nil
}

// VerifyEmail marks the user verified when code matches the pending challenge.
func (s *authService) VerifyEmail(ctx context.Context, email, code string) (*model.PublicUser, error) {
	user, err := s.findByEmail(ctx, normalizeEmail(email), repository.WithOTP())
	if err != nil {
		return nil, err
	}

	if err := s.otps.Verify(user, code); err != nil {
		s.events.AuthEvent(EventVerifyEmail, "failure")
		if errors.Is(err, otp.ErrExpired) {
			return nil, ErrOTPExpired
		}
		return nil, ErrInvalidOTP
	}

	user.IsVerified = true
	user.ClearOTP()
	fields := user.OTPFields()
	fields["is_verified"] = true

	updated, err := s.users.UpdateByID(ctx, user.ID, fields)
	if err != nil {
		return nil, s.notFoundOr(err, "verify user")
	}

	s.events.AuthEvent(EventVerifyEmail, "success")
	return updated.Public(), nil
}

// Login checks the credentials of a verified user and issues a token pair.
func (s *authService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.findByEmail(ctx, normalizeEmail(email), repository.WithPassword())
	if err != nil {
		s.events.AuthEvent(EventLogin, "not_found")
		return nil, err
	}
	if !user.IsVerified {
		s.events.AuthEvent(EventLogin, "not_verified")
		return nil, ErrEmailNotVerified
	}
	if !s.hasher.Compare(password, user.PasswordHash) {
		s.events.AuthEvent(EventLogin, "bad_credentials")
		return nil, ErrInvalidCredentials
	}

	access, err := s.tokens.IssueAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	s.events.AuthEvent(EventLogin, "success")
	return &LoginResult{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		ExpiresIn:        int64(s.tokens.AccessTTL().Seconds()),
		RefreshExpiresIn: int64(s.tokens.RefreshTTL().Seconds()),
		User:             user.Public(),
	}, nil
}

// ForgotPassword emails a reset code. Unknown emails succeed without side effects.
func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrUserNotFound) {
		s.events.AuthEvent(EventForgotPassword, "unknown_email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}

	if err := s.reissue(ctx, user, mail.TemplatePasswordReset); err != nil {
		s.events.AuthEvent(EventForgotPassword, "email_failed")
		if errors.Is(err, errDeliveryFailed) {
			return ErrResetEmailFailed
		}
		return err
	}
	s.events.AuthEvent(EventForgotPassword, "success")
	return nil
}

// ResendOTP issues a fresh verification code to an unverified user.
// Unknown and already verified emails succeed silently.
func (s *authService) ResendOTP(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrUserNotFound) {
		s.events.AuthEvent(EventResendOTP, "unknown_email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if user.IsVerified {
		s.events.AuthEvent(EventResendOTP, "already_verified")
		return nil
	}

	if err := s.reissue(ctx, user, mail.TemplateResendOTP); err != nil {
		s.events.AuthEvent(EventResendOTP, "email_failed")
		if errors.Is(err, errDeliveryFailed) {
			return ErrVerificationEmailFailed
		}
		return err
	}
	s.events.AuthEvent(EventResendOTP, "success")
	return nil
}

// VerifyOTP exchanges a valid reset code for a reset token. The code stays in place
// until the password is actually reset.
func (s *authService) VerifyOTP(ctx context.Context, email, code string) (string, error) {
	user, err := s.users.FindByEmailAndOTP(ctx, normalizeEmail(email), code, s.now())
	if errors.Is(err, repository.ErrUserNotFound) {
		s.events.AuthEvent(EventVerifyOTP, "failure")
		return "", ErrInvalidOrExpiredOTP
	}
	if err != nil {
		return "", fmt.Errorf("find user by otp: %w", err)
	}

	token, err := s.tokens.IssueResetToken(user.Email, user.Role)
	if err != nil {
		return "", fmt.Errorf("issue reset token: %w", err)
	}
	s.events.AuthEvent(EventVerifyOTP, "success")
	return token, nil
}

// ResetPassword sets a new password for the subject of resetToken and clears any pending code.
func (s *authService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if resetToken == "" {
		return ErrMissingResetToken
	}

	claims, err := s.tokens.VerifyResetToken(resetToken)
	if err != nil {
		s.events.AuthEvent(EventResetPassword, "bad_token")
		switch {
		case errors.Is(err, auth.ErrTokenInvalidPurpose):
			return ErrInvalidTokenPurpose
		case errors.Is(err, auth.ErrTokenExpired):
			return ErrResetTokenExpired
		default:
			return ErrInvalidResetToken
		}
	}

	user, err := s.findByEmail(ctx, claims.Email)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return ErrNewPasswordTooLong
	}
	if err != nil {
		return err
	}
	user.ClearOTP()
	fields := user.OTPFields()
	fields["password_hash"] = hash

	if _, err := s.users.UpdateByID(ctx, user.ID, fields); err != nil {
		return s.notFoundOr(err, "update password")
	}
	s.events.AuthEvent(EventResetPassword, "success")
	return nil
}

var errDeliveryFailed = errors.New("email delivery failed")

// reissue stores a fresh code on user and mails it with template name.
func (s *authService) reissue(ctx context.Context, user *model.User, name mail.Template) error {
	code, err := s.otps.Issue(user)
	if err != nil {
		return err
	}
	if _, err := s.users.UpdateByID(ctx, user.ID, user.OTPFields()); err != nil {
		return s.notFoundOr(err, "store otp")
	}
	if !s.sendCode(ctx, user, name, code) {
		return errDeliveryFailed
	}
	return nil
}

func (s *authService) sendCode(ctx context.Context, user *model.User, name mail.Template, code string) bool {
	res := s.mailer.SendTemplate(ctx, user.Email, name, mail.OTPPayload{
		Name:             user.FirstName,
		OTP:              code,
		ExpiresInMinutes: int(s.otps.TTL().Minutes()),
	})
	s.events.EmailSent(string(name), res.Success)
	if !res.Success {
		s.log.Warn("email delivery failed",
			zap.String("template", string(name)),
			zap.String("user_id", user.ID.String()),
			zap.String("error", res.Error),
		)
	}
	return res.Success
}

func (s *authService) findByEmail(ctx context.Context, email string, opts ...repository.FindOption) (*model.User, error) {
	user, err := s.users.FindByEmail(ctx, email, opts...)
	if err != nil {
		return nil, s.notFoundOr(err, "find user")
	}
	return user, nil
}

func (s *authService) notFoundOr(err error, op string) error {
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrUserNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
