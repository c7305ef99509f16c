package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"authapi/internal/model"
)

// ErrUserNotFound is returned when no user matches a lookup.
var ErrUserNotFound = errors.New("user not found")

// DuplicateError reports a unique constraint violation on Field.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return "duplicate value for " + e.Field
}

// DuplicateField implements the boundary's duplicate-key contract.
func (e *DuplicateError) DuplicateField() string {
	return e.Field
}

// ErrDuplicateEmail is returned by Create when the email is already registered.
var ErrDuplicateEmail = &DuplicateError{Field: "email"}

// Columns hidden from default reads.
const (
	columnPassword     = "password_hash"
	columnOTP          = "otp"
	columnOTPExpiresAt = "otp_expires_at"
)

// FindOption selects hidden columns to include in a read.
type FindOption func(*findOptions)

type findOptions struct {
	password bool
	otp      bool
}

// WithPassword includes the password hash.
func WithPassword() FindOption {
	return func(o *findOptions) { o.password = true }
}

// WithOTP includes the OTP code and expiry.
func WithOTP() FindOption {
	return func(o *findOptions) { o.otp = true }
}

func omitted(opts []FindOption) []string {
	var o findOptions
	for _, opt := range opts {
		opt(&o)
	}
	var cols []string
	if !o.password {
		cols = append(cols, columnPassword)
	}
	if !o.otp {
		cols = append(cols, columnOTP, columnOTPExpiresAt)
	}
	return cols
}

// ListQuery filters and paginates List.
type ListQuery struct {
	Page       int
	Limit      int
	SearchTerm string
	Role       model.Role
	IsVerified *bool
}

// Normalize applies defaults and bounds.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	q.SearchTerm = strings.TrimSpace(q.SearchTerm)
	return q
}

// UserRepository defines persistence operations on users.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uuid.UUID, opts ...FindOption) (*model.User, error)
	FindByEmail(ctx context.Context, email string, opts ...FindOption) (*model.User, error)
	// FindByEmailAndOTP matches email, code and an unexpired challenge in one query.
	FindByEmailAndOTP(ctx context.Context, email, otp string, now time.Time) (*model.User, error)
	UpdateByID(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*model.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, q ListQuery) ([]model.User, int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository builds a GORM-backed repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID, opts ...FindOption) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Omit(omitted(opts)...).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string, opts ...FindOption) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Omit(omitted(opts)...).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *userRepository) FindByEmailAndOTP(ctx context.Context, email, otp string, now time.Time) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Omit(columnPassword).
		Where("email = ? AND otp = ? AND otp_expires_at > ?", email, otp, now).
		First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *userRepository) UpdateByID(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*model.User, error) {
	if err := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.User{}).Error
}

func (r *userRepository) List(ctx context.Context, q ListQuery) ([]model.User, int64, error) {
	q = q.Normalize()
	filter := func(db *gorm.DB) *gorm.DB {
		if q.SearchTerm != "" {
			like := "%" + q.SearchTerm + "%"
			db = db.Where("(first_name LIKE ? OR last_name LIKE ? OR email LIKE ?)", like, like, like)
		}
		if q.Role != "" {
			db = db.Where("role = ?", q.Role)
		}
		if q.IsVerified != nil {
			db = db.Where("is_verified = ?", *q.IsVerified)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []model.User
	err := r.db.WithContext(ctx).
		Omit(omitted(nil)...).
		Scopes(filter).
		Order("created_at DESC").
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&users).Error
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return err
}
