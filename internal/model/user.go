package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the authorization level of a user.
type Role string

const (
	RoleUser       Role = "USER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleOwner      Role = "OWNER"
)

// Roles lists every known role.
var Roles = []Role{RoleUser, RoleAdmin, RoleSuperAdmin, RoleOwner}

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// User represents a registered account.
type User struct {
	ID           uuid.UUID  `json:"id" gorm:"type:char(36);primaryKey"`
	FirstName    string     `json:"firstName" gorm:"size:50;not null"`
	LastName     string     `json:"lastName" gorm:"size:50;not null"`
	Email        string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string     `json:"-" gorm:"column:password_hash;size:255;not null"` // Never expose in JSON
	Role         Role       `json:"role" gorm:"size:20;not null;default:'USER';index"`
	IsVerified   bool       `json:"isVerified" gorm:"not null;default:false;index"`
	OTP          *string    `json:"-" gorm:"column:otp;size:6"`
	OTPExpiresAt *time.Time `json:"-" gorm:"column:otp_expires_at"`
	Avatar       *string    `json:"avatar,omitempty" gorm:"size:512"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// BeforeCreate sets UUID and default role before creating the record.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

// SetOTP stores a challenge. Code and expiry are always written together.
func (u *User) SetOTP(code string, expiresAt time.Time) {
	u.OTP = &code
	u.OTPExpiresAt = &expiresAt
}

// ClearOTP removes the active challenge.
func (u *User) ClearOTP() {
	u.OTP = nil
	u.OTPExpiresAt = nil
}

// HasOTP reports whether a challenge is pending.
func (u *User) HasOTP() bool {
	return u.OTP != nil && *u.OTP != "" && u.OTPExpiresAt != nil
}

// OTPFields returns the column values for persisting the current challenge.
func (u *User) OTPFields() map[string]interface{} {
	return map[string]interface{}{
		"otp":            u.OTP,
		"otp_expires_at": u.OTPExpiresAt,
	}
}

// PublicUser is the projection of User that is safe to return to clients.
type PublicUser struct {
	ID         uuid.UUID `json:"_id"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Email      string    `json:"email"`
	Role       Role      `json:"role"`
	Avatar     *string   `json:"avatar,omitempty"`
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Public returns the sanitized projection.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:         u.ID,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Email:      u.Email,
		Role:       u.Role,
		Avatar:     u.Avatar,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}
