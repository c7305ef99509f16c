package auth

import (
	"time"

	"github.com/google/uuid"

	"authapi/internal/model"
)

// Identity is the authenticated caller resolved from an access token.
type Identity struct {
	UserID    uuid.UUID
	Email     string
	Role      model.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HasRole reports whether the identity holds one of roles.
// An empty list matches any identity.
func (i *Identity) HasRole(roles ...model.Role) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}
