package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"authapi/internal/model"
	"authapi/internal/repository"
)

const profileCacheTTL = 5 * time.Minute

// ProfileCache is the read-through cache for profiles. Implementations fail safe.
type ProfileCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// UpdateProfileInput holds the fields a user may change on their own profile.
// Nil fields are left untouched.
type UpdateProfileInput struct {
	FirstName *string
	LastName  *string
	Avatar    *string
}

// PageMeta describes one page of a listing.
type PageMeta struct {
	Page      int   `json:"page"`
	Limit     int   `json:"limit"`
	Total     int64 `json:"total"`
	TotalPage int   `json:"totalPage"`
}

// UserService exposes profile operations.
type UserService interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*model.PublicUser, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, in UpdateProfileInput) (*model.PublicUser, error)
	ListUsers(ctx context.Context, q repository.ListQuery) ([]*model.PublicUser, *PageMeta, error)
}

type userService struct {
	repo  repository.UserRepository
	cache ProfileCache
}

// NewUserService builds a UserService with repository and cache.
func NewUserService(repo repository.UserRepository, cache ProfileCache) UserService {
	return &userService{repo: repo, cache: cache}
}

func (s *userService) cacheKey(id uuid.UUID) string {
	return fmt.Sprintf("user:profile:%s", id)
}

// GetProfile returns the caller's own profile. Unverified accounts are refused.
func (s *userService) GetProfile(ctx context.Context, id uuid.UUID) (*model.PublicUser, error) {
	if data, _ := s.cache.Get(ctx, s.cacheKey(id)); data != nil {
		var cached model.PublicUser
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	user, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !user.IsVerified {
		return nil, ErrAccountNotVerified
	}

	profile := user.Public()
	// Only verified profiles are cached; verification never reverts.
	if payload, err := json.Marshal(profile); err == nil {
		_ = s.cache.Set(ctx, s.cacheKey(id), payload, profileCacheTTL)
	}
	return profile, nil
}

func (s *userService) UpdateProfile(ctx context.Context, id uuid.UUID, in UpdateProfileInput) (*model.PublicUser, error) {
	fields := make(map[string]interface{}, 3)
	if in.FirstName != nil {
		name := strings.TrimSpace(*in.FirstName)
		if name == "" {
			return nil, ErrBlankFirstName
		}
		fields["first_name"] = name
	}
	if in.LastName != nil {
		name := strings.TrimSpace(*in.LastName)
		if name == "" {
			return nil, ErrBlankLastName
		}
		fields["last_name"] = name
	}
	if in.Avatar != nil {
		// An empty avatar clears the stored one.
		if avatar := strings.TrimSpace(*in.Avatar); avatar != "" {
			fields["avatar"] = avatar
		} else {
			fields["avatar"] = nil
		}
	}
	if len(fields) == 0 {
		return nil, ErrNoProfileChanges
	}

	user, err := s.repo.UpdateByID(ctx, id, fields)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	_ = s.cache.Delete(ctx, s.cacheKey(id))
	return user.Public(), nil
}

func (s *userService) ListUsers(ctx context.Context, q repository.ListQuery) ([]*model.PublicUser, *PageMeta, error) {
	q = q.Normalize()
	users, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, nil, fmt.Errorf("list users: %w", err)
	}

	items := make([]*model.PublicUser, 0, len(users))
	for i := range users {
		items = append(items, users[i].Public())
	}
	meta := &PageMeta{
		Page:      q.Page,
		Limit:     q.Limit,
		Total:     total,
		TotalPage: int(math.Ceil(float64(total) / float64(q.Limit))),
	}
	return items, meta, nil
}
