package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"authapi/internal/cache"
	apperrors "authapi/internal/errors"
	"authapi/internal/model"
	"authapi/internal/repository"
)

func strPtr(s string) *string { return &s }

func TestUserService_GetProfile(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name          string
		setupMock     func(*MockUserRepository)
		expectedError error
	}{
		{
			name: "verified user",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByID", mock.Anything, id).Return(&model.User{ID: id, Email: "a@x.com", IsVerified: true}, nil)
			},
		},
		{
			name: "unverified user is forbidden",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByID", mock.Anything, id).Return(&model.User{ID: id, IsVerified: false}, nil)
			},
			expectedError: ErrAccountNotVerified,
		},
		{
			name: "missing user",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByID", mock.Anything, id).Return(nil, repository.ErrUserNotFound)
			},
			expectedError: ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockUserRepository)
			tt.setupMock(repo)
			svc := NewUserService(repo, (*cache.Client)(nil))

			profile, err := svc.GetProfile(context.Background(), id)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, profile)
			} else {
				require.NoError(t, err)
				assert.Equal(t, id, profile.ID)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestUserService_GetProfile_ReadThroughCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := cache.New(mr.Addr(), "", 0)
	defer client.Close()

	id := uuid.New()
	repo := new(MockUserRepository)
	repo.On("FindByID", mock.Anything, id).
		Return(&model.User{ID: id, FirstName: "Ada", IsVerified: true}, nil).Once()
	svc := NewUserService(repo, client)

	first, err := svc.GetProfile(context.Background(), id)
	require.NoError(t, err)
	second, err := svc.GetProfile(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, first.FirstName, second.FirstName)
	assert.True(t, mr.Exists(fmt.Sprintf("user:profile:%s", id)))
	repo.AssertNumberOfCalls(t, "FindByID", 1)
}

func TestUserService_UpdateProfile(t *testing.T) {
	mr := miniredis.RunT(t)
	client := cache.New(mr.Addr(), "", 0)
	defer client.Close()

	id := uuid.New()
	key := fmt.Sprintf("user:profile:%s", id)

	t.Run("only allowed fields are written and cache is dropped", func(t *testing.T) {
		require.NoError(t, mr.Set(key, "{}"))
		repo := new(MockUserRepository)
		repo.On("UpdateByID", mock.Anything, id, map[string]interface{}{
			"first_name": "Grace",
			"avatar":     "https://example.com/a.png",
		}).Return(&model.User{ID: id, FirstName: "Grace", IsVerified: true}, nil)

		svc := NewUserService(repo, client)
		profile, err := svc.UpdateProfile(context.Background(), id, UpdateProfileInput{
			FirstName: strPtr(" Grace "),
			Avatar:    strPtr("https://example.com/a.png"),
		})
		require.NoError(t, err)
		assert.Equal(t, "Grace", profile.FirstName)
		assert.False(t, mr.Exists(key))
		repo.AssertExpectations(t)
	})

	t.Run("empty avatar is stored as null", func(t *testing.T) {
		repo := new(MockUserRepository)
		repo.On("UpdateByID", mock.Anything, id, map[string]interface{}{"avatar": nil}).
			Return(&model.User{ID: id, IsVerified: true}, nil)

		profile, err := NewUserService(repo, client).UpdateProfile(context.Background(), id, UpdateProfileInput{
			Avatar: strPtr("   "),
		})
		require.NoError(t, err)
		assert.Nil(t, profile.Avatar)
		repo.AssertExpectations(t)
	})

	t.Run("blank names are rejected", func(t *testing.T) {
		tests := []struct {
			name string
			in   UpdateProfileInput
			want error
		}{
			{name: "first", in: UpdateProfileInput{FirstName: strPtr("   ")}, want: ErrBlankFirstName},
			{name: "last", in: UpdateProfileInput{FirstName: strPtr("Grace"), LastName: strPtr("\t ")}, want: ErrBlankLastName},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				repo := new(MockUserRepository)
				_, err := NewUserService(repo, client).UpdateProfile(context.Background(), id, tt.in)
				assert.ErrorIs(t, err, tt.want)
				assert.Equal(t, apperrors.KindUnprocessableEntity, apperrors.KindOf(err))
				repo.AssertNotCalled(t, "UpdateByID", mock.Anything, mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("empty update", func(t *testing.T) {
		repo := new(MockUserRepository)
		_, err := NewUserService(repo, client).UpdateProfile(context.Background(), id, UpdateProfileInput{})
		assert.ErrorIs(t, err, ErrNoProfileChanges)
		repo.AssertNotCalled(t, "UpdateByID", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing user", func(t *testing.T) {
		repo := new(MockUserRepository)
		repo.On("UpdateByID", mock.Anything, id, mock.Anything).Return(nil, repository.ErrUserNotFound)
		_, err := NewUserService(repo, client).UpdateProfile(context.Background(), id, UpdateProfileInput{LastName: strPtr("L")})
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestUserService_ListUsers(t *testing.T) {
	repo := newMemUserRepository()
	for i := 0; i < 25; i++ {
		repo.seed(t, &model.User{Email: fmt.Sprintf("user%02d@x.com", i), IsVerified: true, CreatedAt: time.Now()})
	}
	svc := NewUserService(repo, (*cache.Client)(nil))

	items, meta, err := svc.ListUsers(context.Background(), repository.ListQuery{Page: 3, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, items, 5)
	assert.Equal(t, &PageMeta{Page: 3, Limit: 10, Total: 25, TotalPage: 3}, meta)

	_, meta, err = svc.ListUsers(context.Background(), repository.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, meta.Page)
	assert.Equal(t, 10, meta.Limit)
}

func TestUserService_ListUsers_StoreError(t *testing.T) {
	repo := new(MockUserRepository)
	repo.On("List", mock.Anything, mock.Anything).Return(nil, int64(0), errors.New("timeout"))

	_, _, err := NewUserService(repo, (*cache.Client)(nil)).ListUsers(context.Background(), repository.ListQuery{})
	assert.Error(t, err)
}
