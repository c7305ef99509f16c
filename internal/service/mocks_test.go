package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"authapi/internal/mail"
	"authapi/internal/model"
	"authapi/internal/repository"
)

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	if args.Error(0) == nil && user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID, _ ...repository.FindOption) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string, _ ...repository.FindOption) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmailAndOTP(ctx context.Context, email, otp string, now time.Time) (*model.User, error) {
	args := m.Called(ctx, email, otp, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) UpdateByID(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*model.User, error) {
	args := m.Called(ctx, id, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserRepository) List(ctx context.Context, q repository.ListQuery) ([]model.User, int64, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]model.User), args.Get(1).(int64), args.Error(2)
}

// memUserRepository is an in-memory UserRepository for flow tests.
type memUserRepository struct {
	mu    sync.Mutex
	users map[uuid.UUID]*model.User
}

func newMemUserRepository() *memUserRepository {
	return &memUserRepository{users: make(map[uuid.UUID]*model.User)}
}

func clone(u *model.User) *model.User {
	cp := *u
	return &cp
}

func (r *memUserRepository) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	if err := user.BeforeCreate(nil); err != nil {
		return err
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	r.users[user.ID] = clone(user)
	return nil
}

func (r *memUserRepository) FindByID(_ context.Context, id uuid.UUID, _ ...repository.FindOption) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return clone(u), nil
}

func (r *memUserRepository) FindByEmail(_ context.Context, email string, _ ...repository.FindOption) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return clone(u), nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *memUserRepository) FindByEmailAndOTP(_ context.Context, email, otp string, now time.Time) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email && u.HasOTP() && *u.OTP == otp && u.OTPExpiresAt.After(now) {
			return clone(u), nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *memUserRepository) UpdateByID(_ context.Context, id uuid.UUID, fields map[string]interface{}) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	for k, v := range fields {
		switch k {
		case "first_name":
			u.FirstName = v.(string)
		case "last_name":
			u.LastName = v.(string)
		case "avatar":
			if v == nil {
				u.Avatar = nil
				continue
			}
			s := v.(string)
			u.Avatar = &s
		case "is_verified":
			u.IsVerified = v.(bool)
		case "password_hash":
			u.PasswordHash = v.(string)
		case "otp":
			u.OTP = v.(*string)
		case "otp_expires_at":
			u.OTPExpiresAt = v.(*time.Time)
		default:
			panic("unexpected column " + k)
		}
	}
	u.UpdatedAt = time.Now()
	return clone(u), nil
}

func (r *memUserRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

func (r *memUserRepository) List(_ context.Context, q repository.ListQuery) ([]model.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []model.User
	for _, u := range r.users {
		if q.Role != "" && u.Role != q.Role {
			continue
		}
		if q.SearchTerm != "" && !strings.Contains(u.Email, q.SearchTerm) {
			continue
		}
		matched = append(matched, *u)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Email < matched[j].Email })
	total := int64(len(matched))
	start := (q.Page - 1) * q.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// seed stores user directly, bypassing the service.
func (r *memUserRepository) seed(t *testing.T, user *model.User) *model.User {
	t.Helper()
	require.NoError(t, r.Create(context.Background(), user))
	return user
}

func (r *memUserRepository) get(t *testing.T, email string) *model.User {
	t.Helper()
	u, err := r.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	return u
}

type sentMail struct {
	to       string
	template mail.Template
	payload  mail.OTPPayload
}

// fakeMailer records templated sends and can be told to fail.
type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (m *fakeMailer) SendTemplate(_ context.Context, to string, name mail.Template, p mail.OTPPayload) mail.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, template: name, payload: p})
	if m.fail {
		return mail.Result{Success: false, Error: "smtp: connection refused"}
	}
	return mail.Result{Success: true, MessageID: uuid.NewString()}
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *fakeMailer) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no mail was sent")
	return m.sent[len(m.sent)-1]
}

// recordingEvents captures auth outcomes.
type recordingEvents struct {
	mu     sync.Mutex
	events []string
	emails []string
}

func (r *recordingEvents) AuthEvent(event, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event+":"+outcome)
}

func (r *recordingEvents) EmailSent(template string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := "ok"
	if !ok {
		status = "failed"
	}
	r.emails = append(r.emails, template+":"+status)
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
