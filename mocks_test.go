package membership_test

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	membership "github.com/goliatone/go-membership"
	"github.com/stretchr/testify/mock"
)

// MockUserStore implements membership.UserStore
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) Find(ctx context.Context, id int64) (*membership.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*membership.User)
	return user, args.Error(1)
}

func (m *MockUserStore) FindByIdentity(ctx context.Context, identity, namespace string) (*membership.User, error) {
	args := m.Called(ctx, identity, namespace)
	user, _ := args.Get(0).(*membership.User)
	return user, args.Error(1)
}

func (m *MockUserStore) Save(ctx context.Context, user *membership.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserStore) Update(ctx context.Context, user *membership.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserStore) Delete(ctx context.Context, ids ...int64) (int, error) {
	args := m.Called(ctx, ids)
	return args.Int(0), args.Error(1)
}

func (m *MockUserStore) List(ctx context.Context, namespace string, paging membership.Paging) ([]*membership.User, error) {
	args := m.Called(ctx, namespace, paging)
	users, _ := args.Get(0).([]*membership.User)
	return users, args.Error(1)
}

// memStore is an in-memory UserStore for lifecycle scenarios. Find returns
// copies so provider-side mutations only become visible through Update, the
// way a real store behaves.
type memStore struct {
	mu    sync.Mutex
	seq   int64
	users map[int64]*membership.User
}

func newMemStore() *memStore {
	return &memStore{users: map[int64]*membership.User{}}
}

func (s *memStore) Find(ctx context.Context, id int64) (*membership.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, storeNotFound()
	}
	return cloneUser(user), nil
}

func (s *memStore) FindByIdentity(ctx context.Context, identity, namespace string) (*membership.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.Namespace != namespace {
			continue
		}
		if user.Username == identity || user.Email == identity || user.Phone == identity {
			return cloneUser(user), nil
		}
	}
	return nil, storeNotFound()
}

func (s *memStore) Save(ctx context.Context, user *membership.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == 0 {
		s.seq++
		user.ID = s.seq
	}
	if user.ID > s.seq {
		s.seq = user.ID
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *memStore) Update(ctx context.Context, user *membership.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return storeNotFound()
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *memStore) Delete(ctx context.Context, ids ...int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, id := range ids {
		if _, ok := s.users[id]; ok {
			delete(s.users, id)
			count++
		}
	}
	return count, nil
}

func (s *memStore) List(ctx context.Context, namespace string, paging membership.Paging) ([]*membership.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var users []*membership.User
	for _, user := range s.users {
		if user.Namespace == namespace {
			users = append(users, cloneUser(user))
		}
	}
	return users, nil
}

// snapshot returns the committed record, bypassing the provider.
func (s *memStore) snapshot(id int64) *membership.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneUser(s.users[id])
}

func storeNotFound() error {
	return goerrors.New("user not found", goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound)
}

func cloneUser(u *membership.User) *membership.User {
	if u == nil {
		return nil
	}

	clone := *u
	clone.PasswordQuestions = append([]string(nil), u.PasswordQuestions...)
	clone.PasswordAnswerDigests = append([]string(nil), u.PasswordAnswerDigests...)
	clone.LastInvalidAttemptAt = cloneTime(u.LastInvalidAttemptAt)
	clone.ApprovedAt = cloneTime(u.ApprovedAt)
	clone.SuspendedAt = cloneTime(u.SuspendedAt)
	clone.PasswordExpiresAt = cloneTime(u.PasswordExpiresAt)
	return &clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// capturingSink records activity events for assertions.
type capturingSink struct {
	mu     sync.Mutex
	events []membership.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt membership.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) types() []membership.ActivityEventType {
	c.mu.Lock()
	defer c.mu.Unlock()

	var types []membership.ActivityEventType
	for _, evt := range c.events {
		types = append(types, evt.EventType)
	}
	return types
}

// stubValidator answers schema/action checks with a fixed verdict.
type stubValidator struct {
	allow bool
}

func (v *stubValidator) Validate(ctx context.Context, schemaID, actionID string, identity membership.Identity) bool {
	return v.allow
}

// testIdentity implements membership.Identity
type testIdentity struct {
	id        string
	username  string
	namespace string
}

func (t testIdentity) ID() string        { return t.id }
func (t testIdentity) Username() string  { return t.username }
func (t testIdentity) Namespace() string { return t.namespace }
