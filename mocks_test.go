package users_test

import (
	"context"
	"sync"
	"time"

	users "github.com/goliatone/go-users"
	"github.com/google/uuid"
)

// fakeUserStore is an in-memory UserStore with the same semantics as
// the bun repository: case insensitive email uniqueness and a single
// bootstrap admin slot, both enforced under one lock so concurrent
// callers see exactly what the database constraints would give them.
type fakeUserStore struct {
	mu             sync.Mutex
	byID           map[uuid.UUID]*users.User
	bootstrapTaken bool
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byID: map[uuid.UUID]*users.User{},
	}
}

func cloneUser(u *users.User) *users.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func (s *fakeUserStore) findByEmailLocked(email string) *users.User {
	normalized := users.NormalizeEmail(email)
	for _, u := range s.byID {
		if u.Email == normalized {
			return u
		}
	}
	return nil
}

func (s *fakeUserStore) GetByEmail(_ context.Context, email string) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u := s.findByEmailLocked(email); u != nil {
		return cloneUser(u), nil
	}
	return nil, users.ErrAccountNotFound
}

func (s *fakeUserStore) FindByID(_ context.Context, id uuid.UUID) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.byID[id]; ok {
		return cloneUser(u), nil
	}
	return nil, users.ErrAccountNotFound
}

func (s *fakeUserStore) CountByRole(_ context.Context, role users.UserRole) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, u := range s.byID {
		if u.Role == role {
			count++
		}
	}
	return count, nil
}

func (s *fakeUserStore) insertLocked(user *users.User) (*users.User, error) {
	if s.findByEmailLocked(user.Email) != nil {
		return nil, users.ErrEmailInUse
	}

	record := cloneUser(user)
	record.Email = users.NormalizeEmail(record.Email)
	record.EnsureStatus()
	if record.Role == "" {
		record.Role = users.RoleUser
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	now := time.Now()
	record.CreatedAt = &now
	record.UpdatedAt = &now

	s.byID[record.ID] = record
	return cloneUser(record), nil
}

func (s *fakeUserStore) Register(_ context.Context, user *users.User) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(user)
}

func (s *fakeUserStore) RegisterBootstrapAdmin(_ context.Context, user *users.User) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bootstrapTaken {
		return nil, users.ErrAdminCreationForbidden
	}

	user.Role = users.RoleAdmin
	user.UserType = nil
	user.IsBootstrapAdmin = true

	record, err := s.insertLocked(user)
	if err != nil {
		return nil, err
	}

	s.bootstrapTaken = true
	return record, nil
}

func (s *fakeUserStore) TrackSuccessfulLogin(_ context.Context, user *users.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.byID[user.ID]; ok {
		now := time.Now()
		u.LastLoginAt = &now
		user.LastLoginAt = &now
	}
	return nil
}

func (s *fakeUserStore) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return users.ErrAccountNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (s *fakeUserStore) UpdateProfile(_ context.Context, id uuid.UUID, fullName, email string) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, users.ErrAccountNotFound
	}

	if existing := s.findByEmailLocked(email); existing != nil && existing.ID != id {
		return nil, users.ErrEmailInUse
	}

	u.FullName = fullName
	u.Email = users.NormalizeEmail(email)
	return cloneUser(u), nil
}

func (s *fakeUserStore) UpdateStatus(_ context.Context, id uuid.UUID, status users.UserStatus) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, users.ErrAccountNotFound
	}

	u.Status = status
	return cloneUser(u), nil
}

func (s *fakeUserStore) ListPage(_ context.Context, page, limit int) ([]*users.User, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]*users.User, 0, len(s.byID))
	for _, u := range s.byID {
		all = append(all, cloneUser(u))
	}

	total := len(all)
	start := (page - 1) * limit
	if start >= total {
		return []*users.User{}, total, nil
	}

	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

// delete removes an account directly, bypassing the service
func (s *fakeUserStore) delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
}

var _ users.UserStore = (*fakeUserStore)(nil)

// recordingSink collects activity events for assertions
type recordingSink struct {
	mu     sync.Mutex
	events []users.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, event users.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) byType(t users.ActivityEventType) []users.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []users.ActivityEvent
	for _, e := range r.events {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

func newTestTokenService(ttl time.Duration) *users.TokenServiceImpl {
	svc, err := users.NewTokenService(&users.Config{
		SigningSecret: "test-signing-key",
		TokenExpiry:   ttl,
	}, nil)
	if err != nil {
		panic(err)
	}
	return svc
}

// newTestAccounts wires an accounts service against the fake store with
// the cheapest bcrypt cost so the suite stays fast.
func newTestAccounts(store *fakeUserStore, opts ...users.AccountsOption) *users.Accounts {
	base := []users.AccountsOption{
		users.WithAccountsHasher(users.NewPasswordHasher(4)),
	}
	return users.NewAccounts(store, newTestTokenService(time.Hour), append(base, opts...)...)
}
