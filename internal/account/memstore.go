package account

import (
	"context"
	"fmt"
	"sync"
	"time"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory Store for tests and single-binary deployments
// that run without a database. Data does not survive a restart.
type MemStore struct {
	mu       sync.RWMutex
	byID     map[string]*User
	byEmail  map[string]*User
	usage    map[string]*Usage
	sessions map[string]memSession
}

type memSession struct {
	userID  string
	expires time.Time
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		byID:     make(map[string]*User),
		byEmail:  make(map[string]*User),
		usage:    make(map[string]*Usage),
		sessions: make(map[string]memSession),
	}
}

func (s *MemStore) CreateUser(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[u.Email]; ok {
		return fmt.Errorf("%s: %w", u.Email, ErrEmailTaken)
	}
	cp := *u
	s.byID[u.ID] = &cp
	s.byEmail[u.Email] = &cp
	s.usage[u.ID] = &Usage{}
	return nil
}

func (s *MemStore) UserByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemStore) UserByID(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemStore) SetPlan(_ context.Context, email string, plan Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byEmail[email]
	if !ok {
		return fmt.Errorf("%s: %w", email, ErrNotFound)
	}
	u.Plan = plan
	return nil
}

func (s *MemStore) AddUsage(_ context.Context, userID string, chars, calls int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usage[userID]
	if !ok {
		return fmt.Errorf("%s: %w", userID, ErrNotFound)
	}
	u.CharsUsed += chars
	u.APICalls += calls
	return nil
}

func (s *MemStore) Usage(_ context.Context, userID string) (Usage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.usage[userID]
	if !ok {
		return Usage{}, fmt.Errorf("%s: %w", userID, ErrNotFound)
	}
	return *u, nil
}

func (s *MemStore) CreateSession(_ context.Context, token, userID string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = memSession{userID: userID, expires: expires}
	return nil
}

func (s *MemStore) SessionUser(ctx context.Context, token string) (*User, error) {
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if time.Now().After(sess.expires) {
		_ = s.DeleteSession(ctx, token)
		return nil, ErrSessionExpired
	}
	return s.UserByID(ctx, sess.userID)
}

func (s *MemStore) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}
