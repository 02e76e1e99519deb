// Package account implements user accounts, cookie sessions, subscription
// plans, and per-user usage metering. The HTTP layer stays anonymous when no
// store is configured; every operation here takes the store through the Store
// interface so tests and single-binary deployments can run on the in-memory
// implementation.
package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Plan is a subscription tier. The tier decides the per-request character
// ceiling; anonymous callers get the free ceiling.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// CharLimit returns the per-request character ceiling for the plan. Unknown
// plan strings fall back to the free ceiling rather than letting a corrupt
// row grant unlimited input.
func (p Plan) CharLimit() int {
	switch p {
	case PlanPro:
		return 10000
	case PlanEnterprise:
		return 50000
	default:
		return 5000
	}
}

// Valid reports whether p names a known tier.
func (p Plan) Valid() bool {
	return p == PlanFree || p == PlanPro || p == PlanEnterprise
}

// SessionTTL is how long a login cookie stays valid.
const SessionTTL = 24 * time.Hour

var (
	ErrNotFound       = errors.New("account: not found")
	ErrEmailTaken     = errors.New("account: email already registered")
	ErrBadCredentials = errors.New("account: invalid email or password")
	ErrSessionExpired = errors.New("account: session expired")
	ErrUnknownPlan    = errors.New("account: unknown plan")
)

// User is one registered account.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash []byte
	Plan         Plan
	CreatedAt    time.Time
}

// Usage is a user's lifetime consumption counters.
type Usage struct {
	CharsUsed int64 `json:"chars_used"`
	APICalls  int64 `json:"api_calls"`
}

// Store persists users, sessions, and usage counters.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	UserByEmail(ctx context.Context, email string) (*User, error)
	UserByID(ctx context.Context, id string) (*User, error)
	SetPlan(ctx context.Context, email string, plan Plan) error

	// AddUsage increments counters with a plain update; concurrent
	// increments may interleave and that imprecision is accepted.
	AddUsage(ctx context.Context, userID string, chars, calls int64) error
	Usage(ctx context.Context, userID string) (Usage, error)

	CreateSession(ctx context.Context, token, userID string, expires time.Time) error
	SessionUser(ctx context.Context, token string) (*User, error)
	DeleteSession(ctx context.Context, token string) error
}

// Service wraps a Store with password hashing and session issuance.
type Service struct {
	store Store
}

// NewService creates a Service. store must not be nil.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Signup registers a new account on the free plan and returns it with a
// fresh session token.
func (s *Service) Signup(ctx context.Context, email, name, password string) (*User, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}
	u := &User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Plan:         PlanFree,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, "", err
	}
	token, err := s.issueSession(ctx, u.ID)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Login verifies credentials and returns the user with a fresh session
// token. A missing user and a wrong password return the same error.
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, error) {
	u, err := s.store.UserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, "", ErrBadCredentials
	}
	if err != nil {
		return nil, "", err
	}
	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
		return nil, "", ErrBadCredentials
	}
	token, err := s.issueSession(ctx, u.ID)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Logout invalidates a session token. Unknown tokens are a no-op.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.store.DeleteSession(ctx, token)
}

// Authenticate resolves a session token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	return s.store.SessionUser(ctx, token)
}

// Subscribe moves a user to a new plan.
func (s *Service) Subscribe(ctx context.Context, email string, plan Plan) error {
	if !plan.Valid() {
		return fmt.Errorf("%q: %w", plan, ErrUnknownPlan)
	}
	return s.store.SetPlan(ctx, email, plan)
}

// RecordUsage charges one synthesis call against the user's counters.
func (s *Service) RecordUsage(ctx context.Context, userID string, chars int) error {
	return s.store.AddUsage(ctx, userID, int64(chars), 1)
}

// Usage returns the user's lifetime counters.
func (s *Service) Usage(ctx context.Context, userID string) (Usage, error) {
	return s.store.Usage(ctx, userID)
}

func (s *Service) issueSession(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()
	if err := s.store.CreateSession(ctx, token, userID, time.Now().UTC().Add(SessionTTL)); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}
