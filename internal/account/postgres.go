package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Store = (*PostgresStore)(nil)

const ddlAccounts = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT         PRIMARY KEY,
    email         TEXT         NOT NULL UNIQUE,
    name          TEXT         NOT NULL DEFAULT '',
    password_hash BYTEA        NOT NULL,
    plan          TEXT         NOT NULL DEFAULT 'free',
    chars_used    BIGINT       NOT NULL DEFAULT 0,
    api_calls     BIGINT       NOT NULL DEFAULT 0,
    created_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sessions (
    token      TEXT         PRIMARY KEY,
    user_id    TEXT         NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    expires_at TIMESTAMPTZ  NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions (expires_at);
`

// PostgresStore is the production Store. All operations are safe for
// concurrent use through the shared pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database at dsn and ensures the schema
// exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("account store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("account store: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlAccounts); err != nil {
		pool.Close()
		return nil, fmt.Errorf("account store: migrate: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, name, password_hash, plan, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (email) DO NOTHING`,
		u.ID, u.Email, u.Name, u.PasswordHash, string(u.Plan), u.CreatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	// ON CONFLICT swallows the duplicate; detect it by reading back.
	existing, err := s.UserByEmail(ctx, u.Email)
	if err != nil {
		return err
	}
	if existing.ID != u.ID {
		return fmt.Errorf("%s: %w", u.Email, ErrEmailTaken)
	}
	return nil
}

func (s *PostgresStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, plan, created_at
		 FROM users WHERE email = $1`, email))
}

func (s *PostgresStore) UserByID(ctx context.Context, id string) (*User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, plan, created_at
		 FROM users WHERE id = $1`, id))
}

func (s *PostgresStore) scanUser(row pgx.Row) (*User, error) {
	var (
		u    User
		plan string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &plan, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Plan = Plan(plan)
	return &u, nil
}

func (s *PostgresStore) SetPlan(ctx context.Context, email string, plan Plan) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET plan = $1 WHERE email = $2`, string(plan), email)
	if err != nil {
		return fmt.Errorf("set plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", email, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) AddUsage(ctx context.Context, userID string, chars, calls int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET chars_used = chars_used + $1, api_calls = api_calls + $2
		 WHERE id = $3`, chars, calls, userID)
	if err != nil {
		return fmt.Errorf("add usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", userID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Usage(ctx context.Context, userID string) (Usage, error) {
	var u Usage
	err := s.pool.QueryRow(ctx,
		`SELECT chars_used, api_calls FROM users WHERE id = $1`, userID).
		Scan(&u.CharsUsed, &u.APICalls)
	if errors.Is(err, pgx.ErrNoRows) {
		return Usage{}, ErrNotFound
	}
	if err != nil {
		return Usage{}, fmt.Errorf("read usage: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, token, userID string, expires time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (token, user_id, expires_at) VALUES ($1, $2, $3)`,
		token, userID, expires)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *PostgresStore) SessionUser(ctx context.Context, token string) (*User, error) {
	var (
		userID  string
		expires time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, expires_at FROM sessions WHERE token = $1`, token).
		Scan(&userID, &expires)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if time.Now().After(expires) {
		_ = s.DeleteSession(ctx, token)
		return nil, ErrSessionExpired
	}
	return s.UserByID(ctx, userID)
}

func (s *PostgresStore) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
