package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PGStore is the Postgres directory backend for shared deployments.
// Schema lives in migrations/ and is applied via `switchboard migrate up`.
type PGStore struct {
	db *sql.DB
}

// NewPGStore connects to Postgres and verifies the connection.
func NewPGStore(dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("directory: open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("directory: ping postgres: %w", err)
	}
	return &PGStore{db: db}, nil
}

// Upsert inserts or replaces a record keyed by username.
func (s *PGStore) Upsert(ctx context.Context, u Identity) error {
	n := u.Normalized()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (name, username, phone, boss_phone, email, boss_email)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (username) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			boss_phone = EXCLUDED.boss_phone,
			email = EXCLUDED.email,
			boss_email = EXCLUDED.boss_email,
			updated_at = now()`,
		n.Name, n.Username, n.Phone, n.BossPhone, n.Email, n.BossEmail)
	if err != nil {
		return fmt.Errorf("directory: upsert user: %w", err)
	}
	return nil
}

// Lookup implements Store.
func (s *PGStore) Lookup(ctx context.Context, identifier string) (*Identity, error) {
	norm := NormalizeIdentifier(identifier)
	if norm == "" {
		return nil, nil
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT name, username, phone, boss_phone, email, boss_email
		FROM users
		WHERE username = $1 OR phone = $1 OR boss_phone = $1 OR email = $1 OR boss_email = $1
		LIMIT 1`, norm)

	var u Identity
	err := row.Scan(&u.Name, &u.Username, &u.Phone, &u.BossPhone, &u.Email, &u.BossEmail)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("directory: postgres lookup: %w", err)
	}
	return &u, nil
}

// Close implements Store.
func (s *PGStore) Close() error { return s.db.Close() }
