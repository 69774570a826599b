package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a single-file directory backend for standalone deployments
// that outgrow the config-seeded list.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL DEFAULT '',
	username    TEXT NOT NULL UNIQUE,
	phone       TEXT NOT NULL DEFAULT '',
	boss_phone  TEXT NOT NULL DEFAULT '',
	email       TEXT NOT NULL DEFAULT '',
	boss_email  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_users_phone      ON users(phone);
CREATE INDEX IF NOT EXISTS idx_users_boss_phone ON users(boss_phone);
CREATE INDEX IF NOT EXISTS idx_users_email      ON users(email);
CREATE INDEX IF NOT EXISTS idx_users_boss_email ON users(boss_email);
`

// NewSQLiteStore opens (and if needed initializes) a sqlite directory at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("directory: open sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("directory: init sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Upsert inserts or replaces a record keyed by username.
func (s *SQLiteStore) Upsert(ctx context.Context, u Identity) error {
	n := u.Normalized()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (name, username, phone, boss_phone, email, boss_email)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (username) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			boss_phone = excluded.boss_phone,
			email = excluded.email,
			boss_email = excluded.boss_email`,
		n.Name, n.Username, n.Phone, n.BossPhone, n.Email, n.BossEmail)
	if err != nil {
		return fmt.Errorf("directory: upsert user: %w", err)
	}
	return nil
}

// Lookup implements Store.
func (s *SQLiteStore) Lookup(ctx context.Context, identifier string) (*Identity, error) {
	norm := NormalizeIdentifier(identifier)
	if norm == "" {
		return nil, nil
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT name, username, phone, boss_phone, email, boss_email
		FROM users
		WHERE username = ? OR phone = ? OR boss_phone = ? OR email = ? OR boss_email = ?
		LIMIT 1`,
		norm, norm, norm, norm, norm)

	var u Identity
	err := row.Scan(&u.Name, &u.Username, &u.Phone, &u.BossPhone, &u.Email, &u.BossEmail)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("directory: sqlite lookup: %w", err)
	}
	return &u, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error { return s.db.Close() }
