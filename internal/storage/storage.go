package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound = errors.New("not found")
)

// Storage handles all database operations
type Storage struct {
	db *sql.DB
}

// New creates a new Storage instance and initializes the database
func New(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &Storage{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS identities (
			origin TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_identities_user_id ON identities(user_id)`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}

	return nil
}

// --- Identities ---

// SetIdentity binds userID to origin, replacing any previous identity
func (s *Storage) SetIdentity(ctx context.Context, origin, userID string) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO identities (origin, user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(origin) DO UPDATE SET
			user_id = excluded.user_id,
			updated_at = excluded.updated_at`,
		origin, userID, now, now,
	)
	if err != nil {
		return fmt.Errorf("set identity: %w", err)
	}
	return nil
}

// GetIdentity returns the identity bound to origin
func (s *Storage) GetIdentity(ctx context.Context, origin string) (*Identity, error) {
	var id Identity
	var createdAt, updatedAt int64

	err := s.db.QueryRowContext(ctx,
		`SELECT origin, user_id, created_at, updated_at
		 FROM identities WHERE origin = ?`,
		origin,
	).Scan(&id.Origin, &id.UserID, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}

	id.CreatedAt = time.Unix(createdAt, 0)
	id.UpdatedAt = time.Unix(updatedAt, 0)
	return &id, nil
}

// Origins returns every origin with a stored identity
func (s *Storage) Origins(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT origin FROM identities ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list origins: %w", err)
	}
	defer rows.Close()

	var origins []string
	for rows.Next() {
		var origin string
		if err := rows.Scan(&origin); err != nil {
			return nil, err
		}
		origins = append(origins, origin)
	}

	return origins, rows.Err()
}

// OriginStore is the identity store of a single origin
type OriginStore struct {
	storage *Storage
	origin  string
}

// Identity returns the identity store scoped to origin
func (s *Storage) Identity(origin string) *OriginStore {
	return &OriginStore{storage: s, origin: origin}
}

func (o *OriginStore) Get(ctx context.Context) (string, bool, error) {
	id, err := o.storage.GetIdentity(ctx, o.origin)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id.UserID, id.UserID != "", nil
}

func (o *OriginStore) Set(ctx context.Context, id string) error {
	return o.storage.SetIdentity(ctx, o.origin, id)
}
