package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrDuplicate is returned by Insert when the channel already follows
// the same server address.
var ErrDuplicate = errors.New("subscription already exists")

// Repository handles all database operations
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new repository with SQLite
func NewRepository(dbPath string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := &Repository{db: db}

	// Run migrations
	if err := repo.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate creates the database schema
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id VARCHAR(20) NOT NULL,
			channel_id VARCHAR(20) NOT NULL,
			message_id VARCHAR(20) NOT NULL,
			server_hostname VARCHAR(255) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(channel_id, server_hostname)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_channel ON subscriptions(channel_id)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Insert persists a new subscription and sets its ID. It fails with
// ErrDuplicate if the channel already follows the server; the store is
// left unchanged in that case.
func (r *Repository) Insert(s *Subscription) error {
	result, err := r.db.Exec(
		`INSERT INTO subscriptions (guild_id, channel_id, message_id, server_hostname) VALUES (?, ?, ?, ?)`,
		s.GuildID, s.ChannelID, s.MessageID, s.ServerHostname,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrDuplicate
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = id
	return nil
}

// DeleteByChannel removes every subscription for the channel, regardless
// of server, and returns how many rows were removed.
func (r *Repository) DeleteByChannel(channelID string) (int64, error) {
	result, err := r.db.Exec(
		`DELETE FROM subscriptions WHERE channel_id = ?`,
		channelID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListAll returns every subscription, ordered by id
func (r *Repository) ListAll() ([]*Subscription, error) {
	return r.list(
		`SELECT id, guild_id, channel_id, message_id, server_hostname, created_at
		 FROM subscriptions ORDER BY id`,
	)
}

// ListByChannel returns the channel's subscriptions, ordered by id
func (r *Repository) ListByChannel(channelID string) ([]*Subscription, error) {
	return r.list(
		`SELECT id, guild_id, channel_id, message_id, server_hostname, created_at
		 FROM subscriptions WHERE channel_id = ? ORDER BY id`,
		channelID,
	)
}

func (r *Repository) list(query string, args ...any) ([]*Subscription, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		s := &Subscription{}
		if err := rows.Scan(&s.ID, &s.GuildID, &s.ChannelID, &s.MessageID, &s.ServerHostname, &s.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}

	return subs, rows.Err()
}
