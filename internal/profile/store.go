package profile

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const currentKey = "current_profile"

// Store keeps profiles in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the profile database at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates all required tables.
func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS profiles (
			name       TEXT    PRIMARY KEY,
			domain     TEXT    NOT NULL DEFAULT '',
			resolvers  TEXT    NOT NULL DEFAULT '',
			port       INTEGER NOT NULL DEFAULT 1081,
			created_at INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL DEFAULT ''
		);
	`)
	return err
}

// Save inserts or replaces a profile.
func (s *Store) Save(p Profile) error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("profile name is required")
	}
	if p.Port < 1 || p.Port > 65535 {
		return fmt.Errorf("profile %s: port %d out of range", p.Name, p.Port)
	}

	now := time.Now().Unix()
	_, err := s.db.Exec(`
		INSERT INTO profiles (name, domain, resolvers, port, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			domain     = excluded.domain,
			resolvers  = excluded.resolvers,
			port       = excluded.port,
			updated_at = excluded.updated_at`,
		p.Name, p.Domain, p.Resolvers, p.Port, now, now,
	)
	if err != nil {
		return fmt.Errorf("save profile %s: %w", p.Name, err)
	}
	return nil
}

// Get returns the named profile or ErrNotFound.
func (s *Store) Get(name string) (Profile, error) {
	var p Profile
	err := s.db.QueryRow(
		"SELECT name, domain, resolvers, port FROM profiles WHERE name = ?", name,
	).Scan(&p.Name, &p.Domain, &p.Resolvers, &p.Port)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return Profile{}, fmt.Errorf("get profile %s: %w", name, err)
	}
	return p, nil
}

// List returns every profile ordered by name.
func (s *Store) List() ([]Profile, error) {
	rows, err := s.db.Query("SELECT name, domain, resolvers, port FROM profiles ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.Name, &p.Domain, &p.Resolvers, &p.Port); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Delete removes a profile. Deleting the current profile clears the selection.
func (s *Store) Delete(name string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM profiles WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("delete profile %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if _, err := tx.Exec("DELETE FROM settings WHERE key = ? AND value = ?", currentKey, name); err != nil {
		return err
	}
	return tx.Commit()
}

// SetCurrent selects the named profile. The profile does not need to exist yet.
func (s *Store) SetCurrent(name string) error {
	_, err := s.db.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		currentKey, name,
	)
	if err != nil {
		return fmt.Errorf("set current profile: %w", err)
	}
	return nil
}

// CurrentName returns the selected profile name, or DefaultName.
func (s *Store) CurrentName() (string, error) {
	var name string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", currentKey).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && name == "") {
		return DefaultName, nil
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

// Current returns the selected profile. A selection that has no stored
// profile yields an empty profile with that name and the default port.
func (s *Store) Current() (Profile, error) {
	name, err := s.CurrentName()
	if err != nil {
		return Profile{}, err
	}
	p, err := s.Get(name)
	if errors.Is(err, ErrNotFound) {
		return New(name), nil
	}
	return p, err
}
