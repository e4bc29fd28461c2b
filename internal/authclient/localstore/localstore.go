// Package localstore is the client's durable session storage: a small
// SQLite key/value table holding the bearer token and the user snapshot.
// Both are written and cleared in one transaction so storage and in-memory
// auth state can never disagree about who is logged in.
package localstore

import (
	"context"
	"database/sql"
	"errors"

	_ "modernc.org/sqlite"
)

const (
	tokenKey = "auth_token"
	userKey  = "auth_user"
)

type Store struct {
	db *sql.DB
}

// Open creates or opens the session database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)

	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS session (
  key   TEXT PRIMARY KEY,
  value BLOB NOT NULL
);
`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSession persists the token and user snapshot together.
func (s *Store) SaveSession(token string, userJSON []byte) error {
	tx, err := s.db.BeginTx(context.Background(), nil)

	if err != nil {
		return err
	}

	defer tx.Rollback()

	for _, kv := range []struct {
		k string
		v []byte
	}{
		{tokenKey, []byte(token)},
		{userKey, userJSON},
	} {
		_, err = tx.Exec(`INSERT OR REPLACE INTO session (key, value) VALUES (?, ?)`, kv.k, kv.v)

		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadSession returns the stored token and user snapshot. ok is false when
// either half is missing; a partial session is treated as no session.
func (s *Store) LoadSession() (token string, userJSON []byte, ok bool, err error) {
	var tok []byte

	err = s.db.QueryRow(`SELECT value FROM session WHERE key = ?`, tokenKey).Scan(&tok)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, false, nil
		}

		return "", nil, false, err
	}

	err = s.db.QueryRow(`SELECT value FROM session WHERE key = ?`, userKey).Scan(&userJSON)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, false, nil
		}

		return "", nil, false, err
	}

	return string(tok), userJSON, true, nil
}

// Clear removes both halves of the session atomically.
func (s *Store) Clear() error {
	tx, err := s.db.BeginTx(context.Background(), nil)

	if err != nil {
		return err
	}

	defer tx.Rollback()

	_, err = tx.Exec(`DELETE FROM session WHERE key IN (?, ?)`, tokenKey, userKey)

	if err != nil {
		return err
	}

	return tx.Commit()
}
