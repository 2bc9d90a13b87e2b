// Package securestore is the on-disk secure key/value storage used for proof
// tokens, wallet records and vault envelopes. Values are sealed with
// XChaCha20-Poly1305 under a per-install master key and bound to their key
// name, so a row copied under another key fails to open.
package securestore

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"

	_ "modernc.org/sqlite"
)

const dbFileName = "secure.db"

var (
	ErrNotFound       = errors.New("secure item not found")
	ErrCorruptItem    = errors.New("secure item corrupted or sealed with another key")
	ErrEmptyKey       = errors.New("secure item key is required")
	ErrNotInitialized = errors.New("secure store not initialized")
)

// Store is a sqlite-backed sealed key/value store.
type Store struct {
	db   *sql.DB
	aead cipher.AEAD
}

// Open opens (or creates) the store under dataDir, creating the master key
// on first use.
func Open(dataDir string) (*Store, error) {
	key, err := LoadOrCreateMasterKey(dataDir)
	if err != nil {
		return nil, err
	}
	return OpenDSN(filepath.Join(dataDir, dbFileName), key)
}

// OpenDSN opens a store with an explicit sqlite DSN and master key.
// Tests may pass ":memory:" to avoid touching disk.
func OpenDSN(dsn string, masterKey []byte) (*Store, error) {
	aead, err := chacha20poly1305.NewX(masterKey)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open secure db: %w", err)
	}
	// One connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, aead: aead}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS secure_items (
	item_key TEXT NOT NULL PRIMARY KEY,
	sealed BLOB NOT NULL,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`)
	if err != nil {
		return fmt.Errorf("create secure_items table: %w", err)
	}
	return nil
}

// Close closes the underlying DB.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SetItem seals value and stores it under key, replacing any previous value.
func (s *Store) SetItem(ctx context.Context, key, value string) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	if key == "" {
		return ErrEmptyKey
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(value), []byte(key))

	_, err := s.db.ExecContext(ctx, `
INSERT INTO secure_items (item_key, sealed)
VALUES (?, ?)
ON CONFLICT(item_key) DO UPDATE SET
	sealed=excluded.sealed,
	updated_at=CURRENT_TIMESTAMP
`, key, sealed)
	if err != nil {
		return fmt.Errorf("persist secure item: %w", err)
	}
	return nil
}

// GetItem returns the value stored under key or ErrNotFound.
func (s *Store) GetItem(ctx context.Context, key string) (string, error) {
	if s == nil || s.db == nil {
		return "", ErrNotInitialized
	}
	if key == "" {
		return "", ErrEmptyKey
	}

	var sealed []byte
	err := s.db.QueryRowContext(ctx, `SELECT sealed FROM secure_items WHERE item_key = ?`, key).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read secure item: %w", err)
	}

	ns := s.aead.NonceSize()
	if len(sealed) < ns {
		return "", ErrCorruptItem
	}
	plain, err := s.aead.Open(nil, sealed[:ns], sealed[ns:], []byte(key))
	if err != nil {
		return "", ErrCorruptItem
	}
	return string(plain), nil
}

// DeleteItem removes key. Deleting a missing key is not an error.
func (s *Store) DeleteItem(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	if key == "" {
		return ErrEmptyKey
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM secure_items WHERE item_key = ?`, key); err != nil {
		return fmt.Errorf("delete secure item: %w", err)
	}
	return nil
}

// Keys lists stored keys starting with prefix, in lexical order.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT item_key FROM secure_items WHERE substr(item_key, 1, length(?)) = ? ORDER BY item_key`,
		prefix, prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("list secure items: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
