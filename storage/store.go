package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"
)

var ErrChatNotFound = errors.New("chat not found")

// Store persists chats, their messages and the product catalogue in sqlite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database in dataDir.
func Open(dataDir string) (*Store, error) {
	return OpenPath(filepath.Join(dataDir, "toolchat.db"))
}

// OpenPath opens the database file at path. ":memory:" is accepted for tests.
func OpenPath(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite serialises writers; a single connection also keeps ":memory:"
	// databases from splitting per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) initialize() error {
	schema := `
	PRAGMA foreign_keys = ON;

	CREATE TABLE IF NOT EXISTS chat (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		model_id TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS message (
		id TEXT PRIMARY KEY,
		chat_id TEXT NOT NULL REFERENCES chat(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_message_chat ON message(chat_id, created_at);

	CREATE TABLE IF NOT EXISTS product (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		price REAL NOT NULL,
		category TEXT NOT NULL,
		description TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_product_category ON product(category);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	if err := s.migrateSchema(); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	return nil
}

// migrateSchema adds columns introduced after the first release.
func (s *Store) migrateSchema() error {
	hasModelID, err := s.columnExists("chat", "model_id")
	if err != nil {
		return fmt.Errorf("failed to check for model_id column: %w", err)
	}

	switch {
	case !hasModelID:
		if _, err := s.db.Exec(`ALTER TABLE chat ADD COLUMN model_id TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("failed to add model_id column: %w", err)
		}
	}
	return nil
}

func (s *Store) columnExists(table, column string) (bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
