package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/mailmerge/internal/domain"
	_ "github.com/lib/pq"
)

const createDocumentsTable = `CREATE TABLE IF NOT EXISTS mailmerge_documents (
	key        TEXT PRIMARY KEY,
	body       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresBackend stores documents as JSONB rows in mailmerge_documents.
type PostgresBackend struct {
	db *sql.DB
}

// OpenPostgres connects and pings the database at url.
func OpenPostgres(ctx context.Context, url string) (*sql.DB, error) {
	if url == "" {
		return nil, fmt.Errorf("storage: database_url is required for postgres storage")
	}
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return db, nil
}

// NewPostgresBackend creates a PostgresBackend over db.
func NewPostgresBackend(db *sql.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

// EnsureSchema creates the documents table if it does not exist.
func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, createDocumentsTable); err != nil {
		return fmt.Errorf("creating mailmerge_documents: %w", err)
	}
	return nil
}

func (b *PostgresBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := b.db.QueryRowContext(ctx,
		"SELECT body FROM mailmerge_documents WHERE key = $1", key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting %s: %w", key, err)
	}
	return body, nil
}

func (b *PostgresBackend) Put(ctx context.Context, key string, data []byte) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO mailmerge_documents (key, body, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()`,
		key, string(data))
	if err != nil {
		return fmt.Errorf("upserting %s: %w", key, err)
	}
	return nil
}
