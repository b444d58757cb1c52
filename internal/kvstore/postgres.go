package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/starford/designtrail/internal/apperr"
)

const postgresSchemaSQL = `
CREATE TABLE IF NOT EXISTS kv_store (
	namespace  text NOT NULL,
	key        text NOT NULL,
	value      bytea NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (namespace, key)
);
`

// DefaultNamespace scopes keys when no namespace is configured.
const DefaultNamespace = "designtrail"

// Postgres implements Store on a shared kv_store table, one namespace per
// installation.
type Postgres struct {
	db        *sql.DB
	namespace string
}

// OpenPostgres connects to dsn and ensures the table exists.
func OpenPostgres(dsn, namespace string) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("kvstore: postgres: dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("kvstore: postgres: open: %w", err)
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	s, err := NewPostgresWithDB(db, namespace)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresWithDB reuses an existing *sql.DB.
func NewPostgresWithDB(db *sql.DB, namespace string) (*Postgres, error) {
	if db == nil {
		return nil, errors.New("kvstore: postgres: db is required")
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if _, err := db.Exec(postgresSchemaSQL); err != nil {
		return nil, fmt.Errorf("kvstore: postgres: apply schema: %w", err)
	}
	return &Postgres{db: db, namespace: namespace}, nil
}

func (s *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_store WHERE namespace = $1 AND key = $2`, s.namespace, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get "+key, err)
	}
	return v, nil
}

func (s *Postgres) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_store (namespace, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (namespace, key) DO UPDATE SET
			value      = EXCLUDED.value,
			updated_at = now()
	`, s.namespace, key, value)
	if err != nil {
		return unavailable("set "+key, err)
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_store WHERE namespace = $1 AND key = $2`, s.namespace, key)
	if err != nil {
		return unavailable("delete "+key, err)
	}
	return nil
}

func (s *Postgres) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key FROM kv_store
		WHERE namespace = $1 AND left(key, char_length($2)) = $2
		ORDER BY key COLLATE "C"
	`, s.namespace, prefix)
	if err != nil {
		return nil, unavailable("list keys", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, unavailable("list keys", err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list keys", err)
	}
	return out, nil
}

// Close closes the connection pool.
func (s *Postgres) Close() error {
	return s.db.Close()
}
