package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// dialect holds the statements that differ between database drivers.
type dialect struct {
	driver      string
	createTable string
	insert      string
	selectOne   string
}

var sqliteDialect = dialect{
	driver: "sqlite",
	createTable: `CREATE TABLE IF NOT EXISTS shared_notebooks (
		id TEXT PRIMARY KEY,
		markdown TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	insert:    "INSERT INTO shared_notebooks (id, markdown, created_at) VALUES (?, ?, ?)",
	selectOne: "SELECT markdown FROM shared_notebooks WHERE id = ?",
}

var postgresDialect = dialect{
	driver: "postgres",
	createTable: `CREATE TABLE IF NOT EXISTS shared_notebooks (
		id TEXT PRIMARY KEY,
		markdown TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	insert:    "INSERT INTO shared_notebooks (id, markdown, created_at) VALUES ($1, $2, $3)",
	selectOne: "SELECT markdown FROM shared_notebooks WHERE id = $1",
}

// SQLStore keeps published notebooks in a shared_notebooks table.
type SQLStore struct {
	db    *sql.DB
	d     dialect
	log   *zap.Logger
	retry RetryConfig
}

// OpenSQLite opens (creating if needed) a SQLite database file.
func OpenSQLite(ctx context.Context, path string, log *zap.Logger) (*SQLStore, error) {
	if path == "" {
		path = "./kayero.db"
	}
	db, err := sql.Open(sqliteDialect.driver, path)
	if err != nil {
		return nil, &Error{Driver: sqliteDialect.driver, Operation: "connect", Err: err}
	}
	// A single connection keeps ":memory:" databases coherent and avoids
	// SQLITE_BUSY between writers.
	db.SetMaxOpenConns(1)
	return newSQLStore(ctx, db, sqliteDialect, log)
}

// OpenPostgres connects to a PostgreSQL database.
func OpenPostgres(ctx context.Context, dsn string, log *zap.Logger) (*SQLStore, error) {
	if dsn == "" {
		return nil, &Error{Driver: postgresDialect.driver, Operation: "connect", Err: errors.New("dsn is required")}
	}
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, &Error{Driver: postgresDialect.driver, Operation: "connect", Err: err}
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	return newSQLStore(ctx, db, postgresDialect, log)
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect, log *zap.Logger) (*SQLStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &SQLStore{
		db:    db,
		d:     d,
		log:   log.Named("store").With(zap.String("driver", d.driver)),
		retry: DefaultRetryConfig(),
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, &Error{Driver: d.driver, Operation: "connect", Err: err}
	}
	if _, err := db.ExecContext(ctx, d.createTable); err != nil {
		db.Close()
		return nil, &Error{Driver: d.driver, Operation: "create table", Err: err}
	}
	return s, nil
}

// Put inserts a notebook under a new UUID, retrying transient failures.
func (s *SQLStore) Put(ctx context.Context, markdown []byte) (string, error) {
	id := uuid.NewString()
	err := withRetry(ctx, s.log, s.retry, "put", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, s.d.insert, id, string(markdown), time.Now().UTC())
		return err
	})
	if err != nil {
		return "", &Error{Driver: s.d.driver, Operation: "put", Err: err}
	}
	return id, nil
}

// Get loads a notebook by id.
func (s *SQLStore) Get(ctx context.Context, id string) ([]byte, error) {
	var markdown string
	err := s.db.QueryRowContext(ctx, s.d.selectOne, id).Scan(&markdown)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &Error{Driver: s.d.driver, Operation: "get", Err: err}
	}
	return []byte(markdown), nil
}

// Close releases the database connection
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
