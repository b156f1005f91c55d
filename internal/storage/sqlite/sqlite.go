package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/spiderq/internal/model"
	"github.com/nao1215/spiderq/internal/storage"
)

// BackendName identifies this adapter in stats and configuration.
const BackendName = "sqlite"

// fileExt is appended to the namespace to build the partition file name.
const fileExt = ".sqlite3"

// Storage is a storage.Storage backed by one SQLite file per namespace.
// The connection is opened by Open (and reopened by SetNamespace) and
// released by Close; nothing is opened lazily.
type Storage struct {
	// mu guards db and namespace against a concurrent SetNamespace or Close.
	mu sync.RWMutex

	// db is the connection to the current partition file.
	db *sql.DB

	// dir holds one file per namespace.
	dir string

	// namespace is the sanitized partition name.
	namespace string

	opts Options
}

var _ storage.Storage = (*Storage)(nil)

// Options configures Storage behavior.
type Options struct {
	// CreateIfNotExists creates the directory and partition file if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so readers do not block the
	// claiming writer.
	EnableWAL bool

	// BusyTimeout is how long a writer waits for another process holding
	// the write lock before failing with SQLITE_BUSY.
	BusyTimeout time.Duration

	// ConsumerID is recorded in claimed_by for every record this adapter claims.
	ConsumerID string
}

// DefaultOptions returns the default storage options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
		BusyTimeout:       5 * time.Second,
	}
}

// Open binds a new Storage to namespace inside dir.
// If CreateIfNotExists is false and the partition file doesn't exist, an
// error is returned.
func Open(ctx context.Context, dir, namespace string, opts Options) (*Storage, error) {
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	s := &Storage{dir: dir, opts: opts}
	if err := s.SetNamespace(ctx, namespace); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the file backing the current namespace.
func (s *Storage) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pathFor(s.namespace)
}

func (s *Storage) pathFor(namespace string) string {
	return filepath.Join(s.dir, namespace+fileExt)
}

// Namespace returns the sanitized namespace.
func (s *Storage) Namespace() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.namespace
}

// SetNamespace switches the adapter to another partition file.
// The previous connection is closed only after the new one is ready.
func (s *Storage) SetNamespace(ctx context.Context, name string) error {
	namespace := storage.SanitizeNamespace(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil && namespace == s.namespace {
		return nil
	}

	db, err := s.openPartition(ctx, s.pathFor(namespace))
	if err != nil {
		return err
	}

	if s.db != nil {
		_ = s.db.Close()
	}
	s.db = db
	s.namespace = namespace
	return nil
}

// openPartition opens (and if allowed creates) one partition file.
func (s *Storage) openPartition(ctx context.Context, dbPath string) (*sql.DB, error) {
	if !s.opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("queue database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	}

	// _txlock=immediate makes every transaction take the write lock up
	// front, which is what keeps the claim atomic across processes.
	mode := "rw"
	if s.opts.CreateIfNotExists {
		mode = "rwc"
	}
	dsn := fmt.Sprintf("%s?mode=%s&_txlock=immediate", dbPath, mode)
	if s.opts.BusyTimeout > 0 {
		dsn += fmt.Sprintf("&_pragma=busy_timeout(%d)", s.opts.BusyTimeout.Milliseconds())
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if s.opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// createTables creates the queue schema if it doesn't exist.
func createTables(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		payload BLOB NOT NULL,
		key TEXT NOT NULL,
		taken BOOLEAN NOT NULL DEFAULT 0,
		claimed_by TEXT,
		inserted_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		taken_at DATETIME
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_queue_key ON queue(key);
	CREATE INDEX IF NOT EXISTS idx_queue_pending ON queue(taken, id);
	`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// handle returns the live connection. Callers must hold s.mu.
func (s *Storage) handle() (*sql.DB, error) {
	if s.db == nil {
		return nil, storage.ErrClosed
	}
	return s.db, nil
}

// PushItem inserts req unless a record with the same key exists.
func (s *Storage) PushItem(ctx context.Context, req *model.Request, key string) (bool, error) {
	payload, err := model.EncodeRequest(req)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	db, err := s.handle()
	if err != nil {
		return false, err
	}

	query := `INSERT INTO queue (payload, key) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`

	result, err := db.ExecContext(ctx, query, payload, key)
	if err != nil {
		return false, fmt.Errorf("failed to insert queue record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// PullItems claims up to batchSize pending records in a single statement.
// The statement runs inside an immediate transaction, so two processes
// sharing the file are serialized on the write lock and can never select
// the same rows.
func (s *Storage) PullItems(ctx context.Context, batchSize int) ([]*model.Request, error) {
	if batchSize <= 0 {
		return nil, storage.ErrInvalidBatchSize
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	query := `
	UPDATE queue
	SET taken = 1, claimed_by = ?, taken_at = CURRENT_TIMESTAMP
	WHERE id IN (
		SELECT id FROM queue
		WHERE taken = 0
		ORDER BY id
		LIMIT ?
	)
	RETURNING id, key, payload
	`

	rows, err := tx.QueryContext(ctx, query, nullString(s.opts.ConsumerID), batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to claim queue records: %w", err)
	}

	var claimed []storage.ClaimedRecord
	for rows.Next() {
		var rec storage.ClaimedRecord
		if err := rows.Scan(&rec.ID, &rec.Key, &rec.Payload); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan claimed record: %w", err)
		}
		claimed = append(claimed, rec)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("failed to read claimed records: %w", err)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read claimed records: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	// RETURNING order is unspecified; DecodeClaimed sorts by id
	return storage.DecodeClaimed(claimed)
}

// IsEmpty reports whether no pending record remains.
func (s *Storage) IsEmpty(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	db, err := s.handle()
	if err != nil {
		return false, err
	}

	var pending int
	err = db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM queue WHERE taken = 0)`).Scan(&pending)
	if err != nil {
		return false, fmt.Errorf("failed to check pending records: %w", err)
	}
	return pending == 0, nil
}

// Purge deletes every record in the current partition.
func (s *Storage) Purge(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	db, err := s.handle()
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM queue`); err != nil {
		return fmt.Errorf("failed to purge queue: %w", err)
	}
	return nil
}

// Stats counts pending and taken records.
func (s *Storage) Stats(ctx context.Context) (model.QueueStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := model.QueueStats{Namespace: s.namespace, Backend: BackendName}

	db, err := s.handle()
	if err != nil {
		return stats, err
	}

	query := `
	SELECT
		COALESCE(SUM(CASE WHEN taken = 0 THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN taken = 1 THEN 1 ELSE 0 END), 0)
	FROM queue
	`
	if err := db.QueryRowContext(ctx, query).Scan(&stats.Pending, &stats.Taken); err != nil {
		return stats, fmt.Errorf("failed to count queue records: %w", err)
	}
	return stats, nil
}

// Close closes the database connection. Further calls return storage.ErrClosed.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	return nil
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
