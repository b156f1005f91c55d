package postgres

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/blake2b"

	"github.com/nao1215/spiderq/internal/model"
	"github.com/nao1215/spiderq/internal/storage"
)

// BackendName identifies this adapter in stats and configuration.
const BackendName = "postgres"

// tablePrefix is prepended to the sanitized namespace.
const tablePrefix = "spiderq_"

// pendingIndexSuffix names the partial index over unclaimed rows.
const pendingIndexSuffix = "_pending"

// maxIdentifierLen is PostgreSQL's NAMEDATALEN-1. Longer identifiers are
// silently truncated by the server.
const maxIdentifierLen = 63

// hashLen is the number of hex digits kept from the namespace digest.
const hashLen = 16

// Options configures the connection pool and claim bookkeeping.
type Options struct {
	// MaxConns caps the pool size. Zero keeps the pgx default.
	MaxConns int32

	// MinConns keeps idle connections open. Zero keeps the pgx default.
	MinConns int32

	// ConsumerID is recorded in claimed_by for every record this adapter claims.
	ConsumerID string
}

// Storage is a storage.Storage backed by a pgx connection pool.
type Storage struct {
	mu        sync.RWMutex
	pool      *pgxpool.Pool
	namespace string
	table     string
	opts      Options
}

var _ storage.Storage = (*Storage)(nil)

// Open connects to databaseURL, verifies connectivity and binds the
// adapter to namespace.
func Open(ctx context.Context, databaseURL, namespace string, opts Options) (*Storage, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if opts.MaxConns > 0 {
		poolCfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		poolCfg.MinConns = opts.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Storage{pool: pool, opts: opts}
	if err := s.SetNamespace(ctx, namespace); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// tableName returns the quoted table for a sanitized namespace.
func tableName(namespace string) string {
	return pgx.Identifier{relationName(namespace, "")}.Sanitize()
}

// indexName returns the quoted pending index for a sanitized namespace.
func indexName(namespace string) string {
	return pgx.Identifier{relationName(namespace, pendingIndexSuffix)}.Sanitize()
}

// relationName builds an identifier that fits in maxIdentifierLen bytes.
//
// Short names are spiderq_<namespace><suffix>. When that would be cut by
// the server, the namespace is shortened and a digest of the full
// namespace is appended, so two long namespaces sharing a prefix still get
// distinct tables. Sanitized namespaces never contain '_', so a short
// name cannot take the shape of a digest name.
func relationName(namespace, suffix string) string {
	name := tablePrefix + namespace + suffix
	if len(name) <= maxIdentifierLen {
		return name
	}

	sum := blake2b.Sum256([]byte(namespace))
	digest := hex.EncodeToString(sum[:])[:hashLen]
	keep := maxIdentifierLen - len(tablePrefix) - 1 - hashLen - len(suffix)
	return tablePrefix + namespace[:keep] + "_" + digest + suffix
}

// Namespace returns the sanitized namespace.
func (s *Storage) Namespace() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.namespace
}

// SetNamespace binds the adapter to another table, creating it if needed.
func (s *Storage) SetNamespace(ctx context.Context, name string) error {
	namespace := storage.SanitizeNamespace(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool == nil {
		return storage.ErrClosed
	}
	if err := createTable(ctx, s.pool, namespace); err != nil {
		return err
	}

	s.namespace = namespace
	s.table = tableName(namespace)
	return nil
}

// createTable creates the namespace table under an advisory lock, since
// concurrent CREATE TABLE IF NOT EXISTS can still collide in pg_type.
func createTable(ctx context.Context, pool *pgxpool.Pool, namespace string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, tablePrefix+namespace); err != nil {
		return fmt.Errorf("lock namespace: %w", err)
	}

	table := tableName(namespace)
	index := indexName(namespace)
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id          BIGSERIAL PRIMARY KEY,
			payload     BYTEA NOT NULL,
			key         TEXT NOT NULL UNIQUE,
			taken       BOOLEAN NOT NULL DEFAULT FALSE,
			claimed_by  TEXT,
			inserted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			taken_at    TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS %s ON %s (id) WHERE NOT taken;`, table, index, table)

	if _, err := tx.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit table creation: %w", err)
	}
	return nil
}

// handle returns the pool and table. Callers must hold s.mu.
func (s *Storage) handle() (*pgxpool.Pool, string, error) {
	if s.pool == nil {
		return nil, "", storage.ErrClosed
	}
	return s.pool, s.table, nil
}

// PushItem inserts req unless a record with the same key exists.
func (s *Storage) PushItem(ctx context.Context, req *model.Request, key string) (bool, error) {
	payload, err := model.EncodeRequest(req)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	pool, table, err := s.handle()
	if err != nil {
		return false, err
	}

	tag, err := pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (payload, key) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`, table),
		payload, key)
	if err != nil {
		return false, fmt.Errorf("insert queue record: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// PullItems claims up to batchSize pending records with one statement.
func (s *Storage) PullItems(ctx context.Context, batchSize int) ([]*model.Request, error) {
	if batchSize <= 0 {
		return nil, storage.ErrInvalidBatchSize
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	pool, table, err := s.handle()
	if err != nil {
		return nil, err
	}

	var consumer *string
	if s.opts.ConsumerID != "" {
		consumer = &s.opts.ConsumerID
	}

	rows, err := pool.Query(ctx, fmt.Sprintf(`
		UPDATE %[1]s
		SET taken = TRUE, claimed_by = $1, taken_at = NOW()
		WHERE id IN (
			SELECT id FROM %[1]s
			WHERE NOT taken
			ORDER BY id
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, key, payload`, table), consumer, batchSize)
	if err != nil {
		return nil, fmt.Errorf("claim queue records: %w", err)
	}

	claimed, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.ClaimedRecord, error) {
		var rec storage.ClaimedRecord
		err := row.Scan(&rec.ID, &rec.Key, &rec.Payload)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("read claimed records: %w", err)
	}

	return storage.DecodeClaimed(claimed)
}

// IsEmpty reports whether no pending record remains.
func (s *Storage) IsEmpty(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pool, table, err := s.handle()
	if err != nil {
		return false, err
	}

	var pending bool
	err = pool.QueryRow(ctx, fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE NOT taken)`, table)).Scan(&pending)
	if err != nil {
		return false, fmt.Errorf("check pending records: %w", err)
	}
	return !pending, nil
}

// Purge empties the namespace table.
func (s *Storage) Purge(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pool, table, err := s.handle()
	if err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, fmt.Sprintf(`TRUNCATE %s RESTART IDENTITY`, table)); err != nil {
		return fmt.Errorf("purge queue: %w", err)
	}
	return nil
}

// Stats counts pending and taken records.
func (s *Storage) Stats(ctx context.Context) (model.QueueStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := model.QueueStats{Namespace: s.namespace, Backend: BackendName}

	pool, table, err := s.handle()
	if err != nil {
		return stats, err
	}

	var pending, taken int64
	err = pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT
			COUNT(*) FILTER (WHERE NOT taken),
			COUNT(*) FILTER (WHERE taken)
		FROM %s`, table)).Scan(&pending, &taken)
	if err != nil {
		return stats, fmt.Errorf("count queue records: %w", err)
	}

	stats.Pending = int(pending)
	stats.Taken = int(taken)
	return stats, nil
}

// Close closes the pool. Further calls return storage.ErrClosed.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	return nil
}
