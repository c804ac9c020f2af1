package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	migrate "github.com/rubenv/sql-migrate"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/iamwavecut/kratos/internal/db"
	kerrors "github.com/iamwavecut/kratos/internal/errors"
	"github.com/iamwavecut/kratos/resources"
)

const dsnPragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

var _ db.Client = (*sqliteClient)(nil)

type sqliteClient struct {
	db     *sqlx.DB
	mutex  sync.RWMutex
	closed bool
}

// NewSQLiteClient opens the database at dir/name, creating both when absent,
// and applies pending migrations before returning.
func NewSQLiteClient(ctx context.Context, dir, name string) (*sqliteClient, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, unavailable(errors.Wrap(err, "create database dir"), "open")
	}

	dbx, err := sqlx.Open("sqlite", "file:"+filepath.Join(dir, name)+dsnPragmas)
	if err != nil {
		return nil, unavailable(errors.Wrap(err, "cant open db"), "open")
	}
	dbx.SetMaxOpenConns(42)

	if err := dbx.PingContext(ctx); err != nil {
		_ = dbx.Close()
		return nil, unavailable(errors.Wrap(err, "ping db"), "open")
	}

	migrationsSource := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: resources.FS,
		Root:       "migrations",
	}
	n, err := migrate.Exec(dbx.DB, "sqlite3", migrationsSource, migrate.Up)
	if err != nil {
		_ = dbx.Close()
		return nil, unavailable(errors.Wrap(err, "migrate up failed"), "open")
	}
	if n > 0 {
		log.WithField("count", n).Info("applied migrations")
	}

	return &sqliteClient{db: dbx}, nil
}

func (c *sqliteClient) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}

func unavailable(err error, op string) error {
	return fmt.Errorf("%s: %w: %w", op, kerrors.ErrStorageUnavailable, err)
}

func notFound(table string, key int64) error {
	return fmt.Errorf("%s key %d: %w", table, key, kerrors.ErrNotFound)
}

// Callers hold c.mutex.
func (c *sqliteClient) checkOpen(op string) error {
	if c.closed {
		return unavailable(sql.ErrConnDone, op)
	}
	return nil
}

func insert(ctx context.Context, c *sqliteClient, op, query string, arg any) (int64, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if err := c.checkOpen(op); err != nil {
		return 0, err
	}

	result, err := c.db.NamedExecContext(ctx, query, arg)
	if err != nil {
		return 0, unavailable(err, op)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, unavailable(err, op)
	}
	return id, nil
}

func get[T any](ctx context.Context, c *sqliteClient, table, query string, key int64) (*T, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if err := c.checkOpen("get " + table); err != nil {
		return nil, err
	}

	var record T
	if err := c.db.GetContext(ctx, &record, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(table, key)
		}
		return nil, unavailable(err, "get "+table)
	}
	return &record, nil
}

func list[T any](ctx context.Context, c *sqliteClient, table, query string, args ...any) ([]*T, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if err := c.checkOpen("list " + table); err != nil {
		return nil, err
	}

	var records []*T
	if err := c.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, unavailable(err, "list "+table)
	}
	return records, nil
}

// queryActive snapshots the rows selected by query and yields the ones
// matching predicate. The snapshot is taken before returning, so the
// sequence never holds the store lock while the caller iterates.
func queryActive[T any](ctx context.Context, c *sqliteClient, table, query string, predicate func(*T) bool) (iter.Seq[*T], error) {
	records, err := list[T](ctx, c, table, query)
	if err != nil {
		return nil, err
	}
	return func(yield func(*T) bool) {
		for _, record := range records {
			if predicate != nil && !predicate(record) {
				continue
			}
			if !yield(record) {
				return
			}
		}
	}, nil
}

// update runs a read-modify-write of a single row in one transaction under
// the write lock. mutate reports whether the record changed; unchanged
// records are not written back, and the row key is never rewritten.
func update[T any](
	ctx context.Context,
	c *sqliteClient,
	table, selectQuery, updateQuery string,
	key int64,
	mutate func(*T) bool,
) (*T, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	op := "update " + table
	if err := c.checkOpen(op); err != nil {
		return nil, err
	}

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, unavailable(err, op)
	}
	defer func() { _ = tx.Rollback() }()

	var record T
	if err := tx.GetContext(ctx, &record, selectQuery, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(table, key)
		}
		return nil, unavailable(err, op)
	}
	if !mutate(&record) {
		return &record, nil
	}

	query, args, err := tx.BindNamed(updateQuery, &record)
	if err != nil {
		return nil, unavailable(err, op)
	}
	args = append(args, key)
	if _, err := tx.ExecContext(ctx, query+" WHERE key = ?", args...); err != nil {
		return nil, unavailable(err, op)
	}
	if err := tx.Commit(); err != nil {
		return nil, unavailable(err, op)
	}
	return &record, nil
}
