package index

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/filecrate/filecrate/internal/errs"
)

// MySQLConfig holds connection settings for the MySQL index.
type MySQLConfig struct {
	// DSN in go-sql-driver format,
	// e.g. "user:pass@tcp(localhost:3306)/filecrate?parseTime=true".
	DSN string

	// Pool tuning; zero values use defaults.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// MySQL is a database/sql-backed Index using the go-sql-driver.
// It is safe for concurrent use by multiple goroutines.
type MySQL struct {
	db *sql.DB
}

var _ Index = (*MySQL)(nil)

const mysqlSchema = `
CREATE TABLE IF NOT EXISTS file_index (
	id          VARCHAR(64) PRIMARY KEY,
	storage_key VARCHAR(1024) NOT NULL,
	updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
)`

// NewMySQL connects, verifies the connection, and ensures the index table
// exists before returning.
func NewMySQL(ctx context.Context, cfg *MySQLConfig) (*MySQL, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindProvider, "invalid mysql DSN", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(int(defaultMaxConns))
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(int(defaultMinConns))
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	m := &MySQL{db: db}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, mapMySQLError(err, "ping failed")
	}
	if _, err := db.ExecContext(ctx, mysqlSchema); err != nil {
		db.Close()
		return nil, mapMySQLError(err, "failed to ensure index table")
	}
	return m, nil
}

// Put records or replaces the storage key for id.
func (m *MySQL) Put(ctx context.Context, id, storageKey string) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO file_index (id, storage_key) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE storage_key = VALUES(storage_key)`,
		id, storageKey)
	if err != nil {
		return mapMySQLError(err, "failed to upsert index entry")
	}
	return nil
}

// Lookup returns the storage key for id.
func (m *MySQL) Lookup(ctx context.Context, id string) (string, bool, error) {
	var key string
	err := m.db.QueryRowContext(ctx, `SELECT storage_key FROM file_index WHERE id = ?`, id).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, mapMySQLError(err, "failed to query index")
	}
	return key, true, nil
}

// Delete removes the entry for id. Unknown ids are a no-op.
func (m *MySQL) Delete(ctx context.Context, id string) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM file_index WHERE id = ?`, id); err != nil {
		return mapMySQLError(err, "failed to delete index entry")
	}
	return nil
}

// Close releases the connection pool.
func (m *MySQL) Close() error {
	return m.db.Close()
}

func mapMySQLError(err error, msg string) *errs.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindCancelled, msg, err)
	}
	return errs.Wrap(errs.ErrKindProvider, msg, err)
}
