package sqlkv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"prairie_track/internal/domain"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const schema = `
	CREATE TABLE IF NOT EXISTS kv_entries (
		entry_key   TEXT PRIMARY KEY,
		entry_value TEXT NOT NULL,
		updated_at  TIMESTAMP NOT NULL
	)`

// Medium stores cache entries in a single kv_entries table. Queries are
// written with '?' placeholders and rebound for the driver in use.
type Medium struct {
	db        *sqlx.DB
	txManager *TransactionManager
}

func NewMedium(db *sqlx.DB) *Medium {
	return &Medium{db: db, txManager: NewTransactionManager(db)}
}

// Open connects to driver/dsn. For sqlite the dsn is a file path whose parent
// directory is created on demand.
func Open(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

func (m *Medium) Migrate(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create kv_entries: %w", err)
	}
	return nil
}

func (m *Medium) Keys(ctx context.Context, prefix string) ([]string, error) {
	query := m.db.Rebind(`SELECT entry_key FROM kv_entries WHERE entry_key LIKE ? ESCAPE '\' ORDER BY entry_key`)

	var candidates []string
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, m.db), &candidates, query, escapeLike(prefix)+"%"); err != nil {
		return nil, err
	}

	// sqlite's LIKE folds ASCII case.
	keys := candidates[:0]
	for _, k := range candidates {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *Medium) Get(ctx context.Context, key string) (string, error) {
	query := m.db.Rebind(`SELECT entry_value FROM kv_entries WHERE entry_key = ?`)

	var value string
	err := sqlx.GetContext(ctx, GetExecutor(ctx, m.db), &value, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (m *Medium) Set(ctx context.Context, key, value string) error {
	query := m.db.Rebind(`
		INSERT INTO kv_entries (entry_key, entry_value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (entry_key) DO UPDATE SET
			entry_value = excluded.entry_value,
			updated_at = excluded.updated_at`)

	_, err := GetExecutor(ctx, m.db).ExecContext(ctx, query, key, value, time.Now().UTC())
	return err
}

func (m *Medium) DeleteBatch(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	query, args, err := sqlx.In(`DELETE FROM kv_entries WHERE entry_key IN (?)`, keys)
	if err != nil {
		return fmt.Errorf("expand keys: %w", err)
	}
	query = m.db.Rebind(query)

	return m.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		_, err := GetExecutor(txCtx, m.db).ExecContext(txCtx, query, args...)
		return err
	})
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
