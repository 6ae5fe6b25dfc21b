// Package postgres реализует engine.Engine для PostgreSQL поверх
// jackc/pgx: connection pool и нативная массовая загрузка через COPY.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/queuebridge/dbcore/pkg/dialect"
	"github.com/queuebridge/dbcore/pkg/engine"
)

const engineName = "postgres"

// Compile-time check
var _ engine.Engine = (*Engine)(nil)

// Регистрация движка в глобальной фабрике
func init() {
	engine.Register(engineName, func() engine.Engine {
		return &Engine{}
	})
}

// Engine - движок PostgreSQL
type Engine struct {
	pool *pgxpool.Pool
	d    dialect.Dialect
}

// Connect устанавливает подключение к PostgreSQL
func (e *Engine) Connect(ctx context.Context, cfg engine.Config) error {
	d, err := dialect.For(engineName)
	if err != nil {
		return err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to parse connection string: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	} else {
		poolCfg.MaxConns = 10 // default
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	e.pool = pool
	e.d = d
	return nil
}

// Close закрывает connection pool
func (e *Engine) Close(ctx context.Context) error {
	if e.pool != nil {
		e.pool.Close()
	}
	return nil
}

// Ping проверяет доступность БД
func (e *Engine) Ping(ctx context.Context) error {
	if e.pool == nil {
		return engine.ErrNotConnected
	}
	return e.pool.Ping(ctx)
}

// Name возвращает идентификатор СУБД
func (e *Engine) Name() string {
	return engineName
}

// Dialect возвращает SQL диалект движка
func (e *Engine) Dialect() dialect.Dialect {
	return e.d
}

// Version возвращает версию PostgreSQL
func (e *Engine) Version(ctx context.Context) (string, error) {
	if e.pool == nil {
		return "", engine.ErrNotConnected
	}

	var version string
	if err := e.pool.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return version, nil
}

// Exec выполняет statement и возвращает число затронутых строк
func (e *Engine) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	if e.pool == nil {
		return 0, engine.ErrNotConnected
	}

	tag, err := e.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Query выполняет запрос и возвращает курсор
func (e *Engine) Query(ctx context.Context, query string, args ...any) (engine.Rows, error) {
	if e.pool == nil {
		return nil, engine.ErrNotConnected
	}

	rows, err := e.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &pgxRows{rows: rows}, nil
}

// BeginTx начинает транзакцию с указанным уровнем изоляции
func (e *Engine) BeginTx(ctx context.Context, iso engine.Isolation) (engine.Tx, error) {
	if e.pool == nil {
		return nil, engine.ErrNotConnected
	}

	level, err := pgxIsolation(iso)
	if err != nil {
		return nil, err
	}

	tx, err := e.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: level})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &pgxTx{tx: tx}, nil
}

// pgxIsolation переводит engine.Isolation в уровень pgx
func pgxIsolation(iso engine.Isolation) (pgx.TxIsoLevel, error) {
	switch iso {
	case engine.IsolationDefault:
		return pgx.ReadCommitted, nil
	case engine.IsolationReadCommitted:
		return pgx.ReadCommitted, nil
	case engine.IsolationRepeatableRead:
		return pgx.RepeatableRead, nil
	case engine.IsolationSerializable:
		return pgx.Serializable, nil
	default:
		return pgx.ReadCommitted, fmt.Errorf("unknown isolation level: %q", iso)
	}
}

// BulkCopy выполняет COPY FROM в указанную таблицу
// При tx != nil загрузка идет внутри транзакции
func (e *Engine) BulkCopy(ctx context.Context, tx engine.Tx, schema, table string, columns []string, rows [][]any) (int64, error) {
	ident := pgx.Identifier{table}
	if schema != "" {
		ident = pgx.Identifier{schema, table}
	}

	if tx != nil {
		pt, ok := tx.(*pgxTx)
		if !ok {
			return 0, fmt.Errorf("bulk copy requires a pgx transaction, got %T", tx)
		}
		return pt.tx.CopyFrom(ctx, ident, columns, pgx.CopyFromRows(rows))
	}

	if e.pool == nil {
		return 0, engine.ErrNotConnected
	}
	return e.pool.CopyFrom(ctx, ident, columns, pgx.CopyFromRows(rows))
}

// ========== Adapters ==========

// pgxTx оборачивает pgx.Tx в контракт engine.Tx
type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *pgxTx) Query(ctx context.Context, query string, args ...any) (engine.Rows, error) {
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &pgxRows{rows: rows}, nil
}

func (t *pgxTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgxTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// pgxRows оборачивает pgx.Rows в контракт engine.Rows
type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Columns() ([]string, error) {
	fields := r.rows.FieldDescriptions()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names, nil
}

func (r *pgxRows) Next() bool {
	return r.rows.Next()
}

func (r *pgxRows) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

func (r *pgxRows) Close() error {
	r.rows.Close()
	return nil
}

func (r *pgxRows) Err() error {
	return r.rows.Err()
}
