// Package base содержит общую реализацию контракта engine.Engine
// поверх database/sql. Движки на database/sql (sqlite, mysql, mssql)
// встраивают SQLBase и добавляют только специфичное поведение.
package base

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/queuebridge/dbcore/pkg/dialect"
	"github.com/queuebridge/dbcore/pkg/engine"
)

// SQLBase - общая часть движков на database/sql
type SQLBase struct {
	db   *sql.DB
	name string
	d    dialect.Dialect
}

// Init инициализирует базу после подключения
func (b *SQLBase) Init(db *sql.DB, name string, d dialect.Dialect) {
	b.db = db
	b.name = name
	b.d = d
}

// DB возвращает нижележащий *sql.DB (для специфичных операций движка)
func (b *SQLBase) DB() *sql.DB {
	return b.db
}

// Name возвращает идентификатор СУБД
func (b *SQLBase) Name() string {
	return b.name
}

// Dialect возвращает SQL диалект движка
func (b *SQLBase) Dialect() dialect.Dialect {
	return b.d
}

// Ping проверяет доступность БД
func (b *SQLBase) Ping(ctx context.Context) error {
	if b.db == nil {
		return engine.ErrNotConnected
	}
	return b.db.PingContext(ctx)
}

// Close закрывает подключение
func (b *SQLBase) Close(ctx context.Context) error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Exec выполняет statement и возвращает число затронутых строк
func (b *SQLBase) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	if b.db == nil {
		return 0, engine.ErrNotConnected
	}

	res, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		// Некоторые драйверы не сообщают число строк - не ошибка
		return 0, nil
	}
	return affected, nil
}

// Query выполняет запрос и возвращает курсор
func (b *SQLBase) Query(ctx context.Context, query string, args ...any) (engine.Rows, error) {
	if b.db == nil {
		return nil, engine.ErrNotConnected
	}
	return b.db.QueryContext(ctx, query, args...)
}

// BeginTx начинает транзакцию с указанным уровнем изоляции
func (b *SQLBase) BeginTx(ctx context.Context, iso engine.Isolation) (engine.Tx, error) {
	if b.db == nil {
		return nil, engine.ErrNotConnected
	}

	level, err := SQLIsolation(iso)
	if err != nil {
		return nil, err
	}

	tx, err := b.db.BeginTx(ctx, &sql.TxOptions{Isolation: level})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &SQLTx{tx: tx}, nil
}

// SQLIsolation переводит engine.Isolation в уровень database/sql
func SQLIsolation(iso engine.Isolation) (sql.IsolationLevel, error) {
	switch iso {
	case engine.IsolationDefault:
		return sql.LevelDefault, nil
	case engine.IsolationReadCommitted:
		return sql.LevelReadCommitted, nil
	case engine.IsolationRepeatableRead:
		return sql.LevelRepeatableRead, nil
	case engine.IsolationSerializable:
		return sql.LevelSerializable, nil
	default:
		return sql.LevelDefault, fmt.Errorf("unknown isolation level: %q", iso)
	}
}

// ========== Transaction ==========

// SQLTx оборачивает *sql.Tx в контракт engine.Tx
type SQLTx struct {
	tx *sql.Tx
}

// Compile-time check
var _ engine.Tx = (*SQLTx)(nil)

// Underlying возвращает *sql.Tx для специфичных операций движка
// (bulk copy в mssql)
func (t *SQLTx) Underlying() *sql.Tx {
	return t.tx
}

// Exec выполняет statement в транзакции
func (t *SQLTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}

// Query выполняет запрос в транзакции
func (t *SQLTx) Query(ctx context.Context, query string, args ...any) (engine.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

// Commit фиксирует транзакцию
func (t *SQLTx) Commit(ctx context.Context) error {
	return t.tx.Commit()
}

// Rollback откатывает транзакцию
func (t *SQLTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback()
}
