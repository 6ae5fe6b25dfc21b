// Package sqlite реализует engine.Engine для SQLite (modernc.org/sqlite,
// чистый Go драйвер без cgo).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/queuebridge/dbcore/pkg/dialect"
	"github.com/queuebridge/dbcore/pkg/engine"
	"github.com/queuebridge/dbcore/pkg/engine/base"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// Compile-time check
var _ engine.Engine = (*Engine)(nil)

// Регистрация движка в глобальной фабрике
func init() {
	engine.Register(driverName, func() engine.Engine {
		return &Engine{}
	})
}

// Engine - движок SQLite
// Нативного пути массовой загрузки нет: bulk операции идут батчевым
// fallback'ом поверх обычных INSERT
type Engine struct {
	base.SQLBase
}

// Connect устанавливает подключение к SQLite
func (e *Engine) Connect(ctx context.Context, cfg engine.Config) error {
	d, err := dialect.For(driverName)
	if err != nil {
		return err
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite: один writer; пул больше одного соединения приводит
	// к SQLITE_BUSY на in-memory БД
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	e.Init(db, driverName, d)

	if err := e.applyPragmas(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to apply PRAGMA settings: %w", err)
	}

	return nil
}

// applyPragmas применяет PRAGMA настройки для быстрой массовой загрузки
func (e *Engine) applyPragmas(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := e.DB().ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	return nil
}

// Version возвращает версию SQLite
func (e *Engine) Version(ctx context.Context) (string, error) {
	var version string
	err := e.DB().QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version)
	if err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return "SQLite " + version, nil
}

// BulkCopy - нативный путь отсутствует
func (e *Engine) BulkCopy(ctx context.Context, tx engine.Tx, schema, table string, columns []string, rows [][]any) (int64, error) {
	return 0, engine.ErrBulkCopyUnsupported
}
