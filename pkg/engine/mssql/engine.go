// Package mssql реализует engine.Engine для MS SQL Server.
// Нативная массовая загрузка идет через TDS bulk copy (mssql.CopyIn).
package mssql

import (
	"context"
	"database/sql"
	"fmt"

	mssqldb "github.com/denisenkom/go-mssqldb"
	"github.com/queuebridge/dbcore/pkg/dialect"
	"github.com/queuebridge/dbcore/pkg/engine"
	"github.com/queuebridge/dbcore/pkg/engine/base"
)

const (
	engineName = "mssql"
	driverName = "sqlserver"
)

// Compile-time check
var _ engine.Engine = (*Engine)(nil)

// Регистрация движка в глобальной фабрике
func init() {
	engine.Register(engineName, func() engine.Engine {
		return &Engine{}
	})
}

// Engine - движок MS SQL Server
type Engine struct {
	base.SQLBase
}

// Connect устанавливает подключение к SQL Server
func (e *Engine) Connect(ctx context.Context, cfg engine.Config) error {
	d, err := dialect.For(engineName)
	if err != nil {
		return err
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	e.Init(db, engineName, d)
	return nil
}

// Version возвращает версию SQL Server
func (e *Engine) Version(ctx context.Context) (string, error) {
	var version string
	err := e.DB().QueryRowContext(ctx, "SELECT @@VERSION").Scan(&version)
	if err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return version, nil
}

// BulkCopy выполняет TDS bulk copy в указанную таблицу
// Требует транзакцию: CopyIn работает через prepared statement
// на *sql.Tx, финальный Exec без аргументов сбрасывает поток
func (e *Engine) BulkCopy(ctx context.Context, tx engine.Tx, schema, table string, columns []string, rows [][]any) (int64, error) {
	if tx == nil {
		return 0, fmt.Errorf("bulk copy requires a transaction")
	}

	sqlTx, ok := tx.(*base.SQLTx)
	if !ok {
		return 0, fmt.Errorf("bulk copy requires a sql transaction, got %T", tx)
	}

	if schema == "" {
		schema = "dbo"
	}
	target := schema + "." + table

	stmt, err := sqlTx.Underlying().PrepareContext(ctx, mssqldb.CopyIn(target, mssqldb.BulkOptions{Tablock: true}, columns...))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare bulk copy: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		// Отмена проверяется между строками, не внутри строки
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("failed to write bulk row %d: %w", i, err)
		}
	}

	// Финальный Exec завершает поток и возвращает число строк
	res, err := stmt.ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to flush bulk copy: %w", err)
	}

	count, err := res.RowsAffected()
	if err != nil {
		return int64(len(rows)), nil
	}
	return count, nil
}
