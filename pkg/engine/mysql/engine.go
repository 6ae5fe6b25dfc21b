// Package mysql реализует engine.Engine для MySQL/MariaDB.
package mysql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/queuebridge/dbcore/pkg/dialect"
	"github.com/queuebridge/dbcore/pkg/engine"
	"github.com/queuebridge/dbcore/pkg/engine/base"
)

const driverName = "mysql"

// Compile-time check
var _ engine.Engine = (*Engine)(nil)

// Регистрация движка в глобальной фабрике
func init() {
	engine.Register(driverName, func() engine.Engine {
		return &Engine{}
	})
}

// Engine - движок MySQL
// Нативной массовой загрузки через драйвер нет (LOAD DATA требует
// файловый доступ): bulk операции идут батчевым fallback'ом
type Engine struct {
	base.SQLBase
}

// Connect устанавливает подключение к MySQL
func (e *Engine) Connect(ctx context.Context, cfg engine.Config) error {
	d, err := dialect.For(driverName)
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

	e.Init(db, driverName, d)
	return nil
}

// Version возвращает версию MySQL
func (e *Engine) Version(ctx context.Context) (string, error) {
	var version string
	err := e.DB().QueryRowContext(ctx, "SELECT VERSION()").Scan(&version)
	if err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return "MySQL " + version, nil
}

// BulkCopy - нативный путь отсутствует
func (e *Engine) BulkCopy(ctx context.Context, tx engine.Tx, schema, table string, columns []string, rows [][]any) (int64, error) {
	return 0, engine.ErrBulkCopyUnsupported
}
