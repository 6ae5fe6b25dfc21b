// Package engine определяет универсальный контракт движка СУБД:
// выполнение запросов, транзакции и нативная массовая загрузка.
// Конкретные реализации живут в подпакетах (postgres, mssql, mysql, sqlite)
// и регистрируются в глобальной фабрике через init().
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/queuebridge/dbcore/pkg/dialect"
)

var (
	// ErrNotConnected - движок не подключен к БД
	ErrNotConnected = errors.New("engine is not connected")

	// ErrBulkCopyUnsupported - у СУБД нет нативного пути массовой загрузки,
	// вызывающий код обязан использовать батчевый fallback
	ErrBulkCopyUnsupported = errors.New("native bulk copy is not supported by this engine")
)

// Isolation определяет уровень изоляции транзакции
type Isolation string

const (
	// IsolationDefault - уровень по умолчанию для данной СУБД
	IsolationDefault Isolation = ""
	// IsolationReadCommitted - read committed
	IsolationReadCommitted Isolation = "read_committed"
	// IsolationRepeatableRead - repeatable read
	IsolationRepeatableRead Isolation = "repeatable_read"
	// IsolationSerializable - serializable
	IsolationSerializable Isolation = "serializable"
)

// Rows - универсальный курсор результата запроса
// *sql.Rows реализует его напрямую; pgx адаптируется оберткой
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// Executor выполняет SQL против подключения или транзакции
type Executor interface {
	// Exec выполняет statement и возвращает число затронутых строк
	Exec(ctx context.Context, query string, args ...any) (int64, error)

	// Query выполняет запрос и возвращает курсор
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

// Tx - транзакция движка
type Tx interface {
	Executor

	// Commit фиксирует транзакцию
	Commit(ctx context.Context) error

	// Rollback откатывает транзакцию
	Rollback(ctx context.Context) error
}

// Engine - универсальный интерфейс движка СУБД
// Экземпляр выбирается один раз при создании сессии
type Engine interface {
	Executor

	// ========== Lifecycle ==========

	// Connect устанавливает подключение к БД
	Connect(ctx context.Context, cfg Config) error

	// Close закрывает подключение
	Close(ctx context.Context) error

	// Ping проверяет доступность БД
	Ping(ctx context.Context) error

	// ========== Metadata ==========

	// Name возвращает идентификатор СУБД: "postgres", "mssql", "mysql", "sqlite"
	Name() string

	// Dialect возвращает SQL диалект движка
	Dialect() dialect.Dialect

	// Version возвращает версию СУБД
	Version(ctx context.Context) (string, error)

	// ========== Transactions ==========

	// BeginTx начинает транзакцию с указанным уровнем изоляции
	BeginTx(ctx context.Context, iso Isolation) (Tx, error)

	// ========== Bulk ==========

	// BulkCopy выполняет нативную массовую загрузку строк в таблицу.
	// При tx != nil загрузка участвует в этой транзакции.
	// Возвращает ErrBulkCopyUnsupported если нативного пути нет
	BulkCopy(ctx context.Context, tx Tx, schema, table string, columns []string, rows [][]any) (int64, error)
}

// ========== Factory ==========

// Constructor - функция-конструктор движка (еще не подключенного)
type Constructor func() Engine

var (
	mu       sync.RWMutex
	registry = make(map[string]Constructor)
)

// Register регистрирует конструктор движка для типа СУБД
// Вызывается в init() функциях подпакетов
func Register(name string, constructor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = constructor
}

// Registered возвращает список зарегистрированных типов СУБД
func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// New создает и подключает движок по конфигурации
//
// Пример:
//
//	eng, err := engine.New(ctx, engine.Config{
//	    Type: "sqlite",
//	    DSN:  ":memory:",
//	})
func New(ctx context.Context, cfg Config) (Engine, error) {
	eng, err := NewWithoutConnect(cfg.Type)
	if err != nil {
		return nil, err
	}

	if err := eng.Connect(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Type, err)
	}

	return eng, nil
}

// NewWithoutConnect создает движок без подключения к БД
// Неизвестный тип СУБД - ошибка конфигурации
func NewWithoutConnect(name string) (Engine, error) {
	mu.RLock()
	constructor, ok := registry[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", dialect.ErrUnknownEngine, name, Registered())
	}
	return constructor(), nil
}
