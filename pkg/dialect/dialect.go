// Package dialect содержит провайдеро-специфичные соглашения SQL:
// квотирование идентификаторов, placeholders, физические имена таблиц
// и форму вызова хранимых рутин для каждой поддерживаемой СУБД.
package dialect

import (
	"errors"
	"fmt"
	"sync"
)

// Ошибки конфигурации - фатальные, не подлежат retry
var (
	// ErrUnknownEngine - неизвестный идентификатор СУБД
	ErrUnknownEngine = errors.New("unknown database engine")

	// ErrRoutinesNotSupported - СУБД не поддерживает серверные рутины
	ErrRoutinesNotSupported = errors.New("engine does not support stored routines")

	// ErrOutParamsNotSupported - out-параметры непредставимы единообразно
	// для всех СУБД, поэтому отклоняются на этапе построения вызова
	ErrOutParamsNotSupported = errors.New("out-direction parameters are not supported in routine calls")
)

// RoutineKind определяет вид хранимой рутины
type RoutineKind string

const (
	// RoutineScalar - возвращает одно скалярное значение
	RoutineScalar RoutineKind = "scalar"
	// RoutineRowSet - возвращает набор строк
	RoutineRowSet RoutineKind = "rowset"
	// RoutineNonQuery - выполняется ради side effects, возвращает число строк
	RoutineNonQuery RoutineKind = "nonquery"
)

// RoutineCall - готовая к выполнению форма вызова рутины
// Немутабельна после построения
type RoutineCall struct {
	// Text - SQL текст вызова с placeholders
	Text string

	// Kind - вид рутины, определяет способ выполнения
	Kind RoutineKind
}

// Dialect инкапсулирует SQL соглашения конкретной СУБД
// Выбирается один раз при создании сессии, а не на каждый вызов
type Dialect interface {
	// Name возвращает идентификатор СУБД: "postgres", "mssql", "mysql", "sqlite"
	Name() string

	// Quote экранирует идентификатор (имя таблицы/колонки)
	Quote(identifier string) string

	// Placeholder возвращает placeholder для n-го параметра (нумерация с 1)
	Placeholder(n int) string

	// SupportsSchemas сообщает, есть ли у СУБД нативные схемы
	SupportsSchemas() bool

	// ResolveTable строит квотированное физическое имя таблицы.
	// СУБД со схемами: schema.name, без схем: schema_name одним идентификатором
	ResolveTable(schema, name string) string

	// BuildRoutineCall строит провайдеро-корректную форму вызова рутины
	// paramCount - число входных параметров
	BuildRoutineCall(schema, name string, kind RoutineKind, paramCount int) (RoutineCall, error)

	// PagingClause строит клаузу пагинации (limit/offset < 0 означает отсутствие)
	PagingClause(limit, offset int) string

	// RequiresOrderForPaging сообщает, обязателен ли ORDER BY при пагинации
	RequiresOrderForPaging() bool

	// ReseedStatement строит выражение перевода identity/sequence курсора
	// на maxKey+1. Пустая строка - reseed для этой СУБД не требуется
	ReseedStatement(schema, name, keyColumn string, maxKey int64) string

	// TransactionalReseed сообщает, подчиняется ли выражение reseed
	// транзакции. false означает DDL с неявным commit: выполнять его
	// внутри чужой транзакции нельзя
	TransactionalReseed() bool

	// IdentityInsertStatement строит выражение включения/выключения явной
	// вставки identity значений. Пустая строка - toggle не требуется
	IdentityInsertStatement(schema, name string, on bool) string
}

// ========== Registry ==========

var (
	mu       sync.RWMutex
	registry = make(map[string]Dialect)
)

// Register регистрирует диалект под именем СУБД
// Вызывается из init() каждой реализации
func Register(d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	registry[d.Name()] = d
}

// For возвращает диалект для указанной СУБД
// Неизвестный идентификатор - ошибка конфигурации
func For(engine string) (Dialect, error) {
	mu.RLock()
	d, ok := registry[engine]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownEngine, engine, Registered())
	}
	return d, nil
}

// Registered возвращает список зарегистрированных СУБД
func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
