package dialect

import (
	"fmt"
	"strings"
)

func init() {
	Register(&MSSQLDialect{})
}

// MSSQLDialect реализует соглашения MS SQL Server
type MSSQLDialect struct{}

// Name возвращает идентификатор СУБД
func (d *MSSQLDialect) Name() string {
	return "mssql"
}

// Quote экранирует идентификатор квадратными скобками
func (d *MSSQLDialect) Quote(identifier string) string {
	return "[" + strings.ReplaceAll(identifier, "]", "]]") + "]"
}

// Placeholder возвращает @pN placeholder (ordinal параметры go-mssqldb)
func (d *MSSQLDialect) Placeholder(n int) string {
	return fmt.Sprintf("@p%d", n)
}

// SupportsSchemas - SQL Server имеет нативные схемы
func (d *MSSQLDialect) SupportsSchemas() bool {
	return true
}

// ResolveTable строит [schema].[name], схема по умолчанию dbo
func (d *MSSQLDialect) ResolveTable(schema, name string) string {
	if schema == "" {
		schema = "dbo"
	}
	return d.Quote(schema) + "." + d.Quote(name)
}

// BuildRoutineCall строит EXEC вызов хранимой процедуры
// Все виды рутин в SQL Server вызываются одинаково через EXEC
func (d *MSSQLDialect) BuildRoutineCall(schema, name string, kind RoutineKind, paramCount int) (RoutineCall, error) {
	switch kind {
	case RoutineScalar, RoutineRowSet, RoutineNonQuery:
		// Ok
	default:
		return RoutineCall{}, fmt.Errorf("unknown routine kind: %s", kind)
	}

	placeholders := make([]string, paramCount)
	for i := range placeholders {
		placeholders[i] = d.Placeholder(i + 1)
	}

	text := fmt.Sprintf("EXEC %s", d.ResolveTable(schema, name))
	if paramCount > 0 {
		text += " " + strings.Join(placeholders, ", ")
	}

	return RoutineCall{Text: text, Kind: kind}, nil
}

// PagingClause строит OFFSET/FETCH клаузу (синтаксис SQL Server 2012+)
func (d *MSSQLDialect) PagingClause(limit, offset int) string {
	if limit < 0 && offset <= 0 {
		return ""
	}

	// OFFSET обязателен даже при нулевом смещении, если есть FETCH
	if offset < 0 {
		offset = 0
	}
	clause := fmt.Sprintf(" OFFSET %d ROWS", offset)
	if limit >= 0 {
		clause += fmt.Sprintf(" FETCH NEXT %d ROWS ONLY", limit)
	}
	return clause
}

// RequiresOrderForPaging - OFFSET/FETCH требует ORDER BY
func (d *MSSQLDialect) RequiresOrderForPaging() bool {
	return true
}

// ReseedStatement переводит identity курсор через DBCC CHECKIDENT
// RESEED на maxKey: следующее сгенерированное значение будет maxKey+1
func (d *MSSQLDialect) ReseedStatement(schema, name, keyColumn string, maxKey int64) string {
	if schema == "" {
		schema = "dbo"
	}
	return fmt.Sprintf("DBCC CHECKIDENT ('%s.%s', RESEED, %d)", schema, name, maxKey)
}

// TransactionalReseed - DBCC CHECKIDENT RESEED откатывается вместе
// с транзакцией
func (d *MSSQLDialect) TransactionalReseed() bool {
	return true
}

// IdentityInsertStatement строит SET IDENTITY_INSERT ON/OFF
// Обязателен перед явной вставкой значений в identity колонку
func (d *MSSQLDialect) IdentityInsertStatement(schema, name string, on bool) string {
	state := "OFF"
	if on {
		state = "ON"
	}
	return fmt.Sprintf("SET IDENTITY_INSERT %s %s", d.ResolveTable(schema, name), state)
}
