package dialect

import (
	"fmt"
	"strings"
)

func init() {
	Register(&SQLiteDialect{})
}

// SQLiteDialect реализует соглашения SQLite
type SQLiteDialect struct{}

// Name возвращает идентификатор СУБД
func (d *SQLiteDialect) Name() string {
	return "sqlite"
}

// Quote экранирует идентификатор двойными кавычками
func (d *SQLiteDialect) Quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

// Placeholder возвращает ? placeholder
func (d *SQLiteDialect) Placeholder(n int) string {
	return "?"
}

// SupportsSchemas - схемы не поддерживаются
func (d *SQLiteDialect) SupportsSchemas() bool {
	return false
}

// ResolveTable склеивает схему и имя: "schema_name"
func (d *SQLiteDialect) ResolveTable(schema, name string) string {
	if schema == "" {
		return d.Quote(name)
	}
	return d.Quote(schema + "_" + name)
}

// BuildRoutineCall - SQLite не имеет серверных рутин,
// любой вызов это ошибка конфигурации
func (d *SQLiteDialect) BuildRoutineCall(schema, name string, kind RoutineKind, paramCount int) (RoutineCall, error) {
	return RoutineCall{}, fmt.Errorf("%w: sqlite", ErrRoutinesNotSupported)
}

// PagingClause строит LIMIT/OFFSET клаузу
func (d *SQLiteDialect) PagingClause(limit, offset int) string {
	var sb strings.Builder
	if limit >= 0 {
		fmt.Fprintf(&sb, " LIMIT %d", limit)
	} else if offset > 0 {
		// SQLite не принимает OFFSET без LIMIT
		sb.WriteString(" LIMIT -1")
	}
	if offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", offset)
	}
	return sb.String()
}

// RequiresOrderForPaging - LIMIT/OFFSET не требует ORDER BY
func (d *SQLiteDialect) RequiresOrderForPaging() bool {
	return false
}

// ReseedStatement - пустая строка: для INTEGER PRIMARY KEY SQLite
// сам выдает max(rowid)+1, явный reseed не требуется
func (d *SQLiteDialect) ReseedStatement(schema, name, keyColumn string, maxKey int64) string {
	return ""
}

// TransactionalReseed - reseed отсутствует, ограничений нет
func (d *SQLiteDialect) TransactionalReseed() bool {
	return true
}

// IdentityInsertStatement - toggle не требуется
func (d *SQLiteDialect) IdentityInsertStatement(schema, name string, on bool) string {
	return ""
}
