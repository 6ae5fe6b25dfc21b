package dialect

import (
	"fmt"
	"strings"
)

func init() {
	Register(&PostgresDialect{})
}

// PostgresDialect реализует соглашения PostgreSQL
// Рутины в PostgreSQL: функции вызываются через SELECT,
// процедуры (side-effect-only) через CALL
type PostgresDialect struct{}

// Name возвращает идентификатор СУБД
func (d *PostgresDialect) Name() string {
	return "postgres"
}

// Quote экранирует идентификатор двойными кавычками
func (d *PostgresDialect) Quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

// Placeholder возвращает $n placeholder
func (d *PostgresDialect) Placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// SupportsSchemas - PostgreSQL имеет нативные схемы
func (d *PostgresDialect) SupportsSchemas() bool {
	return true
}

// ResolveTable строит "schema"."name"
func (d *PostgresDialect) ResolveTable(schema, name string) string {
	if schema == "" {
		return d.Quote(name)
	}
	return d.Quote(schema) + "." + d.Quote(name)
}

// BuildRoutineCall строит вызов рутины.
// Скалярные и row-set рутины - это функции, вызываются через SELECT;
// side-effect-only рутины - процедуры, вызываются через CALL
func (d *PostgresDialect) BuildRoutineCall(schema, name string, kind RoutineKind, paramCount int) (RoutineCall, error) {
	placeholders := make([]string, paramCount)
	for i := range placeholders {
		placeholders[i] = d.Placeholder(i + 1)
	}
	args := strings.Join(placeholders, ", ")
	target := d.ResolveTable(schema, name)

	switch kind {
	case RoutineScalar, RoutineRowSet:
		return RoutineCall{
			Text: fmt.Sprintf("SELECT * FROM %s(%s)", target, args),
			Kind: kind,
		}, nil
	case RoutineNonQuery:
		return RoutineCall{
			Text: fmt.Sprintf("CALL %s(%s)", target, args),
			Kind: kind,
		}, nil
	default:
		return RoutineCall{}, fmt.Errorf("unknown routine kind: %s", kind)
	}
}

// PagingClause строит LIMIT/OFFSET клаузу
func (d *PostgresDialect) PagingClause(limit, offset int) string {
	var sb strings.Builder
	if limit >= 0 {
		fmt.Fprintf(&sb, " LIMIT %d", limit)
	}
	if offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", offset)
	}
	return sb.String()
}

// RequiresOrderForPaging - LIMIT/OFFSET не требует ORDER BY
func (d *PostgresDialect) RequiresOrderForPaging() bool {
	return false
}

// ReseedStatement переводит sequence на maxKey+1 через setval
// Третий аргумент false: следующий nextval вернет ровно maxKey+1
func (d *PostgresDialect) ReseedStatement(schema, name, keyColumn string, maxKey int64) string {
	physical := name
	if schema != "" {
		physical = schema + "." + name
	}
	return fmt.Sprintf(
		"SELECT setval(pg_get_serial_sequence('%s', '%s'), %d, false)",
		physical, keyColumn, maxKey+1)
}

// TransactionalReseed - setval подчиняется транзакции
func (d *PostgresDialect) TransactionalReseed() bool {
	return true
}

// IdentityInsertStatement - toggle не требуется
func (d *PostgresDialect) IdentityInsertStatement(schema, name string, on bool) string {
	return ""
}
