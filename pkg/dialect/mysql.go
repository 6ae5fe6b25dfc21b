package dialect

import (
	"fmt"
	"strings"
)

func init() {
	Register(&MySQLDialect{})
}

// MySQLDialect реализует соглашения MySQL/MariaDB
// Схемы в MySQL совпадают с базами данных, поэтому логическая схема
// склеивается с именем таблицы в один физический идентификатор
type MySQLDialect struct{}

// Name возвращает идентификатор СУБД
func (d *MySQLDialect) Name() string {
	return "mysql"
}

// Quote экранирует идентификатор обратными кавычками
func (d *MySQLDialect) Quote(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}

// Placeholder возвращает ? placeholder
func (d *MySQLDialect) Placeholder(n int) string {
	return "?"
}

// SupportsSchemas - логические схемы не поддерживаются
func (d *MySQLDialect) SupportsSchemas() bool {
	return false
}

// ResolveTable склеивает схему и имя: `schema_name`
func (d *MySQLDialect) ResolveTable(schema, name string) string {
	if schema == "" {
		return d.Quote(name)
	}
	return d.Quote(schema + "_" + name)
}

// BuildRoutineCall строит CALL вызов хранимой процедуры
func (d *MySQLDialect) BuildRoutineCall(schema, name string, kind RoutineKind, paramCount int) (RoutineCall, error) {
	switch kind {
	case RoutineScalar, RoutineRowSet, RoutineNonQuery:
		// Ok
	default:
		return RoutineCall{}, fmt.Errorf("unknown routine kind: %s", kind)
	}

	placeholders := make([]string, paramCount)
	for i := range placeholders {
		placeholders[i] = "?"
	}

	routine := name
	if schema != "" {
		routine = schema + "_" + name
	}

	return RoutineCall{
		Text: fmt.Sprintf("CALL %s(%s)", d.Quote(routine), strings.Join(placeholders, ", ")),
		Kind: kind,
	}, nil
}

// PagingClause строит LIMIT/OFFSET клаузу
func (d *MySQLDialect) PagingClause(limit, offset int) string {
	var sb strings.Builder
	if limit >= 0 {
		fmt.Fprintf(&sb, " LIMIT %d", limit)
	} else if offset > 0 {
		// MySQL не принимает OFFSET без LIMIT
		sb.WriteString(" LIMIT 18446744073709551615")
	}
	if offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", offset)
	}
	return sb.String()
}

// RequiresOrderForPaging - LIMIT/OFFSET не требует ORDER BY
func (d *MySQLDialect) RequiresOrderForPaging() bool {
	return false
}

// ReseedStatement переводит AUTO_INCREMENT на maxKey+1
func (d *MySQLDialect) ReseedStatement(schema, name, keyColumn string, maxKey int64) string {
	return fmt.Sprintf("ALTER TABLE %s AUTO_INCREMENT = %d", d.ResolveTable(schema, name), maxKey+1)
}

// TransactionalReseed - ALTER TABLE это DDL с неявным commit,
// внутри транзакции выполнять нельзя
func (d *MySQLDialect) TransactionalReseed() bool {
	return false
}

// IdentityInsertStatement - toggle не требуется
func (d *MySQLDialect) IdentityInsertStatement(schema, name string, on bool) string {
	return ""
}
