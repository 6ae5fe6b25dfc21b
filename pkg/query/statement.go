package query

import (
	"fmt"
	"strings"

	"github.com/queuebridge/dbcore/pkg/dialect"
	"github.com/queuebridge/dbcore/pkg/metadata"
)

// Include - путь eager-load, прикрепленный к items-pipeline
type Include struct {
	// Relation - навигационная связь родительской сущности
	Relation metadata.Relation

	// Target - метаданные целевой таблицы
	Target metadata.Table
}

// Statement - декларативный конвейер запроса над одной сущностью
// Накапливает проекцию, условия, сортировку и пагинацию;
// SQL текст не строится до вызова BuildSQL
type Statement struct {
	table    metadata.Table
	columns  []string // логические имена полей проекции; пусто = все
	conds    []string // SQL фрагменты с маркерами '?'
	args     []any
	order    []Order
	limit    int // -1 = не задан
	offset   int // -1 = не задан
	includes []Include
}

// NewStatement создает базовый конвейер по метаданным сущности
func NewStatement(t metadata.Table) *Statement {
	return &Statement{table: t, limit: -1, offset: -1}
}

// Table возвращает метаданные сущности конвейера
func (s *Statement) Table() metadata.Table {
	return s.table
}

// Clone возвращает независимую копию конвейера
func (s *Statement) Clone() *Statement {
	c := &Statement{
		table:  s.table,
		limit:  s.limit,
		offset: s.offset,
	}
	c.columns = append([]string(nil), s.columns...)
	c.conds = append([]string(nil), s.conds...)
	c.args = append([]any(nil), s.args...)
	c.order = append([]Order(nil), s.order...)
	c.includes = append([]Include(nil), s.includes...)
	return c
}

// Where добавляет условие (AND) с маркерами '?' вместо placeholders
func (s *Statement) Where(cond string, args ...any) *Statement {
	s.conds = append(s.conds, cond)
	s.args = append(s.args, args...)
	return s
}

// WhereField добавляет сравнение логического поля со значением
func (s *Statement) WhereField(field, op string, value any) (*Statement, error) {
	col, ok := s.table.Column(field)
	if !ok {
		return s, fmt.Errorf("unknown field %s for entity %s", field, s.table.Entity)
	}
	return s.Where(col.Name+" "+op+" ?", value), nil
}

// OrderBy задает сортировку (заменяя предыдущую)
func (s *Statement) OrderBy(order ...Order) *Statement {
	s.order = order
	return s
}

// Ordered сообщает, задана ли сортировка
func (s *Statement) Ordered() bool {
	return len(s.order) > 0
}

// Page задает пагинацию
func (s *Statement) Page(limit, offset int) *Statement {
	s.limit = limit
	s.offset = offset
	return s
}

// Project задает проекцию по логическим именам полей
func (s *Statement) Project(fields ...string) *Statement {
	s.columns = fields
	return s
}

// Columns возвращает логические имена полей результата
func (s *Statement) Columns() []string {
	if len(s.columns) > 0 {
		return s.columns
	}
	fields := make([]string, len(s.table.Columns))
	for i, c := range s.table.Columns {
		fields[i] = c.Field
	}
	return fields
}

// AddInclude прикрепляет путь eager-load
func (s *Statement) AddInclude(inc Include) *Statement {
	s.includes = append(s.includes, inc)
	return s
}

// Includes возвращает прикрепленные пути eager-load
func (s *Statement) Includes() []Include {
	return s.includes
}

// BuildSQL строит итоговый SELECT для движка
// Маркеры '?' перенумеровываются в native placeholders начиная с argOffset+1
func (s *Statement) BuildSQL(d dialect.Dialect, argOffset int) (string, []any, error) {
	var sb strings.Builder

	sb.WriteString("SELECT ")
	cols, err := s.selectList(d)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(d.ResolveTable(s.table.Schema, s.table.Name))

	if err := s.writeWhere(&sb, d, argOffset); err != nil {
		return "", nil, err
	}

	hasPaging := s.limit >= 0 || s.offset >= 0

	if len(s.order) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, o := range s.order {
			col, ok := s.table.Column(o.Field)
			if !ok {
				return "", nil, fmt.Errorf("unknown order field %s for entity %s", o.Field, s.table.Entity)
			}
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(d.Quote(col.Name))
			if o.Desc {
				sb.WriteString(" DESC")
			}
		}
	} else if hasPaging && d.RequiresOrderForPaging() {
		// OFFSET/FETCH без ORDER BY недопустим
		sb.WriteString(" ORDER BY (SELECT NULL)")
	}

	if hasPaging {
		// Клауза пагинации уже несет ведущий пробел
		sb.WriteString(d.PagingClause(s.limit, s.offset))
	}

	return sb.String(), append([]any(nil), s.args...), nil
}

// BuildCountSQL строит COUNT(*) по тем же условиям, без сортировки и пагинации
func (s *Statement) BuildCountSQL(d dialect.Dialect) (string, []any, error) {
	var sb strings.Builder

	sb.WriteString("SELECT COUNT(*) FROM ")
	sb.WriteString(d.ResolveTable(s.table.Schema, s.table.Name))

	if err := s.writeWhere(&sb, d, 0); err != nil {
		return "", nil, err
	}
	return sb.String(), append([]any(nil), s.args...), nil
}

// selectList строит список колонок проекции
func (s *Statement) selectList(d dialect.Dialect) (string, error) {
	fields := s.Columns()
	quoted := make([]string, len(fields))
	for i, field := range fields {
		col, ok := s.table.Column(field)
		if !ok {
			return "", fmt.Errorf("unknown field %s for entity %s", field, s.table.Entity)
		}
		quoted[i] = d.Quote(col.Name)
	}
	return strings.Join(quoted, ", "), nil
}

// writeWhere дописывает WHERE, заменяя маркеры '?' на native placeholders
func (s *Statement) writeWhere(sb *strings.Builder, d dialect.Dialect, argOffset int) error {
	if len(s.conds) == 0 {
		return nil
	}

	sb.WriteString(" WHERE ")
	n := argOffset
	for i, cond := range s.conds {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		for _, ch := range cond {
			if ch == '?' {
				n++
				sb.WriteString(d.Placeholder(n))
				continue
			}
			sb.WriteRune(ch)
		}
	}

	if n-argOffset != len(s.args) {
		return fmt.Errorf("placeholder count %d does not match %d arguments", n-argOffset, len(s.args))
	}
	return nil
}
