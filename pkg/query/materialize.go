package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/queuebridge/dbcore/pkg/dialect"
	"github.com/queuebridge/dbcore/pkg/engine"
)

// ========== Результаты ==========

// Result - типизированный результат материализации
type Result[T any] struct {
	// Items - строки выборки
	Items []T

	// Related - строки eager-load путей по имени связи
	Related map[string][]map[string]any

	// Count - общее количество; nil когда подсчет не выполнялся
	Count *int64

	// Page - номер страницы (skip/top + 1), 0 без пагинации
	Page int

	// Report - отчет мягкого применения политики
	Report []ReportEntry
}

// ResultError - структурированная ошибка shaped материализации
// Не паника и не error: ошибки некорректного входа shaped пути
// упаковываются в конверт результата
type ResultError struct {
	Code    string
	Message string
}

// ShapedResult - результат shaped материализации: записи проекции
type ShapedResult struct {
	// Items - нетипизированные записи проекции
	Items []map[string]any

	// Related - строки eager-load путей по имени связи
	Related map[string][]map[string]any

	// Count - общее количество; nil когда подсчет не выполнялся
	Count *int64

	// Page - номер страницы, 0 без пагинации
	Page int

	// Report - отчет мягкого применения политики
	Report []ReportEntry

	// Err - структурированная ошибка входа (nil план/конвейер)
	Err *ResultError
}

// RowMapper переводит текущую строку курсора в значение T
type RowMapper[T any] func(rows engine.Rows) (T, error)

// ========== Типизированная материализация ==========

// MaterializeTyped выполняет план и возвращает типизированные строки
// Фатально отказывает на shaped плане и отсутствующих конвейерах:
// это ошибки использования, не ошибки данных
func MaterializeTyped[T any](ctx context.Context, exec engine.Executor, d dialect.Dialect, plan *Plan, mapper RowMapper[T]) (Result[T], error) {
	var result Result[T]

	if plan == nil {
		return result, fmt.Errorf("plan is nil")
	}
	if plan.Shaped {
		return result, ErrShapedPlan
	}
	if plan.Items == nil {
		return result, fmt.Errorf("plan has no items pipeline")
	}
	if plan.CountRequested && plan.Count == nil {
		return result, fmt.Errorf("plan requested count but has no count pipeline")
	}

	result.Report = plan.Report
	result.Page = plan.PageNumber()

	count, err := executeCount(ctx, exec, d, plan)
	if err != nil {
		return result, err
	}
	result.Count = count

	itemsSQL, args, err := plan.Items.BuildSQL(d, 0)
	if err != nil {
		return result, err
	}
	rows, err := exec.Query(ctx, itemsSQL, args...)
	if err != nil {
		return result, fmt.Errorf("failed to execute items query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := mapper(rows)
		if err != nil {
			return result, fmt.Errorf("failed to map row: %w", err)
		}
		result.Items = append(result.Items, item)
	}
	if err := rows.Err(); err != nil {
		return result, err
	}

	if incs := plan.Items.Includes(); len(incs) > 0 {
		result.Related, err = executeIncludes(ctx, exec, d, plan.Items, incs)
		if err != nil {
			return result, err
		}
	}

	return result, nil
}

// ========== Shaped материализация ==========

// MaterializeShaped выполняет спроецированный конвейер и возвращает
// нетипизированные записи. Нулевые входы дают структурированную
// ошибку в конверте результата, не panic и не error
func MaterializeShaped(ctx context.Context, exec engine.Executor, d dialect.Dialect, plan *Plan, projected *Statement) ShapedResult {
	if plan == nil {
		return ShapedResult{Err: &ResultError{Code: "NilPlan", Message: "plan is nil"}}
	}
	if projected == nil {
		return ShapedResult{Err: &ResultError{Code: "NilQuery", Message: "projected query is nil"}}
	}

	result := ShapedResult{
		Report: plan.Report,
		Page:   plan.PageNumber(),
	}

	count, err := executeCount(ctx, exec, d, plan)
	if err != nil {
		result.Err = &ResultError{Code: "CountFailed", Message: err.Error()}
		return result
	}
	result.Count = count

	itemsSQL, args, err := projected.BuildSQL(d, 0)
	if err != nil {
		result.Err = &ResultError{Code: "BuildFailed", Message: err.Error()}
		return result
	}
	rows, err := exec.Query(ctx, itemsSQL, args...)
	if err != nil {
		result.Err = &ResultError{Code: "QueryFailed", Message: err.Error()}
		return result
	}
	defer rows.Close()

	records, err := scanRecords(rows, projected)
	if err != nil {
		result.Err = &ResultError{Code: "ScanFailed", Message: err.Error()}
		return result
	}
	result.Items = records

	if incs := projected.Includes(); len(incs) > 0 {
		result.Related, err = executeIncludes(ctx, exec, d, projected, incs)
		if err != nil {
			result.Err = &ResultError{Code: "ExpandFailed", Message: err.Error()}
			return result
		}
	}
	return result
}

// ========== Общие шаги ==========

// executeCount выполняет count-pipeline, если он запланирован
func executeCount(ctx context.Context, exec engine.Executor, d dialect.Dialect, plan *Plan) (*int64, error) {
	if !plan.CountRequested || plan.Count == nil || !plan.Policy.AllowCount {
		return nil, nil
	}

	countSQL, args, err := plan.Count.BuildCountSQL(d)
	if err != nil {
		return nil, err
	}
	rows, err := exec.Query(ctx, countSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute count query: %w", err)
	}
	defer rows.Close()

	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &count, nil
}

// executeIncludes загружает строки eager-load путей
// Дочерние строки выбираются по вхождению внешнего ключа в подзапрос
// ключей родительской выборки, с сохранением фильтра и пагинации
func executeIncludes(ctx context.Context, exec engine.Executor, d dialect.Dialect, items *Statement, incs []Include) (map[string][]map[string]any, error) {
	parent := items.Table()
	keys := parent.KeyColumns()
	if len(keys) != 1 {
		return nil, fmt.Errorf("entity %s: eager load requires a single key column", parent.Entity)
	}

	related := make(map[string][]map[string]any, len(incs))
	for _, inc := range incs {
		// Подзапрос ключей родителя повторяет items-pipeline
		keySub := items.Clone().Project(keys[0].Field)
		subSQL, args, err := keySub.BuildSQL(d, 0)
		if err != nil {
			return nil, err
		}

		childSQL, err := includeSQL(d, inc, subSQL)
		if err != nil {
			return nil, err
		}
		rows, err := exec.Query(ctx, childSQL, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to load relation %s: %w", inc.Relation.Name, err)
		}

		records, err := scanRecords(rows, NewStatement(inc.Target))
		rows.Close()
		if err != nil {
			return nil, err
		}
		related[inc.Relation.Name] = records
	}
	return related, nil
}

// includeSQL строит выборку дочерних строк связи
func includeSQL(d dialect.Dialect, inc Include, keySubquery string) (string, error) {
	cols := make([]string, len(inc.Target.Columns))
	for i, c := range inc.Target.Columns {
		cols[i] = d.Quote(c.Name)
	}
	return fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s IN (%s)",
		strings.Join(cols, ", "),
		d.ResolveTable(inc.Target.Schema, inc.Target.Name),
		d.Quote(inc.Relation.ForeignKey),
		keySubquery,
	), nil
}

// scanRecords читает все строки курсора в записи поле -> значение
// Имена полей берутся из проекции конвейера, не из физических колонок
func scanRecords(rows engine.Rows, stmt *Statement) ([]map[string]any, error) {
	fields := stmt.Columns()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(cols) != len(fields) {
		return nil, fmt.Errorf("column count %d does not match projection %d", len(cols), len(fields))
	}

	var records []map[string]any
	for rows.Next() {
		values := make([]any, len(fields))
		dests := make([]any, len(fields))
		for i := range values {
			dests[i] = &values[i]
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, err
		}

		record := make(map[string]any, len(fields))
		for i, field := range fields {
			record[field] = normalizeValue(values[i])
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// normalizeValue приводит сырые значения драйвера к переносимым типам
func normalizeValue(v any) any {
	switch raw := v.(type) {
	case []byte:
		return string(raw)
	case sql.RawBytes:
		return string(raw)
	}
	return v
}
