package session

import (
	"context"
	"fmt"
	"time"

	"github.com/queuebridge/dbcore/pkg/dialect"
	"github.com/queuebridge/dbcore/pkg/engine"
	"github.com/queuebridge/dbcore/pkg/journal"
	"github.com/queuebridge/dbcore/pkg/param"
)

// routineArgs валидирует параметры и переводит их в позиционные аргументы
// Out-параметры отклоняются: единая модель вызова не переносима между
// движками с разной семантикой выходных параметров
func routineArgs(params []param.Parameter) ([]any, error) {
	if err := param.ValidateAll(params); err != nil {
		return nil, err
	}
	args := make([]any, 0, len(params))
	for _, p := range params {
		if p.IsOut() {
			return nil, fmt.Errorf("parameter %s: %w", p.Name, dialect.ErrOutParamsNotSupported)
		}
		args = append(args, p.Value)
	}
	return args, nil
}

// buildCall строит текст вызова рутины для текущего движка
func (s *Session) buildCall(schema, name string, kind dialect.RoutineKind, paramCount int) (dialect.RoutineCall, error) {
	call, err := s.eng.Dialect().BuildRoutineCall(schema, name, kind, paramCount)
	if err != nil {
		return dialect.RoutineCall{}, fmt.Errorf("failed to build routine call %s: %w", name, err)
	}
	return call, nil
}

// Scalar вызывает рутину, возвращающую одно значение
// Второй результат false означает, что рутина не вернула строк (или NULL)
func Scalar[T any](ctx context.Context, s *Session, schema, name string, params ...param.Parameter) (T, bool, error) {
	var zero T

	args, err := routineArgs(params)
	if err != nil {
		return zero, false, err
	}
	call, err := s.buildCall(schema, name, dialect.RoutineScalar, len(args))
	if err != nil {
		return zero, false, err
	}

	started := time.Now()
	value, ok, err := scalarQuery[T](ctx, s.Executor(), call.Text, args)
	s.journal.Record(ctx, journal.OpRoutine, name, 0, started, "", err)
	if err != nil {
		return zero, false, fmt.Errorf("routine %s failed: %w", name, err)
	}
	return value, ok, nil
}

// scalarQuery выполняет запрос и читает первое значение первой строки
func scalarQuery[T any](ctx context.Context, exec engine.Executor, query string, args []any) (T, bool, error) {
	var zero T

	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return zero, false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return zero, false, rows.Err()
	}

	var raw any
	if err := rows.Scan(&raw); err != nil {
		return zero, false, err
	}
	if raw == nil {
		return zero, false, nil
	}

	value, err := convertScalar[T](raw)
	if err != nil {
		return zero, false, err
	}
	return value, true, nil
}

// convertScalar приводит значение драйвера к запрошенному типу
// Драйверы возвращают числа разной ширины; нормализуем через int64/float64
func convertScalar[T any](raw any) (T, error) {
	var zero T

	if v, ok := raw.(T); ok {
		return v, nil
	}

	switch p := any(&zero).(type) {
	case *int64:
		switch v := raw.(type) {
		case int:
			*p = int64(v)
			return zero, nil
		case int32:
			*p = int64(v)
			return zero, nil
		case float64:
			*p = int64(v)
			return zero, nil
		}
	case *int:
		switch v := raw.(type) {
		case int64:
			*p = int(v)
			return zero, nil
		case int32:
			*p = int(v)
			return zero, nil
		}
	case *float64:
		switch v := raw.(type) {
		case float32:
			*p = float64(v)
			return zero, nil
		case int64:
			*p = float64(v)
			return zero, nil
		}
	case *string:
		if v, ok := raw.([]byte); ok {
			*p = string(v)
			return zero, nil
		}
	case *bool:
		if v, ok := raw.(int64); ok {
			*p = v != 0
			return zero, nil
		}
	}

	return zero, fmt.Errorf("cannot convert %T to %T", raw, zero)
}

// CallRowSet вызывает рутину, возвращающую набор строк
// Вызывающий обязан закрыть возвращенный Rows
func (s *Session) CallRowSet(ctx context.Context, schema, name string, params ...param.Parameter) (engine.Rows, error) {
	args, err := routineArgs(params)
	if err != nil {
		return nil, err
	}
	call, err := s.buildCall(schema, name, dialect.RoutineRowSet, len(args))
	if err != nil {
		return nil, err
	}

	started := time.Now()
	rows, err := s.Executor().Query(ctx, call.Text, args...)
	s.journal.Record(ctx, journal.OpRoutine, name, 0, started, "", err)
	if err != nil {
		return nil, fmt.Errorf("routine %s failed: %w", name, err)
	}
	return rows, nil
}

// CallNonQuery вызывает рутину без результата (side-effect)
// Возвращает число затронутых строк, если движок его сообщает
func (s *Session) CallNonQuery(ctx context.Context, schema, name string, params ...param.Parameter) (int64, error) {
	args, err := routineArgs(params)
	if err != nil {
		return 0, err
	}
	call, err := s.buildCall(schema, name, dialect.RoutineNonQuery, len(args))
	if err != nil {
		return 0, err
	}

	started := time.Now()
	affected, err := s.Executor().Exec(ctx, call.Text, args...)
	s.journal.Record(ctx, journal.OpRoutine, name, 0, started, "", err)
	if err != nil {
		return 0, fmt.Errorf("routine %s failed: %w", name, err)
	}
	return affected, nil
}
