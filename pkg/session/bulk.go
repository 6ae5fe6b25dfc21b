package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/queuebridge/dbcore/pkg/engine"
	"github.com/queuebridge/dbcore/pkg/journal"
	"github.com/queuebridge/dbcore/pkg/metadata"
)

// DefaultBatchSize - размер батча по умолчанию для батчевых bulk операций
// Настраиваемое значение по умолчанию, не гарантированный контракт
const DefaultBatchSize = 1000

// Row - одна строка bulk операции: логическое имя поля -> значение
type Row map[string]any

// InsertOptions - опции массовой вставки
type InsertOptions struct {
	// KeepIdentity - вставлять значения ключа, переданные вызывающим,
	// вместо генерации их СУБД (identity preservation)
	KeepIdentity bool

	// Tx - явное участие в транзакции вызывающего (без владения
	// commit/rollback). nil = операция открывает собственную
	// retry-aware транзакцию вокруг всех батчей.
	// Нетранзакционный reseed (MySQL) при участии откладывается
	// до фиксации сессионной транзакции
	Tx engine.Tx

	// BatchSize - переопределение размера батча (0 = настройка сессии)
	BatchSize int
}

// DeleteOptions - опции массового удаления по ключам
type DeleteOptions struct {
	// Tx - явное участие в транзакции вызывающего
	Tx engine.Tx

	// BatchSize - переопределение размера батча (0 = настройка сессии)
	BatchSize int
}

// columnPlan - упорядоченный план колонок bulk операции
// Строится один раз из метаданных; store-generated колонки исключаются,
// кроме ключевой при identity preservation
type columnPlan struct {
	fields []string // логические имена полей
	names  []string // физические имена колонок
}

// buildColumnPlan строит план колонок по метаданным сущности
func buildColumnPlan(t metadata.Table, keepIdentity bool) columnPlan {
	var plan columnPlan
	for _, c := range t.Columns {
		if c.StoreGenerated && !(keepIdentity && c.Key) {
			continue
		}
		plan.fields = append(plan.fields, c.Field)
		plan.names = append(plan.names, c.Name)
	}
	return plan
}

// rowValues переводит строки в позиционные значения по плану колонок
// Отсутствующее поле становится NULL
func rowValues(plan columnPlan, rows []Row) [][]any {
	values := make([][]any, len(rows))
	for i, row := range rows {
		vals := make([]any, len(plan.fields))
		for j, field := range plan.fields {
			vals[j] = row[field] // nil при отсутствии
		}
		values[i] = vals
	}
	return values
}

// BulkInsert выполняет массовую вставку строк сущности
// Пустой вход - no-op. Выбирает самый быстрый путь движка:
// нативный поток (COPY, TDS bulk) либо батчевые multi-row INSERT
func (s *Session) BulkInsert(ctx context.Context, entity string, rows []Row, opts InsertOptions) error {
	if len(rows) == 0 {
		return nil
	}

	t, err := s.table(entity)
	if err != nil {
		return err
	}

	plan := buildColumnPlan(t, opts.KeepIdentity)
	if len(plan.names) == 0 {
		return fmt.Errorf("entity %s has no insertable columns", entity)
	}
	values := rowValues(plan, rows)

	started := time.Now()
	checksum := journal.Checksum(values)

	var deferredReseed bool
	err = s.withOwnedTx(ctx, opts.Tx, func(ctx context.Context, tx engine.Tx) error {
		pending, err := s.bulkInsertTx(ctx, tx, t, plan, values, opts)
		deferredReseed = pending
		return err
	})

	if err == nil && deferredReseed {
		idCol, _ := t.IdentityColumn()
		if opts.Tx != nil {
			// Участие в чужой транзакции: нетранзакционный reseed внутри
			// нее неявно зафиксировал бы чужую работу. Откладываем до
			// завершения сессионной транзакции
			s.queueReseed(t, idCol)
		} else {
			// Собственная транзакция уже зафиксирована, строки видимы
			err = s.reseed(ctx, s.eng, t, idCol)
		}
	}

	s.journal.Record(ctx, journal.OpBulkInsert, entity, len(rows), started, checksum, err)
	if err != nil {
		return fmt.Errorf("bulk insert into %s failed: %w", entity, err)
	}
	return nil
}

// bulkInsertTx выполняет вставку внутри транзакции
// Возвращает true, когда reseed требуется, но не может выполняться
// в транзакции (DDL с неявным commit) и должен быть отложен
func (s *Session) bulkInsertTx(ctx context.Context, tx engine.Tx, t metadata.Table, plan columnPlan, values [][]any, opts InsertOptions) (bool, error) {
	d := s.eng.Dialect()

	// Identity toggle: включается непосредственно перед потоком
	// и гарантированно выключается после, даже при сбое
	idCol, hasIdentity := t.IdentityColumn()
	if opts.KeepIdentity && hasIdentity {
		if on := d.IdentityInsertStatement(t.Schema, t.Name, true); on != "" {
			if _, err := tx.Exec(ctx, on); err != nil {
				return false, fmt.Errorf("failed to enable identity insert: %w", err)
			}
			defer func() {
				off := d.IdentityInsertStatement(t.Schema, t.Name, false)
				_, _ = tx.Exec(ctx, off)
			}()
		}
	}

	// Нативный путь массовой загрузки
	_, err := s.eng.BulkCopy(ctx, tx, t.Schema, t.Name, plan.names, values)
	if errors.Is(err, engine.ErrBulkCopyUnsupported) {
		// Fallback: батчевые multi-row INSERT
		err = s.batchInsert(ctx, tx, t, plan, values, opts.BatchSize)
	}
	if err != nil {
		return false, err
	}

	// Сдвиг sequence/identity курсора за максимальный вставленный ключ,
	// иначе последующие генерируемые вставки столкнутся с ручными ключами
	if opts.KeepIdentity && hasIdentity && d.ReseedStatement(t.Schema, t.Name, idCol.Name, 0) != "" {
		if !d.TransactionalReseed() {
			return true, nil
		}
		if err := s.reseed(ctx, tx, t, idCol); err != nil {
			return false, err
		}
	}

	return false, nil
}

// batchInsert вставляет строки батчевыми multi-row INSERT без нативного пути
// Батчи выполняются строго в порядке входа; отмена проверяется между батчами
func (s *Session) batchInsert(ctx context.Context, tx engine.Tx, t metadata.Table, plan columnPlan, values [][]any, batchSize int) error {
	if batchSize <= 0 {
		batchSize = s.batchSize
	}

	d := s.eng.Dialect()
	physical := d.ResolveTable(t.Schema, t.Name)

	quoted := make([]string, len(plan.names))
	for i, name := range plan.names {
		quoted[i] = d.Quote(name)
	}
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", physical, strings.Join(quoted, ", "))

	for start := 0; start < len(values); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + batchSize
		if end > len(values) {
			end = len(values)
		}
		batch := values[start:end]

		// Placeholders уникальны в пределах statement
		var tuples []string
		var args []any
		n := 1
		for _, row := range batch {
			placeholders := make([]string, len(row))
			for j, v := range row {
				placeholders[j] = d.Placeholder(n)
				n++
				args = append(args, v)
			}
			tuples = append(tuples, "("+strings.Join(placeholders, ", ")+")")
		}

		if _, err := tx.Exec(ctx, prefix+strings.Join(tuples, ", "), args...); err != nil {
			return fmt.Errorf("failed to insert batch at row %d: %w", start, err)
		}
	}

	return nil
}

// reseed переводит identity/sequence курсор на max(key)+1
func (s *Session) reseed(ctx context.Context, exec engine.Executor, t metadata.Table, key metadata.Column) error {
	d := s.eng.Dialect()

	stmt := d.ReseedStatement(t.Schema, t.Name, key.Name, 0)
	if stmt == "" {
		// СУБД сама выдает max+1 (SQLite)
		return nil
	}

	maxSQL := fmt.Sprintf("SELECT MAX(%s) FROM %s", d.Quote(key.Name), d.ResolveTable(t.Schema, t.Name))
	rows, err := exec.Query(ctx, maxSQL)
	if err != nil {
		return fmt.Errorf("failed to read max key: %w", err)
	}

	var maxKey sql.NullInt64
	if rows.Next() {
		if err := rows.Scan(&maxKey); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan max key: %w", err)
		}
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if !maxKey.Valid {
		return nil // Таблица пуста
	}

	if _, err := exec.Exec(ctx, d.ReseedStatement(t.Schema, t.Name, key.Name, maxKey.Int64)); err != nil {
		return fmt.Errorf("failed to reseed identity: %w", err)
	}
	return nil
}

// reseedTask - отложенный reseed, выполняемый после фиксации
// сессионной транзакции
type reseedTask struct {
	table metadata.Table
	key   metadata.Column
}

// BulkDeleteByIDs выполняет массовое удаление по целочисленным ключам
// Требует ровно одну целочисленную ключевую колонку; пустой вход - no-op
// Повторное удаление тех же ключей - no-op (ноль строк, без ошибки)
func (s *Session) BulkDeleteByIDs(ctx context.Context, entity string, ids []int64, opts DeleteOptions) error {
	if len(ids) == 0 {
		return nil
	}

	t, err := s.table(entity)
	if err != nil {
		return err
	}

	key, err := t.SingleIntegerKey()
	if err != nil {
		return err
	}

	started := time.Now()

	err = s.withOwnedTx(ctx, opts.Tx, func(ctx context.Context, tx engine.Tx) error {
		return s.batchDelete(ctx, tx, t, key, ids, opts.BatchSize)
	})

	s.journal.Record(ctx, journal.OpBulkDelete, entity, len(ids), started, "", err)
	if err != nil {
		return fmt.Errorf("bulk delete from %s failed: %w", entity, err)
	}
	return nil
}

// batchDelete удаляет ключи батчевыми DELETE ... WHERE key IN (...)
func (s *Session) batchDelete(ctx context.Context, tx engine.Tx, t metadata.Table, key metadata.Column, ids []int64, batchSize int) error {
	if batchSize <= 0 {
		batchSize = s.batchSize
	}

	d := s.eng.Dialect()
	prefix := fmt.Sprintf("DELETE FROM %s WHERE %s IN (", d.ResolveTable(t.Schema, t.Name), d.Quote(key.Name))

	for start := 0; start < len(ids); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		placeholders := make([]string, len(batch))
		args := make([]any, len(batch))
		for i, id := range batch {
			placeholders[i] = d.Placeholder(i + 1)
			args[i] = id
		}

		if _, err := tx.Exec(ctx, prefix+strings.Join(placeholders, ", ")+")", args...); err != nil {
			return fmt.Errorf("failed to delete batch at id %d: %w", batch[0], err)
		}
	}

	return nil
}
