package session

import (
	"context"
	"errors"
	"testing"

	"github.com/queuebridge/dbcore/pkg/dialect"
	"github.com/queuebridge/dbcore/pkg/engine"
	"github.com/queuebridge/dbcore/pkg/journal"
	"github.com/queuebridge/dbcore/pkg/metadata"
	"github.com/queuebridge/dbcore/pkg/param"
	"github.com/queuebridge/dbcore/pkg/query"

	_ "github.com/queuebridge/dbcore/pkg/engine/sqlite"
)

// testItem - строка тестовой таблицы
type testItem struct {
	ID     int64
	By     string
	Amount float64
}

func itemMeta() metadata.Table {
	return metadata.Table{
		Entity: "Item",
		Name:   "items",
		Columns: []metadata.Column{
			{Field: "Id", Name: "id", Type: "integer", Key: true, StoreGenerated: true},
			{Field: "LastChangedBy", Name: "last_changed_by", Type: "varchar"},
			{Field: "Amount", Name: "amount", Type: "numeric"},
		},
		Relations: []metadata.Relation{
			{Name: "Tags", Target: "Tag", ForeignKey: "item_id", Collection: true},
		},
	}
}

func tagMeta() metadata.Table {
	return metadata.Table{
		Entity: "Tag",
		Name:   "tags",
		Columns: []metadata.Column{
			{Field: "Id", Name: "id", Type: "integer", Key: true, StoreGenerated: true},
			{Field: "ItemId", Name: "item_id", Type: "integer"},
			{Field: "Label", Name: "label", Type: "varchar"},
		},
	}
}

// newTestSession создает сессию над in-memory SQLite
func newTestSession(t *testing.T) (*Session, *journal.MemoryAppender) {
	t.Helper()
	ctx := context.Background()

	eng, err := engine.New(ctx, engine.Config{Type: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("не удалось подключить sqlite: %v", err)
	}

	ddl := []string{
		`CREATE TABLE items (id INTEGER PRIMARY KEY, last_changed_by TEXT, amount REAL)`,
		`CREATE TABLE tags (id INTEGER PRIMARY KEY, item_id INTEGER, label TEXT)`,
	}
	for _, stmt := range ddl {
		if _, err := eng.Exec(ctx, stmt); err != nil {
			t.Fatalf("DDL: %v", err)
		}
	}

	meta := metadata.NewStaticProvider()
	meta.MustRegister(itemMeta())
	meta.MustRegister(tagMeta())

	mem := journal.NewMemoryAppender()
	s, err := New(eng, meta, Config{Journal: journal.New(nil, mem)})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close(ctx) })

	return s, mem
}

func countItems(t *testing.T, s *Session) int64 {
	t.Helper()

	rows, err := s.Engine().Query(context.Background(), "SELECT COUNT(*) FROM items")
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()

	var n int64
	if !rows.Next() {
		t.Fatal("нет строки результата")
	}
	if err := rows.Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func seedRows(by ...string) []Row {
	rows := make([]Row, len(by))
	for i, name := range by {
		rows[i] = Row{"LastChangedBy": name, "Amount": float64(i + 1)}
	}
	return rows
}

// ========== Bulk insert ==========

func TestBulkInsert(t *testing.T) {
	ctx := context.Background()

	t.Run("пустой вход - no-op", func(t *testing.T) {
		s, _ := newTestSession(t)
		if err := s.BulkInsert(ctx, "Item", nil, InsertOptions{}); err != nil {
			t.Errorf("неожиданная ошибка: %v", err)
		}
		if countItems(t, s) != 0 {
			t.Error("строки не должны были вставиться")
		}
	})

	t.Run("вставка без ключей генерирует ключи", func(t *testing.T) {
		s, _ := newTestSession(t)
		if err := s.BulkInsert(ctx, "Item", seedRows("a", "b", "c"), InsertOptions{}); err != nil {
			t.Fatal(err)
		}
		if countItems(t, s) != 3 {
			t.Errorf("ожидалось 3 строки, получено %d", countItems(t, s))
		}
	})

	t.Run("identity preservation вставляет явные ключи", func(t *testing.T) {
		s, _ := newTestSession(t)
		rows := []Row{
			{"Id": int64(10), "LastChangedBy": "a", "Amount": 1.0},
			{"Id": int64(11), "LastChangedBy": "b", "Amount": 2.0},
		}
		if err := s.BulkInsert(ctx, "Item", rows, InsertOptions{KeepIdentity: true}); err != nil {
			t.Fatal(err)
		}

		got, err := s.Engine().Query(ctx, "SELECT id FROM items ORDER BY id")
		if err != nil {
			t.Fatal(err)
		}
		defer got.Close()

		var ids []int64
		for got.Next() {
			var id int64
			if err := got.Scan(&id); err != nil {
				t.Fatal(err)
			}
			ids = append(ids, id)
		}
		if len(ids) != 2 || ids[0] != 10 || ids[1] != 11 {
			t.Errorf("ожидались ключи [10 11], получено %v", ids)
		}
	})

	t.Run("sequence после identity preservation выдает max+1", func(t *testing.T) {
		s, _ := newTestSession(t)
		rows := []Row{
			{"Id": int64(10), "LastChangedBy": "a", "Amount": 1.0},
			{"Id": int64(11), "LastChangedBy": "b", "Amount": 2.0},
		}
		if err := s.BulkInsert(ctx, "Item", rows, InsertOptions{KeepIdentity: true}); err != nil {
			t.Fatal(err)
		}

		// Вставка без явного ключа должна получить ключ 12
		if err := s.BulkInsert(ctx, "Item", seedRows("c"), InsertOptions{}); err != nil {
			t.Fatal(err)
		}

		got, err := s.Engine().Query(ctx, "SELECT MAX(id) FROM items")
		if err != nil {
			t.Fatal(err)
		}
		defer got.Close()

		var maxID int64
		got.Next()
		if err := got.Scan(&maxID); err != nil {
			t.Fatal(err)
		}
		if maxID != 12 {
			t.Errorf("ожидался ключ 12, получено %d", maxID)
		}
	})

	t.Run("журнал пишет запись об операции", func(t *testing.T) {
		s, mem := newTestSession(t)
		if err := s.BulkInsert(ctx, "Item", seedRows("a"), InsertOptions{}); err != nil {
			t.Fatal(err)
		}

		entries := mem.Entries()
		if len(entries) == 0 {
			t.Fatal("журнал пуст")
		}
		last := entries[len(entries)-1]
		if last.Operation != journal.OpBulkInsert || last.Rows != 1 || last.Checksum == "" {
			t.Errorf("некорректная запись журнала: %+v", last)
		}
	})
}

func TestBulkInsertAtomicity(t *testing.T) {
	// Дубликат ключа во втором батче внутри явной транзакции:
	// ни одна строка ни одного батча не должна быть видна после отката
	ctx := context.Background()
	s, _ := newTestSession(t)

	rows := []Row{
		{"Id": int64(1), "LastChangedBy": "a", "Amount": 1.0},
		{"Id": int64(2), "LastChangedBy": "b", "Amount": 2.0},
		{"Id": int64(2), "LastChangedBy": "dup", "Amount": 3.0},
		{"Id": int64(3), "LastChangedBy": "c", "Amount": 4.0},
	}

	err := s.RunInTransaction(ctx, engine.IsolationDefault, func(ctx context.Context, tx engine.Tx) error {
		return s.BulkInsert(ctx, "Item", rows, InsertOptions{
			KeepIdentity: true,
			Tx:           tx,
			BatchSize:    2, // дубликат попадает во второй батч
		})
	})
	if err == nil {
		t.Fatal("ожидалась ошибка дубликата ключа")
	}

	if n := countItems(t, s); n != 0 {
		t.Errorf("после отката не должно остаться строк, получено %d", n)
	}
}

// ========== Bulk delete ==========

func TestBulkDeleteByIDs(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, s *Session) {
		rows := []Row{
			{"Id": int64(10), "LastChangedBy": "a", "Amount": 1.0},
			{"Id": int64(11), "LastChangedBy": "b", "Amount": 2.0},
			{"Id": int64(12), "LastChangedBy": "c", "Amount": 3.0},
		}
		if err := s.BulkInsert(ctx, "Item", rows, InsertOptions{KeepIdentity: true}); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("удаляется ровно запрошенный ключ", func(t *testing.T) {
		s, _ := newTestSession(t)
		seed(t, s)

		if err := s.BulkDeleteByIDs(ctx, "Item", []int64{10}, DeleteOptions{}); err != nil {
			t.Fatal(err)
		}
		if n := countItems(t, s); n != 2 {
			t.Errorf("ожидалось 2 строки, получено %d", n)
		}
	})

	t.Run("повторное удаление - no-op без ошибки", func(t *testing.T) {
		s, _ := newTestSession(t)
		seed(t, s)

		if err := s.BulkDeleteByIDs(ctx, "Item", []int64{10}, DeleteOptions{}); err != nil {
			t.Fatal(err)
		}
		if err := s.BulkDeleteByIDs(ctx, "Item", []int64{10}, DeleteOptions{}); err != nil {
			t.Errorf("повторное удаление не должно падать: %v", err)
		}
		if n := countItems(t, s); n != 2 {
			t.Errorf("остальные строки должны сохраниться, получено %d", n)
		}
	})

	t.Run("пустой вход - no-op", func(t *testing.T) {
		s, _ := newTestSession(t)
		seed(t, s)

		if err := s.BulkDeleteByIDs(ctx, "Item", nil, DeleteOptions{}); err != nil {
			t.Errorf("неожиданная ошибка: %v", err)
		}
	})

	t.Run("композитный ключ - фатальная ошибка конфигурации", func(t *testing.T) {
		s, _ := newTestSession(t)

		bad := itemMeta()
		bad.Entity = "BadItem"
		bad.Columns[1].Key = true
		s.Metadata().(*metadata.StaticProvider).MustRegister(bad)

		err := s.BulkDeleteByIDs(ctx, "BadItem", []int64{1}, DeleteOptions{})
		if !errors.Is(err, metadata.ErrCompositeKey) {
			t.Errorf("ожидался ErrCompositeKey, получено: %v", err)
		}
	})
}

// ========== Транзакции ==========

func TestRunInTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("commit при успехе", func(t *testing.T) {
		s, _ := newTestSession(t)

		err := s.RunInTransaction(ctx, engine.IsolationDefault, func(ctx context.Context, tx engine.Tx) error {
			_, err := tx.Exec(ctx, "INSERT INTO items (last_changed_by, amount) VALUES (?, ?)", "a", 1.0)
			return err
		})
		if err != nil {
			t.Fatal(err)
		}
		if countItems(t, s) != 1 {
			t.Error("строка должна быть зафиксирована")
		}
	})

	t.Run("rollback при ошибке work", func(t *testing.T) {
		s, _ := newTestSession(t)
		boom := errors.New("boom")

		err := s.RunInTransaction(ctx, engine.IsolationDefault, func(ctx context.Context, tx engine.Tx) error {
			if _, err := tx.Exec(ctx, "INSERT INTO items (last_changed_by, amount) VALUES (?, ?)", "a", 1.0); err != nil {
				return err
			}
			return boom
		})
		// Исходная ошибка сохраняется
		if !errors.Is(err, boom) {
			t.Errorf("ожидался boom, получено: %v", err)
		}
		if countItems(t, s) != 0 {
			t.Error("строка должна быть откачена")
		}
	})

	t.Run("вложенная транзакция отклоняется", func(t *testing.T) {
		s, _ := newTestSession(t)

		err := s.RunInTransaction(ctx, engine.IsolationDefault, func(ctx context.Context, tx engine.Tx) error {
			return s.RunInTransaction(ctx, engine.IsolationDefault, func(ctx context.Context, tx engine.Tx) error {
				return nil
			})
		})
		if !errors.Is(err, ErrNestedTransaction) {
			t.Errorf("ожидался ErrNestedTransaction, получено: %v", err)
		}
	})

	t.Run("состояние Idle восстанавливается", func(t *testing.T) {
		s, _ := newTestSession(t)

		s.RunInTransaction(ctx, engine.IsolationDefault, func(ctx context.Context, tx engine.Tx) error {
			if !s.InTransaction() {
				t.Error("внутри work сессия должна быть Active")
			}
			return nil
		})
		if s.InTransaction() {
			t.Error("после завершения сессия должна быть Idle")
		}
	})
}

// ========== Запросы end-to-end ==========

func TestQueryEndToEnd(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, s *Session) {
		rows := []Row{
			{"Id": int64(-1), "LastChangedBy": "Baldr", "Amount": 1.0},
			{"Id": int64(-2), "LastChangedBy": "Stefan", "Amount": 2.0},
		}
		if err := s.BulkInsert(ctx, "Item", rows, InsertOptions{KeepIdentity: true}); err != nil {
			t.Fatal(err)
		}
	}

	scanItem := func(rows engine.Rows) (testItem, error) {
		var it testItem
		err := rows.Scan(&it.ID, &it.By, &it.Amount)
		return it, err
	}

	t.Run("фильтр с forceCount", func(t *testing.T) {
		s, _ := newTestSession(t)
		seed(t, s)

		base, err := s.Statement("Item")
		if err != nil {
			t.Fatal(err)
		}
		plan, err := query.BuildPlan(base, query.Options{Filter: "LastChangedBy eq 'Stefan'"}, nil, true)
		if err != nil {
			t.Fatal(err)
		}

		result, err := query.MaterializeTyped(ctx, s.Executor(), s.Dialect(), plan, scanItem)
		if err != nil {
			t.Fatal(err)
		}
		if len(result.Items) != 1 || result.Items[0].ID != -2 {
			t.Errorf("ожидалась одна строка с ключом -2: %+v", result.Items)
		}
		if result.Count == nil || *result.Count != 1 {
			t.Errorf("ожидался inline count 1: %v", result.Count)
		}
	})

	t.Run("проекция select возвращает только Id", func(t *testing.T) {
		s, _ := newTestSession(t)
		seed(t, s)

		base, err := s.Statement("Item")
		if err != nil {
			t.Fatal(err)
		}
		plan, err := query.BuildPlan(base, query.Options{Select: []string{"Id"}}, nil, false)
		if err != nil {
			t.Fatal(err)
		}
		plan, err = query.ApplySelectExpand(plan, s.Metadata())
		if err != nil {
			t.Fatal(err)
		}
		if !plan.Shaped {
			t.Fatal("план должен стать shaped")
		}

		shaped := query.MaterializeShaped(ctx, s.Executor(), s.Dialect(), plan, plan.Items)
		if shaped.Err != nil {
			t.Fatalf("неожиданная ошибка: %+v", shaped.Err)
		}
		if len(shaped.Items) != 2 {
			t.Fatalf("ожидалось 2 записи, получено %d", len(shaped.Items))
		}
		for _, record := range shaped.Items {
			if len(record) != 1 {
				t.Errorf("запись должна содержать только Id: %v", record)
			}
			if _, ok := record["Id"]; !ok {
				t.Errorf("запись должна содержать Id: %v", record)
			}
		}
	})

	t.Run("shaped раскрытие материализует связанные строки", func(t *testing.T) {
		s, _ := newTestSession(t)
		seed(t, s)

		tags := []Row{
			{"Id": int64(1), "ItemId": int64(-2), "Label": "urgent"},
		}
		if err := s.BulkInsert(ctx, "Tag", tags, InsertOptions{KeepIdentity: true}); err != nil {
			t.Fatal(err)
		}

		base, _ := s.Statement("Item")
		plan, err := query.BuildPlan(base, query.Options{
			Filter: "LastChangedBy eq 'Stefan'",
			Select: []string{"Id"},
			Expand: []query.Expand{{Path: "Tags"}},
		}, nil, false)
		if err != nil {
			t.Fatal(err)
		}
		plan, err = query.ApplySelectExpand(plan, s.Metadata())
		if err != nil {
			t.Fatal(err)
		}
		if !plan.Shaped {
			t.Fatal("план должен стать shaped")
		}

		shaped := query.MaterializeShaped(ctx, s.Executor(), s.Dialect(), plan, plan.Items)
		if shaped.Err != nil {
			t.Fatalf("неожиданная ошибка: %+v", shaped.Err)
		}
		if len(shaped.Items) != 1 || shaped.Items[0]["Id"] != int64(-2) {
			t.Fatalf("ожидалась одна запись Id=-2: %v", shaped.Items)
		}
		related := shaped.Related["Tags"]
		if len(related) != 1 {
			t.Fatalf("раскрытие должно вернуть связанные строки: %v", shaped.Related)
		}
		if related[0]["Label"] != "urgent" {
			t.Errorf("ожидался тег urgent: %v", related[0])
		}
	})

	t.Run("shaped план отклоняется типизированным материализатором", func(t *testing.T) {
		s, _ := newTestSession(t)
		seed(t, s)

		base, _ := s.Statement("Item")
		plan, _ := query.BuildPlan(base, query.Options{Select: []string{"Id"}}, nil, false)
		plan, _ = query.ApplySelectExpand(plan, s.Metadata())

		_, err := query.MaterializeTyped(ctx, s.Executor(), s.Dialect(), plan, scanItem)
		if !errors.Is(err, query.ErrShapedPlan) {
			t.Errorf("ожидался ErrShapedPlan, получено: %v", err)
		}
	})

	t.Run("запрещенный count дает nil без ошибки", func(t *testing.T) {
		s, _ := newTestSession(t)
		seed(t, s)

		pol := query.DefaultPolicy()
		pol.AllowCount = false

		base, _ := s.Statement("Item")
		plan, err := query.BuildPlan(base, query.Options{Count: true}, &pol, false)
		if err != nil {
			t.Fatal(err)
		}

		result, err := query.MaterializeTyped(ctx, s.Executor(), s.Dialect(), plan, scanItem)
		if err != nil {
			t.Fatal(err)
		}
		if result.Count != nil {
			t.Error("count должен отсутствовать")
		}
		found := false
		for _, e := range result.Report {
			if e.Code == query.ReportCountNotAllowed {
				found = true
			}
		}
		if !found {
			t.Error("ожидалась запись CountNotAllowed в отчете")
		}
	})

	t.Run("eager-load связанных строк", func(t *testing.T) {
		s, _ := newTestSession(t)
		seed(t, s)

		tags := []Row{
			{"Id": int64(1), "ItemId": int64(-2), "Label": "urgent"},
			{"Id": int64(2), "ItemId": int64(-1), "Label": "old"},
		}
		if err := s.BulkInsert(ctx, "Tag", tags, InsertOptions{KeepIdentity: true}); err != nil {
			t.Fatal(err)
		}

		base, _ := s.Statement("Item")
		plan, err := query.BuildPlan(base, query.Options{
			Filter: "LastChangedBy eq 'Stefan'",
			Expand: []query.Expand{{Path: "Tags"}},
		}, nil, false)
		if err != nil {
			t.Fatal(err)
		}
		plan, err = query.ApplyExpandAsInclude(plan, s.Metadata())
		if err != nil {
			t.Fatal(err)
		}

		result, err := query.MaterializeTyped(ctx, s.Executor(), s.Dialect(), plan, scanItem)
		if err != nil {
			t.Fatal(err)
		}
		related := result.Related["Tags"]
		if len(related) != 1 {
			t.Fatalf("ожидался один связанный тег: %v", related)
		}
		if related[0]["Label"] != "urgent" {
			t.Errorf("ожидался тег urgent: %v", related[0])
		}
	})

	t.Run("пагинация с номером страницы", func(t *testing.T) {
		s, _ := newTestSession(t)
		seed(t, s)

		base, _ := s.Statement("Item")
		plan, err := query.BuildPlan(base, query.Options{
			OrderBy: []query.Order{{Field: "Id"}},
			Skip:    query.IntPtr(1),
			Top:     query.IntPtr(1),
		}, nil, false)
		if err != nil {
			t.Fatal(err)
		}

		result, err := query.MaterializeTyped(ctx, s.Executor(), s.Dialect(), plan, scanItem)
		if err != nil {
			t.Fatal(err)
		}
		if len(result.Items) != 1 {
			t.Fatalf("ожидалась одна строка: %+v", result.Items)
		}
		if result.Page != 2 {
			t.Errorf("ожидалась страница 2, получено %d", result.Page)
		}
		if result.Count == nil || *result.Count != 2 {
			t.Errorf("пагинация должна планировать подсчет: %v", result.Count)
		}
	})
}

// ========== Рутины ==========

func TestRoutines(t *testing.T) {
	ctx := context.Background()

	t.Run("out параметр - ошибка конфигурации", func(t *testing.T) {
		s, _ := newTestSession(t)

		_, err := s.CallNonQuery(ctx, "billing", "recalc", param.NewOut("total", "bigint"))
		if !errors.Is(err, dialect.ErrOutParamsNotSupported) {
			t.Errorf("ожидался ErrOutParamsNotSupported, получено: %v", err)
		}
	})

	t.Run("out параметр отклоняется до построения вызова", func(t *testing.T) {
		s, _ := newTestSession(t)

		// Отказ един для всех движков: даже там, где рутины вообще
		// недоступны, out параметр диагностируется первым
		_, _, err := Scalar[int64](ctx, s, "billing", "total", param.NewOut("result", "bigint"))
		if !errors.Is(err, dialect.ErrOutParamsNotSupported) {
			t.Errorf("ожидался ErrOutParamsNotSupported, получено: %v", err)
		}
	})

	t.Run("nonquery на sqlite - ошибка", func(t *testing.T) {
		s, _ := newTestSession(t)

		_, err := s.CallNonQuery(ctx, "", "purge")
		// SQLite не поддерживает рутины вообще
		if err == nil {
			t.Error("ожидалась ошибка")
		}
	})

	t.Run("sqlite рутины недоступны", func(t *testing.T) {
		s, _ := newTestSession(t)

		_, _, err := Scalar[int64](ctx, s, "", "totals")
		if err == nil {
			t.Error("ожидалась ошибка конфигурации")
		}
	})
}
