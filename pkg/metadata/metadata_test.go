package metadata

import (
	"errors"
	"testing"
)

func ordersTable() Table {
	return Table{
		Entity: "Order",
		Schema: "sales",
		Name:   "orders",
		Columns: []Column{
			{Field: "Id", Name: "id", Type: "bigint", Key: true, StoreGenerated: true},
			{Field: "Customer", Name: "customer", Type: "varchar"},
			{Field: "Total", Name: "total", Type: "numeric"},
		},
		Relations: []Relation{
			{Name: "Lines", Target: "OrderLine", ForeignKey: "order_id", Collection: true},
		},
	}
}

func TestColumnLookup(t *testing.T) {
	tbl := ordersTable()

	if _, ok := tbl.Column("Customer"); !ok {
		t.Error("поле Customer должно находиться")
	}
	if _, ok := tbl.Column("Missing"); ok {
		t.Error("несуществующее поле не должно находиться")
	}
}

func TestIdentityColumn(t *testing.T) {
	t.Run("единственный store-generated ключ", func(t *testing.T) {
		col, ok := ordersTable().IdentityColumn()
		if !ok || col.Name != "id" {
			t.Errorf("ожидалась identity колонка id, получено %v %v", col, ok)
		}
	})

	t.Run("ключ без генерации - нет identity", func(t *testing.T) {
		tbl := ordersTable()
		tbl.Columns[0].StoreGenerated = false
		if _, ok := tbl.IdentityColumn(); ok {
			t.Error("identity не должна находиться")
		}
	})
}

func TestSingleIntegerKey(t *testing.T) {
	t.Run("целочисленный одиночный ключ", func(t *testing.T) {
		key, err := ordersTable().SingleIntegerKey()
		if err != nil {
			t.Fatalf("неожиданная ошибка: %v", err)
		}
		if key.Name != "id" {
			t.Errorf("ожидался ключ id, получено %s", key.Name)
		}
	})

	t.Run("композитный ключ - ошибка конфигурации", func(t *testing.T) {
		tbl := ordersTable()
		tbl.Columns[1].Key = true
		_, err := tbl.SingleIntegerKey()
		if !errors.Is(err, ErrCompositeKey) {
			t.Errorf("ожидался ErrCompositeKey, получено: %v", err)
		}
	})

	t.Run("нецелочисленный ключ - ошибка конфигурации", func(t *testing.T) {
		tbl := ordersTable()
		tbl.Columns[0].Type = "uuid"
		_, err := tbl.SingleIntegerKey()
		if !errors.Is(err, ErrNonIntegerKey) {
			t.Errorf("ожидался ErrNonIntegerKey, получено: %v", err)
		}
	})
}

func TestRelationLookup(t *testing.T) {
	tbl := ordersTable()

	// Регистр не учитывается
	if _, ok := tbl.Relation("lines"); !ok {
		t.Error("связь lines должна находиться без учета регистра")
	}
	if _, ok := tbl.Relation("missing"); ok {
		t.Error("несуществующая связь не должна находиться")
	}
}

func TestValidate(t *testing.T) {
	t.Run("корректная таблица", func(t *testing.T) {
		if err := ordersTable().Validate(); err != nil {
			t.Errorf("неожиданная ошибка: %v", err)
		}
	})

	t.Run("дубликат поля", func(t *testing.T) {
		tbl := ordersTable()
		tbl.Columns = append(tbl.Columns, Column{Field: "Total", Name: "total2"})
		if err := tbl.Validate(); err == nil {
			t.Error("ожидалась ошибка дубликата поля")
		}
	})

	t.Run("пустая таблица", func(t *testing.T) {
		if err := (Table{Entity: "X", Name: "x"}).Validate(); err == nil {
			t.Error("ожидалась ошибка отсутствия колонок")
		}
	})
}

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider()
	if err := p.Register(ordersTable()); err != nil {
		t.Fatal(err)
	}

	t.Run("зарегистрированная сущность находится", func(t *testing.T) {
		tbl, err := p.Table("Order")
		if err != nil {
			t.Fatal(err)
		}
		if tbl.Name != "orders" {
			t.Errorf("ожидалась таблица orders, получено %s", tbl.Name)
		}
	})

	t.Run("неизвестная сущность - ошибка", func(t *testing.T) {
		_, err := p.Table("Ghost")
		if !errors.Is(err, ErrUnknownEntity) {
			t.Errorf("ожидался ErrUnknownEntity, получено: %v", err)
		}
	})
}

func TestIsIntegerType(t *testing.T) {
	for _, typ := range []string{"int", "INTEGER", "bigint", " smallint "} {
		if !IsIntegerType(typ) {
			t.Errorf("%q должен считаться целочисленным", typ)
		}
	}
	for _, typ := range []string{"varchar", "uuid", "numeric", ""} {
		if IsIntegerType(typ) {
			t.Errorf("%q не должен считаться целочисленным", typ)
		}
	}
}
