// Package metadata определяет контракт поставщика метаданных сущностей:
// физические имена таблиц и колонок, ключи, store-generated флаги и связи.
// Ядро никогда не выводит эти сведения самостоятельно.
package metadata

import (
	"errors"
	"fmt"
	"strings"
)

// Ошибки конфигурации
var (
	// ErrUnknownEntity - сущность не зарегистрирована у поставщика
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrCompositeKey - операция требует ровно одну ключевую колонку
	ErrCompositeKey = errors.New("entity has a composite primary key")

	// ErrNonIntegerKey - операция требует целочисленный ключ
	ErrNonIntegerKey = errors.New("entity key is not an integer type")

	// ErrUnknownRelation - связь не описана в метаданных
	ErrUnknownRelation = errors.New("unknown relation")
)

// Column описывает одну колонку таблицы
type Column struct {
	// Field - логическое имя поля сущности
	Field string

	// Name - физическое имя колонки
	Name string

	// Type - объявленный SQL тип
	Type string

	// Key - входит ли колонка в первичный ключ
	Key bool

	// StoreGenerated - значение генерирует СУБД (identity/sequence/computed)
	StoreGenerated bool
}

// Relation описывает навигационную связь между сущностями
type Relation struct {
	// Name - логическое имя связи (используется в expand путях)
	Name string

	// Target - целевая сущность
	Target string

	// ForeignKey - физическая колонка целевой таблицы,
	// ссылающаяся на ключ родителя
	ForeignKey string

	// Collection - связь один-ко-многим
	Collection bool
}

// Table описывает сущность и ее физическую таблицу
type Table struct {
	// Entity - логическое имя сущности
	Entity string

	// Schema - логическая схема
	Schema string

	// Name - физическое имя таблицы (без схемы)
	Name string

	// Columns - колонки в порядке объявления
	Columns []Column

	// Relations - навигационные связи
	Relations []Relation
}

// Provider - поставщик метаданных, внешний коллаборатор ядра
type Provider interface {
	// Table возвращает метаданные сущности
	Table(entity string) (Table, error)
}

// ========== Table helpers ==========

// Column ищет колонку по логическому имени поля
func (t Table) Column(field string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Field == field {
			return c, true
		}
	}
	return Column{}, false
}

// KeyColumns возвращает колонки первичного ключа
func (t Table) KeyColumns() []Column {
	var keys []Column
	for _, c := range t.Columns {
		if c.Key {
			keys = append(keys, c)
		}
	}
	return keys
}

// IdentityColumn возвращает единственную store-generated ключевую колонку,
// если она есть
func (t Table) IdentityColumn() (Column, bool) {
	keys := t.KeyColumns()
	if len(keys) == 1 && keys[0].StoreGenerated {
		return keys[0], true
	}
	return Column{}, false
}

// SingleIntegerKey возвращает единственную целочисленную ключевую колонку.
// Композитный или нецелочисленный ключ - ошибка конфигурации
func (t Table) SingleIntegerKey() (Column, error) {
	keys := t.KeyColumns()
	if len(keys) != 1 {
		return Column{}, fmt.Errorf("%w: entity %s has %d key columns", ErrCompositeKey, t.Entity, len(keys))
	}
	if !IsIntegerType(keys[0].Type) {
		return Column{}, fmt.Errorf("%w: entity %s key type %s", ErrNonIntegerKey, t.Entity, keys[0].Type)
	}
	return keys[0], nil
}

// Relation ищет связь по логическому имени (без учета регистра)
func (t Table) Relation(name string) (Relation, bool) {
	for _, r := range t.Relations {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return Relation{}, false
}

// Validate проверяет минимальную корректность метаданных
func (t Table) Validate() error {
	if t.Entity == "" {
		return fmt.Errorf("entity name is empty")
	}
	if t.Name == "" {
		return fmt.Errorf("entity %s: physical table name is empty", t.Entity)
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("entity %s: no columns", t.Entity)
	}

	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if c.Field == "" || c.Name == "" {
			return fmt.Errorf("entity %s: column with empty field/name", t.Entity)
		}
		if seen[c.Field] {
			return fmt.Errorf("entity %s: duplicate field %s", t.Entity, c.Field)
		}
		seen[c.Field] = true
	}
	return nil
}

// IsIntegerType сообщает, относится ли SQL тип к целочисленному семейству
func IsIntegerType(sqlType string) bool {
	switch strings.ToLower(strings.TrimSpace(sqlType)) {
	case "int", "integer", "bigint", "smallint", "tinyint", "int2", "int4", "int8", "serial", "bigserial":
		return true
	default:
		return false
	}
}
