package metadata

import (
	"fmt"
	"sync"
)

// StaticProvider - поставщик метаданных на основе явной регистрации таблиц
// Потокобезопасен; подходит для приложений и тестов
type StaticProvider struct {
	mu     sync.RWMutex
	tables map[string]Table
}

// Compile-time check
var _ Provider = (*StaticProvider)(nil)

// NewStaticProvider создает пустой StaticProvider
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		tables: make(map[string]Table),
	}
}

// Register регистрирует таблицу сущности
func (p *StaticProvider) Register(t Table) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid table metadata: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.tables[t.Entity] = t
	return nil
}

// MustRegister регистрирует таблицу или паникует
// Использовать только в init() или main()
func (p *StaticProvider) MustRegister(t Table) {
	if err := p.Register(t); err != nil {
		panic(fmt.Sprintf("failed to register entity metadata: %v", err))
	}
}

// Table возвращает метаданные сущности
// Реализует интерфейс Provider
func (p *StaticProvider) Table(entity string) (Table, error) {
	p.mu.RLock()
	t, ok := p.tables[entity]
	p.mu.RUnlock()

	if !ok {
		return Table{}, fmt.Errorf("%w: %q", ErrUnknownEntity, entity)
	}
	return t, nil
}

// Entities возвращает список зарегистрированных сущностей
func (p *StaticProvider) Entities() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.tables))
	for name := range p.tables {
		names = append(names, name)
	}
	return names
}
