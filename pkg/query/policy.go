package query

import "strings"

// Policy - декларативные границы клиентского запроса
// Нарушение политики не является ошибкой: запрещенная возможность
// отбрасывается с записью в отчет плана (мягкое применение)
type Policy struct {
	// MaxPageSize - потолок для top; превышение обрезается
	MaxPageSize int

	// ServerDefaultPageSize - top по умолчанию, когда клиент его не задал
	// 0 = без серверной пагинации по умолчанию
	ServerDefaultPageSize int

	// AllowFilter - разрешен ли клиентский фильтр
	AllowFilter bool

	// AllowOrder - разрешена ли клиентская сортировка
	AllowOrder bool

	// AllowedOrderColumns - allow-list полей сортировки (пусто = любые)
	AllowedOrderColumns []string

	// AllowCount - разрешен ли подсчет общего количества
	AllowCount bool

	// AllowSelect - разрешена ли проекция
	AllowSelect bool

	// AllowExpand - разрешено ли раскрытие связей
	AllowExpand bool

	// AllowedExpandPaths - allow-list путей раскрытия (пусто = любые)
	AllowedExpandPaths []string

	// MaxExpandDepth - максимальная глубина вложенного раскрытия
	MaxExpandDepth int
}

// DefaultPolicy возвращает разрешительную политику с разумными потолками
func DefaultPolicy() Policy {
	return Policy{
		MaxPageSize:           1000,
		ServerDefaultPageSize: 0,
		AllowFilter:           true,
		AllowOrder:            true,
		AllowCount:            true,
		AllowSelect:           true,
		AllowExpand:           true,
		MaxExpandDepth:        2,
	}
}

// OrderColumnAllowed проверяет поле сортировки против allow-list
func (p Policy) OrderColumnAllowed(field string) bool {
	if len(p.AllowedOrderColumns) == 0 {
		return true
	}
	for _, col := range p.AllowedOrderColumns {
		if strings.EqualFold(col, field) {
			return true
		}
	}
	return false
}

// ExpandPathAllowed проверяет путь раскрытия против allow-list
func (p Policy) ExpandPathAllowed(path string) bool {
	if len(p.AllowedExpandPaths) == 0 {
		return true
	}
	for _, allowed := range p.AllowedExpandPaths {
		if strings.EqualFold(allowed, path) {
			return true
		}
	}
	return false
}
