// Package param содержит провайдеро-нейтральное описание параметра
// для вызова хранимых процедур и функций.
package param

import (
	"fmt"
	"strings"
)

// Direction определяет направление параметра
type Direction string

const (
	// In - входной параметр (по умолчанию)
	In Direction = "in"
	// Out - выходной параметр (требует объявленный тип)
	Out Direction = "out"
)

// Parameter - универсальное описание параметра вызова
// Значение никогда не мутируется при выполнении: результаты
// возвращаются отдельно, а не через сам параметр
type Parameter struct {
	// Name - имя параметра, нормализуется с ведущим маркером "@"
	Name string

	// Value - скалярное значение параметра
	Value any

	// Direction - направление: In или Out
	Direction Direction

	// Type - объявленный SQL тип (обязателен для Out параметров)
	Type string
}

// New создает входной параметр
func New(name string, value any) Parameter {
	return Parameter{
		Name:      Normalize(name),
		Value:     value,
		Direction: In,
	}
}

// NewOut создает выходной параметр с объявленным типом
func NewOut(name string, sqlType string) Parameter {
	return Parameter{
		Name:      Normalize(name),
		Direction: Out,
		Type:      sqlType,
	}
}

// Normalize приводит имя параметра к каноничному виду с ведущим "@"
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return name
	}
	if !strings.HasPrefix(name, "@") {
		name = "@" + name
	}
	return name
}

// BareName возвращает имя без ведущего маркера
func (p Parameter) BareName() string {
	return strings.TrimPrefix(p.Name, "@")
}

// Validate проверяет корректность параметра
func (p Parameter) Validate() error {
	if strings.TrimPrefix(p.Name, "@") == "" {
		return fmt.Errorf("parameter name is empty")
	}

	switch p.Direction {
	case In, "":
		// Ok
	case Out:
		if p.Type == "" {
			return fmt.Errorf("out parameter %s requires a declared type", p.Name)
		}
	default:
		return fmt.Errorf("unknown parameter direction: %s", p.Direction)
	}

	return nil
}

// IsOut сообщает, является ли параметр выходным
func (p Parameter) IsOut() bool {
	return p.Direction == Out
}

// ValidateAll проверяет список параметров
func ValidateAll(params []Parameter) error {
	for i, p := range params {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("parameter %d: %w", i, err)
		}
	}
	return nil
}
