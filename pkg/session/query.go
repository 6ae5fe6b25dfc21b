package session

import (
	"github.com/queuebridge/dbcore/pkg/query"
)

// Statement создает базовый конвейер запроса для сущности
// Дальнейшее построение плана и материализация - в пакете query;
// в качестве исполнителя передается s.Executor(), чтобы запрос
// участвовал в активной транзакции сессии, если она есть
func (s *Session) Statement(entity string) (*query.Statement, error) {
	t, err := s.table(entity)
	if err != nil {
		return nil, err
	}
	return query.NewStatement(t), nil
}
