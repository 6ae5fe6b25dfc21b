// Package session реализует оркестрационную сессию (unit of work):
// массовые операции, вызовы хранимых рутин и выполнение планов запросов
// против одного движка СУБД. Сессия не предназначена для конкурентного
// использования несколькими вызывающими одновременно - одна сессия,
// одна логическая единица работы.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/queuebridge/dbcore/pkg/dialect"
	"github.com/queuebridge/dbcore/pkg/engine"
	"github.com/queuebridge/dbcore/pkg/journal"
	"github.com/queuebridge/dbcore/pkg/metadata"
	"github.com/queuebridge/dbcore/pkg/retry"
)

// Config - конфигурация сессии
type Config struct {
	// Retry - retry стратегия для собственных транзакций
	// Нулевое значение = retry.DefaultConfig()
	Retry retry.Config

	// Journal - журнал операций (nil = записи отбрасываются)
	Journal *journal.Journal

	// BatchSize - размер батча для bulk операций без нативного пути
	// 0 = DefaultBatchSize. Настраиваемое значение, не контракт
	BatchSize int
}

// Session - оркестрационная сессия над одним движком СУБД
// Владеет не более чем одной активной транзакцией
type Session struct {
	eng       engine.Engine
	meta      metadata.Provider
	retry     *retry.Strategy
	journal   *journal.Journal
	batchSize int

	// txGate - одноместный шлюз входа в транзакцию: защищает от гонки
	// двух синхронных транзакций на одной сессии
	txGate sync.Mutex

	// mu защищает активную транзакцию; единственный мутатор
	// этого состояния - транзакционный оркестратор (tx.go)
	mu sync.Mutex
	tx engine.Tx

	// pendingReseeds - reseed задачи, отложенные до фиксации сессионной
	// транзакции: DDL reseed (MySQL) внутри транзакции неявно зафиксировал
	// бы всю работу вызывающего
	pendingReseeds []reseedTask
}

// New создает сессию над подключенным движком
func New(eng engine.Engine, meta metadata.Provider, cfg Config) (*Session, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine is nil")
	}
	if meta == nil {
		return nil, fmt.Errorf("metadata provider is nil")
	}

	retryCfg := cfg.Retry
	if !retryCfg.Enabled && retryCfg.MaxAttempts == 0 {
		retryCfg = retry.DefaultConfig()
	}
	strategy, err := retry.NewStrategy(retryCfg)
	if err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}

	jrnl := cfg.Journal
	if jrnl == nil {
		jrnl = journal.Nop()
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &Session{
		eng:       eng,
		meta:      meta,
		retry:     strategy,
		journal:   jrnl,
		batchSize: batchSize,
	}, nil
}

// Engine возвращает движок сессии
func (s *Session) Engine() engine.Engine {
	return s.eng
}

// Dialect возвращает SQL диалект движка сессии
func (s *Session) Dialect() dialect.Dialect {
	return s.eng.Dialect()
}

// Metadata возвращает поставщика метаданных
func (s *Session) Metadata() metadata.Provider {
	return s.meta
}

// Ping проверяет доступность БД
func (s *Session) Ping(ctx context.Context) error {
	return s.eng.Ping(ctx)
}

// Version возвращает версию СУБД
func (s *Session) Version(ctx context.Context) (string, error) {
	return s.eng.Version(ctx)
}

// Close закрывает движок и журнал сессии
func (s *Session) Close(ctx context.Context) error {
	if err := s.journal.Close(); err != nil {
		// Журнал не должен маскировать ошибку закрытия движка
		s.eng.Close(ctx)
		return fmt.Errorf("failed to close journal: %w", err)
	}
	return s.eng.Close(ctx)
}

// Executor возвращает исполнителя для текущего состояния сессии:
// активную транзакцию, если она есть, иначе сам движок
func (s *Session) Executor() engine.Executor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		return s.tx
	}
	return s.eng
}

// queueReseed откладывает reseed до фиксации сессионной транзакции
func (s *Session) queueReseed(t metadata.Table, key metadata.Column) {
	s.mu.Lock()
	s.pendingReseeds = append(s.pendingReseeds, reseedTask{table: t, key: key})
	s.mu.Unlock()
}

// takePendingReseeds забирает и очищает очередь отложенных reseed
func (s *Session) takePendingReseeds() []reseedTask {
	s.mu.Lock()
	tasks := s.pendingReseeds
	s.pendingReseeds = nil
	s.mu.Unlock()
	return tasks
}

// table загружает и проверяет метаданные сущности
func (s *Session) table(entity string) (metadata.Table, error) {
	t, err := s.meta.Table(entity)
	if err != nil {
		return metadata.Table{}, fmt.Errorf("failed to resolve entity metadata: %w", err)
	}
	return t, nil
}
