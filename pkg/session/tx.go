package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/queuebridge/dbcore/pkg/engine"
	"github.com/queuebridge/dbcore/pkg/journal"
)

// ErrNestedTransaction - попытка начать вторую сессионную транзакцию,
// пока активна первая. Ошибка программирования, не подлежит retry
var ErrNestedTransaction = errors.New("session already owns an active transaction")

// Work - транзакционное замыкание. Retry стратегия может перевыполнить
// его целиком при транзиентном сбое, поэтому замыкание обязано быть
// безопасно повторяемым и без неидемпотентных внешних side effects
type Work func(ctx context.Context, tx engine.Tx) error

// RunInTransaction выполняет work в новой сессионной транзакции
// под retry стратегией. Commit при успехе; rollback и возврат исходной
// ошибки при сбое (ошибки rollback глотаются). Сессия всегда
// возвращается в состояние Idle
func (s *Session) RunInTransaction(ctx context.Context, iso engine.Isolation, work Work) error {
	// Вложенная транзакция - ошибка программирования, не deadlock
	s.mu.Lock()
	active := s.tx != nil
	s.mu.Unlock()
	if active {
		return ErrNestedTransaction
	}

	// Одноместный шлюз: две синхронные транзакции не должны
	// гоняться на одной сессии
	s.txGate.Lock()
	defer s.txGate.Unlock()

	started := time.Now()
	err := s.retry.Execute(ctx, func(ctx context.Context) error {
		return s.runOnce(ctx, iso, work)
	})

	s.journal.Record(ctx, journal.OpTransaction, "", 0, started, "", err)
	return err
}

// runOnce выполняет одну попытку транзакции
func (s *Session) runOnce(ctx context.Context, iso engine.Isolation, work Work) error {
	tx, err := s.eng.BeginTx(ctx, iso)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	s.setTx(tx)
	defer s.setTx(nil)

	if err := work(ctx, tx); err != nil {
		// Best-effort rollback: исходная ошибка всегда важнее
		_ = tx.Rollback(ctx)
		s.takePendingReseeds()
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		s.takePendingReseeds()
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	// Отложенные reseed выполняются после фиксации: строки уже видимы,
	// неявный commit DDL больше ничем не угрожает
	for _, task := range s.takePendingReseeds() {
		if err := s.reseed(ctx, s.eng, task.table, task.key); err != nil {
			return fmt.Errorf("deferred reseed of %s failed: %w", task.table.Entity, err)
		}
	}

	return nil
}

// setTx - единственная точка мутации состояния "транзакция активна"
func (s *Session) setTx(tx engine.Tx) {
	s.mu.Lock()
	s.tx = tx
	s.mu.Unlock()
}

// InTransaction сообщает, владеет ли сессия активной транзакцией
func (s *Session) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx != nil
}

// withOwnedTx выполняет fn в транзакции: при ambient != nil участвует
// в чужой транзакции без владения commit/rollback, иначе открывает,
// использует и фиксирует собственную retry-aware транзакцию
func (s *Session) withOwnedTx(ctx context.Context, ambient engine.Tx, fn func(ctx context.Context, tx engine.Tx) error) error {
	if ambient != nil {
		return fn(ctx, ambient)
	}

	return s.retry.Execute(ctx, func(ctx context.Context) error {
		tx, err := s.eng.BeginTx(ctx, engine.IsolationDefault)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if err := fn(ctx, tx); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}
