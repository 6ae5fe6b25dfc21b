// Package journal ведет структурированный журнал операций сессии:
// массовые вставки/удаления, транзакции и вызовы рутин. Записи
// отправляются в подключаемые appenders (память, Redis).
package journal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
)

// Operation - тип операции
type Operation string

const (
	OpBulkInsert  Operation = "bulk_insert"
	OpBulkDelete  Operation = "bulk_delete"
	OpTransaction Operation = "transaction"
	OpRoutine     Operation = "routine"
)

// Status - статус выполнения операции
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Entry - одна запись журнала операций
type Entry struct {
	// ID - уникальный идентификатор записи
	ID string `json:"id"`

	// Timestamp - момент завершения операции
	Timestamp time.Time `json:"timestamp"`

	// Operation - тип операции
	Operation Operation `json:"operation"`

	// Entity - логическое имя сущности (если применимо)
	Entity string `json:"entity,omitempty"`

	// Rows - число обработанных строк
	Rows int `json:"rows,omitempty"`

	// DurationMs - длительность операции в миллисекундах
	DurationMs int64 `json:"duration_ms"`

	// Checksum - XXH3 отпечаток полезной нагрузки (hex)
	Checksum string `json:"checksum,omitempty"`

	// Status - success или failed
	Status Status `json:"status"`

	// Error - текст ошибки при Status == failed
	Error string `json:"error,omitempty"`
}

// Appender - приемник записей журнала
type Appender interface {
	// Append записывает entry
	Append(ctx context.Context, entry *Entry) error

	// Close закрывает appender
	Close() error
}

// Journal пишет записи операций во все подключенные appenders
// Ошибки записи не прерывают основную операцию
type Journal struct {
	appenders []Appender
	onError   func(error)
}

// New создает журнал с указанными appenders
// onError (опционально) вызывается при ошибке записи
func New(onError func(error), appenders ...Appender) *Journal {
	return &Journal{
		appenders: appenders,
		onError:   onError,
	}
}

// Nop возвращает журнал без appenders (записи отбрасываются)
func Nop() *Journal {
	return &Journal{}
}

// Record формирует и записывает entry о завершенной операции
func (j *Journal) Record(ctx context.Context, op Operation, entity string, rows int, started time.Time, checksum string, opErr error) {
	if len(j.appenders) == 0 {
		return
	}

	entry := &Entry{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Operation:  op,
		Entity:     entity,
		Rows:       rows,
		DurationMs: time.Since(started).Milliseconds(),
		Checksum:   checksum,
		Status:     StatusSuccess,
	}
	if opErr != nil {
		entry.Status = StatusFailed
		entry.Error = opErr.Error()
	}

	for _, a := range j.appenders {
		if err := a.Append(ctx, entry); err != nil && j.onError != nil {
			j.onError(err)
		}
	}
}

// Close закрывает все appenders
func (j *Journal) Close() error {
	var firstErr error
	for _, a := range j.appenders {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Checksum вычисляет XXH3 отпечаток строк полезной нагрузки
func Checksum(rows [][]any) string {
	h := xxh3.New()
	for _, row := range rows {
		for _, v := range row {
			fmt.Fprintf(h, "%v|", v)
		}
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// ========== Memory Appender ==========

// MemoryAppender хранит записи в памяти (для тестов и диагностики)
type MemoryAppender struct {
	mu      sync.Mutex
	entries []Entry
}

// Compile-time check
var _ Appender = (*MemoryAppender)(nil)

// NewMemoryAppender создает пустой MemoryAppender
func NewMemoryAppender() *MemoryAppender {
	return &MemoryAppender{}
}

// Append записывает entry
func (m *MemoryAppender) Append(ctx context.Context, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

// Entries возвращает копию накопленных записей
func (m *MemoryAppender) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Close - ничего не делает
func (m *MemoryAppender) Close() error {
	return nil
}
