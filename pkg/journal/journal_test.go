package journal

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRecord(t *testing.T) {
	mem := NewMemoryAppender()
	j := New(nil, mem)

	started := time.Now().Add(-10 * time.Millisecond)
	j.Record(context.Background(), OpBulkInsert, "Order", 100, started, "abc", nil)
	j.Record(context.Background(), OpBulkDelete, "Order", 5, started, "", errors.New("boom"))

	entries := mem.Entries()
	if len(entries) != 2 {
		t.Fatalf("ожидалось 2 записи, получено %d", len(entries))
	}

	t.Run("успешная операция", func(t *testing.T) {
		e := entries[0]
		if e.Operation != OpBulkInsert || e.Status != StatusSuccess {
			t.Errorf("некорректная запись: %+v", e)
		}
		if e.Rows != 100 || e.Checksum != "abc" {
			t.Errorf("некорректные rows/checksum: %+v", e)
		}
		if e.ID == "" {
			t.Error("запись должна иметь идентификатор")
		}
		if e.DurationMs < 0 {
			t.Errorf("длительность не может быть отрицательной: %d", e.DurationMs)
		}
	})

	t.Run("проваленная операция", func(t *testing.T) {
		e := entries[1]
		if e.Status != StatusFailed || e.Error == "" {
			t.Errorf("ожидался failed статус с текстом ошибки: %+v", e)
		}
	})
}

func TestNopJournal(t *testing.T) {
	j := Nop()
	// Записи отбрасываются без паники
	j.Record(context.Background(), OpRoutine, "x", 0, time.Now(), "", nil)
	if err := j.Close(); err != nil {
		t.Errorf("неожиданная ошибка: %v", err)
	}
}

func TestChecksum(t *testing.T) {
	rows := [][]any{{int64(1), "a"}, {int64(2), "b"}}

	t.Run("детерминированность", func(t *testing.T) {
		if Checksum(rows) != Checksum(rows) {
			t.Error("checksum должен быть детерминированным")
		}
	})

	t.Run("чувствительность к данным", func(t *testing.T) {
		other := [][]any{{int64(1), "a"}, {int64(2), "c"}}
		if Checksum(rows) == Checksum(other) {
			t.Error("разные данные должны давать разный checksum")
		}
	})

	t.Run("пустой вход", func(t *testing.T) {
		if Checksum(nil) == "" {
			t.Error("checksum пустого входа не должен быть пустой строкой")
		}
	})
}
