// Package retry реализует провайдерскую retry стратегию для транзиентных
// сбоев транспорта. Стратегия перевыполняет замыкание целиком, поэтому
// замыкания обязаны быть безопасно повторяемыми.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// Func - замыкание, которое можно перевыполнять при транзиентном сбое
type Func func(ctx context.Context) error

// Strategy выполняет замыкания с retry логикой
type Strategy struct {
	config Config
}

// NewStrategy создает Strategy по конфигурации
func NewStrategy(config Config) (*Strategy, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}

	return &Strategy{config: config}, nil
}

// None возвращает стратегию без повторов (одна попытка)
func None() *Strategy {
	return &Strategy{config: Config{Enabled: false}}
}

// Execute выполняет замыкание с retry
// Нетранзиентные ошибки возвращаются немедленно без повторов
func (s *Strategy) Execute(ctx context.Context, fn Func) error {
	if !s.config.Enabled {
		return fn(ctx)
	}

	var lastErr error
	attempts := 0

	for {
		attempts++

		err := fn(ctx)
		if err == nil {
			return nil
		}

		lastErr = err

		// Нетранзиентная ошибка - повторять нельзя
		if !s.isTransient(err) {
			return err
		}

		// Достигли лимита попыток
		if s.config.MaxAttempts > 0 && attempts >= s.config.MaxAttempts {
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", s.config.MaxAttempts, lastErr)
		}

		if ctx.Err() != nil {
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		}

		delay := s.calculateDelay(attempts)

		if s.config.OnRetry != nil {
			s.config.OnRetry(attempts, err, delay)
		}

		select {
		case <-time.After(delay):
			// Следующая попытка
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}
}

// calculateDelay вычисляет задержку для текущей попытки
func (s *Strategy) calculateDelay(attempt int) time.Duration {
	var delay time.Duration

	switch s.config.Backoff {
	case BackoffConstant:
		delay = s.config.InitialDelay

	case BackoffLinear:
		delay = s.config.InitialDelay * time.Duration(attempt)

	case BackoffExponential:
		multiplier := math.Pow(s.config.BackoffMultiplier, float64(attempt-1))
		delay = time.Duration(float64(s.config.InitialDelay) * multiplier)

	default:
		delay = s.config.InitialDelay
	}

	if delay > s.config.MaxDelay {
		delay = s.config.MaxDelay
	}

	// Jitter против thundering herd
	if s.config.Jitter > 0 {
		jitter := time.Duration(float64(delay) * s.config.Jitter * (rand.Float64()*2 - 1))
		delay += jitter
		if delay < 0 {
			delay = s.config.InitialDelay
		}
	}

	return delay
}

// isTransient проверяет, считается ли ошибка транзиентной
// Пустой список паттернов означает retry для всех ошибок
func (s *Strategy) isTransient(err error) bool {
	if err == nil {
		return false
	}

	if len(s.config.TransientPatterns) == 0 {
		return true
	}

	errStr := err.Error()
	for _, pattern := range s.config.TransientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
