package retry

import (
	"fmt"
	"time"
)

// Backoff определяет стратегию задержки между повторами
type Backoff string

const (
	// BackoffConstant - постоянная задержка
	BackoffConstant Backoff = "constant"
	// BackoffLinear - линейное увеличение задержки
	BackoffLinear Backoff = "linear"
	// BackoffExponential - экспоненциальное увеличение задержки
	BackoffExponential Backoff = "exponential"
)

// Config содержит конфигурацию retry стратегии
type Config struct {
	// Enabled - включить retry механизм
	Enabled bool `yaml:"enabled"`

	// MaxAttempts - максимальное количество попыток (включая первую)
	// 0 = бесконечные попытки (не рекомендуется)
	MaxAttempts int `yaml:"max_attempts"`

	// InitialDelay - начальная задержка перед первым повтором
	InitialDelay time.Duration `yaml:"initial_delay"`

	// MaxDelay - максимальная задержка между попытками
	MaxDelay time.Duration `yaml:"max_delay"`

	// Backoff - стратегия увеличения задержки
	Backoff Backoff `yaml:"backoff"`

	// BackoffMultiplier - множитель для exponential backoff (обычно 2.0)
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`

	// Jitter - добавлять случайность к задержке (0.0 - 1.0)
	Jitter float64 `yaml:"jitter"`

	// TransientPatterns - подстроки ошибок, считающихся транзиентными
	// Пустой список = retry для всех ошибок
	TransientPatterns []string `yaml:"transient_patterns"`

	// OnRetry - callback, вызываемый перед каждым повтором
	OnRetry func(attempt int, err error, delay time.Duration) `yaml:"-"`
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must be >= 0, got %d", c.MaxAttempts)
	}

	if c.InitialDelay < 0 {
		return fmt.Errorf("initial_delay must be >= 0")
	}

	if c.MaxDelay < c.InitialDelay {
		return fmt.Errorf("max_delay (%v) must be >= initial_delay (%v)", c.MaxDelay, c.InitialDelay)
	}

	if c.Backoff != BackoffConstant &&
		c.Backoff != BackoffLinear &&
		c.Backoff != BackoffExponential {
		return fmt.Errorf("invalid backoff strategy: %s", c.Backoff)
	}

	if c.BackoffMultiplier <= 0 {
		c.BackoffMultiplier = 2.0 // Default
	}

	if c.Jitter < 0 || c.Jitter > 1.0 {
		return fmt.Errorf("jitter must be between 0.0 and 1.0, got %f", c.Jitter)
	}

	return nil
}

// DefaultConfig возвращает конфигурацию по умолчанию для транзакций:
// три попытки с экспоненциальным backoff, повтор только известных
// транзиентных сбоев транспорта
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		MaxAttempts:       3,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		Backoff:           BackoffExponential,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
		TransientPatterns: []string{
			"connection reset",
			"connection refused",
			"broken pipe",
			"i/o timeout",
			"deadlock",
			"serialization failure",
			"database is locked",
		},
	}
}
