package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testConfig(maxAttempts int, delay time.Duration) Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = maxAttempts
	cfg.InitialDelay = delay
	cfg.TransientPatterns = nil // retry для всех ошибок
	return cfg
}

func TestStrategy_Success(t *testing.T) {
	strategy, err := NewStrategy(testConfig(3, 10*time.Millisecond))
	if err != nil {
		t.Fatalf("Failed to create strategy: %v", err)
	}

	attempts := 0
	err = strategy.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return nil
	})
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestStrategy_SuccessAfterRetries(t *testing.T) {
	strategy, err := NewStrategy(testConfig(5, 10*time.Millisecond))
	if err != nil {
		t.Fatalf("Failed to create strategy: %v", err)
	}

	attempts := 0
	start := time.Now()
	err = strategy.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	})
	duration := time.Since(start)

	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}

	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}

	// Проверяем что были задержки
	if duration < 20*time.Millisecond {
		t.Errorf("Expected delays between retries, duration was too short: %v", duration)
	}
}

func TestStrategy_MaxAttemptsExceeded(t *testing.T) {
	strategy, err := NewStrategy(testConfig(3, 5*time.Millisecond))
	if err != nil {
		t.Fatalf("Failed to create strategy: %v", err)
	}

	attempts := 0
	persistent := errors.New("persistent error")
	err = strategy.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return persistent
	})

	if err == nil {
		t.Fatal("Expected error after max attempts")
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if !errors.Is(err, persistent) {
		t.Errorf("Expected original error to be preserved, got: %v", err)
	}
}

func TestStrategy_NonTransientNotRetried(t *testing.T) {
	cfg := testConfig(5, 5*time.Millisecond)
	cfg.TransientPatterns = []string{"deadlock"}

	strategy, err := NewStrategy(cfg)
	if err != nil {
		t.Fatalf("Failed to create strategy: %v", err)
	}

	attempts := 0
	fatal := errors.New("syntax error near SELECT")
	err = strategy.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return fatal
	})

	if !errors.Is(err, fatal) {
		t.Errorf("Expected original error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Non-transient error must not be retried, got %d attempts", attempts)
	}
}

func TestStrategy_TransientPatternRetried(t *testing.T) {
	cfg := testConfig(5, 5*time.Millisecond)
	cfg.TransientPatterns = []string{"deadlock"}

	strategy, err := NewStrategy(cfg)
	if err != nil {
		t.Fatalf("Failed to create strategy: %v", err)
	}

	attempts := 0
	err = strategy.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("deadlock detected")
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected success, got: %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}

func TestStrategy_ContextCancellation(t *testing.T) {
	strategy, err := NewStrategy(testConfig(0, 50*time.Millisecond))
	if err != nil {
		t.Fatalf("Failed to create strategy: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	err = strategy.Execute(ctx, func(ctx context.Context) error {
		return errors.New("always fails")
	})

	if err == nil {
		t.Fatal("Expected error after context cancellation")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got: %v", err)
	}
}

func TestNone_SingleAttempt(t *testing.T) {
	attempts := 0
	err := None().Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("failure")
	})

	if err == nil {
		t.Fatal("Expected error to propagate")
	}
	if attempts != 1 {
		t.Errorf("Expected exactly 1 attempt, got %d", attempts)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid default", func(c *Config) {}, false},
		{"negative attempts", func(c *Config) { c.MaxAttempts = -1 }, true},
		{"max below initial", func(c *Config) { c.MaxDelay = c.InitialDelay - 1 }, true},
		{"bad backoff", func(c *Config) { c.Backoff = "quadratic" }, true},
		{"bad jitter", func(c *Config) { c.Jitter = 1.5 }, true},
		{"disabled skips validation", func(c *Config) { c.Enabled = false; c.Jitter = 5 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}
