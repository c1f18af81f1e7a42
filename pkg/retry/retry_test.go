package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTest = errors.New("boom")

func fastConfig(maxRetries int) Config {
	return Config{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

// TestDoSuccess проверяет что успешная операция выполняется один раз
func TestDoSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return nil
	}, fastConfig(3))

	if err != nil {
		t.Errorf("Do: got error %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("operation called %d times, want 1", calls)
	}
}

// TestDoRetriesThenSucceeds проверяет успех после неудачных попыток
func TestDoRetriesThenSucceeds(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errTest
		}
		return nil
	}, fastConfig(5))

	if err != nil {
		t.Errorf("Do: got error %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("operation called %d times, want 3", calls)
	}
}

// TestDoExhausted проверяет что после исчерпания попыток возвращается последняя ошибка
func TestDoExhausted(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return errTest
	}, fastConfig(3))

	if !errors.Is(err, errTest) {
		t.Errorf("Do exhausted: got %v, want %v", err, errTest)
	}
	if calls != 3 {
		t.Errorf("operation called %d times, want 3 (MaxRetries)", calls)
	}
}

// TestDoRetryIf проверяет что RetryIf останавливает ретраи
func TestDoRetryIf(t *testing.T) {
	calls := 0
	cfg := fastConfig(5)
	cfg.RetryIf = IsRetryable

	err := Do(context.Background(), func() error {
		calls++
		return Permanent(errTest)
	}, cfg)

	if !errors.Is(err, errTest) {
		t.Errorf("Do: got %v, want wrapped %v", err, errTest)
	}
	if calls != 1 {
		t.Errorf("permanent error retried: %d calls, want 1", calls)
	}
}

// TestDoContextCancel проверяет прерывание ретраев через контекст
func TestDoContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	cfg := Config{
		MaxRetries:   10,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, func() error {
		calls++
		return errTest
	}, cfg)

	if !errors.Is(err, errTest) {
		t.Errorf("Do cancelled: got %v, want last error %v", err, errTest)
	}
	if calls > 2 {
		t.Errorf("operation called %d times after cancel, want <= 2", calls)
	}
}

// TestDoOnRetryCallback проверяет вызов callback'а перед каждым ретраем
func TestDoOnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
	}

	_ = Do(context.Background(), func() error { return errTest }, cfg)

	// 3 попытки = 2 ретрая (перед последней попыткой callback'а нет)
	if len(attempts) != 2 {
		t.Fatalf("OnRetry called %d times, want 2", len(attempts))
	}
	if attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", attempts)
	}
}

// TestDoWithResult проверяет generic-вариант с результатом
func TestDoWithResult(t *testing.T) {
	calls := 0
	result, err := DoWithResult(context.Background(), func() (string, error) {
		calls++
		if calls < 2 {
			return "", errTest
		}
		return "balance", nil
	}, fastConfig(3))

	if err != nil {
		t.Errorf("DoWithResult: got error %v, want nil", err)
	}
	if result != "balance" {
		t.Errorf("DoWithResult: got %q, want %q", result, "balance")
	}
}

// TestDoWithResultExhausted проверяет zero value при исчерпании попыток
func TestDoWithResultExhausted(t *testing.T) {
	result, err := DoWithResult(context.Background(), func() (int, error) {
		return 42, errTest
	}, fastConfig(2))

	if !errors.Is(err, errTest) {
		t.Errorf("DoWithResult: got %v, want %v", err, errTest)
	}
	if result != 0 {
		t.Errorf("DoWithResult exhausted: got %d, want zero value", result)
	}
}

// TestIsRetryable проверяет классификацию ошибок
func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"plain error - retryable by default", errTest, true},
		{"permanent error", Permanent(errTest), false},
		{"temporary error", Temporary(errTest), true},
		{"wrapped permanent", errors.Join(errors.New("ctx"), Permanent(errTest)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// TestRetryIfNotContext проверяет что ошибки контекста не ретраятся
func TestRetryIfNotContext(t *testing.T) {
	if RetryIfNotContext(context.Canceled) {
		t.Error("context.Canceled should not be retried")
	}
	if RetryIfNotContext(context.DeadlineExceeded) {
		t.Error("context.DeadlineExceeded should not be retried")
	}
	if !RetryIfNotContext(errTest) {
		t.Error("plain error should be retried")
	}
}

// TestPermanentTemporaryUnwrap проверяет прозрачность обёрток для errors.Is
func TestPermanentTemporaryUnwrap(t *testing.T) {
	if !errors.Is(Permanent(errTest), errTest) {
		t.Error("Permanent should unwrap to the original error")
	}
	if !errors.Is(Temporary(errTest), errTest) {
		t.Error("Temporary should unwrap to the original error")
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
	if Temporary(nil) != nil {
		t.Error("Temporary(nil) should be nil")
	}
}

// TestCalculateDelayBounds проверяет границы backoff-задержек
func TestCalculateDelayBounds(t *testing.T) {
	cfg := Config{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		JitterFactor: 0,
	}
	cfg.validate()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{10, time.Second}, // capped by MaxDelay
	}

	for _, tt := range tests {
		if got := cfg.calculateDelay(tt.attempt); got != tt.want {
			t.Errorf("calculateDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
