package ratelimit

import (
	"context"
	"testing"
	"time"
)

// ============================================================
// Тесты RateLimiter
// ============================================================

// TestNewRateLimiterDefaults проверяет нормализацию параметров конструктора
func TestNewRateLimiterDefaults(t *testing.T) {
	tests := []struct {
		name      string
		rate      float64
		burst     float64
		wantRate  float64
		wantBurst float64
	}{
		{"valid params", 5, 10, 5, 10},
		{"zero rate - default", 0, 0, 5, 10},
		{"negative rate - default", -1, 0, 5, 10},
		{"zero burst - 2x rate", 4, 0, 4, 8},
		{"burst below rate - clamped", 10, 3, 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := NewRateLimiter(tt.rate, tt.burst)
			if rl.Rate() != tt.wantRate {
				t.Errorf("Rate() = %v, want %v", rl.Rate(), tt.wantRate)
			}
			if rl.Burst() != tt.wantBurst {
				t.Errorf("Burst() = %v, want %v", rl.Burst(), tt.wantBurst)
			}
		})
	}
}

// TestAllowBurst проверяет что burst токенов доступно сразу
func TestAllowBurst(t *testing.T) {
	rl := NewRateLimiter(1, 3)

	// Первые 3 запроса проходят (полное ведро)
	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Fatalf("Allow() #%d = false, want true (burst)", i+1)
		}
	}

	// Четвёртый - нет токенов
	if rl.Allow() {
		t.Error("Allow() after burst exhausted = true, want false")
	}
}

// TestRefill проверяет пополнение токенов со временем
func TestRefill(t *testing.T) {
	rl := NewRateLimiter(100, 1) // 100 токенов/сек, ведро на 1

	if !rl.Allow() {
		t.Fatal("first Allow() = false, want true")
	}
	if rl.Allow() {
		t.Fatal("second Allow() = true, want false (bucket empty)")
	}

	// Через ~20ms должно накопиться 2 токена, но ведро вмещает 1
	time.Sleep(25 * time.Millisecond)

	if !rl.Allow() {
		t.Error("Allow() after refill = false, want true")
	}
	if rl.Allow() {
		t.Error("Allow() should not exceed burst capacity")
	}
}

// TestWaitBlocks проверяет что Wait блокируется до появления токена
func TestWaitBlocks(t *testing.T) {
	rl := NewRateLimiter(50, 1) // следующий токен через ~20ms

	ctx := context.Background()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("first Wait failed: %v", err)
	}

	start := time.Now()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("second Wait failed: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 10*time.Millisecond {
		t.Errorf("Wait returned too fast: %v, expected ~20ms", elapsed)
	}
}

// TestWaitContextCancel проверяет отмену ожидания через контекст
func TestWaitContextCancel(t *testing.T) {
	rl := NewRateLimiter(0.1, 1) // следующий токен через 10 секунд
	rl.Allow()                   // опустошаем ведро

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := rl.Wait(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("Wait with expired context: got %v, want %v", err, context.DeadlineExceeded)
	}
}

// TestTokens проверяет отчёт о доступных токенах
func TestTokens(t *testing.T) {
	rl := NewRateLimiter(1, 5)

	if got := rl.Tokens(); got < 4.9 {
		t.Errorf("Tokens() fresh limiter = %v, want ~5", got)
	}

	rl.Allow()
	rl.Allow()

	if got := rl.Tokens(); got > 3.1 {
		t.Errorf("Tokens() after 2 Allow = %v, want ~3", got)
	}
}

// ============================================================
// Тесты MultiLimiter
// ============================================================

// TestMultiLimiterIndependence проверяет что лимитеры источников независимы
func TestMultiLimiterIndependence(t *testing.T) {
	ml := NewMultiLimiter()
	ml.Add("etherscan", 1, 1)
	ml.Add("coingecko", 1, 5)

	// Исчерпываем квоту etherscan
	if !ml.Allow("etherscan") {
		t.Fatal("etherscan first Allow = false, want true")
	}
	if ml.Allow("etherscan") {
		t.Error("etherscan second Allow = true, want false")
	}

	// Квота coingecko не пострадала
	if !ml.Allow("coingecko") {
		t.Error("coingecko Allow = false, want true (independent buckets)")
	}
}

// TestMultiLimiterUnknownSource проверяет что неизвестный источник не лимитируется
func TestMultiLimiterUnknownSource(t *testing.T) {
	ml := NewMultiLimiter()

	if !ml.Allow("unknown") {
		t.Error("Allow for unknown source = false, want true")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := ml.Wait(ctx, "unknown"); err != nil {
		t.Errorf("Wait for unknown source: got %v, want nil", err)
	}
}

// TestMultiLimiterGet проверяет доступ к лимитеру по имени
func TestMultiLimiterGet(t *testing.T) {
	ml := NewMultiLimiter()
	ml.Add("blockchain.info", 1, 2)

	rl := ml.Get("blockchain.info")
	if rl == nil {
		t.Fatal("Get returned nil for registered source")
	}
	if rl.Rate() != 1 || rl.Burst() != 2 {
		t.Errorf("Get returned limiter with rate=%v burst=%v, want 1/2", rl.Rate(), rl.Burst())
	}

	if ml.Get("missing") != nil {
		t.Error("Get for missing source should return nil")
	}
}

// TestConcurrentAllow проверяет потокобезопасность под конкурентной нагрузкой
func TestConcurrentAllow(t *testing.T) {
	rl := NewRateLimiter(1, 10)

	granted := make(chan bool, 50)
	for i := 0; i < 50; i++ {
		go func() {
			granted <- rl.Allow()
		}()
	}

	count := 0
	for i := 0; i < 50; i++ {
		if <-granted {
			count++
		}
	}

	// Ровно burst токенов могло быть выдано (плюс копейки от refill)
	if count < 10 || count > 11 {
		t.Errorf("granted %d tokens, want ~10 (burst)", count)
	}
}
