// Package fetch содержит исполнитель запросов к внешним источникам.
// Единая точка, где сходятся квоты источников, ретраи и таймауты:
// адаптеры занимаются только протоколом, сервисы - только семантикой.
package fetch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"wallagg/internal/config"
	"wallagg/internal/source"
	"wallagg/pkg/ratelimit"
	"wallagg/pkg/retry"
)

// Executor выполняет вызовы к внешним источникам с соблюдением квот.
//
// Гарантии:
//   - перед каждой попыткой берётся токен лимитера источника
//   - ретраятся только transient-ошибки (rate_limited, source_unavailable)
//   - каждая попытка ограничена собственным таймаутом
//   - после исчерпания попыток transient-ошибка превращается в
//     терминальную source_error с приложенной последней причиной
type Executor struct {
	limiters    *ratelimit.MultiLimiter
	maxRetries  int
	callTimeout time.Duration
	logger      *zap.Logger
}

// New создаёт исполнитель и регистрирует квоты всех известных источников
func New(cfg config.FetchConfig, logger *zap.Logger) *Executor {
	limiters := ratelimit.NewMultiLimiter()
	limiters.Add("ethereum", cfg.EtherscanRate, cfg.EtherscanBurst)
	limiters.Add("bitcoin", cfg.BlockchainRate, cfg.BlockchainBurst)
	limiters.Add("coingecko", cfg.CoinGeckoRate, cfg.CoinGeckoBurst)
	limiters.Add("binance", cfg.ExchangeRate, cfg.ExchangeBurst)
	limiters.Add("kraken", cfg.ExchangeRate, cfg.ExchangeBurst)
	limiters.Add("okx", cfg.ExchangeRate, cfg.ExchangeBurst)

	return &Executor{
		limiters:    limiters,
		maxRetries:  cfg.MaxRetries,
		callTimeout: cfg.CallTimeout,
		logger:      logger.Named("fetch"),
	}
}

// Register добавляет или заменяет квоту источника.
// Используется в тестах и для нестандартных тарифов.
func (e *Executor) Register(src string, rate, burst float64) {
	e.limiters.Add(src, rate, burst)
}

// retryConfig собирает конфигурацию ретраев для источника
func (e *Executor) retryConfig(src string) retry.Config {
	cfg := retry.ConservativeConfig()
	cfg.MaxRetries = e.maxRetries
	cfg.RetryIf = source.IsTransient
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		e.logger.Warn("повтор запроса к источнику",
			zap.String("source", src),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}
	return cfg
}

// Execute выполняет операцию против источника src.
//
// Операция получает контекст с таймаутом одной попытки. Операция
// должна быть повторяемой: при transient-ошибке она будет вызвана
// заново, включая повторное чтение секретов, если они ей нужны.
func Execute[T any](ctx context.Context, e *Executor, src string, op func(ctx context.Context) (T, error)) (T, error) {
	result, err := retry.DoWithResult(ctx, func() (T, error) {
		var zero T

		// Квота берётся на каждую попытку: ретрай - тоже запрос
		if err := e.limiters.Wait(ctx, src); err != nil {
			return zero, retry.Permanent(err)
		}

		callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
		defer cancel()

		return op(callCtx)
	}, e.retryConfig(src))

	if err != nil && source.IsTransient(err) {
		// Попытки исчерпаны. Наружу transient не выпускаем:
		// для вызывающего это терминальная ошибка источника.
		var zero T
		return zero, source.WrapError(source.KindSourceError, src, err)
	}

	return result, err
}

// Do - вариант Execute для операций без результата
func (e *Executor) Do(ctx context.Context, src string, op func(ctx context.Context) error) error {
	_, err := Execute(ctx, e, src, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
