package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceQuote - закэшированная котировка актива в валюте котировки.
//
// Котировка старше TTL оракула никогда не возвращается как свежая:
// оракул обязан перезапросить. Stale-котировка может вернуться только
// как деградированный fallback при недоступности источника цен, с
// выставленным флагом Stale.
type PriceQuote struct {
	Symbol        string          `json:"symbol"`
	QuoteCurrency string          `json:"quote_currency"` // usd, eur, ...
	Price         decimal.Decimal `json:"price"`
	FetchedAt     time.Time       `json:"fetched_at"`
	Stale         bool            `json:"stale,omitempty"` // true = возвращена за пределами TTL как fallback
}

// Age возвращает возраст котировки относительно переданного момента
func (q *PriceQuote) Age(now time.Time) time.Duration {
	return now.Sub(q.FetchedAt)
}

// FreshAt сообщает, свежа ли котировка при заданном TTL
func (q *PriceQuote) FreshAt(now time.Time, ttl time.Duration) bool {
	return q.Age(now) < ttl
}
