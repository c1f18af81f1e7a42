package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики синхронизации и оценки
// ============================================================
//
// Использование:
// - Grafana дашборды для визуализации
// - Alertmanager для уведомлений о деградации источников

// ============ Метрики синхронизации ============

// SyncsTotal - количество синхронизаций по типу аккаунта и исходу
var SyncsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "wallagg",
		Subsystem: "sync",
		Name:      "syncs_total",
		Help:      "Total number of account synchronizations",
	},
	[]string{"kind", "outcome"}, // kind: wallet, exchange; outcome: success, partial_failure, credential_missing, source_error
)

// SyncDuration - длительность одной синхронизации аккаунта
// Buckets под внешние REST API (сотни миллисекунд - десятки секунд)
var SyncDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "wallagg",
		Subsystem: "sync",
		Name:      "duration_seconds",
		Help:      "Duration of a single account synchronization in seconds",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	},
	[]string{"kind"},
)

// HoldingsCommitted - размер последнего закоммиченного снапшота
var HoldingsCommitted = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "wallagg",
		Subsystem: "sync",
		Name:      "holdings_committed",
		Help:      "Number of holdings committed per snapshot",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
	},
	[]string{"kind"},
)

// SyncsInFlight - текущее количество идущих синхронизаций
var SyncsInFlight = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "wallagg",
		Subsystem: "sync",
		Name:      "in_flight",
		Help:      "Current number of in-flight synchronizations",
	},
)

// ============ Метрики реестра ============

// AccountsActive - количество активных аккаунтов по типу
var AccountsActive = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "wallagg",
		Subsystem: "registry",
		Name:      "accounts_active",
		Help:      "Number of active accounts by kind",
	},
	[]string{"kind"},
)

// ============ Метрики оценки ============

// PortfolioValueGauge - последняя рассчитанная стоимость портфеля
var PortfolioValueGauge = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "wallagg",
		Subsystem: "valuation",
		Name:      "portfolio_value",
		Help:      "Last computed total portfolio value in quote currency",
	},
	[]string{"currency"},
)

// ValuationSkippedSymbols - количество пропущенных при оценке тикеров
var ValuationSkippedSymbols = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "wallagg",
		Subsystem: "valuation",
		Name:      "skipped_symbols_total",
		Help:      "Symbols skipped during valuation because no price mapping exists",
	},
	[]string{"symbol"},
)

// ============ Метрики сессии ============

// SessionCredentials - количество секретов в хранилище сессии
var SessionCredentials = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "wallagg",
		Subsystem: "session",
		Name:      "credentials",
		Help:      "Number of credentials currently held in the session vault",
	},
)

// ============ Вспомогательные функции ============

// RecordSync записывает итог одной синхронизации
func RecordSync(kind, outcome string, duration time.Duration, holdings int) {
	SyncsTotal.WithLabelValues(kind, outcome).Inc()
	SyncDuration.WithLabelValues(kind).Observe(duration.Seconds())
	HoldingsCommitted.WithLabelValues(kind).Observe(float64(holdings))
}

// RecordPortfolioValue записывает рассчитанную стоимость портфеля
func RecordPortfolioValue(currency string, value float64) {
	PortfolioValueGauge.WithLabelValues(currency).Set(value)
}
