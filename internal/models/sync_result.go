package models

import (
	"errors"
	"time"
)

// Ошибки валидации моделей
var (
	ErrHoldingNoAccount = errors.New("holding has no account id")
	ErrHoldingNoSymbol  = errors.New("holding has no symbol")
	ErrNegativeQuantity = errors.New("holding quantity is negative")
)

// Исходы синхронизации
const (
	SyncOutcomeSuccess           = "success"
	SyncOutcomePartialFailure    = "partial_failure"
	SyncOutcomeCredentialMissing = "credential_missing"
	SyncOutcomeSourceError       = "source_error"
)

// SyncResult - итог одной попытки синхронизации аккаунта.
// Транзиентная структура: живёт в ответе API и в логах, не персистится.
type SyncResult struct {
	AccountID     string    `json:"account_id"`
	Outcome       string    `json:"outcome"`
	HoldingsCount int       `json:"holdings_count"`
	ErrorDetail   string    `json:"error_detail,omitempty"` // заполнен тогда и только тогда, когда Outcome != success
	FinishedAt    time.Time `json:"finished_at"`
}

// Succeeded возвращает true для полностью успешной синхронизации
func (r *SyncResult) Succeeded() bool {
	return r.Outcome == SyncOutcomeSuccess
}

// Committed возвращает true, если хотя бы часть холдингов была закоммичена
// (success или partial_failure)
func (r *SyncResult) Committed() bool {
	return r.Outcome == SyncOutcomeSuccess || r.Outcome == SyncOutcomePartialFailure
}
