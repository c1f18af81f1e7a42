package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding - баланс одного актива, принадлежащий аккаунту на момент
// последней синхронизации.
//
// Полный sync заменяет весь набор Holding аккаунта атомарно
// (repository.HoldingRepository.ReplaceHoldings). Частичная перезапись,
// смешивающая старые и новые записи, запрещена.
type Holding struct {
	ID        int             `json:"id" db:"id"`
	AccountID string          `json:"account_id" db:"account_id"`
	Symbol    string          `json:"symbol" db:"symbol"`     // тикер в верхнем регистре, после alias-нормализации
	Quantity  decimal.Decimal `json:"quantity" db:"quantity"` // всегда >= 0, произвольная точность
	// AssetAddress - адрес контракта/mint для fungible-токенов.
	// Различает токены с одинаковыми тикерами. Пустой для нативных
	// активов и биржевых балансов.
	AssetAddress string    `json:"asset_address,omitempty" db:"asset_address"`
	AsOf         time.Time `json:"as_of" db:"as_of"` // совпадает с LastSyncedAt аккаунта для своего батча
}

// Validate проверяет инварианты Holding перед коммитом.
// Отрицательное количество - баг адаптера источника, фатальная ошибка
// валидации для всего fetch'а.
func (h *Holding) Validate() error {
	if h.AccountID == "" {
		return ErrHoldingNoAccount
	}
	if h.Symbol == "" {
		return ErrHoldingNoSymbol
	}
	if h.Quantity.IsNegative() {
		return ErrNegativeQuantity
	}
	return nil
}

// IsZero возвращает true для нулевого баланса (такие записи отбрасываются)
func (h *Holding) IsZero() bool {
	return h.Quantity.IsZero()
}
