package models

import "time"

// Типы аккаунтов
const (
	AccountKindWallet   = "wallet"
	AccountKindExchange = "exchange"
)

// Поддерживаемые блокчейны для wallet-аккаунтов
const (
	ChainEthereum = "ethereum"
	ChainBitcoin  = "bitcoin"
)

// Account представляет отслеживаемый источник средств: on-chain кошелёк
// или аккаунт на централизованной бирже.
//
// ВАЖНО: Account никогда не содержит секретов. API ключи бирж живут
// только в vault.Vault в памяти процесса и привязаны к сессии.
type Account struct {
	ID          string `json:"id" db:"id"`
	Kind        string `json:"kind" db:"kind"` // wallet или exchange
	DisplayName string `json:"display_name" db:"display_name"`

	// Поля wallet-аккаунта
	Chain   string `json:"chain,omitempty" db:"chain"`     // ethereum, bitcoin
	Address string `json:"address,omitempty" db:"address"` // адрес в формате своего блокчейна

	// Поля exchange-аккаунта
	Exchange string `json:"exchange,omitempty" db:"exchange"` // binance, kraken, okx

	// Метаданные
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty" db:"last_synced_at"` // nil = ни разу не синхронизирован
	Active       bool       `json:"active" db:"active"`                           // soft-delete флаг
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// IsWallet возвращает true для wallet-аккаунта
func (a *Account) IsWallet() bool {
	return a.Kind == AccountKindWallet
}

// IsExchange возвращает true для exchange-аккаунта
func (a *Account) IsExchange() bool {
	return a.Kind == AccountKindExchange
}
