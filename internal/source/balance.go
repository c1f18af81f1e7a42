package source

import "github.com/shopspring/decimal"

// Balance - сырой баланс одного актива, как его вернул внешний
// источник. Символ ещё не нормализован, нулевые балансы не отфильтрованы.
// Превращение в models.Holding (нормализация, дедупликация, отбрасывание
// нулей) происходит в сервисе синхронизации.
type Balance struct {
	Symbol       string
	Quantity     decimal.Decimal
	AssetAddress string // адрес контракта для токенов, пустой для нативных активов
}
