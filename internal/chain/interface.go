// Package chain содержит read-only клиенты публичных блокчейн-API.
// Кошельки наблюдаются по адресу, приватных ключей и подписи
// транзакций здесь нет.
package chain

import (
	"context"

	jsoniter "github.com/json-iterator/go"

	"wallagg/internal/source"
)

// Быстрый drop-in вместо encoding/json для разбора ответов API
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client - интерфейс клиента одного блокчейна
type Client interface {
	// Name возвращает идентификатор сети (ethereum, bitcoin)
	Name() string

	// ValidateAddress проверяет синтаксис адреса без похода в сеть.
	// Возвращает ошибку класса invalid_address для некорректных адресов.
	ValidateAddress(address string) error

	// FetchNativeBalance возвращает баланс нативной монеты сети (ETH, BTC)
	FetchNativeBalance(ctx context.Context, address string) (source.Balance, error)

	// FetchTokenBalances возвращает балансы fungible-токенов кошелька.
	// Для сетей без токенов (bitcoin) возвращает пустой срез.
	// Количество обнаруживаемых контрактов ограничено сверху.
	FetchTokenBalances(ctx context.Context, address string) ([]source.Balance, error)
}
