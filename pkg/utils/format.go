package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// format.go - форматирование значений для API ответов и логов
//
// Назначение:
// Человекочитаемое представление денежных сумм, балансов и адресов.
// Вся арифметика остаётся в decimal, форматирование только на выходе.
//
// Функции:
// - FormatCurrency: сумма в валюте котировки (2 знака)
// - FormatBalance: баланс актива (до 8 знаков, без хвостовых нулей)
// - ShortenAddress: сокращённый адрес для логов (0x1234...abcd)

// FormatCurrency форматирует денежную сумму в валюте котировки.
// Округление banker's rounding не используется: стандартный half-up
// через decimal.Round, как и при расчёте стоимости портфеля.
//
// Примеры:
//   - FormatCurrency(decimal(1234.5), "usd") = "1234.50 USD"
//   - FormatCurrency(decimal(0.005), "usd")  = "0.01 USD"
func FormatCurrency(amount decimal.Decimal, currency string) string {
	return fmt.Sprintf("%s %s", amount.Round(2).StringFixed(2), strings.ToUpper(currency))
}

// FormatBalance форматирует количество актива.
// До 8 знаков после запятой (точность сатоши), хвостовые нули обрезаются.
//
// Примеры:
//   - FormatBalance(decimal(1.50000000)) = "1.5"
//   - FormatBalance(decimal(0.00000001)) = "0.00000001"
//   - FormatBalance(decimal(42))         = "42"
func FormatBalance(quantity decimal.Decimal) string {
	return quantity.Round(8).String()
}

// ShortenAddress сокращает блокчейн-адрес для логов и UI.
// Полные адреса в логи не пишутся: по сокращённой форме адрес
// узнаваем, но не копируем.
//
// Примеры:
//   - ShortenAddress("0x742d35Cc6634C0532925a3b844Bc454e4438f44e") = "0x742d...f44e"
//   - ShortenAddress("short") = "short"
func ShortenAddress(address string) string {
	if len(address) <= 12 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
