package exchange

import (
	"fmt"
	"net/http"
	"strings"
)

// SupportedExchanges - список поддерживаемых бирж
var SupportedExchanges = []string{
	"binance",
	"kraken",
	"okx",
}

// NewExchange создает новый адаптер биржи по имени.
// baseURL пустой = боевой эндпоинт, httpClient nil = глобальный клиент.
func NewExchange(name, baseURL string, httpClient *http.Client) (Exchange, error) {
	name = strings.ToLower(name)

	switch name {
	case "binance":
		return NewBinance(baseURL, httpClient), nil
	case "kraken":
		return NewKraken(baseURL, httpClient), nil
	case "okx":
		return NewOKX(baseURL, httpClient), nil
	default:
		return nil, fmt.Errorf("unsupported exchange: %s", name)
	}
}

// IsSupported проверяет, поддерживается ли биржа
func IsSupported(name string) bool {
	name = strings.ToLower(name)
	for _, supported := range SupportedExchanges {
		if name == supported {
			return true
		}
	}
	return false
}

// RequiresPassphrase сообщает, нужна ли бирже passphrase.
// Для неподдерживаемых бирж возвращает false.
func RequiresPassphrase(name string) bool {
	ex, err := NewExchange(name, "", nil)
	if err != nil {
		return false
	}
	return ex.RequiresPassphrase()
}
