package pricing

import "strings"

// coinIDs - соответствие канонических тикеров идентификаторам CoinGecko.
// CoinGecko адресует монеты слагами, а не тикерами. Таблица покрывает
// основные активы; токены вне таблицы оцениваются как unknown_asset
// и пропускаются при расчёте стоимости.
var coinIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"USDT":  "tether",
	"USDC":  "usd-coin",
	"BNB":   "binancecoin",
	"XRP":   "ripple",
	"ADA":   "cardano",
	"SOL":   "solana",
	"DOGE":  "dogecoin",
	"DOT":   "polkadot",
	"MATIC": "matic-network",
	"LTC":   "litecoin",
	"LINK":  "chainlink",
	"UNI":   "uniswap",
	"ATOM":  "cosmos",
	"XLM":   "stellar",
	"XMR":   "monero",
	"ETC":   "ethereum-classic",
	"BCH":   "bitcoin-cash",
	"AVAX":  "avalanche-2",
	"TRX":   "tron",
	"SHIB":  "shiba-inu",
	"DAI":   "dai",
	"WBTC":  "wrapped-bitcoin",
	"AAVE":  "aave",
	"MKR":   "maker",
	"CRO":   "crypto-com-chain",
	"NEAR":  "near",
	"FIL":   "filecoin",
	"ZEC":   "zcash",
}

// coinID возвращает идентификатор CoinGecko для тикера
func coinID(symbol string) (string, bool) {
	id, ok := coinIDs[strings.ToUpper(symbol)]
	return id, ok
}

// symbolByID - обратный индекс, строится один раз при инициализации
var symbolByID = func() map[string]string {
	m := make(map[string]string, len(coinIDs))
	for symbol, id := range coinIDs {
		m[id] = symbol
	}
	return m
}()
