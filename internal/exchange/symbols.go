package exchange

import (
	"strings"

	"wallagg/internal/source"
)

// symbolAliases - исторические коды активов, которые биржи возвращают
// вместо общепринятых тикеров. Kraken до сих пор живёт в номенклатуре
// с префиксами X (крипта) и Z (фиат).
var symbolAliases = map[string]string{
	"XBT":   "BTC",
	"XXBT":  "BTC",
	"XETH":  "ETH",
	"XETC":  "ETC",
	"XLTC":  "LTC",
	"XXRP":  "XRP",
	"XXLM":  "XLM",
	"XXMR":  "XMR",
	"XZEC":  "ZEC",
	"XREP":  "REP",
	"XMLN":  "MLN",
	"XDG":   "DOGE",
	"XXDG":  "DOGE",
	"ZUSD":  "USD",
	"ZEUR":  "EUR",
	"ZGBP":  "GBP",
	"ZJPY":  "JPY",
	"ZCAD":  "CAD",
	"ZAUD":  "AUD",
}

// NormalizeSymbol приводит биржевой код актива к каноническому тикеру.
// Канонический тикер - верхний регистр, без биржевых префиксов и
// суффиксов стейкинга (.S) и фьючерсов (.F).
//
// Примеры:
//   - NormalizeSymbol("XXBT")  = "BTC"
//   - NormalizeSymbol("ETH.S") = "ETH"
//   - NormalizeSymbol("usdt")  = "USDT"
func NormalizeSymbol(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))

	// Суффиксы стейкинга/фьючерсов Kraken
	for _, suffix := range []string{".S", ".F", ".M", ".B"} {
		s = strings.TrimSuffix(s, suffix)
	}

	if canonical, ok := symbolAliases[s]; ok {
		return canonical
	}
	return s
}

// mergeBySymbol сливает записи одного канонического тикера в одну
// позицию. После нормализации разные коды биржи (XXBT и XBT.S) дают
// один тикер; дальше по конвейеру каждый актив обязан встречаться
// не больше одного раза.
func mergeBySymbol(balances []source.Balance) []source.Balance {
	merged := make([]source.Balance, 0, len(balances))
	index := make(map[string]int, len(balances))
	for _, b := range balances {
		if i, ok := index[b.Symbol]; ok {
			merged[i].Quantity = merged[i].Quantity.Add(b.Quantity)
			continue
		}
		index[b.Symbol] = len(merged)
		merged = append(merged, b)
	}
	return merged
}
