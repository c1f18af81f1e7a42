// Package pricing содержит ценовой оракул поверх CoinGecko.
//
// Котировки кэшируются с TTL. Свежая котировка отдаётся из кэша без
// похода в сеть, просроченная - перезапрашивается. Если источник цен
// недоступен, просроченная котировка отдаётся как деградированный
// fallback с выставленным флагом Stale.
package pricing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"wallagg/internal/config"
	"wallagg/internal/fetch"
	"wallagg/internal/models"
	"wallagg/internal/source"
)

// Быстрый drop-in вместо encoding/json для разбора ответов API
var json = jsoniter.ConfigCompatibleWithStandardLibrary

const sourceName = "coingecko"

// Oracle - кэширующий ценовой оракул.
//
// Часы инжектируются: свежесть котировки проверяется вручную
// относительно them, а не встроенным вытеснением go-cache. Записи
// живут в кэше бессрочно, чтобы просроченная котировка оставалась
// доступной как stale fallback.
type Oracle struct {
	baseURL       string
	quoteCurrency string
	ttl           time.Duration

	executor   *fetch.Executor
	httpClient *http.Client
	cache      *gocache.Cache
	group      singleflight.Group
	now        func() time.Time
	logger     *zap.Logger
}

// NewOracle создаёт оракул. now == nil означает time.Now.
func NewOracle(cfg config.PricingConfig, executor *fetch.Executor, httpClient *http.Client, logger *zap.Logger, now func() time.Time) *Oracle {
	if httpClient == nil {
		httpClient = source.GetGlobalHTTPClient().GetClient()
	}
	if now == nil {
		now = time.Now
	}
	return &Oracle{
		baseURL:       cfg.BaseURL,
		quoteCurrency: strings.ToLower(cfg.QuoteCurrency),
		ttl:           cfg.CacheTTL,
		executor:      executor,
		httpClient:    httpClient,
		cache:         gocache.New(gocache.NoExpiration, 0),
		now:           now,
		logger:        logger.Named("pricing"),
	}
}

func cacheKey(symbol, quote string) string {
	return strings.ToUpper(symbol) + "/" + quote
}

// cached возвращает котировку из кэша и признак её свежести
func (o *Oracle) cached(symbol, quote string) (models.PriceQuote, bool, bool) {
	v, ok := o.cache.Get(cacheKey(symbol, quote))
	if !ok {
		return models.PriceQuote{}, false, false
	}
	cachedQuote := v.(models.PriceQuote)
	return cachedQuote, true, cachedQuote.FreshAt(o.now(), o.ttl)
}

// normalizeQuote приводит валюту котировки к нижнему регистру,
// пустая строка означает валюту по умолчанию из конфигурации
func (o *Oracle) normalizeQuote(quoteCurrency string) string {
	quote := strings.ToLower(strings.TrimSpace(quoteCurrency))
	if quote == "" {
		return o.quoteCurrency
	}
	return quote
}

// GetPrice возвращает котировку одного актива.
//
// Возвращает:
//   - unknown_asset: тикер не отображается на известную монету
//   - source_error и прочие: источник недоступен и stale fallback'а нет
func (o *Oracle) GetPrice(ctx context.Context, symbol string) (models.PriceQuote, error) {
	quotes, err := o.GetPrices(ctx, []string{symbol})
	if err != nil {
		return models.PriceQuote{}, err
	}
	quote, ok := quotes[strings.ToUpper(symbol)]
	if !ok {
		return models.PriceQuote{}, source.NewError(source.KindUnknownAsset, sourceName,
			"no price mapping for symbol "+symbol)
	}
	return quote, nil
}

// GetPrices возвращает котировки пакета активов одним запросом.
//
// Неизвестные тикеры молча опускаются из результата: вызывающий
// определяет пропуски по отсутствию ключа. Ошибка возвращается только
// если перезапрос не удался И хотя бы одному известному тикеру нечем
// ответить даже из stale-кэша; полученные котировки возвращаются
// вместе с ошибкой.
func (o *Oracle) GetPrices(ctx context.Context, symbols []string) (map[string]models.PriceQuote, error) {
	return o.GetPricesIn(ctx, symbols, o.quoteCurrency)
}

// GetPricesIn - как GetPrices, но в указанной валюте котировки.
// Пустая валюта означает валюту по умолчанию.
func (o *Oracle) GetPricesIn(ctx context.Context, symbols []string, quoteCurrency string) (map[string]models.PriceQuote, error) {
	quoteIn := o.normalizeQuote(quoteCurrency)

	result := make(map[string]models.PriceQuote, len(symbols))
	var misses []string

	seen := make(map[string]bool, len(symbols))
	for _, raw := range symbols {
		symbol := strings.ToUpper(raw)
		if seen[symbol] {
			continue
		}
		seen[symbol] = true

		if _, ok := coinID(symbol); !ok {
			continue // unknown_asset, в результат не попадает
		}

		if quote, ok, fresh := o.cached(symbol, quoteIn); ok && fresh {
			result[symbol] = quote
			continue
		}
		misses = append(misses, symbol)
	}

	if len(misses) == 0 {
		return result, nil
	}

	fetchErr := o.refresh(ctx, misses, []string{quoteIn})

	var failed []string
	for _, symbol := range misses {
		quote, ok, fresh := o.cached(symbol, quoteIn)
		switch {
		case ok && fresh:
			result[symbol] = quote
		case ok && fetchErr != nil:
			// Деградация: отдаём просроченную котировку с флагом
			quote.Stale = true
			result[symbol] = quote
			o.logger.Warn("источник цен недоступен, отдаю просроченную котировку",
				zap.String("symbol", symbol),
				zap.Duration("age", quote.Age(o.now())),
				zap.Error(fetchErr))
		default:
			failed = append(failed, symbol)
		}
	}

	if len(failed) > 0 && fetchErr != nil {
		return result, fetchErr
	}
	return result, nil
}

// GetQuotes возвращает котировки набора активов сразу в нескольких
// валютах. Все (тикер, валюта) промахи кэша схлопываются в один
// upstream запрос: /simple/price принимает списки и ids, и
// vs_currencies. Семантика пропусков и stale fallback'а та же, что у
// GetPricesIn.
func (o *Oracle) GetQuotes(ctx context.Context, symbols, quoteCurrencies []string) (map[string]map[string]models.PriceQuote, error) {
	currencies := make([]string, 0, len(quoteCurrencies))
	seenCurrency := make(map[string]bool, len(quoteCurrencies))
	for _, raw := range quoteCurrencies {
		currency := o.normalizeQuote(raw)
		if !seenCurrency[currency] {
			seenCurrency[currency] = true
			currencies = append(currencies, currency)
		}
	}
	if len(currencies) == 0 {
		currencies = []string{o.quoteCurrency}
	}

	known := make([]string, 0, len(symbols))
	seenSymbol := make(map[string]bool, len(symbols))
	for _, raw := range symbols {
		symbol := strings.ToUpper(raw)
		if seenSymbol[symbol] {
			continue
		}
		seenSymbol[symbol] = true
		if _, ok := coinID(symbol); ok {
			known = append(known, symbol)
		}
	}

	missSymbols := make(map[string]bool)
	missCurrencies := make(map[string]bool)
	for _, symbol := range known {
		for _, currency := range currencies {
			if _, ok, fresh := o.cached(symbol, currency); !ok || !fresh {
				missSymbols[symbol] = true
				missCurrencies[currency] = true
			}
		}
	}

	var fetchErr error
	if len(missSymbols) > 0 {
		fetchErr = o.refresh(ctx, setKeys(missSymbols), setKeys(missCurrencies))
	}

	result := make(map[string]map[string]models.PriceQuote, len(known))
	var failed bool
	for _, symbol := range known {
		for _, currency := range currencies {
			quote, ok, fresh := o.cached(symbol, currency)
			switch {
			case ok && fresh:
			case ok && fetchErr != nil:
				quote.Stale = true
			default:
				failed = true
				continue
			}
			if result[symbol] == nil {
				result[symbol] = make(map[string]models.PriceQuote, len(currencies))
			}
			result[symbol][currency] = quote
		}
	}

	if failed && fetchErr != nil {
		return result, fetchErr
	}
	return result, nil
}

func setKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// refresh перезапрашивает котировки пакета тикеров.
// Конкурентные перезапросы одинаковых пакетов схлопываются в один
// через singleflight: при десяти параллельных синхронизациях
// источник цен видит один запрос.
func (o *Oracle) refresh(ctx context.Context, symbols, quoteCurrencies []string) error {
	ids := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		id, _ := coinID(symbol)
		ids = append(ids, id)
	}
	sort.Strings(ids)
	joinedIDs := strings.Join(ids, ",")

	currencies := append([]string(nil), quoteCurrencies...)
	sort.Strings(currencies)
	joinedCurrencies := strings.Join(currencies, ",")

	key := joinedCurrencies + "|" + joinedIDs

	_, err, _ := o.group.Do(key, func() (interface{}, error) {
		prices, err := fetch.Execute(ctx, o.executor, sourceName, func(ctx context.Context) (map[string]map[string]float64, error) {
			return o.fetchSimplePrice(ctx, joinedIDs, joinedCurrencies)
		})
		if err != nil {
			return nil, err
		}

		fetchedAt := o.now()
		for id, byCurrency := range prices {
			symbol, ok := symbolByID[id]
			if !ok {
				continue
			}
			for _, currency := range currencies {
				price, ok := byCurrency[currency]
				if !ok {
					continue
				}
				o.cache.Set(cacheKey(symbol, currency), models.PriceQuote{
					Symbol:        symbol,
					QuoteCurrency: currency,
					Price:         decimal.NewFromFloat(price),
					FetchedAt:     fetchedAt,
				}, gocache.NoExpiration)
			}
		}
		return nil, nil
	})
	return err
}

// fetchSimplePrice выполняет один запрос /simple/price
func (o *Oracle) fetchSimplePrice(ctx context.Context, joinedIDs, joinedCurrencies string) (map[string]map[string]float64, error) {
	query := url.Values{}
	query.Set("ids", joinedIDs)
	query.Set("vs_currencies", joinedCurrencies)

	reqURL := o.baseURL + "/simple/price?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, source.WrapError(source.KindSourceError, sourceName, err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, source.WrapError(source.KindSourceUnavailable, sourceName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, source.WrapError(source.KindSourceUnavailable, sourceName, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, source.NewError(source.ClassifyStatus(resp.StatusCode), sourceName,
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var prices map[string]map[string]float64
	if err := json.Unmarshal(body, &prices); err != nil {
		return nil, source.WrapError(source.KindSourceError, sourceName, err)
	}

	return prices, nil
}
