package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"wallagg/internal/models"
	"wallagg/internal/repository"
	"wallagg/pkg/utils"
)

// ValuationBroadcaster - интерфейс для отправки обновлений стоимости через WebSocket
type ValuationBroadcaster interface {
	BroadcastValuationUpdate(value *PortfolioValue)
}

// HoldingValue - стоимость одной позиции.
// Display-поля - готовые к показу строки, арифметика к ним не применяется.
type HoldingValue struct {
	Symbol          string          `json:"symbol"`
	Quantity        decimal.Decimal `json:"quantity"`
	QuantityDisplay string          `json:"quantity_display"`
	Price           decimal.Decimal `json:"price"`
	Value           decimal.Decimal `json:"value"`
	Stale           bool            `json:"stale,omitempty"`
}

// AccountValue - стоимость одного аккаунта.
// SkippedSymbols перечисляет позиции без ценового маппинга: их
// количество известно, стоимость - нет, в Total они не входят.
type AccountValue struct {
	AccountID      string          `json:"account_id"`
	DisplayName    string          `json:"display_name"`
	Currency       string          `json:"currency"`
	Total          decimal.Decimal `json:"total"`
	TotalDisplay   string          `json:"total_display"`
	Holdings       []HoldingValue  `json:"holdings"`
	SkippedSymbols []string        `json:"skipped_symbols,omitempty"`
	Stale          bool            `json:"stale,omitempty"`
}

// PortfolioValue - суммарная стоимость набора аккаунтов
type PortfolioValue struct {
	Currency       string          `json:"currency"`
	Total          decimal.Decimal `json:"total"`
	TotalDisplay   string          `json:"total_display"`
	Accounts       []AccountValue  `json:"accounts"`
	SkippedSymbols []string        `json:"skipped_symbols,omitempty"`
	Stale          bool            `json:"stale,omitempty"`
	ComputedAt     time.Time       `json:"computed_at"`
}

// ValuationService - расчёт стоимости аккаунтов и портфеля.
//
// Все суммы считаются на decimal, float не появляется нигде, кроме
// экспорта метрик. Стоимость портфеля - сумма стоимостей аккаунтов:
// расчёт линеен и не зависит от порядка аккаунтов.
type ValuationService struct {
	accountRepo AccountRepositoryInterface
	holdingRepo HoldingRepositoryInterface
	prices      PriceSource
	currency    string
	now         func() time.Time
	logger      *zap.Logger

	// WebSocket hub для broadcast стоимости
	hub ValuationBroadcaster
}

// NewValuationService создает новый экземпляр сервиса.
// now == nil означает time.Now.
func NewValuationService(
	accountRepo AccountRepositoryInterface,
	holdingRepo HoldingRepositoryInterface,
	prices PriceSource,
	quoteCurrency string,
	logger *zap.Logger,
	now func() time.Time,
) *ValuationService {
	if now == nil {
		now = time.Now
	}
	return &ValuationService{
		accountRepo: accountRepo,
		holdingRepo: holdingRepo,
		prices:      prices,
		currency:    strings.ToLower(quoteCurrency),
		now:         now,
		logger:      logger.Named("ValuationService"),
	}
}

// SetWebSocketHub устанавливает WebSocket hub для broadcast стоимости.
// Вызывается после инициализации Hub в main.go.
func (s *ValuationService) SetWebSocketHub(hub ValuationBroadcaster) {
	s.hub = hub
}

// Currency возвращает валюту котировки по умолчанию
func (s *ValuationService) Currency() string {
	return s.currency
}

// resolveCurrency нормализует запрошенную валюту котировки,
// пустая строка означает валюту по умолчанию
func (s *ValuationService) resolveCurrency(quoteCurrency string) string {
	currency := strings.ToLower(strings.TrimSpace(quoteCurrency))
	if currency == "" {
		return s.currency
	}
	return currency
}

// ValueAccount возвращает стоимость одного аккаунта в валюте по умолчанию
func (s *ValuationService) ValueAccount(ctx context.Context, accountID string) (*AccountValue, error) {
	return s.ValueAccountIn(ctx, accountID, "")
}

// ValueAccountIn возвращает стоимость одного аккаунта в указанной валюте
func (s *ValuationService) ValueAccountIn(ctx context.Context, accountID, quoteCurrency string) (*AccountValue, error) {
	currency := s.resolveCurrency(quoteCurrency)

	account, err := s.accountRepo.GetByID(accountID)
	if err != nil {
		return nil, err
	}
	if !account.Active {
		return nil, repository.ErrAccountNotFound
	}

	holdings, err := s.holdingRepo.GetByAccount(accountID)
	if err != nil {
		return nil, err
	}

	quotes, err := s.prices.GetPricesIn(ctx, holdingSymbols(holdings), currency)
	if err != nil {
		return nil, err
	}

	value := s.valueHoldings(account, holdings, quotes, currency)
	return &value, nil
}

// ValuePortfolio возвращает суммарную стоимость набора аккаунтов в валюте
// по умолчанию. ids == nil означает все активные аккаунты.
func (s *ValuationService) ValuePortfolio(ctx context.Context, ids []string) (*PortfolioValue, error) {
	return s.ValuePortfolioIn(ctx, ids, "")
}

// ValuePortfolioIn возвращает суммарную стоимость набора аккаунтов в
// указанной валюте. Котировки запрашиваются одним батчем на весь портфель.
func (s *ValuationService) ValuePortfolioIn(ctx context.Context, ids []string, quoteCurrency string) (*PortfolioValue, error) {
	currency := s.resolveCurrency(quoteCurrency)

	accounts, byAccount, err := s.collectHoldings(ids)
	if err != nil {
		return nil, err
	}

	var all []*models.Holding
	for _, holdings := range byAccount {
		all = append(all, holdings...)
	}

	quotes, err := s.prices.GetPricesIn(ctx, holdingSymbols(all), currency)
	if err != nil {
		return nil, err
	}

	portfolio := &PortfolioValue{
		Currency:   currency,
		Total:      decimal.Zero,
		Accounts:   make([]AccountValue, 0, len(accounts)),
		ComputedAt: s.now(),
	}

	skipped := make(map[string]bool)
	for _, account := range accounts {
		value := s.valueHoldings(account, byAccount[account.ID], quotes, currency)
		portfolio.Total = portfolio.Total.Add(value.Total)
		portfolio.Stale = portfolio.Stale || value.Stale
		for _, symbol := range value.SkippedSymbols {
			skipped[symbol] = true
		}
		portfolio.Accounts = append(portfolio.Accounts, value)
	}
	portfolio.SkippedSymbols = sortedKeys(skipped)
	portfolio.TotalDisplay = utils.FormatCurrency(portfolio.Total, currency)

	// Метрики - единственное место, где сумма теряет точность
	approx, _ := portfolio.Total.Float64()
	RecordPortfolioValue(currency, approx)

	s.logger.Info("портфель оценён",
		zap.Int("accounts", len(portfolio.Accounts)),
		zap.String("total", portfolio.Total.String()),
		zap.Strings("skipped", portfolio.SkippedSymbols),
		zap.Bool("stale", portfolio.Stale))

	if s.hub != nil {
		s.hub.BroadcastValuationUpdate(portfolio)
	}

	return portfolio, nil
}

// collectHoldings собирает активные аккаунты и их холдинги
func (s *ValuationService) collectHoldings(ids []string) ([]*models.Account, map[string][]*models.Holding, error) {
	byAccount := make(map[string][]*models.Holding)

	if ids == nil {
		accounts, err := s.accountRepo.GetAll(true)
		if err != nil {
			return nil, nil, err
		}
		holdings, err := s.holdingRepo.GetAllActive()
		if err != nil {
			return nil, nil, err
		}
		for _, h := range holdings {
			byAccount[h.AccountID] = append(byAccount[h.AccountID], h)
		}
		return accounts, byAccount, nil
	}

	accounts := make([]*models.Account, 0, len(ids))
	for _, id := range ids {
		account, err := s.accountRepo.GetByID(id)
		if err != nil {
			return nil, nil, err
		}
		if !account.Active {
			return nil, nil, repository.ErrAccountNotFound
		}
		holdings, err := s.holdingRepo.GetByAccount(id)
		if err != nil {
			return nil, nil, err
		}
		accounts = append(accounts, account)
		byAccount[id] = holdings
	}
	return accounts, byAccount, nil
}

// valueHoldings считает стоимость набора холдингов по готовой карте котировок
func (s *ValuationService) valueHoldings(account *models.Account, holdings []*models.Holding, quotes map[string]models.PriceQuote, currency string) AccountValue {
	value := AccountValue{
		AccountID:   account.ID,
		DisplayName: account.DisplayName,
		Currency:    currency,
		Total:       decimal.Zero,
		Holdings:    make([]HoldingValue, 0, len(holdings)),
	}

	skipped := make(map[string]bool)
	for _, holding := range holdings {
		quote, ok := quotes[holding.Symbol]
		if !ok {
			// Нет ценового маппинга: позиция видна, но не оценена
			skipped[holding.Symbol] = true
			ValuationSkippedSymbols.WithLabelValues(holding.Symbol).Inc()
			continue
		}

		value.Holdings = append(value.Holdings, HoldingValue{
			Symbol:          holding.Symbol,
			Quantity:        holding.Quantity,
			QuantityDisplay: utils.FormatBalance(holding.Quantity),
			Price:           quote.Price,
			Value:           holding.Quantity.Mul(quote.Price),
			Stale:           quote.Stale,
		})
		value.Total = value.Total.Add(holding.Quantity.Mul(quote.Price))
		value.Stale = value.Stale || quote.Stale
	}
	value.SkippedSymbols = sortedKeys(skipped)
	value.TotalDisplay = utils.FormatCurrency(value.Total, currency)

	return value
}

// holdingSymbols возвращает уникальные тикеры набора холдингов
func holdingSymbols(holdings []*models.Holding) []string {
	seen := make(map[string]bool, len(holdings))
	symbols := make([]string, 0, len(holdings))
	for _, h := range holdings {
		if !seen[h.Symbol] {
			seen[h.Symbol] = true
			symbols = append(symbols, h.Symbol)
		}
	}
	return symbols
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
