package service

import (
	"context"
	"time"

	"wallagg/internal/exchange"
	"wallagg/internal/models"
	"wallagg/internal/pricing"
	"wallagg/internal/repository"
	"wallagg/internal/vault"
)

// AccountRepositoryInterface определяет интерфейс репозитория аккаунтов
type AccountRepositoryInterface interface {
	Create(account *models.Account) error
	GetByID(id string) (*models.Account, error)
	GetAll(activeOnly bool) ([]*models.Account, error)
	ExistsByAddress(chain, address string) (bool, error)
	SoftDelete(id string) error
	UpdateDisplayName(id, displayName string) error
	Count() (int, error)
}

// HoldingRepositoryInterface определяет интерфейс репозитория холдингов
type HoldingRepositoryInterface interface {
	GetByAccount(accountID string) ([]*models.Holding, error)
	GetAllActive() ([]*models.Holding, error)
	ReplaceHoldings(accountID string, holdings []*models.Holding, syncedAt time.Time) error
}

// PriceSource определяет интерфейс ценового оракула
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) (models.PriceQuote, error)
	GetPrices(ctx context.Context, symbols []string) (map[string]models.PriceQuote, error)
	GetPricesIn(ctx context.Context, symbols []string, quoteCurrency string) (map[string]models.PriceQuote, error)
}

// Проверяем, что реальные реализации удовлетворяют интерфейсам
var _ AccountRepositoryInterface = (*repository.AccountRepository)(nil)
var _ HoldingRepositoryInterface = (*repository.HoldingRepository)(nil)
var _ PriceSource = (*pricing.Oracle)(nil)

// ============ Интерфейсы сервисов для Dependency Injection ============

// AccountServiceInterface определяет интерфейс реестра аккаунтов
type AccountServiceInterface interface {
	RegisterWallet(ctx context.Context, name, chainName, address string) (*models.Account, error)
	RegisterExchange(ctx context.Context, name, exchangeName, apiKey, apiSecret, passphrase string) (*models.Account, *exchange.ConnectionInfo, error)
	GetAccounts(activeOnly bool) ([]*models.Account, error)
	GetAccount(id string) (*models.Account, error)
	GetHoldings(id string) ([]*models.Holding, error)
	DeleteAccount(id string) error
	RenameAccount(id, name string) error
	SessionInfo() vault.SessionInfo
	ClearSession()
}

// SyncServiceInterface определяет интерфейс оркестратора синхронизации
type SyncServiceInterface interface {
	SyncAccount(ctx context.Context, accountID string) (*models.SyncResult, error)
	SyncAll(ctx context.Context, activeOnly bool) ([]*models.SyncResult, error)
}

// ValuationServiceInterface определяет интерфейс расчёта стоимости
type ValuationServiceInterface interface {
	ValueAccount(ctx context.Context, accountID string) (*AccountValue, error)
	ValueAccountIn(ctx context.Context, accountID, quoteCurrency string) (*AccountValue, error)
	ValuePortfolio(ctx context.Context, ids []string) (*PortfolioValue, error)
	ValuePortfolioIn(ctx context.Context, ids []string, quoteCurrency string) (*PortfolioValue, error)
	Currency() string
}

// Проверяем, что реальные сервисы реализуют интерфейсы
var _ AccountServiceInterface = (*AccountService)(nil)
var _ SyncServiceInterface = (*SyncService)(nil)
var _ ValuationServiceInterface = (*ValuationService)(nil)
