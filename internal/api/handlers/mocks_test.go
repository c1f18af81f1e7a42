package handlers

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"wallagg/internal/exchange"
	"wallagg/internal/models"
	"wallagg/internal/repository"
	"wallagg/internal/service"
	"wallagg/internal/vault"
)

// ErrMockDatabase имитирует инфраструктурную ошибку сервиса
var ErrMockDatabase = errors.New("mock database error")

// ============ Mock Account Service ============

// MockAccountService мок для AccountServiceInterface
type MockAccountService struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	holdings map[string][]*models.Holding
	session  vault.SessionInfo
	errs     map[string]error
	nextID   int
}

// NewMockAccountService создает новый мок реестра аккаунтов
func NewMockAccountService() *MockAccountService {
	return &MockAccountService{
		accounts: make(map[string]*models.Account),
		holdings: make(map[string][]*models.Holding),
		session:  vault.SessionInfo{State: vault.StateFresh},
		errs:     make(map[string]error),
		nextID:   1,
	}
}

// SetError инжектирует ошибку для операции (register, get, delete, rename)
func (m *MockAccountService) SetError(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[op] = err
}

// AddAccount кладёт аккаунт напрямую, минуя регистрацию
func (m *MockAccountService) AddAccount(account *models.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
}

// AddHoldings кладёт снапшот холдингов аккаунта
func (m *MockAccountService) AddHoldings(accountID string, holdings []*models.Holding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holdings[accountID] = holdings
}

func (m *MockAccountService) RegisterWallet(ctx context.Context, name, chainName, address string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs["register"]; err != nil {
		return nil, err
	}
	account := &models.Account{
		ID:          "acc-" + strconv.Itoa(m.nextID),
		Kind:        models.AccountKindWallet,
		DisplayName: name,
		Chain:       chainName,
		Address:     address,
		Active:      true,
		CreatedAt:   time.Now(),
	}
	m.nextID++
	m.accounts[account.ID] = account
	return account, nil
}

func (m *MockAccountService) RegisterExchange(ctx context.Context, name, exchangeName, apiKey, apiSecret, passphrase string) (*models.Account, *exchange.ConnectionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs["register"]; err != nil {
		return nil, nil, err
	}
	account := &models.Account{
		ID:          "acc-" + strconv.Itoa(m.nextID),
		Kind:        models.AccountKindExchange,
		DisplayName: name,
		Exchange:    exchangeName,
		Active:      true,
		CreatedAt:   time.Now(),
	}
	m.nextID++
	m.accounts[account.ID] = account
	m.session.State = vault.StateActive
	m.session.CredentialCount++
	return account, &exchange.ConnectionInfo{PermissionsKnown: true}, nil
}

func (m *MockAccountService) GetAccounts(activeOnly bool) ([]*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs["get"]; err != nil {
		return nil, err
	}
	result := make([]*models.Account, 0, len(m.accounts))
	for _, account := range m.accounts {
		if activeOnly && !account.Active {
			continue
		}
		result = append(result, account)
	}
	return result, nil
}

func (m *MockAccountService) GetAccount(id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs["get"]; err != nil {
		return nil, err
	}
	if account, ok := m.accounts[id]; ok {
		return account, nil
	}
	return nil, repository.ErrAccountNotFound
}

func (m *MockAccountService) GetHoldings(id string) ([]*models.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs["get"]; err != nil {
		return nil, err
	}
	if _, ok := m.accounts[id]; !ok {
		return nil, repository.ErrAccountNotFound
	}
	return m.holdings[id], nil
}

func (m *MockAccountService) DeleteAccount(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs["delete"]; err != nil {
		return err
	}
	account, ok := m.accounts[id]
	if !ok || !account.Active {
		return repository.ErrAccountNotFound
	}
	account.Active = false
	return nil
}

func (m *MockAccountService) RenameAccount(id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs["rename"]; err != nil {
		return err
	}
	if name == "" {
		return service.ErrEmptyAccountName
	}
	account, ok := m.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	account.DisplayName = name
	return nil
}

func (m *MockAccountService) SessionInfo() vault.SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

func (m *MockAccountService) ClearSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = vault.SessionInfo{State: vault.StateFresh}
}

// ============ Mock Sync Service ============

// MockSyncService мок для SyncServiceInterface
type MockSyncService struct {
	mu      sync.Mutex
	results map[string]*models.SyncResult
	syncErr error
	allErr  error
}

// NewMockSyncService создает новый мок оркестратора синхронизации
func NewMockSyncService() *MockSyncService {
	return &MockSyncService{
		results: make(map[string]*models.SyncResult),
	}
}

// SetResult задаёт итог синхронизации для аккаунта
func (m *MockSyncService) SetResult(accountID string, result *models.SyncResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[accountID] = result
}

func (m *MockSyncService) SyncAccount(ctx context.Context, accountID string) (*models.SyncResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.syncErr != nil {
		return nil, m.syncErr
	}
	if result, ok := m.results[accountID]; ok {
		return result, nil
	}
	return nil, repository.ErrAccountNotFound
}

func (m *MockSyncService) SyncAll(ctx context.Context, activeOnly bool) ([]*models.SyncResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.allErr != nil {
		return nil, m.allErr
	}
	results := make([]*models.SyncResult, 0, len(m.results))
	for _, result := range m.results {
		results = append(results, result)
	}
	return results, nil
}

// ============ Mock Valuation Service ============

// MockValuationService мок для ValuationServiceInterface
type MockValuationService struct {
	mu        sync.Mutex
	accounts  map[string]*service.AccountValue
	portfolio *service.PortfolioValue
	valueErr  error
}

// NewMockValuationService создает новый мок расчёта стоимости
func NewMockValuationService() *MockValuationService {
	return &MockValuationService{
		accounts: make(map[string]*service.AccountValue),
		portfolio: &service.PortfolioValue{
			Currency:   "usd",
			Total:      decimal.Zero,
			ComputedAt: time.Now(),
		},
	}
}

// SetAccountValue задаёт стоимость аккаунта
func (m *MockValuationService) SetAccountValue(id string, value *service.AccountValue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[id] = value
}

// SetPortfolio задаёт стоимость портфеля
func (m *MockValuationService) SetPortfolio(value *service.PortfolioValue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.portfolio = value
}

func (m *MockValuationService) ValueAccount(ctx context.Context, accountID string) (*service.AccountValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.valueErr != nil {
		return nil, m.valueErr
	}
	if value, ok := m.accounts[accountID]; ok {
		return value, nil
	}
	return nil, repository.ErrAccountNotFound
}

func (m *MockValuationService) ValueAccountIn(ctx context.Context, accountID, quoteCurrency string) (*service.AccountValue, error) {
	return m.ValueAccount(ctx, accountID)
}

func (m *MockValuationService) ValuePortfolio(ctx context.Context, ids []string) (*service.PortfolioValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.valueErr != nil {
		return nil, m.valueErr
	}
	return m.portfolio, nil
}

func (m *MockValuationService) ValuePortfolioIn(ctx context.Context, ids []string, quoteCurrency string) (*service.PortfolioValue, error) {
	return m.ValuePortfolio(ctx, ids)
}

func (m *MockValuationService) Currency() string { return "usd" }

// Моки обязаны реализовывать интерфейсы сервисов
var (
	_ service.AccountServiceInterface   = (*MockAccountService)(nil)
	_ service.SyncServiceInterface      = (*MockSyncService)(nil)
	_ service.ValuationServiceInterface = (*MockValuationService)(nil)
)
