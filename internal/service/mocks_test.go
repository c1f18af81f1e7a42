package service

import (
	"context"
	"sync"
	"time"

	"wallagg/internal/exchange"
	"wallagg/internal/models"
	"wallagg/internal/repository"
	"wallagg/internal/source"
	"wallagg/internal/vault"
)

// ============ Mock AccountRepository ============

type MockAccountRepository struct {
	mu        sync.Mutex
	accounts  map[string]*models.Account
	createErr error
	getErr    error
	nextID    int
}

func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{
		accounts: make(map[string]*models.Account),
		nextID:   1,
	}
}

func (m *MockAccountRepository) Create(account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if account.ID == "" {
		account.ID = "acc-" + time.Now().Format("150405.000000000")
	}
	account.Active = true
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	copied := *account
	m.accounts[account.ID] = &copied
	return nil
}

func (m *MockAccountRepository) GetByID(id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if account, ok := m.accounts[id]; ok {
		copied := *account
		return &copied, nil
	}
	return nil, repository.ErrAccountNotFound
}

func (m *MockAccountRepository) GetAll(activeOnly bool) ([]*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.Account
	for _, account := range m.accounts {
		if activeOnly && !account.Active {
			continue
		}
		copied := *account
		result = append(result, &copied)
	}
	return result, nil
}

func (m *MockAccountRepository) ExistsByAddress(chain, address string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range m.accounts {
		if account.Active && account.Chain == chain && account.Address == address {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockAccountRepository) SoftDelete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok || !account.Active {
		return repository.ErrAccountNotFound
	}
	account.Active = false
	return nil
}

func (m *MockAccountRepository) UpdateDisplayName(id, displayName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	account.DisplayName = displayName
	return nil
}

func (m *MockAccountRepository) Count() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, account := range m.accounts {
		if account.Active {
			count++
		}
	}
	return count, nil
}

// add кладёт аккаунт напрямую, минуя Create
func (m *MockAccountRepository) add(account *models.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
}

// ============ Mock HoldingRepository ============

type MockHoldingRepository struct {
	mu           sync.Mutex
	holdings     map[string][]*models.Holding
	lastSyncedAt map[string]time.Time
	replaceErr   error
	getErr       error
	replaceCalls int
}

func NewMockHoldingRepository() *MockHoldingRepository {
	return &MockHoldingRepository{
		holdings:     make(map[string][]*models.Holding),
		lastSyncedAt: make(map[string]time.Time),
	}
}

func (m *MockHoldingRepository) GetByAccount(accountID string) ([]*models.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.holdings[accountID], nil
}

func (m *MockHoldingRepository) GetAllActive() ([]*models.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.Holding
	for _, holdings := range m.holdings {
		result = append(result, holdings...)
	}
	return result, nil
}

func (m *MockHoldingRepository) ReplaceHoldings(accountID string, holdings []*models.Holding, syncedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceCalls++
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.holdings[accountID] = holdings
	m.lastSyncedAt[accountID] = syncedAt
	return nil
}

func (m *MockHoldingRepository) snapshot(accountID string) []*models.Holding {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holdings[accountID]
}

// ============ Mock PriceSource ============

type MockPriceSource struct {
	quotes   map[string]models.PriceQuote
	err      error
	getCalls int
}

func NewMockPriceSource(quotes map[string]models.PriceQuote) *MockPriceSource {
	return &MockPriceSource{quotes: quotes}
}

func (m *MockPriceSource) GetPrice(ctx context.Context, symbol string) (models.PriceQuote, error) {
	quotes, err := m.GetPrices(ctx, []string{symbol})
	if err != nil {
		return models.PriceQuote{}, err
	}
	quote, ok := quotes[symbol]
	if !ok {
		return models.PriceQuote{}, source.NewError(source.KindUnknownAsset, "mock", "no mapping")
	}
	return quote, nil
}

func (m *MockPriceSource) GetPrices(ctx context.Context, symbols []string) (map[string]models.PriceQuote, error) {
	m.getCalls++
	if m.err != nil {
		return nil, m.err
	}
	result := make(map[string]models.PriceQuote)
	for _, symbol := range symbols {
		if quote, ok := m.quotes[symbol]; ok {
			result[symbol] = quote
		}
	}
	return result, nil
}

func (m *MockPriceSource) GetPricesIn(ctx context.Context, symbols []string, quoteCurrency string) (map[string]models.PriceQuote, error) {
	return m.GetPrices(ctx, symbols)
}

var _ PriceSource = (*MockPriceSource)(nil)

// ============ Mock Exchange ============

type MockExchange struct {
	mu          sync.Mutex
	name        string
	balances    []source.Balance
	fetchErr    error
	connInfo    *exchange.ConnectionInfo
	connErr     error
	fetchCalls  int
	lastCred    vault.Credential
}

func NewMockExchange(name string) *MockExchange {
	return &MockExchange{
		name:     name,
		connInfo: &exchange.ConnectionInfo{},
	}
}

func (m *MockExchange) Name() string { return m.name }

func (m *MockExchange) RequiresPassphrase() bool { return false }

func (m *MockExchange) TestConnection(ctx context.Context, cred vault.Credential) (*exchange.ConnectionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCred = cred
	if m.connErr != nil {
		return nil, m.connErr
	}
	return m.connInfo, nil
}

func (m *MockExchange) FetchBalances(ctx context.Context, cred vault.Credential) ([]source.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCalls++
	m.lastCred = cred
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.balances, nil
}

// ============ Mock Broadcasters ============

type MockSyncBroadcaster struct {
	mu      sync.Mutex
	results []*models.SyncResult
}

func (m *MockSyncBroadcaster) BroadcastSyncResult(result *models.SyncResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, result)
}

func (m *MockSyncBroadcaster) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results)
}

type MockSessionBroadcaster struct {
	mu    sync.Mutex
	infos []vault.SessionInfo
}

func (m *MockSessionBroadcaster) BroadcastSessionUpdate(info vault.SessionInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, info)
}

func (m *MockSessionBroadcaster) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.infos)
}

type MockValuationBroadcaster struct {
	mu     sync.Mutex
	values []*PortfolioValue
}

func (m *MockValuationBroadcaster) BroadcastValuationUpdate(value *PortfolioValue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = append(m.values, value)
}
