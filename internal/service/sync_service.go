package service

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"wallagg/internal/chain"
	"wallagg/internal/config"
	"wallagg/internal/exchange"
	"wallagg/internal/fetch"
	"wallagg/internal/models"
	"wallagg/internal/repository"
	"wallagg/internal/source"
	"wallagg/internal/vault"
	"wallagg/pkg/utils"
)

// Предел одновременно синхронизируемых аккаунтов в SyncAll.
// Разные аккаунты ходят к разным источникам, но общие квоты источников
// всё равно делятся, больший параллелизм лишь наращивает очереди.
const maxConcurrentSyncs = 4

// SyncBroadcaster - интерфейс для отправки итогов синхронизации через WebSocket
type SyncBroadcaster interface {
	BroadcastSyncResult(result *models.SyncResult)
}

// SyncService - оркестратор синхронизации.
//
// Синхронизации одного аккаунта сериализованы: повторный запрос, пока
// предыдущий не завершился, отклоняется с sync_in_progress. Разные
// аккаунты синхронизируются параллельно.
//
// Помимо таймаута одного вызова в исполнителе, весь fetch одного
// sync'а ограничен общим бюджетом времени: после его исчерпания
// оставшиеся вызовы и ретраи бросаются, исход - source_error с
// пометкой таймаута.
type SyncService struct {
	accountRepo AccountRepositoryInterface
	holdingRepo HoldingRepositoryInterface
	vault       *vault.Vault
	executor    *fetch.Executor
	syncBudget  time.Duration
	chainCfg    config.ChainConfig
	httpClient  *http.Client
	now         func() time.Time
	logger      *zap.Logger

	// Фабрика биржевых адаптеров, подменяется в тестах
	newExchange func(name string) (exchange.Exchange, error)

	// Множество идущих синхронизаций, ключ - ID аккаунта
	inFlightMu sync.Mutex
	inFlight   map[string]bool

	// WebSocket hub для broadcast итогов
	hub SyncBroadcaster
}

// NewSyncService создает новый экземпляр оркестратора.
// now == nil означает time.Now.
func NewSyncService(
	accountRepo AccountRepositoryInterface,
	holdingRepo HoldingRepositoryInterface,
	vlt *vault.Vault,
	executor *fetch.Executor,
	syncBudget time.Duration,
	chainCfg config.ChainConfig,
	httpClient *http.Client,
	logger *zap.Logger,
	now func() time.Time,
) *SyncService {
	if now == nil {
		now = time.Now
	}
	s := &SyncService{
		accountRepo: accountRepo,
		holdingRepo: holdingRepo,
		vault:       vlt,
		executor:    executor,
		syncBudget:  syncBudget,
		chainCfg:    chainCfg,
		httpClient:  httpClient,
		now:         now,
		logger:      logger.Named("SyncService"),
		inFlight:    make(map[string]bool),
	}
	s.newExchange = func(name string) (exchange.Exchange, error) {
		return exchange.NewExchange(name, "", s.httpClient)
	}
	return s
}

// SetWebSocketHub устанавливает WebSocket hub для broadcast итогов.
// Вызывается после инициализации Hub в main.go.
func (s *SyncService) SetWebSocketHub(hub SyncBroadcaster) {
	s.hub = hub
}

// acquire помечает аккаунт как синхронизируемый.
// Возвращает false, если синхронизация уже идёт.
func (s *SyncService) acquire(accountID string) bool {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()

	if s.inFlight[accountID] {
		return false
	}
	s.inFlight[accountID] = true
	SyncsInFlight.Inc()
	return true
}

func (s *SyncService) release(accountID string) {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()

	delete(s.inFlight, accountID)
	SyncsInFlight.Dec()
}

// SyncAccount синхронизирует один аккаунт и коммитит новый снапшот
// холдингов.
//
// Ошибка возвращается только для инфраструктурных проблем (аккаунт не
// найден, синхронизация уже идёт, отказ БД). Неудачи источников
// выражаются исходом внутри SyncResult.
func (s *SyncService) SyncAccount(ctx context.Context, accountID string) (*models.SyncResult, error) {
	account, err := s.accountRepo.GetByID(accountID)
	if err != nil {
		return nil, err
	}
	if !account.Active {
		return nil, repository.ErrAccountNotFound
	}

	if !s.acquire(accountID) {
		return nil, source.NewError(source.KindSyncInProgress, "sync",
			"synchronization already in progress for account "+accountID)
	}
	defer s.release(accountID)

	started := s.now()

	// Весь fetch ограничен общим бюджетом: длинная цепочка вызовов
	// с ретраями не может растянуть sync сверх syncBudget
	fetchCtx := ctx
	cancel := context.CancelFunc(func() {})
	if s.syncBudget > 0 {
		fetchCtx, cancel = context.WithTimeout(ctx, s.syncBudget)
	}

	var (
		balances    []source.Balance
		outcome     string
		errorDetail string
	)
	if account.IsWallet() {
		balances, outcome, errorDetail = s.syncWallet(fetchCtx, account)
	} else {
		balances, outcome, errorDetail = s.syncExchange(fetchCtx, account)
	}

	budgetExceeded := fetchCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil
	cancel()

	if budgetExceeded {
		balances = nil
		outcome = models.SyncOutcomeSourceError
		errorDetail = "timeout: sync budget " + s.syncBudget.String() + " exceeded"
	}

	result := &models.SyncResult{
		AccountID: accountID,
		Outcome:   outcome,
	}

	if result.Committed() {
		holdings, err := s.normalizeBalances(accountID, balances)
		if err != nil {
			// Отрицательный баланс или повтор актива - дефект
			// источника, весь fetch отбрасывается без коммита
			result.Outcome = models.SyncOutcomeSourceError
			result.ErrorDetail = err.Error()
		} else {
			if err := s.holdingRepo.ReplaceHoldings(accountID, holdings, s.now()); err != nil {
				return nil, err
			}
			result.HoldingsCount = len(holdings)
			result.ErrorDetail = errorDetail
		}
	} else {
		result.ErrorDetail = errorDetail
	}

	result.FinishedAt = s.now()

	duration := result.FinishedAt.Sub(started)
	RecordSync(account.Kind, result.Outcome, duration, result.HoldingsCount)

	s.logger.Info("синхронизация завершена",
		zap.String("account_id", accountID),
		zap.String("kind", account.Kind),
		zap.String("outcome", result.Outcome),
		zap.Int("holdings", result.HoldingsCount),
		zap.Duration("duration", duration))

	if s.hub != nil {
		s.hub.BroadcastSyncResult(result)
	}

	return result, nil
}

// syncWallet выполняет независимые fetch'и нативного баланса и токенов.
// Частичная неудача коммитит то, что удалось получить.
func (s *SyncService) syncWallet(ctx context.Context, account *models.Account) ([]source.Balance, string, string) {
	client, err := chain.NewClient(account.Chain, s.chainCfg, s.httpClient)
	if err != nil {
		return nil, models.SyncOutcomeSourceError, err.Error()
	}

	native, nativeErr := fetch.Execute(ctx, s.executor, account.Chain, func(ctx context.Context) (source.Balance, error) {
		return client.FetchNativeBalance(ctx, account.Address)
	})

	tokens, tokenErr := fetch.Execute(ctx, s.executor, account.Chain, func(ctx context.Context) ([]source.Balance, error) {
		return client.FetchTokenBalances(ctx, account.Address)
	})

	var balances []source.Balance
	if nativeErr == nil {
		balances = append(balances, native)
	}
	balances = append(balances, tokens...)

	switch {
	case nativeErr == nil && tokenErr == nil:
		return balances, models.SyncOutcomeSuccess, ""
	case nativeErr != nil && tokenErr != nil:
		s.logger.Warn("обе части fetch'а кошелька провалились",
			zap.String("account_id", account.ID),
			zap.String("address", utils.ShortenAddress(account.Address)),
			zap.Error(nativeErr),
			zap.Error(tokenErr))
		return nil, models.SyncOutcomeSourceError, nativeErr.Error() + "; " + tokenErr.Error()
	case nativeErr != nil:
		return balances, models.SyncOutcomePartialFailure, nativeErr.Error()
	default:
		return balances, models.SyncOutcomePartialFailure, tokenErr.Error()
	}
}

// syncExchange запрашивает балансы биржевого аккаунта.
// Секреты перечитываются из vault на каждой попытке: истечение сессии
// между ретраями обрывает следующую попытку, а не работает с копией
// уже затёртых секретов.
func (s *SyncService) syncExchange(ctx context.Context, account *models.Account) ([]source.Balance, string, string) {
	ex, err := s.newExchange(account.Exchange)
	if err != nil {
		return nil, models.SyncOutcomeSourceError, err.Error()
	}

	balances, err := fetch.Execute(ctx, s.executor, account.Exchange, func(ctx context.Context) ([]source.Balance, error) {
		cred, err := s.vault.Get(account.ID)
		if err != nil {
			return nil, err
		}
		return ex.FetchBalances(ctx, cred)
	})

	if err != nil {
		switch source.KindOf(err) {
		case source.KindCredentialMissing, source.KindSessionExpired:
			return nil, models.SyncOutcomeCredentialMissing, err.Error()
		default:
			return nil, models.SyncOutcomeSourceError, err.Error()
		}
	}

	return balances, models.SyncOutcomeSuccess, ""
}

// normalizeBalances превращает сырые балансы источника в холдинги:
// нулевые отбрасываются, отрицательные фатальны для всего батча.
// Дубликаты (symbol, asset_address) тоже фатальны: адаптеры обязаны
// отдавать не больше одной записи на актив, повтор здесь - дефект
// адаптера, а не данные для тихого слияния.
func (s *SyncService) normalizeBalances(accountID string, balances []source.Balance) ([]*models.Holding, error) {
	type key struct {
		symbol  string
		address string
	}

	merged := make(map[key]*models.Holding, len(balances))
	for _, b := range balances {
		k := key{symbol: strings.ToUpper(b.Symbol), address: b.AssetAddress}
		if _, ok := merged[k]; ok {
			return nil, source.NewError(source.KindSourceError, "sync",
				"duplicate balance entry for "+k.symbol+": adapter must deduplicate")
		}
		merged[k] = &models.Holding{
			AccountID:    accountID,
			Symbol:       k.symbol,
			Quantity:     b.Quantity,
			AssetAddress: b.AssetAddress,
		}
	}

	holdings := make([]*models.Holding, 0, len(merged))
	for _, h := range merged {
		if h.IsZero() {
			continue
		}
		if err := h.Validate(); err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}

	sort.Slice(holdings, func(i, j int) bool {
		if holdings[i].Symbol != holdings[j].Symbol {
			return holdings[i].Symbol < holdings[j].Symbol
		}
		return holdings[i].AssetAddress < holdings[j].AssetAddress
	})

	return holdings, nil
}

// SyncAll синхронизирует все аккаунты с ограниченным параллелизмом.
// Неудача одного аккаунта не прерывает остальные: каждый аккаунт
// получает свой SyncResult.
func (s *SyncService) SyncAll(ctx context.Context, activeOnly bool) ([]*models.SyncResult, error) {
	accounts, err := s.accountRepo.GetAll(activeOnly)
	if err != nil {
		return nil, err
	}

	counts := map[string]int{models.AccountKindWallet: 0, models.AccountKindExchange: 0}
	for _, account := range accounts {
		if account.Active {
			counts[account.Kind]++
		}
	}
	for kind, n := range counts {
		AccountsActive.WithLabelValues(kind).Set(float64(n))
	}

	results := make([]*models.SyncResult, len(accounts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSyncs)

	for i, account := range accounts {
		i, account := i, account
		g.Go(func() error {
			result, err := s.SyncAccount(ctx, account.ID)
			if err != nil {
				// Аккаунт пропущен (уже синхронизируется, деактивирован):
				// фиксируем как исход, остальных не трогаем
				result = &models.SyncResult{
					AccountID:   account.ID,
					Outcome:     models.SyncOutcomeSourceError,
					ErrorDetail: err.Error(),
					FinishedAt:  s.now(),
				}
			}
			results[i] = result
			return nil
		})
	}

	// Горутины никогда не возвращают ошибку, Wait только ждёт завершения
	_ = g.Wait()

	return results, nil
}
