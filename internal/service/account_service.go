package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"wallagg/internal/chain"
	"wallagg/internal/config"
	"wallagg/internal/exchange"
	"wallagg/internal/models"
	"wallagg/internal/vault"
	"wallagg/pkg/utils"
)

// Ошибки сервиса аккаунтов
var (
	ErrChainNotSupported    = errors.New("chain is not supported")
	ErrExchangeNotSupported = errors.New("exchange is not supported")
	ErrPassphraseRequired   = errors.New("exchange requires a passphrase")
	ErrEmptyAccountName     = errors.New("account name is empty after sanitizing")
	ErrAddressAlreadyWatched = errors.New("address is already being watched")
)

// SessionBroadcaster - интерфейс для отправки состояния сессии через WebSocket
type SessionBroadcaster interface {
	BroadcastSessionUpdate(info vault.SessionInfo)
}

// AccountService - реестр аккаунтов: регистрация кошельков и биржевых
// аккаунтов, листинг, мягкое удаление.
//
// При регистрации биржевого аккаунта секреты кладутся в vault ДО записи
// в БД: если запись не удалась, секреты сразу затираются. В БД секреты
// не попадают никогда.
type AccountService struct {
	accountRepo AccountRepositoryInterface
	holdingRepo HoldingRepositoryInterface
	vault       *vault.Vault
	chainCfg    config.ChainConfig
	httpClient  *http.Client
	logger      *zap.Logger

	// WebSocket hub для broadcast состояния сессии
	hub SessionBroadcaster

	// Фабрика биржевых адаптеров, подменяется в тестах
	newExchange func(name string) (exchange.Exchange, error)
}

// NewAccountService создает новый экземпляр сервиса
func NewAccountService(
	accountRepo AccountRepositoryInterface,
	holdingRepo HoldingRepositoryInterface,
	vlt *vault.Vault,
	chainCfg config.ChainConfig,
	httpClient *http.Client,
	logger *zap.Logger,
) *AccountService {
	s := &AccountService{
		accountRepo: accountRepo,
		holdingRepo: holdingRepo,
		vault:       vlt,
		chainCfg:    chainCfg,
		httpClient:  httpClient,
		logger:      logger.Named("AccountService"),
	}
	s.newExchange = func(name string) (exchange.Exchange, error) {
		return exchange.NewExchange(name, "", s.httpClient)
	}
	return s
}

// SetWebSocketHub устанавливает WebSocket hub для broadcast состояния сессии.
// Вызывается после инициализации Hub в main.go.
func (s *AccountService) SetWebSocketHub(hub SessionBroadcaster) {
	s.hub = hub
}

// broadcastSession отправляет текущее состояние сессии подписчикам
func (s *AccountService) broadcastSession() {
	if s.hub != nil {
		s.hub.BroadcastSessionUpdate(s.vault.Info())
	}
}

// RegisterWallet регистрирует on-chain кошелёк для наблюдения.
// Выполняет:
// 1. Проверку поддержки сети
// 2. Синтаксическую валидацию адреса (без похода в сеть)
// 3. Санитизацию имени
// 4. Сохранение в БД
func (s *AccountService) RegisterWallet(ctx context.Context, name, chainName, address string) (*models.Account, error) {
	chainName = strings.ToLower(chainName)

	if !chain.IsSupported(chainName) {
		return nil, ErrChainNotSupported
	}

	client, err := chain.NewClient(chainName, s.chainCfg, s.httpClient)
	if err != nil {
		return nil, err
	}

	// Некорректный адрес отклоняется до какого-либо сетевого вызова
	if err := client.ValidateAddress(address); err != nil {
		return nil, err
	}

	displayName := utils.SanitizeAccountName(name)
	if displayName == "" {
		return nil, ErrEmptyAccountName
	}

	watched, err := s.accountRepo.ExistsByAddress(chainName, address)
	if err != nil {
		return nil, err
	}
	if watched {
		return nil, ErrAddressAlreadyWatched
	}

	account := &models.Account{
		Kind:        models.AccountKindWallet,
		DisplayName: displayName,
		Chain:       chainName,
		Address:     address,
	}

	if err := s.accountRepo.Create(account); err != nil {
		return nil, err
	}

	s.logger.Info("кошелёк зарегистрирован",
		zap.String("account_id", account.ID),
		zap.String("chain", chainName),
		zap.String("address", utils.ShortenAddress(address)))

	return account, nil
}

// RegisterExchange регистрирует биржевой аккаунт.
// Выполняет:
// 1. Проверку поддержки биржи и правдоподобия ключей
// 2. Тестовое подключение (проверка ключей живым вызовом)
// 3. Сохранение секретов в vault, затем записи в БД
//
// Возвращает ConnectionInfo: вызывающий обязан показать предупреждение,
// если ключу выданы права торговли или вывода.
func (s *AccountService) RegisterExchange(ctx context.Context, name, exchangeName, apiKey, apiSecret, passphrase string) (*models.Account, *exchange.ConnectionInfo, error) {
	exchangeName = strings.ToLower(exchangeName)

	if !exchange.IsSupported(exchangeName) {
		return nil, nil, ErrExchangeNotSupported
	}

	// Дешёвые проверки до сетевого вызова
	if err := utils.ValidateAPIKey(apiKey); err != nil {
		return nil, nil, err
	}
	if err := utils.ValidateAPIKey(apiSecret); err != nil {
		return nil, nil, err
	}

	ex, err := s.newExchange(exchangeName)
	if err != nil {
		return nil, nil, err
	}

	if ex.RequiresPassphrase() && passphrase == "" {
		return nil, nil, ErrPassphraseRequired
	}

	displayName := utils.SanitizeAccountName(name)
	if displayName == "" {
		return nil, nil, ErrEmptyAccountName
	}

	cred := vault.Credential{
		APIKey:     apiKey,
		APISecret:  apiSecret,
		Passphrase: passphrase,
	}

	info, err := ex.TestConnection(ctx, cred)
	if err != nil {
		return nil, nil, err
	}

	if info.ExcessivePermissions() {
		s.logger.Warn("ключ имеет права сверх чтения",
			zap.String("exchange", exchangeName),
			zap.Bool("can_trade", info.CanTrade),
			zap.Bool("can_withdraw", info.CanWithdraw))
	}

	account := &models.Account{
		Kind:        models.AccountKindExchange,
		DisplayName: displayName,
		Exchange:    exchangeName,
	}

	if err := s.accountRepo.Create(account); err != nil {
		return nil, nil, err
	}

	// Секреты кладутся в vault под свежесозданным ID. Если сессия
	// истекла между проверкой и записью, аккаунт откатывается: запись
	// без секретов синхронизировать всё равно нечем.
	if err := s.vault.Put(account.ID, cred); err != nil {
		_ = s.accountRepo.SoftDelete(account.ID)
		return nil, nil, err
	}

	SessionCredentials.Set(float64(s.vault.Info().CredentialCount))
	s.broadcastSession()

	s.logger.Info("биржевой аккаунт зарегистрирован",
		zap.String("account_id", account.ID),
		zap.String("exchange", exchangeName),
		zap.Bool("permissions_known", info.PermissionsKnown))

	return account, info, nil
}

// GetAccounts возвращает аккаунты. activeOnly=true скрывает мягко удалённые.
func (s *AccountService) GetAccounts(activeOnly bool) ([]*models.Account, error) {
	return s.accountRepo.GetAll(activeOnly)
}

// GetAccount возвращает аккаунт по ID
func (s *AccountService) GetAccount(id string) (*models.Account, error) {
	return s.accountRepo.GetByID(id)
}

// GetHoldings возвращает снапшот холдингов аккаунта
func (s *AccountService) GetHoldings(id string) ([]*models.Holding, error) {
	if _, err := s.accountRepo.GetByID(id); err != nil {
		return nil, err
	}
	return s.holdingRepo.GetByAccount(id)
}

// DeleteAccount мягко удаляет аккаунт и затирает его секреты в vault.
// Исторические холдинги остаются в БД.
func (s *AccountService) DeleteAccount(id string) error {
	if err := s.accountRepo.SoftDelete(id); err != nil {
		return err
	}

	s.vault.Clear(id)
	SessionCredentials.Set(float64(s.vault.Info().CredentialCount))
	s.broadcastSession()

	s.logger.Info("аккаунт деактивирован", zap.String("account_id", id))
	return nil
}

// RenameAccount переименовывает аккаунт
func (s *AccountService) RenameAccount(id, name string) error {
	displayName := utils.SanitizeAccountName(name)
	if displayName == "" {
		return ErrEmptyAccountName
	}
	return s.accountRepo.UpdateDisplayName(id, displayName)
}

// SessionInfo возвращает метаданные сессии секретов
func (s *AccountService) SessionInfo() vault.SessionInfo {
	return s.vault.Info()
}

// ClearSession затирает все секреты и возвращает сессию в исходное состояние
func (s *AccountService) ClearSession() {
	s.vault.Reset()
	SessionCredentials.Set(0)
	s.broadcastSession()
	s.logger.Info("сессия завершена, секреты затёрты")
}
