package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"wallagg/internal/exchange"
	"wallagg/internal/models"
	"wallagg/internal/service"
)

// AccountHandler отвечает за реестр аккаунтов
//
// Функции:
// - Регистрация on-chain кошелька (POST /api/v1/accounts/wallet)
// - Регистрация биржевого аккаунта (POST /api/v1/accounts/exchange)
// - Список аккаунтов (GET /api/v1/accounts)
// - Аккаунт по ID (GET /api/v1/accounts/{id})
// - Снапшот холдингов (GET /api/v1/accounts/{id}/holdings)
// - Переименование (PATCH /api/v1/accounts/{id})
// - Мягкое удаление (DELETE /api/v1/accounts/{id})
//
// Секреты бирж проходят через handler транзитом в vault: в ответах,
// логах и БД их нет.
type AccountHandler struct {
	accountService service.AccountServiceInterface
}

// NewAccountHandler создает новый AccountHandler
func NewAccountHandler(accountService service.AccountServiceInterface) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

type registerWalletRequest struct {
	Name    string `json:"name"`
	Chain   string `json:"chain"`
	Address string `json:"address"`
}

type registerExchangeRequest struct {
	Name       string `json:"name"`
	Exchange   string `json:"exchange"`
	APIKey     string `json:"api_key"`
	APISecret  string `json:"api_secret"`
	Passphrase string `json:"passphrase,omitempty"`
}

type registerExchangeResponse struct {
	Account    *models.Account         `json:"account"`
	Connection *connectionInfoResponse `json:"connection"`
}

type connectionInfoResponse struct {
	PermissionsKnown     bool `json:"permissions_known"`
	CanTrade             bool `json:"can_trade"`
	CanWithdraw          bool `json:"can_withdraw"`
	ExcessivePermissions bool `json:"excessive_permissions"`
}

func newConnectionInfoResponse(info *exchange.ConnectionInfo) *connectionInfoResponse {
	return &connectionInfoResponse{
		PermissionsKnown:     info.PermissionsKnown,
		CanTrade:             info.CanTrade,
		CanWithdraw:          info.CanWithdraw,
		ExcessivePermissions: info.ExcessivePermissions(),
	}
}

type accountsResponse struct {
	Accounts []*models.Account `json:"accounts"`
	Total    int               `json:"total"`
}

type holdingsResponse struct {
	AccountID string            `json:"account_id"`
	Holdings  []*models.Holding `json:"holdings"`
	Total     int               `json:"total"`
}

type renameAccountRequest struct {
	Name string `json:"name"`
}

// RegisterWallet регистрирует on-chain кошелёк для наблюдения
// POST /api/v1/accounts/wallet
func (h *AccountHandler) RegisterWallet(w http.ResponseWriter, r *http.Request) {
	var req registerWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Chain == "" || req.Address == "" {
		respondError(w, http.StatusBadRequest, "chain and address are required")
		return
	}

	account, err := h.accountService.RegisterWallet(r.Context(), req.Name, req.Chain, req.Address)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, account)
}

// RegisterExchange регистрирует биржевой аккаунт.
// Ключи проверяются живым вызовом к бирже до создания аккаунта.
// POST /api/v1/accounts/exchange
func (h *AccountHandler) RegisterExchange(w http.ResponseWriter, r *http.Request) {
	var req registerExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Exchange == "" {
		respondError(w, http.StatusBadRequest, "exchange is required")
		return
	}

	account, info, err := h.accountService.RegisterExchange(
		r.Context(), req.Name, req.Exchange, req.APIKey, req.APISecret, req.Passphrase)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, registerExchangeResponse{
		Account:    account,
		Connection: newConnectionInfoResponse(info),
	})
}

// GetAccounts возвращает список аккаунтов.
// По умолчанию только активные, ?all=true включает мягко удалённые.
// GET /api/v1/accounts
func (h *AccountHandler) GetAccounts(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "true"

	accounts, err := h.accountService.GetAccounts(activeOnly)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if accounts == nil {
		accounts = []*models.Account{}
	}

	respondJSON(w, http.StatusOK, accountsResponse{
		Accounts: accounts,
		Total:    len(accounts),
	})
}

// GetAccount возвращает аккаунт по ID
// GET /api/v1/accounts/{id}
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		respondError(w, http.StatusBadRequest, "account id is required")
		return
	}

	account, err := h.accountService.GetAccount(id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, account)
}

// GetHoldings возвращает последний закоммиченный снапшот холдингов
// GET /api/v1/accounts/{id}/holdings
func (h *AccountHandler) GetHoldings(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		respondError(w, http.StatusBadRequest, "account id is required")
		return
	}

	holdings, err := h.accountService.GetHoldings(id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if holdings == nil {
		holdings = []*models.Holding{}
	}

	respondJSON(w, http.StatusOK, holdingsResponse{
		AccountID: id,
		Holdings:  holdings,
		Total:     len(holdings),
	})
}

// RenameAccount переименовывает аккаунт
// PATCH /api/v1/accounts/{id}
func (h *AccountHandler) RenameAccount(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req renameAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.accountService.RenameAccount(id, req.Name); err != nil {
		respondServiceError(w, err)
		return
	}

	account, err := h.accountService.GetAccount(id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, account)
}

// DeleteAccount мягко удаляет аккаунт и затирает его секреты
// DELETE /api/v1/accounts/{id}
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		respondError(w, http.StatusBadRequest, "account id is required")
		return
	}

	if err := h.accountService.DeleteAccount(id); err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
