package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"wallagg/internal/api/handlers"
	"wallagg/internal/api/middleware"
	"wallagg/internal/service"
	"wallagg/internal/websocket"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	AccountService   service.AccountServiceInterface
	SyncService      service.SyncServiceInterface
	ValuationService service.ValuationServiceInterface
	Hub              *websocket.Hub
	Logger           *zap.Logger

	// bcrypt хеш API токена; пустая строка отключает auth (только тесты)
	APITokenHash string
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /accounts/
//	│   ├── GET / - список аккаунтов (?all=true включая удалённые)
//	│   ├── POST /wallet - зарегистрировать кошелёк
//	│   ├── POST /exchange - зарегистрировать биржевой аккаунт
//	│   ├── GET /{id} - аккаунт по ID
//	│   ├── PATCH /{id} - переименовать
//	│   ├── DELETE /{id} - мягко удалить
//	│   ├── GET /{id}/holdings - снапшот холдингов
//	│   ├── GET /{id}/value - стоимость аккаунта
//	│   └── POST /{id}/sync - синхронизировать аккаунт
//	├── POST /sync - синхронизировать все аккаунты
//	├── GET /portfolio/value - стоимость портфеля (?ids=a,b)
//	└── /session
//	    ├── GET / - метаданные сессии секретов
//	    └── DELETE / - завершить сессию, затереть секреты
//
// /ws/stream - WebSocket: события sync_result и valuation_update
// /health - проверка живости (без auth)
// /metrics - Prometheus метрики (без auth)
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. Auth (только для /api/v1)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	logger := zap.NewNop()
	if deps != nil && deps.Logger != nil {
		logger = deps.Logger
	}

	// Глобальные middleware
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logging(logger))
	router.Use(middleware.CORS)

	// Создание handlers с внедрением зависимостей
	var accountHandler *handlers.AccountHandler
	var sessionHandler *handlers.SessionHandler
	if deps != nil && deps.AccountService != nil {
		accountHandler = handlers.NewAccountHandler(deps.AccountService)
		sessionHandler = handlers.NewSessionHandler(deps.AccountService)
	}

	var syncHandler *handlers.SyncHandler
	if deps != nil && deps.SyncService != nil {
		syncHandler = handlers.NewSyncHandler(deps.SyncService)
	}

	var portfolioHandler *handlers.PortfolioHandler
	if deps != nil && deps.ValuationService != nil {
		portfolioHandler = handlers.NewPortfolioHandler(deps.ValuationService)
	}

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	if deps != nil && deps.APITokenHash != "" {
		api.Use(middleware.Auth(deps.APITokenHash, logger))
	}

	// Account routes
	if accountHandler != nil {
		api.HandleFunc("/accounts", accountHandler.GetAccounts).Methods("GET")
		api.HandleFunc("/accounts/wallet", accountHandler.RegisterWallet).Methods("POST")
		api.HandleFunc("/accounts/exchange", accountHandler.RegisterExchange).Methods("POST")
		api.HandleFunc("/accounts/{id}", accountHandler.GetAccount).Methods("GET")
		api.HandleFunc("/accounts/{id}", accountHandler.RenameAccount).Methods("PATCH")
		api.HandleFunc("/accounts/{id}", accountHandler.DeleteAccount).Methods("DELETE")
		api.HandleFunc("/accounts/{id}/holdings", accountHandler.GetHoldings).Methods("GET")
	}

	// Sync routes
	if syncHandler != nil {
		api.HandleFunc("/accounts/{id}/sync", syncHandler.SyncAccount).Methods("POST")
		api.HandleFunc("/sync", syncHandler.SyncAll).Methods("POST")
	}

	// Valuation routes
	if portfolioHandler != nil {
		api.HandleFunc("/portfolio/value", portfolioHandler.GetPortfolioValue).Methods("GET")
		api.HandleFunc("/accounts/{id}/value", portfolioHandler.GetAccountValue).Methods("GET")
	}

	// Session routes
	if sessionHandler != nil {
		api.HandleFunc("/session", sessionHandler.GetSession).Methods("GET")
		api.HandleFunc("/session", sessionHandler.ClearSession).Methods("DELETE")
	}

	// WebSocket route
	if deps != nil && deps.Hub != nil {
		hub := deps.Hub
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(hub, w, r)
		})
	}

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// Prometheus метрики
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return router
}
