package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"wallagg/internal/api"
	"wallagg/internal/config"
	"wallagg/internal/fetch"
	"wallagg/internal/pricing"
	"wallagg/internal/repository"
	"wallagg/internal/service"
	"wallagg/internal/source"
	"wallagg/internal/vault"
	"wallagg/internal/websocket"
	"wallagg/pkg/utils"

	_ "github.com/lib/pq"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.InitLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("не удалось подключиться к БД",
			zap.String("dsn", cfg.Database.DSNWithoutPassword()),
			zap.Error(err))
	}
	defer db.Close()

	logger.Info("подключение к БД установлено",
		zap.String("dsn", cfg.Database.DSNWithoutPassword()))

	// Инициализация репозиториев
	accountRepo := repository.NewAccountRepository(db)
	holdingRepo := repository.NewHoldingRepository(db)

	// Общий HTTP клиент для всех внешних источников
	httpClient := source.GetGlobalHTTPClient().GetClient()

	// Сессионное хранилище секретов: только память, на диск не попадает
	secretVault := vault.New(cfg.Session.Timeout, nil)

	// Исполнитель запросов: квоты источников и ретраи
	executor := fetch.New(cfg.Fetch, logger)

	// Ценовой оракул
	oracle := pricing.NewOracle(cfg.Pricing, executor, httpClient, logger, nil)

	// Инициализация сервисов
	accountService := service.NewAccountService(
		accountRepo, holdingRepo, secretVault, cfg.Chain, httpClient, logger)

	syncService := service.NewSyncService(
		accountRepo, holdingRepo, secretVault, executor,
		cfg.Fetch.SyncBudget, cfg.Chain, httpClient, logger, nil)

	valuationService := service.NewValuationService(
		accountRepo, holdingRepo, oracle, cfg.Pricing.QuoteCurrency, logger, nil)

	// WebSocket hub для real-time событий
	hub := websocket.NewHub(logger)
	go hub.Run()
	defer hub.Stop()

	accountService.SetWebSocketHub(hub)
	syncService.SetWebSocketHub(hub)
	valuationService.SetWebSocketHub(hub)

	// Настройка зависимостей для API
	deps := &api.Dependencies{
		AccountService:   accountService,
		SyncService:      syncService,
		ValuationService: valuationService,
		Hub:              hub,
		Logger:           logger,
		APITokenHash:     cfg.Security.APITokenHash,
	}

	router := api.SetupRoutes(deps)

	// HTTP сервер
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // синхронный /sync ходит во внешние источники
		IdleTimeout:  60 * time.Second,
	}

	// Запуск сервера в отдельной горутине
	go func() {
		logger.Info("сервер запускается", zap.String("addr", server.Addr))
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				logger.Fatal("сервер упал", zap.Error(err))
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal("сервер упал", zap.Error(err))
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("получен сигнал остановки")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("принудительная остановка сервера", zap.Error(err))
	}

	// Затираем секреты и закрываем соединения с источниками
	secretVault.Reset()
	source.CloseGlobalClient()

	logger.Info("сервер остановлен")
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
