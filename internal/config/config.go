package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Session  SessionConfig
	Fetch    FetchConfig
	Chain    ChainConfig
	Pricing  PricingConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности.
// APITokenHash - bcrypt хеш токена доступа к API. Сам токен нигде
// не хранится, ключи бирж на диск не попадают вовсе.
type SecurityConfig struct {
	APITokenHash string
}

// SessionConfig - настройки сессии хранилища секретов
type SessionConfig struct {
	Timeout time.Duration // время жизни сессии, после истечения все секреты стираются
}

// FetchConfig - настройки исполнителя запросов к внешним источникам
type FetchConfig struct {
	MaxRetries  int           // попыток на один вызов (включая первую)
	CallTimeout time.Duration // таймаут одного вызова к источнику
	SyncBudget  time.Duration // общий лимит времени на один sync аккаунта

	// Квоты по источникам, req/sec и burst
	EtherscanRate   float64
	EtherscanBurst  float64
	BlockchainRate  float64
	BlockchainBurst float64
	ExchangeRate    float64
	ExchangeBurst   float64
	CoinGeckoRate   float64
	CoinGeckoBurst  float64
}

// ChainConfig - настройки блокчейн-источников
type ChainConfig struct {
	EtherscanAPIKey    string
	EtherscanBaseURL   string
	BlockchainBaseURL  string
	MaxTokensPerWallet int // лимит обнаруживаемых токен-контрактов на кошелёк
}

// PricingConfig - настройки ценового оракула
type PricingConfig struct {
	BaseURL       string
	CacheTTL      time.Duration // свежесть котировки
	QuoteCurrency string        // валюта котировки по умолчанию
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "wallagg"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			APITokenHash: getEnv("API_TOKEN_HASH", ""),
		},
		Session: SessionConfig{
			Timeout: getEnvAsDuration("SESSION_TIMEOUT", 1*time.Hour),
		},
		Fetch: FetchConfig{
			MaxRetries:  getEnvAsInt("FETCH_MAX_RETRIES", 3),
			CallTimeout: getEnvAsDuration("FETCH_CALL_TIMEOUT", 15*time.Second),
			SyncBudget:  getEnvAsDuration("FETCH_SYNC_BUDGET", 2*time.Minute),

			// Дефолты под бесплатные тарифы источников
			EtherscanRate:   getEnvAsFloat("ETHERSCAN_RATE", 5),
			EtherscanBurst:  getEnvAsFloat("ETHERSCAN_BURST", 5),
			BlockchainRate:  getEnvAsFloat("BLOCKCHAIN_RATE", 1),
			BlockchainBurst: getEnvAsFloat("BLOCKCHAIN_BURST", 2),
			ExchangeRate:    getEnvAsFloat("EXCHANGE_RATE_LIMIT", 5),
			ExchangeBurst:   getEnvAsFloat("EXCHANGE_BURST", 10),
			CoinGeckoRate:   getEnvAsFloat("COINGECKO_RATE", 0.5),
			CoinGeckoBurst:  getEnvAsFloat("COINGECKO_BURST", 2),
		},
		Chain: ChainConfig{
			EtherscanAPIKey:    getEnv("ETHERSCAN_API_KEY", ""),
			EtherscanBaseURL:   getEnv("ETHERSCAN_BASE_URL", "https://api.etherscan.io/api"),
			BlockchainBaseURL:  getEnv("BLOCKCHAIN_BASE_URL", "https://blockchain.info"),
			MaxTokensPerWallet: getEnvAsInt("MAX_TOKENS_PER_WALLET", 10),
		},
		Pricing: PricingConfig{
			BaseURL:       getEnv("COINGECKO_BASE_URL", "https://api.coingecko.com/api/v3"),
			CacheTTL:      getEnvAsDuration("PRICE_CACHE_TTL", 60*time.Second),
			QuoteCurrency: getEnv("QUOTE_CURRENCY", "usd"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Валидация критичных параметров безопасности
	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	// Валидация числовых диапазонов
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// API_TOKEN_HASH обязателен: без него API открыт всем
	if c.Security.APITokenHash == "" {
		return fmt.Errorf("API_TOKEN_HASH is required for API authentication")
	}

	if len(c.Security.APITokenHash) < 59 || c.Security.APITokenHash[0] != '$' {
		return fmt.Errorf("API_TOKEN_HASH must be a bcrypt hash")
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	// Валидация портов
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	// Валидация retry параметров
	if c.Fetch.MaxRetries < 1 {
		return fmt.Errorf("FETCH_MAX_RETRIES must be at least 1, got %d", c.Fetch.MaxRetries)
	}

	if c.Fetch.MaxRetries > 10 {
		return fmt.Errorf("FETCH_MAX_RETRIES should not exceed 10, got %d", c.Fetch.MaxRetries)
	}

	// Валидация таймаутов (должны быть положительными)
	if c.Fetch.CallTimeout <= 0 {
		return fmt.Errorf("FETCH_CALL_TIMEOUT must be positive, got %v", c.Fetch.CallTimeout)
	}

	// Бюджет sync'а не может быть короче одного вызова
	if c.Fetch.SyncBudget < c.Fetch.CallTimeout {
		return fmt.Errorf("FETCH_SYNC_BUDGET must be at least FETCH_CALL_TIMEOUT (%v), got %v",
			c.Fetch.CallTimeout, c.Fetch.SyncBudget)
	}

	// Валидация SessionTimeout
	if c.Session.Timeout < time.Minute {
		return fmt.Errorf("SESSION_TIMEOUT must be at least 1 minute, got %v", c.Session.Timeout)
	}

	// Валидация TTL котировок
	if c.Pricing.CacheTTL <= 0 {
		return fmt.Errorf("PRICE_CACHE_TTL must be positive, got %v", c.Pricing.CacheTTL)
	}

	// Валидация лимита токенов
	if c.Chain.MaxTokensPerWallet < 1 {
		return fmt.Errorf("MAX_TOKENS_PER_WALLET must be at least 1, got %d", c.Chain.MaxTokensPerWallet)
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
