package chain

import (
	"fmt"
	"net/http"
	"strings"

	"wallagg/internal/config"
)

// SupportedChains - список поддерживаемых сетей
var SupportedChains = []string{
	"ethereum",
	"bitcoin",
}

// NewClient создает клиент сети по имени
func NewClient(name string, cfg config.ChainConfig, httpClient *http.Client) (Client, error) {
	name = strings.ToLower(name)

	switch name {
	case "ethereum":
		return NewEthereum(cfg.EtherscanAPIKey, cfg.EtherscanBaseURL, cfg.MaxTokensPerWallet, httpClient), nil
	case "bitcoin":
		return NewBitcoin(cfg.BlockchainBaseURL, httpClient), nil
	default:
		return nil, fmt.Errorf("unsupported chain: %s", name)
	}
}

// IsSupported проверяет, поддерживается ли сеть
func IsSupported(name string) bool {
	name = strings.ToLower(name)
	for _, supported := range SupportedChains {
		if name == supported {
			return true
		}
	}
	return false
}
