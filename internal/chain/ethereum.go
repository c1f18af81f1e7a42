package chain

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"wallagg/internal/source"
)

const (
	// weiDecimals - разрядность нативной монеты (1 ETH = 1e18 wei)
	weiDecimals = 18

	// tokenTxPageSize - сколько последних token-транзакций запрашивать
	// для обнаружения контрактов кошелька
	tokenTxPageSize = 100
)

// ethAddressRe - синтаксис EVM адреса: 0x + 40 hex символов
var ethAddressRe = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// Ethereum - клиент Etherscan API.
//
// Токены обнаруживаются по истории ERC-20 переводов (tokentx), затем
// для каждого контракта запрашивается точный баланс (tokenbalance).
// Полного реестра токенов кошелька Etherscan не отдаёт.
type Ethereum struct {
	apiKey    string
	baseURL   string
	maxTokens int

	httpClient *http.Client
}

// NewEthereum создаёт клиент Etherscan.
// maxTokens ограничивает число обнаруживаемых контрактов: каждый
// контракт - отдельный запрос, без лимита кошелёк со спам-токенами
// сжигает всю квоту.
func NewEthereum(apiKey, baseURL string, maxTokens int, httpClient *http.Client) *Ethereum {
	if httpClient == nil {
		httpClient = source.GetGlobalHTTPClient().GetClient()
	}
	return &Ethereum{
		apiKey:     apiKey,
		baseURL:    baseURL,
		maxTokens:  maxTokens,
		httpClient: httpClient,
	}
}

func (e *Ethereum) Name() string {
	return "ethereum"
}

func (e *Ethereum) ValidateAddress(address string) error {
	if !ethAddressRe.MatchString(address) {
		return source.NewError(source.KindInvalidAddress, "ethereum",
			fmt.Sprintf("invalid ethereum address format: %q", address))
	}
	return nil
}

// etherscanResponse - общий конверт ответа Etherscan.
// status "1" = успех, "0" = ошибка или пустой результат.
type etherscanResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// doRequest выполняет запрос к Etherscan и возвращает тело ответа
func (e *Ethereum) doRequest(ctx context.Context, params map[string]string) ([]byte, error) {
	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	query.Set("apikey", e.apiKey)

	reqURL := e.baseURL + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, source.WrapError(source.KindSourceError, "ethereum", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, source.WrapError(source.KindSourceUnavailable, "ethereum", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, source.WrapError(source.KindSourceUnavailable, "ethereum", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, source.NewError(source.ClassifyStatus(resp.StatusCode), "ethereum",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	return body, nil
}

// classifyEtherscanError переводит строковый результат Etherscan в Kind.
// Etherscan возвращает HTTP 200 даже при ошибке, реальный статус в теле.
func classifyEtherscanError(message, result string) *source.Error {
	combined := message + " " + result
	if strings.Contains(combined, "rate limit") {
		return source.NewError(source.KindRateLimited, "ethereum", result)
	}
	if strings.Contains(combined, "Invalid API Key") {
		return source.NewError(source.KindAuthenticationFailed, "ethereum", result)
	}
	return source.NewError(source.KindSourceError, "ethereum", message+": "+result)
}

func (e *Ethereum) FetchNativeBalance(ctx context.Context, address string) (source.Balance, error) {
	body, err := e.doRequest(ctx, map[string]string{
		"module":  "account",
		"action":  "balance",
		"address": address,
		"tag":     "latest",
	})
	if err != nil {
		return source.Balance{}, err
	}

	var resp struct {
		etherscanResponse
		Result string `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return source.Balance{}, source.WrapError(source.KindSourceError, "ethereum", err)
	}

	if resp.Status != "1" {
		return source.Balance{}, classifyEtherscanError(resp.Message, resp.Result)
	}

	wei, err := decimal.NewFromString(resp.Result)
	if err != nil {
		return source.Balance{}, source.WrapError(source.KindSourceError, "ethereum",
			fmt.Errorf("unparseable balance %q: %w", resp.Result, err))
	}

	return source.Balance{
		Symbol:   "ETH",
		Quantity: wei.Shift(-weiDecimals),
	}, nil
}

// tokenContract - обнаруженный ERC-20 контракт
type tokenContract struct {
	address  string
	symbol   string
	decimals int
}

func (e *Ethereum) FetchTokenBalances(ctx context.Context, address string) ([]source.Balance, error) {
	contracts, err := e.discoverTokens(ctx, address)
	if err != nil {
		return nil, err
	}

	balances := make([]source.Balance, 0, len(contracts))
	for _, c := range contracts {
		qty, err := e.fetchTokenBalance(ctx, address, c)
		if err != nil {
			return nil, err
		}
		if qty.IsZero() {
			continue
		}
		balances = append(balances, source.Balance{
			Symbol:       c.symbol,
			Quantity:     qty,
			AssetAddress: c.address,
		})
	}

	return balances, nil
}

// discoverTokens находит контракты токенов по последним ERC-20 переводам.
// Порядок детерминированный: от самых свежих транзакций, первые
// maxTokens уникальных контрактов.
func (e *Ethereum) discoverTokens(ctx context.Context, address string) ([]tokenContract, error) {
	body, err := e.doRequest(ctx, map[string]string{
		"module":  "account",
		"action":  "tokentx",
		"address": address,
		"page":    "1",
		"offset":  strconv.Itoa(tokenTxPageSize),
		"sort":    "desc",
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		etherscanResponse
		Result []struct {
			ContractAddress string `json:"contractAddress"`
			TokenSymbol     string `json:"tokenSymbol"`
			TokenDecimal    string `json:"tokenDecimal"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		// status "0" с пустым результатом кодируется строкой, а не массивом.
		// "No transactions found" - это не ошибка, а кошелёк без токенов.
		var alt struct {
			etherscanResponse
			Result string `json:"result"`
		}
		if err2 := json.Unmarshal(body, &alt); err2 == nil {
			if strings.Contains(alt.Message, "No transactions found") {
				return nil, nil
			}
			return nil, classifyEtherscanError(alt.Message, alt.Result)
		}
		return nil, source.WrapError(source.KindSourceError, "ethereum", err)
	}

	if resp.Status != "1" {
		if strings.Contains(resp.Message, "No transactions found") {
			return nil, nil
		}
		return nil, classifyEtherscanError(resp.Message, "")
	}

	seen := make(map[string]bool)
	contracts := make([]tokenContract, 0, e.maxTokens)
	for _, tx := range resp.Result {
		contract := strings.ToLower(tx.ContractAddress)
		if contract == "" || seen[contract] || tx.TokenSymbol == "" {
			continue
		}
		seen[contract] = true

		decimals, err := strconv.Atoi(tx.TokenDecimal)
		if err != nil || decimals < 0 {
			continue // контракт с мусорными метаданными пропускаем
		}

		contracts = append(contracts, tokenContract{
			address:  contract,
			symbol:   strings.ToUpper(tx.TokenSymbol),
			decimals: decimals,
		})
		if len(contracts) >= e.maxTokens {
			break
		}
	}

	return contracts, nil
}

// fetchTokenBalance запрашивает точный баланс одного контракта
func (e *Ethereum) fetchTokenBalance(ctx context.Context, address string, c tokenContract) (decimal.Decimal, error) {
	body, err := e.doRequest(ctx, map[string]string{
		"module":          "account",
		"action":          "tokenbalance",
		"contractaddress": c.address,
		"address":         address,
		"tag":             "latest",
	})
	if err != nil {
		return decimal.Zero, err
	}

	var resp struct {
		etherscanResponse
		Result string `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, source.WrapError(source.KindSourceError, "ethereum", err)
	}

	if resp.Status != "1" {
		return decimal.Zero, classifyEtherscanError(resp.Message, resp.Result)
	}

	raw, err := decimal.NewFromString(resp.Result)
	if err != nil {
		return decimal.Zero, source.WrapError(source.KindSourceError, "ethereum",
			fmt.Errorf("unparseable token balance %q: %w", resp.Result, err))
	}

	return raw.Shift(int32(-c.decimals)), nil
}
