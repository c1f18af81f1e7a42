package chain

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"wallagg/internal/source"
)

// satoshiDecimals - разрядность нативной монеты (1 BTC = 1e8 сатоши)
const satoshiDecimals = 8

// btcAddressRe - синтаксис Bitcoin адреса: legacy (1, 3) и bech32 (bc1).
// Base58 исключает 0, O, I, l, отсюда алфавит.
var btcAddressRe = regexp.MustCompile(`^(bc1|[13])[a-zA-HJ-NP-Z0-9]{25,62}$`)

// Bitcoin - клиент blockchain.info.
// У Bitcoin нет fungible-токенов, синхронизация кошелька сводится
// к одному запросу нативного баланса.
type Bitcoin struct {
	baseURL    string
	httpClient *http.Client
}

// NewBitcoin создаёт клиент blockchain.info. API ключ не нужен.
func NewBitcoin(baseURL string, httpClient *http.Client) *Bitcoin {
	if httpClient == nil {
		httpClient = source.GetGlobalHTTPClient().GetClient()
	}
	return &Bitcoin{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func (b *Bitcoin) Name() string {
	return "bitcoin"
}

func (b *Bitcoin) ValidateAddress(address string) error {
	if !btcAddressRe.MatchString(address) {
		return source.NewError(source.KindInvalidAddress, "bitcoin",
			fmt.Sprintf("invalid bitcoin address format: %q", address))
	}
	return nil
}

func (b *Bitcoin) FetchNativeBalance(ctx context.Context, address string) (source.Balance, error) {
	reqURL := b.baseURL + "/balance?active=" + url.QueryEscape(address)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return source.Balance{}, source.WrapError(source.KindSourceError, "bitcoin", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return source.Balance{}, source.WrapError(source.KindSourceUnavailable, "bitcoin", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return source.Balance{}, source.WrapError(source.KindSourceUnavailable, "bitcoin", err)
	}

	if resp.StatusCode != http.StatusOK {
		// blockchain.info отвечает 400/500 с текстом ошибки в теле.
		// Неизвестный адрес приходит как "Invalid Bitcoin Address".
		text := strings.TrimSpace(string(body))
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusInternalServerError {
			if strings.Contains(text, "Invalid Bitcoin Address") {
				return source.Balance{}, source.NewError(source.KindAddressNotFound, "bitcoin", text)
			}
		}
		return source.Balance{}, source.NewError(source.ClassifyStatus(resp.StatusCode), "bitcoin",
			fmt.Sprintf("http %d: %s", resp.StatusCode, text))
	}

	// Ответ - map адрес -> сводка, даже для одного адреса
	var result map[string]struct {
		FinalBalance  int64 `json:"final_balance"`
		NTx           int64 `json:"n_tx"`
		TotalReceived int64 `json:"total_received"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return source.Balance{}, source.WrapError(source.KindSourceError, "bitcoin", err)
	}

	summary, ok := result[address]
	if !ok {
		return source.Balance{}, source.NewError(source.KindAddressNotFound, "bitcoin",
			"address not present in response: "+address)
	}

	return source.Balance{
		Symbol:   "BTC",
		Quantity: decimal.NewFromInt(summary.FinalBalance).Shift(-satoshiDecimals),
	}, nil
}

// FetchTokenBalances для Bitcoin всегда пуст
func (b *Bitcoin) FetchTokenBalances(ctx context.Context, address string) ([]source.Balance, error) {
	return nil, nil
}
