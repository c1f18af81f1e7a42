package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"wallagg/internal/source"
	"wallagg/internal/vault"
)

const (
	binanceDefaultBaseURL = "https://api.binance.com"
	binanceRecvWindow     = "5000"
)

// Binance реализует интерфейс Exchange для биржи Binance
type Binance struct {
	baseURL    string
	httpClient *http.Client
}

// NewBinance создает новый экземпляр Binance.
// Использует глобальный HTTP клиент с connection pooling, если свой не передан.
func NewBinance(baseURL string, httpClient *http.Client) *Binance {
	if baseURL == "" {
		baseURL = binanceDefaultBaseURL
	}
	if httpClient == nil {
		httpClient = source.GetGlobalHTTPClient().GetClient()
	}
	return &Binance{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func (b *Binance) Name() string {
	return "binance"
}

func (b *Binance) RequiresPassphrase() bool {
	return false
}

// sign создает HMAC-SHA256 подпись строки запроса
func (b *Binance) sign(secret, payload string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// doRequest выполняет подписанный GET запрос к Binance API
func (b *Binance) doRequest(ctx context.Context, cred vault.Credential, endpoint string, params map[string]string) ([]byte, error) {
	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	query.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	query.Set("recvWindow", binanceRecvWindow)

	payload := query.Encode()
	signature := b.sign(cred.APISecret, payload)
	reqURL := b.baseURL + endpoint + "?" + payload + "&signature=" + signature

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, source.WrapError(source.KindSourceError, "binance", err)
	}
	req.Header.Set("X-MBX-APIKEY", cred.APIKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, source.WrapError(source.KindSourceUnavailable, "binance", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, source.WrapError(source.KindSourceUnavailable, "binance", err)
	}

	if resp.StatusCode != http.StatusOK {
		// Binance присылает код и сообщение ошибки в теле
		var apiErr struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		msg := strings.TrimSpace(string(body))
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Msg != "" {
			msg = fmt.Sprintf("code %d: %s", apiErr.Code, apiErr.Msg)
		}

		kind := source.ClassifyStatus(resp.StatusCode)
		// 418 - бан за флуд, по сути тот же rate limit
		if resp.StatusCode == http.StatusTeapot {
			kind = source.KindRateLimited
		}
		return nil, source.NewError(kind, "binance", msg)
	}

	return body, nil
}

// accountResponse - ответ /api/v3/account
type binanceAccount struct {
	CanTrade    bool `json:"canTrade"`
	CanWithdraw bool `json:"canWithdraw"`
	Balances    []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"balances"`
}

func (b *Binance) fetchAccount(ctx context.Context, cred vault.Credential) (*binanceAccount, error) {
	body, err := b.doRequest(ctx, cred, "/api/v3/account", nil)
	if err != nil {
		return nil, err
	}

	var account binanceAccount
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, source.WrapError(source.KindSourceError, "binance", err)
	}
	return &account, nil
}

func (b *Binance) TestConnection(ctx context.Context, cred vault.Credential) (*ConnectionInfo, error) {
	account, err := b.fetchAccount(ctx, cred)
	if err != nil {
		return nil, err
	}

	return &ConnectionInfo{
		PermissionsKnown: true,
		CanTrade:         account.CanTrade,
		CanWithdraw:      account.CanWithdraw,
	}, nil
}

func (b *Binance) FetchBalances(ctx context.Context, cred vault.Credential) ([]source.Balance, error) {
	account, err := b.fetchAccount(ctx, cred)
	if err != nil {
		return nil, err
	}

	balances := make([]source.Balance, 0, len(account.Balances))
	for _, raw := range account.Balances {
		free, err := decimal.NewFromString(raw.Free)
		if err != nil {
			return nil, source.WrapError(source.KindSourceError, "binance",
				fmt.Errorf("unparseable balance for %s: %w", raw.Asset, err))
		}
		locked, err := decimal.NewFromString(raw.Locked)
		if err != nil {
			return nil, source.WrapError(source.KindSourceError, "binance",
				fmt.Errorf("unparseable locked balance for %s: %w", raw.Asset, err))
		}

		// Заблокированные в ордерах средства всё ещё принадлежат аккаунту
		total := free.Add(locked)
		if total.IsZero() {
			continue
		}

		balances = append(balances, source.Balance{
			Symbol:   NormalizeSymbol(raw.Asset),
			Quantity: total,
		})
	}

	return mergeBySymbol(balances), nil
}
