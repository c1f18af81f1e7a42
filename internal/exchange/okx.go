package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"wallagg/internal/source"
	"wallagg/internal/vault"
)

const okxDefaultBaseURL = "https://www.okx.com"

// OKX реализует интерфейс Exchange для биржи OKX.
// Единственная из поддерживаемых бирж требует passphrase в дополнение
// к ключу и секрету.
type OKX struct {
	baseURL    string
	httpClient *http.Client
}

// NewOKX создает новый экземпляр OKX
func NewOKX(baseURL string, httpClient *http.Client) *OKX {
	if baseURL == "" {
		baseURL = okxDefaultBaseURL
	}
	if httpClient == nil {
		httpClient = source.GetGlobalHTTPClient().GetClient()
	}
	return &OKX{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func (o *OKX) Name() string {
	return "okx"
}

func (o *OKX) RequiresPassphrase() bool {
	return true
}

// sign создает подпись запроса OKX v5:
// base64(HMAC-SHA256(timestamp + method + requestPath, secret))
func (o *OKX) sign(secret, timestamp, method, requestPath string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(timestamp + method + requestPath))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// classifyOKXError переводит коды ошибок OKX v5 в Kind
func classifyOKXError(code, msg string) *source.Error {
	detail := fmt.Sprintf("code %s: %s", code, msg)
	switch code {
	case "50111", "50113", "50102", "50103", "50104", "50105":
		// невалидный ключ, подпись, timestamp или passphrase
		return source.NewError(source.KindAuthenticationFailed, "okx", detail)
	case "50011":
		return source.NewError(source.KindRateLimited, "okx", detail)
	case "50030", "50114":
		return source.NewError(source.KindPermissionDenied, "okx", detail)
	case "50001", "50013", "50026":
		return source.NewError(source.KindSourceUnavailable, "okx", detail)
	default:
		return source.NewError(source.KindSourceError, "okx", detail)
	}
}

// doRequest выполняет подписанный GET запрос к OKX API
func (o *OKX) doRequest(ctx context.Context, cred vault.Credential, requestPath string) ([]byte, error) {
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	signature := o.sign(cred.APISecret, timestamp, http.MethodGet, requestPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+requestPath, nil)
	if err != nil {
		return nil, source.WrapError(source.KindSourceError, "okx", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OK-ACCESS-KEY", cred.APIKey)
	req.Header.Set("OK-ACCESS-SIGN", signature)
	req.Header.Set("OK-ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("OK-ACCESS-PASSPHRASE", cred.Passphrase)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, source.WrapError(source.KindSourceUnavailable, "okx", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, source.WrapError(source.KindSourceUnavailable, "okx", err)
	}

	// OKX кладёт реальный статус в код тела, HTTP статус почти всегда 200
	var base struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(body, &base); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, source.NewError(source.ClassifyStatus(resp.StatusCode), "okx",
				fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
		}
		return nil, source.WrapError(source.KindSourceError, "okx", err)
	}

	if base.Code != "0" {
		return nil, classifyOKXError(base.Code, base.Msg)
	}

	return body, nil
}

// TestConnection проверяет ключи и читает права ключа из /account/config
func (o *OKX) TestConnection(ctx context.Context, cred vault.Credential) (*ConnectionInfo, error) {
	body, err := o.doRequest(ctx, cred, "/api/v5/account/config")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			Perm string `json:"perm"` // "read_only,trade,withdraw"
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, source.WrapError(source.KindSourceError, "okx", err)
	}

	info := &ConnectionInfo{}
	if len(resp.Data) > 0 {
		perm := resp.Data[0].Perm
		info.PermissionsKnown = true
		info.CanTrade = strings.Contains(perm, "trade")
		info.CanWithdraw = strings.Contains(perm, "withdraw")
	}
	return info, nil
}

func (o *OKX) FetchBalances(ctx context.Context, cred vault.Credential) ([]source.Balance, error) {
	body, err := o.doRequest(ctx, cred, "/api/v5/account/balance")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			Details []struct {
				Ccy     string `json:"ccy"`
				CashBal string `json:"cashBal"`
			} `json:"details"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, source.WrapError(source.KindSourceError, "okx", err)
	}

	balances := make([]source.Balance, 0)
	for _, account := range resp.Data {
		for _, detail := range account.Details {
			qty, err := decimal.NewFromString(detail.CashBal)
			if err != nil {
				return nil, source.WrapError(source.KindSourceError, "okx",
					fmt.Errorf("unparseable balance for %s: %w", detail.Ccy, err))
			}
			if qty.IsZero() {
				continue
			}

			balances = append(balances, source.Balance{
				Symbol:   NormalizeSymbol(detail.Ccy),
				Quantity: qty,
			})
		}
	}

	return mergeBySymbol(balances), nil
}
