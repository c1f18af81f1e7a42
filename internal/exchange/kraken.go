package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
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

const krakenDefaultBaseURL = "https://api.kraken.com"

// Kraken реализует интерфейс Exchange для биржи Kraken
type Kraken struct {
	baseURL    string
	httpClient *http.Client
}

// NewKraken создает новый экземпляр Kraken
func NewKraken(baseURL string, httpClient *http.Client) *Kraken {
	if baseURL == "" {
		baseURL = krakenDefaultBaseURL
	}
	if httpClient == nil {
		httpClient = source.GetGlobalHTTPClient().GetClient()
	}
	return &Kraken{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func (k *Kraken) Name() string {
	return "kraken"
}

func (k *Kraken) RequiresPassphrase() bool {
	return false
}

// sign создает подпись приватного запроса Kraken:
// base64(HMAC-SHA512(path + SHA256(nonce + postdata), base64decode(secret)))
func (k *Kraken) sign(secret, path, nonce, postData string) (string, error) {
	secretBytes, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("api secret is not valid base64: %w", err)
	}

	sha := sha256.Sum256([]byte(nonce + postData))
	mac := hmac.New(sha512.New, secretBytes)
	mac.Write([]byte(path))
	mac.Write(sha[:])

	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// classifyKrakenError переводит коды ошибок Kraken в Kind.
// Kraken возвращает HTTP 200 с массивом ошибок в теле.
func classifyKrakenError(errs []string) *source.Error {
	combined := strings.Join(errs, "; ")
	switch {
	case strings.Contains(combined, "EAPI:Invalid key"),
		strings.Contains(combined, "EAPI:Invalid signature"),
		strings.Contains(combined, "EAPI:Invalid nonce"):
		return source.NewError(source.KindAuthenticationFailed, "kraken", combined)
	case strings.Contains(combined, "Rate limit"),
		strings.Contains(combined, "Too many requests"):
		return source.NewError(source.KindRateLimited, "kraken", combined)
	case strings.Contains(combined, "Permission denied"):
		return source.NewError(source.KindPermissionDenied, "kraken", combined)
	case strings.Contains(combined, "EService:"):
		return source.NewError(source.KindSourceUnavailable, "kraken", combined)
	default:
		return source.NewError(source.KindSourceError, "kraken", combined)
	}
}

// doRequest выполняет подписанный POST запрос к приватному API Kraken
func (k *Kraken) doRequest(ctx context.Context, cred vault.Credential, path string) ([]byte, error) {
	nonce := strconv.FormatInt(time.Now().UnixMilli(), 10)
	form := url.Values{}
	form.Set("nonce", nonce)
	postData := form.Encode()

	signature, err := k.sign(cred.APISecret, path, nonce, postData)
	if err != nil {
		// Мусорный секрет - это ошибка аутентификации, не повод для ретраев
		return nil, source.WrapError(source.KindAuthenticationFailed, "kraken", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.baseURL+path, strings.NewReader(postData))
	if err != nil {
		return nil, source.WrapError(source.KindSourceError, "kraken", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("API-Key", cred.APIKey)
	req.Header.Set("API-Sign", signature)

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, source.WrapError(source.KindSourceUnavailable, "kraken", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, source.WrapError(source.KindSourceUnavailable, "kraken", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, source.NewError(source.ClassifyStatus(resp.StatusCode), "kraken",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	return body, nil
}

func (k *Kraken) fetchBalanceMap(ctx context.Context, cred vault.Credential) (map[string]string, error) {
	body, err := k.doRequest(ctx, cred, "/0/private/Balance")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Error  []string          `json:"error"`
		Result map[string]string `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, source.WrapError(source.KindSourceError, "kraken", err)
	}

	if len(resp.Error) > 0 {
		return nil, classifyKrakenError(resp.Error)
	}

	return resp.Result, nil
}

// TestConnection проверяет ключи запросом баланса.
// Kraken не раскрывает права ключа через API, поэтому
// PermissionsKnown=false и предупреждения о лишних правах нет.
func (k *Kraken) TestConnection(ctx context.Context, cred vault.Credential) (*ConnectionInfo, error) {
	if _, err := k.fetchBalanceMap(ctx, cred); err != nil {
		return nil, err
	}
	return &ConnectionInfo{PermissionsKnown: false}, nil
}

func (k *Kraken) FetchBalances(ctx context.Context, cred vault.Credential) ([]source.Balance, error) {
	raw, err := k.fetchBalanceMap(ctx, cred)
	if err != nil {
		return nil, err
	}

	balances := make([]source.Balance, 0, len(raw))
	for asset, amount := range raw {
		qty, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, source.WrapError(source.KindSourceError, "kraken",
				fmt.Errorf("unparseable balance for %s: %w", asset, err))
		}
		if qty.IsZero() {
			continue
		}

		balances = append(balances, source.Balance{
			Symbol:   NormalizeSymbol(asset),
			Quantity: qty,
		})
	}

	return mergeBySymbol(balances), nil
}
