package balance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultHTTPTimeout bounds each call to the account service.
const DefaultHTTPTimeout = 5 * time.Second

const maxErrorBody = 4 << 10

// Account is a workspace's owner and scaled balance.
type Account struct {
	UserUID string `json:"userUID"`
	Balance int64  `json:"balance"`
	Error   string `json:"error,omitempty"`
}

// Charge is the body posted to record a consumption.
type Charge struct {
	Namespace string `json:"namespace"`
	AppType   string `json:"appType"`
	AppName   string `json:"appName"`
	UserUID   string `json:"userUID"`
	Amount    int64  `json:"amount"`
}

type realNameInfo struct {
	IsRealName bool   `json:"isRealName"`
	Error      string `json:"error,omitempty"`
}

type chargeResponse struct {
	Error string `json:"error,omitempty"`
}

// AccountService is the remote ledger the gateway charges against.
type AccountService interface {
	GetAccount(ctx context.Context, namespace string) (Account, error)
	GetRealNameInfo(ctx context.Context, userUID string) (bool, error)
	ChargeBilling(ctx context.Context, charge Charge) error
}

// TokenSource supplies the bearer token for each account-service call.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a TokenSource that never changes.
type StaticToken string

// Token returns the fixed token.
func (t StaticToken) Token() (string, error) { return string(t), nil }

// AccountClient calls the account service over HTTP with a bearer JWT.
type AccountClient struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

var _ AccountService = (*AccountClient)(nil)

// NewAccountClient creates a client; a nil httpClient gets DefaultHTTPTimeout.
func NewAccountClient(baseURL string, tokens TokenSource, httpClient *http.Client) *AccountClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &AccountClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		tokens:     tokens,
		httpClient: httpClient,
	}
}

// GetAccount fetches the owner and balance of a workspace namespace.
func (c *AccountClient) GetAccount(ctx context.Context, namespace string) (Account, error) {
	query := url.Values{"namespace": {namespace}}
	var account Account
	if err := c.do(ctx, http.MethodGet, "/admin/v1alpha1/account-with-workspace?"+query.Encode(), nil, &account); err != nil {
		return Account{}, fmt.Errorf("get account for %s: %w", namespace, err)
	}
	if account.Error != "" {
		return Account{}, fmt.Errorf("get account for %s: %s", namespace, account.Error)
	}
	return account, nil
}

// GetRealNameInfo reports whether a user has completed real-name verification.
func (c *AccountClient) GetRealNameInfo(ctx context.Context, userUID string) (bool, error) {
	query := url.Values{"userUID": {userUID}}
	var info realNameInfo
	if err := c.do(ctx, http.MethodGet, "/admin/v1alpha1/real-name-info?"+query.Encode(), nil, &info); err != nil {
		return false, fmt.Errorf("get real name info for %s: %w", userUID, err)
	}
	if info.Error != "" {
		return false, fmt.Errorf("get real name info for %s: %s", userUID, info.Error)
	}
	return info.IsRealName, nil
}

// ChargeBilling records a consumption.
func (c *AccountClient) ChargeBilling(ctx context.Context, charge Charge) error {
	payload, errMarshal := json.Marshal(charge)
	if errMarshal != nil {
		return fmt.Errorf("encode charge: %w", errMarshal)
	}
	var resp chargeResponse
	if err := c.do(ctx, http.MethodPost, "/admin/v1alpha1/charge-billing", payload, &resp); err != nil {
		return fmt.Errorf("charge %s: %w", charge.Namespace, err)
	}
	if resp.Error != "" {
		return fmt.Errorf("charge %s: %s", charge.Namespace, resp.Error)
	}
	return nil
}

func (c *AccountClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, errReq := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if errReq != nil {
		return errReq
	}
	token, errToken := c.tokens.Token()
	if errToken != nil {
		return fmt.Errorf("account token: %w", errToken)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return errDo
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return fmt.Errorf("read response: %w", errRead)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if errDecode := json.Unmarshal(data, out); errDecode != nil {
		return fmt.Errorf("decode response: %w", errDecode)
	}
	return nil
}
