package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/waabox/deviceauth/internal/config"
	"github.com/waabox/deviceauth/internal/domain"
)

const (
	deviceCodePath = "/oauth/device/code"
	tokenPath      = "/oauth/token"

	grantTypeDeviceCode   = "urn:ietf:params:oauth:grant-type:device_code"
	grantTypeRefreshToken = "refresh_token"
)

// Client talks to the authorization server's device-code and token endpoints.
// It holds no session state.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a Client.
// Pass an empty baseURL to use https://{domain} from the AuthConfig. Pass a test server URL in tests.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// RequestDeviceCode starts a device authorization for the given scopes.
// The returned UserCode must be shown to the user along with VerificationURI.
func (c *Client) RequestDeviceCode(ctx context.Context, cfg config.AuthConfig, scopes []string) (DeviceCodeResponse, error) {
	endpoint, err := c.endpoint(cfg, deviceCodePath)
	if err != nil {
		return DeviceCodeResponse{}, err
	}
	data := url.Values{}
	data.Set("client_id", cfg.ClientID)
	data.Set("audience", cfg.Audience)
	data.Set("scope", strings.Join(scopes, " "))
	return postForm[DeviceCodeResponse](ctx, c.client, endpoint, data)
}

// RequestToken makes a single device-code token exchange attempt.
// Pending authorizations surface as *domain.DeviceFlowError; the caller owns the polling loop.
func (c *Client) RequestToken(ctx context.Context, cfg config.AuthConfig, deviceCode string) (TokenResponse, error) {
	endpoint, err := c.endpoint(cfg, tokenPath)
	if err != nil {
		return TokenResponse{}, err
	}
	data := url.Values{}
	data.Set("grant_type", grantTypeDeviceCode)
	data.Set("device_code", deviceCode)
	data.Set("client_id", cfg.ClientID)
	resp, err := postForm[TokenResponse](ctx, c.client, endpoint, data)
	if err != nil {
		return TokenResponse{}, err
	}
	return checkTokenBody(resp)
}

// RefreshToken exchanges a refresh token for a new access token.
func (c *Client) RefreshToken(ctx context.Context, cfg config.AuthConfig, refreshToken string) (TokenResponse, error) {
	endpoint, err := c.endpoint(cfg, tokenPath)
	if err != nil {
		return TokenResponse{}, err
	}
	data := url.Values{}
	data.Set("grant_type", grantTypeRefreshToken)
	data.Set("client_id", cfg.ClientID)
	data.Set("refresh_token", refreshToken)
	resp, err := postForm[TokenResponse](ctx, c.client, endpoint, data)
	if err != nil {
		return TokenResponse{}, err
	}
	return checkTokenBody(resp)
}

func (c *Client) endpoint(cfg config.AuthConfig, path string) (string, error) {
	base := c.baseURL
	if base == "" {
		base = "https://" + cfg.Domain
	}
	endpoint, err := url.JoinPath(base, path)
	if err != nil {
		return "", fmt.Errorf("building URL: %w", err)
	}
	return endpoint, nil
}

// checkTokenBody turns a 200 response that carries an error document into a DeviceFlowError.
func checkTokenBody(resp TokenResponse) (TokenResponse, error) {
	if resp.AccessToken == "" && resp.ErrorCode != "" {
		return TokenResponse{}, &domain.DeviceFlowError{Code: resp.ErrorCode, Description: resp.ErrorDescription}
	}
	return resp, nil
}

type oauthErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// postForm sends body as application/x-www-form-urlencoded and decodes a 2xx reply as T.
// A non-2xx reply becomes *domain.DeviceFlowError when it carries {error, error_description},
// otherwise *domain.HTTPStatusError with the raw status and body.
func postForm[T any](ctx context.Context, client *http.Client, endpoint string, body url.Values) (T, error) {
	var zero T

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body.Encode()))
	if err != nil {
		return zero, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return zero, &domain.NetworkError{Op: "POST " + endpoint, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, &domain.NetworkError{Op: "reading response from " + endpoint, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var oauthErr oauthErrorBody
		if jsonErr := json.Unmarshal(raw, &oauthErr); jsonErr != nil || oauthErr.Error == "" {
			return zero, &domain.HTTPStatusError{StatusCode: resp.StatusCode, Body: string(raw)}
		}
		return zero, &domain.DeviceFlowError{Code: oauthErr.Error, Description: oauthErr.ErrorDescription}
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, &domain.NetworkError{Op: "decoding response from " + endpoint, Err: err}
	}
	return out, nil
}
