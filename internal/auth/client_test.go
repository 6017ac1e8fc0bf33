package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waabox/deviceauth/internal/auth"
	"github.com/waabox/deviceauth/internal/config"
	"github.com/waabox/deviceauth/internal/domain"
)

var testConfig = config.AuthConfig{
	Domain:   "auth.example.com",
	ClientID: "abc",
	Audience: "api",
	Scope:    "openid profile",
}

func TestClient_RequestDeviceCode_PostsFormAndDecodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth/device/code", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "abc", r.FormValue("client_id"))
		assert.Equal(t, "api", r.FormValue("audience"))
		assert.Equal(t, "openid profile read:repo", r.FormValue("scope"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"device_code":      "D1",
			"user_code":        "ABCD-1234",
			"verification_uri": "https://auth.example.com/activate",
			"expires_in":       600,
			"interval":         5,
		})
	}))
	defer server.Close()

	client := auth.NewClient(server.URL, time.Second)
	code, err := client.RequestDeviceCode(context.Background(), testConfig, []string{"openid", "profile", "read:repo"})
	require.NoError(t, err)
	assert.Equal(t, "D1", code.DeviceCode)
	assert.Equal(t, "ABCD-1234", code.UserCode)
	assert.Equal(t, "https://auth.example.com/activate", code.BrowserURL())
	assert.Equal(t, 600*time.Second, code.Lifetime())
	assert.Equal(t, 5*time.Second, code.PollInterval())
}

func TestDeviceCodeResponse_DefaultsIntervalAndPrefersCompleteURI(t *testing.T) {
	code := auth.DeviceCodeResponse{
		VerificationURI:         "https://auth.example.com/activate",
		VerificationURIComplete: "https://auth.example.com/activate?user_code=ABCD",
	}
	assert.Equal(t, 5*time.Second, code.PollInterval())
	assert.Equal(t, "https://auth.example.com/activate?user_code=ABCD", code.BrowserURL())
}

func TestClient_RequestToken_SendsDeviceGrant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "urn:ietf:params:oauth:grant-type:device_code", r.FormValue("grant_type"))
		assert.Equal(t, "D1", r.FormValue("device_code"))
		assert.Equal(t, "abc", r.FormValue("client_id"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "tok1",
			"refresh_token": "ref1",
			"expires_in":    3600,
			"scope":         "openid profile read:repo",
			"token_type":    "Bearer",
		})
	}))
	defer server.Close()

	client := auth.NewClient(server.URL, time.Second)
	tok, err := client.RequestToken(context.Background(), testConfig, "D1")
	require.NoError(t, err)
	assert.Equal(t, "tok1", tok.AccessToken)
	assert.Equal(t, "ref1", tok.RefreshToken)
	assert.Equal(t, time.Hour, tok.Lifetime())
	assert.Equal(t, "Bearer", tok.TokenType)
}

func TestClient_RequestToken_ReturnsDeviceFlowErrorOnOAuthErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "authorization_pending",
			"error_description": "User has yet to authorize device code.",
		})
	}))
	defer server.Close()

	client := auth.NewClient(server.URL, time.Second)
	_, err := client.RequestToken(context.Background(), testConfig, "D1")

	var flowErr *domain.DeviceFlowError
	require.True(t, errors.As(err, &flowErr), "got %T %v", err, err)
	assert.Equal(t, domain.CodeAuthorizationPending, flowErr.Code)
	assert.Equal(t, "User has yet to authorize device code.", flowErr.Description)
}

func TestClient_RequestToken_TreatsErrorDocumentOn200AsDeviceFlowError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"error": "slow_down"})
	}))
	defer server.Close()

	client := auth.NewClient(server.URL, time.Second)
	_, err := client.RequestToken(context.Background(), testConfig, "D1")

	var flowErr *domain.DeviceFlowError
	require.True(t, errors.As(err, &flowErr))
	assert.Equal(t, domain.CodeSlowDown, flowErr.Code)
}

func TestClient_NonJSONErrorBodyReturnsHTTPStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer server.Close()

	client := auth.NewClient(server.URL, time.Second)
	_, err := client.RequestDeviceCode(context.Background(), testConfig, []string{"openid"})

	var statusErr *domain.HTTPStatusError
	require.True(t, errors.As(err, &statusErr), "got %T %v", err, err)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, "<html>bad gateway</html>", statusErr.Body)
}

func TestClient_Undecodable2xxIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := auth.NewClient(server.URL, time.Second)
	_, err := client.RequestToken(context.Background(), testConfig, "D1")

	var netErr *domain.NetworkError
	require.True(t, errors.As(err, &netErr), "got %T %v", err, err)
	var flowErr *domain.DeviceFlowError
	assert.False(t, errors.As(err, &flowErr))
}

func TestClient_TransportFailureIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := auth.NewClient(url, time.Second)
	_, err := client.RefreshToken(context.Background(), testConfig, "ref1")

	var netErr *domain.NetworkError
	require.True(t, errors.As(err, &netErr), "got %T %v", err, err)
}

func TestClient_RefreshToken_SendsRefreshGrant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.FormValue("grant_type"))
		assert.Equal(t, "old_refresh", r.FormValue("refresh_token"))
		assert.Equal(t, "abc", r.FormValue("client_id"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "new_access",
			"refresh_token": "new_refresh",
			"expires_in":    60,
		})
	}))
	defer server.Close()

	client := auth.NewClient(server.URL, time.Second)
	resp, err := client.RefreshToken(context.Background(), testConfig, "old_refresh")
	require.NoError(t, err)
	assert.Equal(t, "new_access", resp.AccessToken)
	assert.Equal(t, "new_refresh", resp.RefreshToken)
}

func TestClient_RefreshToken_ReturnsErrorOnRevokedToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_grant",
			"error_description": "refresh token revoked",
		})
	}))
	defer server.Close()

	client := auth.NewClient(server.URL, time.Second)
	_, err := client.RefreshToken(context.Background(), testConfig, "revoked_refresh")

	var flowErr *domain.DeviceFlowError
	require.True(t, errors.As(err, &flowErr))
	assert.Equal(t, "invalid_grant", flowErr.Code)
}

func TestClient_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"error": "authorization_pending"})
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := auth.NewClient(server.URL, time.Second)
	_, err := client.RequestToken(ctx, testConfig, "D1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
