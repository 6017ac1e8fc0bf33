package auth

import "time"

// defaultPollInterval applies when the server omits interval.
const defaultPollInterval = 5 * time.Second

// DeviceCodeResponse holds the initial response from a device authorization request.
// It contains the code to show the user and the parameters needed for polling.
type DeviceCodeResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete,omitempty"`
	ExpiresIn               int    `json:"expires_in"`         // seconds until the device code expires
	Interval                int    `json:"interval,omitempty"` // minimum polling interval in seconds
}

// PollInterval returns the server interval, or 5s when the server sent none.
func (d DeviceCodeResponse) PollInterval() time.Duration {
	if d.Interval > 0 {
		return time.Duration(d.Interval) * time.Second
	}
	return defaultPollInterval
}

// Lifetime returns how long the device code stays valid.
func (d DeviceCodeResponse) Lifetime() time.Duration {
	return time.Duration(d.ExpiresIn) * time.Second
}

// BrowserURL returns the URL to open for the user, preferring the one with the code embedded.
func (d DeviceCodeResponse) BrowserURL() string {
	if d.VerificationURIComplete != "" {
		return d.VerificationURIComplete
	}
	return d.VerificationURI
}

// TokenResponse holds the tokens returned after successful OAuth authorization or refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
	TokenType    string `json:"token_type,omitempty"`

	// Some servers answer 200 with an error document; see Client.RequestToken.
	ErrorCode        string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Lifetime returns the access token lifetime reported by the server.
func (t TokenResponse) Lifetime() time.Duration {
	return time.Duration(t.ExpiresIn) * time.Second
}
