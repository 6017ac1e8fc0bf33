package session_test

import (
	"context"
	"sync"
	"time"

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

// fakeClock advances only when the code under test sleeps.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type tokenReply struct {
	token auth.TokenResponse
	err   error
}

// fakeClient scripts the token endpoint. The last token reply repeats once the script runs out.
type fakeClient struct {
	mu            sync.Mutex
	device        auth.DeviceCodeResponse
	deviceErr     error
	tokens        []tokenReply
	refresh       tokenReply
	deviceCalls   int
	tokenCalls    int
	refreshCalls  int
	refreshTokens []string
	scopes        []string
}

func (f *fakeClient) RequestDeviceCode(_ context.Context, _ config.AuthConfig, scopes []string) (auth.DeviceCodeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deviceCalls++
	f.scopes = scopes
	return f.device, f.deviceErr
}

func (f *fakeClient) RequestToken(_ context.Context, _ config.AuthConfig, _ string) (auth.TokenResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.tokenCalls
	f.tokenCalls++
	if i >= len(f.tokens) {
		i = len(f.tokens) - 1
	}
	return f.tokens[i].token, f.tokens[i].err
}

func (f *fakeClient) RefreshToken(_ context.Context, _ config.AuthConfig, refreshToken string) (auth.TokenResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	f.refreshTokens = append(f.refreshTokens, refreshToken)
	return f.refresh.token, f.refresh.err
}

func pending() tokenReply {
	return tokenReply{err: &domain.DeviceFlowError{Code: domain.CodeAuthorizationPending}}
}

func slowDown() tokenReply {
	return tokenReply{err: &domain.DeviceFlowError{Code: domain.CodeSlowDown}}
}

func granted(access string) tokenReply {
	return tokenReply{token: auth.TokenResponse{AccessToken: access, RefreshToken: "ref-" + access, ExpiresIn: 3600}}
}

// recorder collects change events.
type recorder struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
}

func (r *recorder) listen(e domain.ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []domain.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ChangeEvent(nil), r.events...)
}
