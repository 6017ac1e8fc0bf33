package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waabox/deviceauth/internal/auth"
	"github.com/waabox/deviceauth/internal/config"
	"github.com/waabox/deviceauth/internal/domain"
	"github.com/waabox/deviceauth/internal/metrics"
)

func TestClassifyAttempt(t *testing.T) {
	const interval = 5 * time.Second
	tests := []struct {
		name     string
		err      error
		kind     pollKind
		interval time.Duration
	}{
		{name: "success", kind: pollSuccess},
		{name: "pending", err: &domain.DeviceFlowError{Code: domain.CodeAuthorizationPending}, kind: pollRetry, interval: interval},
		{name: "slow down", err: &domain.DeviceFlowError{Code: domain.CodeSlowDown}, kind: pollRetry, interval: interval + 5*time.Second},
		{name: "expired", err: &domain.DeviceFlowError{Code: domain.CodeExpiredToken}, kind: pollTerminal},
		{name: "denied", err: &domain.DeviceFlowError{Code: domain.CodeAccessDenied}, kind: pollTerminal},
		{name: "network", err: &domain.NetworkError{Op: "POST", Err: errors.New("reset")}, kind: pollTerminal},
		{name: "status", err: &domain.HTTPStatusError{StatusCode: 502}, kind: pollTerminal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := classifyAttempt(auth.TokenResponse{AccessToken: "tok"}, tt.err, interval)
			assert.Equal(t, tt.kind, out.kind)
			assert.Equal(t, tt.interval, out.interval)
			if tt.kind == pollTerminal {
				assert.Error(t, out.err)
			}
		})
	}
}

type scriptedTokens struct {
	TokenClient
	replies []error
	calls   int
}

func (s *scriptedTokens) RequestToken(context.Context, config.AuthConfig, string) (auth.TokenResponse, error) {
	err := s.replies[s.calls]
	s.calls++
	if err != nil {
		return auth.TokenResponse{}, err
	}
	return auth.TokenResponse{AccessToken: "tok"}, nil
}

func TestPollForToken_RecordsAttemptMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	client := &scriptedTokens{replies: []error{
		&domain.DeviceFlowError{Code: domain.CodeAuthorizationPending},
		&domain.DeviceFlowError{Code: domain.CodeSlowDown},
		nil,
	}}
	now := time.Unix(0, 0)
	mgr := NewManager(config.AuthConfig{}, client, nil, Options{
		Metrics: m,
		Now:     func() time.Time { return now },
		Sleep: func(_ context.Context, d time.Duration) error {
			now = now.Add(d)
			return nil
		},
	})

	token, err := mgr.pollForToken(context.Background(), config.AuthConfig{}, auth.DeviceCodeResponse{DeviceCode: "D1", ExpiresIn: 60})
	require.NoError(t, err)
	assert.Equal(t, "tok", token.AccessToken)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollAttempts.WithLabelValues("pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollAttempts.WithLabelValues("slow_down")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollAttempts.WithLabelValues("success")))
	assert.Equal(t, time.Unix(15, 0), now)
}

func TestPollForToken_ZeroLifetimeTimesOutWithoutRequest(t *testing.T) {
	client := &scriptedTokens{}
	mgr := NewManager(config.AuthConfig{}, client, nil, Options{})

	_, err := mgr.pollForToken(context.Background(), config.AuthConfig{}, auth.DeviceCodeResponse{DeviceCode: "D1"})
	require.ErrorIs(t, err, domain.ErrPollTimeout)
	assert.Zero(t, client.calls)
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
