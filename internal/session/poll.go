package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/waabox/deviceauth/internal/auth"
	"github.com/waabox/deviceauth/internal/config"
	"github.com/waabox/deviceauth/internal/domain"
)

// slowDownStep is added to the polling interval on every slow_down. There is no ceiling.
const slowDownStep = 5 * time.Second

type pollKind int

const (
	pollSuccess pollKind = iota
	pollRetry
	pollTerminal
)

// pollOutcome is the result of one token attempt: a token, a retry after interval, or a terminal error.
type pollOutcome struct {
	kind     pollKind
	token    auth.TokenResponse
	interval time.Duration
	err      error
}

// classifyAttempt maps a token endpoint reply onto the polling state machine.
// Only authorization_pending and slow_down are retried; transport failures end the flow.
func classifyAttempt(token auth.TokenResponse, err error, interval time.Duration) pollOutcome {
	if err == nil {
		return pollOutcome{kind: pollSuccess, token: token}
	}
	var flowErr *domain.DeviceFlowError
	if !errors.As(err, &flowErr) {
		return pollOutcome{kind: pollTerminal, err: fmt.Errorf("polling token: %w", err)}
	}
	switch flowErr.Code {
	case domain.CodeAuthorizationPending:
		return pollOutcome{kind: pollRetry, interval: interval}
	case domain.CodeSlowDown:
		return pollOutcome{kind: pollRetry, interval: interval + slowDownStep}
	case domain.CodeExpiredToken:
		return pollOutcome{kind: pollTerminal, err: fmt.Errorf("%w: %w", domain.ErrDeviceCodeExpired, flowErr)}
	default:
		return pollOutcome{kind: pollTerminal, err: flowErr}
	}
}

// pollForToken polls the token endpoint until the user decides, the device code lifetime
// elapses, or ctx is cancelled.
func (m *Manager) pollForToken(ctx context.Context, cfg config.AuthConfig, device auth.DeviceCodeResponse) (auth.TokenResponse, error) {
	deadline := m.now().Add(device.Lifetime())
	interval := device.PollInterval()

	for m.now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return auth.TokenResponse{}, err
		}

		token, err := m.client.RequestToken(ctx, cfg, device.DeviceCode)
		outcome := classifyAttempt(token, err, interval)

		switch outcome.kind {
		case pollSuccess:
			m.metrics.PollAttempt("success")
			return outcome.token, nil
		case pollTerminal:
			m.metrics.PollAttempt("terminal")
			return auth.TokenResponse{}, outcome.err
		case pollRetry:
			if outcome.interval != interval {
				m.metrics.PollAttempt("slow_down")
				m.log.Debugw("server asked to slow down", "interval", outcome.interval)
			} else {
				m.metrics.PollAttempt("pending")
				m.log.Debugw("authorization pending", "interval", outcome.interval)
			}
			interval = outcome.interval
			if err := m.sleep(ctx, interval); err != nil {
				return auth.TokenResponse{}, err
			}
		}
	}
	return auth.TokenResponse{}, domain.ErrPollTimeout
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
