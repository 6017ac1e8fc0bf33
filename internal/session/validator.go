package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/waabox/deviceauth/internal/auth"
	"github.com/waabox/deviceauth/internal/config"
	"github.com/waabox/deviceauth/internal/domain"
	"github.com/waabox/deviceauth/internal/metrics"
)

// freshnessBuffer absorbs clock skew and requests already in flight.
const freshnessBuffer = 60 * time.Second

// Verdict is the result of validating one stored session.
type Verdict int

const (
	// Fresh sessions are returned unchanged.
	Fresh Verdict = iota
	// Refreshed sessions carry new tokens and must be persisted.
	Refreshed
	// Dead sessions expired and cannot be refreshed; they are dropped.
	Dead
	// Unavailable sessions could not be refreshed because the server was unreachable.
	// They stay stored but are not handed out.
	Unavailable
	// ShortLived sessions were refreshed, but the new token expires within the freshness
	// buffer. They are persisted but not handed out.
	ShortLived
)

func (v Verdict) String() string {
	switch v {
	case Fresh:
		return "fresh"
	case Refreshed:
		return "refreshed"
	case Dead:
		return "dead"
	case Unavailable:
		return "unavailable"
	case ShortLived:
		return "short-lived"
	default:
		return "unknown"
	}
}

// Refresher exchanges a refresh token for new tokens.
type Refresher interface {
	RefreshToken(ctx context.Context, cfg config.AuthConfig, refreshToken string) (auth.TokenResponse, error)
}

// Validator decides whether a stored session is usable and refreshes it when it is not.
type Validator struct {
	cfg       config.AuthConfig
	refresher Refresher
	log       *zap.SugaredLogger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewValidator creates a Validator. A nil now uses time.Now.
func NewValidator(cfg config.AuthConfig, refresher Refresher, log *zap.SugaredLogger, m *metrics.Metrics, now func() time.Time) *Validator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if now == nil {
		now = time.Now
	}
	return &Validator{cfg: cfg, refresher: refresher, log: log, metrics: m, now: now}
}

// IsFresh reports whether s stays valid for more than a minute after now.
func (v *Validator) IsFresh(s domain.StoredSession, now time.Time) bool {
	return s.ExpiresAt.After(now.Add(freshnessBuffer))
}

// EnsureValid returns s unchanged when fresh, or a refreshed copy when its refresh token still works.
// Protocol rejections and missing refresh tokens yield Dead; transport failures yield Unavailable.
func (v *Validator) EnsureValid(ctx context.Context, s domain.StoredSession) (domain.StoredSession, Verdict) {
	if v.IsFresh(s, v.now()) {
		return s, Fresh
	}
	if s.RefreshToken == "" {
		v.log.Infow("session expired without refresh token", "session", s.ID, "account", s.Account.ID)
		return domain.StoredSession{}, Dead
	}

	resp, err := v.refresher.RefreshToken(ctx, v.cfg, s.RefreshToken)
	if err != nil {
		var netErr *domain.NetworkError
		if errors.As(err, &netErr) {
			v.log.Warnw("refresh failed, keeping session for a later attempt", "session", s.ID, "error", err)
			v.metrics.Refresh("unavailable")
			return domain.StoredSession{}, Unavailable
		}
		v.log.Warnw("refresh rejected, dropping session", "session", s.ID, "error", err)
		v.metrics.Refresh("rejected")
		return domain.StoredSession{}, Dead
	}
	if resp.AccessToken == "" {
		v.log.Warnw("refresh returned no access token, dropping session", "session", s.ID)
		v.metrics.Refresh("rejected")
		return domain.StoredSession{}, Dead
	}

	refreshed := s
	refreshed.AccessToken = resp.AccessToken
	if resp.RefreshToken != "" {
		refreshed.RefreshToken = resp.RefreshToken
	}
	refreshed.ExpiresAt = v.now().Add(resp.Lifetime())
	refreshed.Scopes = auth.CombineScopes(auth.SplitScopes(resp.Scope), s.Scopes)

	if !v.IsFresh(refreshed, v.now()) {
		v.log.Warnw("refreshed token expires too soon to hand out", "session", s.ID, "expiresAt", refreshed.ExpiresAt)
		v.metrics.Refresh("short_lived")
		return refreshed, ShortLived
	}

	v.log.Debugw("session refreshed", "session", s.ID, "expiresAt", refreshed.ExpiresAt)
	v.metrics.Refresh("refreshed")
	return refreshed, Refreshed
}
