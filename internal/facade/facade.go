// Package facade is the small surface UI code talks to: it hides filters, validation,
// and the device flow behind a handful of calls.
package facade

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/waabox/deviceauth/internal/domain"
	"github.com/waabox/deviceauth/internal/session"
)

// Sessions is the part of *session.Manager the facade drives.
type Sessions interface {
	CreateSession(ctx context.Context, requested []string) (domain.Session, error)
	GetSessions(ctx context.Context, f session.Filter) ([]domain.Session, error)
	RemoveAll(ctx context.Context) ([]domain.Session, error)
}

// Facade answers "who am I and what token do I send" without any user interaction,
// and starts or ends sign-in when asked.
type Facade struct {
	sessions Sessions
	scopes   []string
	log      *zap.SugaredLogger
	group    singleflight.Group
}

// New creates a Facade. scopes are requested on SignIn and required of the current session.
func New(sessions Sessions, scopes []string, log *zap.SugaredLogger) *Facade {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Facade{sessions: sessions, scopes: scopes, log: log}
}

// Current returns the first valid session that carries the default scopes.
func (f *Facade) Current(ctx context.Context) (domain.Session, error) {
	sessions, err := f.sessions.GetSessions(ctx, session.Filter{Scopes: f.scopes})
	if err != nil {
		return domain.Session{}, err
	}
	if len(sessions) == 0 {
		return domain.Session{}, domain.ErrNotSignedIn
	}
	return sessions[0], nil
}

// GetAccessToken returns the access token of the current session, or domain.ErrNotSignedIn.
// Concurrent callers share one lookup, so a burst of requests triggers at most one refresh.
// The shared lookup ignores cancellation of whichever caller started it; each caller
// stops waiting when its own ctx is done.
func (f *Facade) GetAccessToken(ctx context.Context) (string, error) {
	shared := context.WithoutCancel(ctx)
	ch := f.group.DoChan("access-token", func() (interface{}, error) {
		s, err := f.Current(shared)
		if err != nil {
			return "", err
		}
		return s.AccessToken, nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// IsAuthenticated reports whether a valid session exists.
func (f *Facade) IsAuthenticated(ctx context.Context) (bool, error) {
	_, err := f.Current(ctx)
	if errors.Is(err, domain.ErrNotSignedIn) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetAccount returns the account of the current session, or domain.ErrNotSignedIn.
func (f *Facade) GetAccount(ctx context.Context) (domain.Account, error) {
	s, err := f.Current(ctx)
	if err != nil {
		return domain.Account{}, err
	}
	return s.Account, nil
}

// SignIn runs the device flow with the default scopes plus extra.
func (f *Facade) SignIn(ctx context.Context, extra ...string) (domain.Session, error) {
	requested := make([]string, 0, len(f.scopes)+len(extra))
	requested = append(requested, f.scopes...)
	requested = append(requested, extra...)
	s, err := f.sessions.CreateSession(ctx, requested)
	if err != nil {
		return domain.Session{}, err
	}
	f.log.Infow("sign-in complete", "account", s.Account.Label)
	return s, nil
}

// SignOut removes every stored session and returns what was removed.
// Confirmation is the caller's job.
func (f *Facade) SignOut(ctx context.Context) ([]domain.Session, error) {
	removed, err := f.sessions.RemoveAll(ctx)
	if err != nil {
		return nil, err
	}
	f.log.Infow("signed out", "sessions", len(removed))
	return removed, nil
}
