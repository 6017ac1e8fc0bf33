package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/waabox/deviceauth/internal/auth"
	"github.com/waabox/deviceauth/internal/config"
	"github.com/waabox/deviceauth/internal/domain"
	"github.com/waabox/deviceauth/internal/metrics"
	"github.com/waabox/deviceauth/internal/secret"
)

// State is a step of the device authorization state machine.
type State string

const (
	StateInit                 State = "INIT"
	StateDeviceCodeRequested  State = "DEVICE_CODE_REQUESTED"
	StateAwaitingVerification State = "AWAITING_VERIFICATION"
	StatePolling              State = "POLLING"
	StateSuccess              State = "SUCCESS"
	StateExpired              State = "EXPIRED"
	StateDenied               State = "DENIED"
	StateError                State = "ERROR"
)

// TokenClient is the transport the manager drives; *auth.Client implements it.
type TokenClient interface {
	Refresher
	RequestDeviceCode(ctx context.Context, cfg config.AuthConfig, scopes []string) (auth.DeviceCodeResponse, error)
	RequestToken(ctx context.Context, cfg config.AuthConfig, deviceCode string) (auth.TokenResponse, error)
}

// Options carries the optional collaborators of a Manager.
type Options struct {
	Logger   *zap.SugaredLogger
	Metrics  *metrics.Metrics
	Prompter Prompter
	// OnState observes every state machine transition of CreateSession.
	OnState func(State)
	// Now, Sleep, and NewID default to time.Now, a context-aware timer, and uuid.NewString.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
	NewID func() string
}

// Filter narrows GetSessions. Zero values match everything.
type Filter struct {
	Scopes    []string
	AccountID string
}

// Manager runs the device flow and owns the persisted session list.
// Every read-modify-write of the list is serialized by mu; events fire after the lock is released.
type Manager struct {
	cfg       config.AuthConfig
	client    TokenClient
	store     *Store
	validator *Validator
	events    *Broadcaster
	prompter  Prompter
	log       *zap.SugaredLogger
	metrics   *metrics.Metrics
	onState   func(State)
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	newID     func() string

	mu sync.Mutex
}

// NewManager creates a Manager. cfg is validated lazily by CreateSession.
func NewManager(cfg config.AuthConfig, client TokenClient, secrets secret.Store, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Manager{
		cfg:       cfg,
		client:    client,
		store:     NewStore(secrets, opts.Logger),
		validator: NewValidator(cfg, client, opts.Logger, opts.Metrics, opts.Now),
		events:    NewBroadcaster(),
		prompter:  opts.Prompter,
		log:       opts.Logger,
		metrics:   opts.Metrics,
		onState:   opts.OnState,
		now:       opts.Now,
		sleep:     opts.Sleep,
		newID:     opts.NewID,
	}
}

// Events returns the broadcaster that reports persisted session changes.
func (m *Manager) Events() *Broadcaster {
	return m.events
}

// CreateSession runs the device authorization flow for requested scopes and stores the result.
// The configured base scopes are always included.
func (m *Manager) CreateSession(ctx context.Context, requested []string) (domain.Session, error) {
	m.transition(StateInit)
	if err := m.cfg.Validate(); err != nil {
		m.finish(StateError)
		return domain.Session{}, err
	}
	scopes := auth.CombineScopes(auth.SplitScopes(m.cfg.Scope), requested)

	device, err := m.client.RequestDeviceCode(ctx, m.cfg, scopes)
	if err != nil {
		m.finish(StateError)
		return domain.Session{}, fmt.Errorf("requesting device code: %w", err)
	}
	m.transition(StateDeviceCodeRequested)

	m.transition(StateAwaitingVerification)
	if m.prompter != nil {
		if err := m.prompter.ShowVerification(ctx, device); err != nil {
			m.finish(StateError)
			return domain.Session{}, err
		}
	}

	m.transition(StatePolling)
	watcher, _ := m.prompter.(PollWatcher)
	if watcher != nil {
		watcher.PollingStarted(device)
	}
	token, err := m.pollForToken(ctx, m.cfg, device)
	if watcher != nil {
		watcher.PollingStopped(err)
	}
	if err != nil {
		m.finish(terminalState(err))
		return domain.Session{}, err
	}
	if token.AccessToken == "" {
		m.finish(StateError)
		return domain.Session{}, errors.New("token endpoint returned no access token")
	}

	stored := domain.StoredSession{
		ID:           m.newID(),
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    m.now().Add(token.Lifetime()),
		Account:      auth.AccountFromIDToken(token.IDToken, m.newID),
		Scopes:       auth.CombineScopes(auth.SplitScopes(token.Scope), scopes),
	}

	if err := m.append(ctx, stored); err != nil {
		m.finish(StateError)
		return domain.Session{}, err
	}
	m.finish(StateSuccess)
	m.log.Infow("signed in", "session", stored.ID, "account", stored.Account.ID, "scopes", stored.Scopes)

	view := stored.View()
	m.events.Emit(domain.ChangeEvent{Added: []domain.Session{view}})
	return view, nil
}

func (m *Manager) append(ctx context.Context, stored domain.StoredSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sessions, err := m.store.Load(ctx)
	if err != nil {
		return err
	}
	return m.store.Save(ctx, append(sessions, stored))
}

// GetSessions returns the usable sessions that match f, refreshing or pruning stored
// sessions on the way. Every returned session is valid for at least another minute.
func (m *Manager) GetSessions(ctx context.Context, f Filter) ([]domain.Session, error) {
	visible, removed, err := m.validateAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		m.events.Emit(domain.ChangeEvent{Removed: domain.Views(removed)})
	}

	out := make([]domain.Session, 0, len(visible))
	for _, s := range visible {
		if f.AccountID != "" && s.Account.ID != f.AccountID {
			continue
		}
		if !s.HasScopes(f.Scopes) {
			continue
		}
		out = append(out, s.View())
	}
	return out, nil
}

// validateAll runs the validator over the stored list under the lock and persists the outcome.
// removed is non-empty only when the pruned list was saved.
func (m *Manager) validateAll(ctx context.Context) (visible, removed []domain.StoredSession, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions, err := m.store.Load(ctx)
	if err != nil {
		return nil, nil, err
	}

	kept := make([]domain.StoredSession, 0, len(sessions))
	mutated := false
	for _, s := range sessions {
		validated, verdict := m.validator.EnsureValid(ctx, s)
		switch verdict {
		case Fresh:
			kept = append(kept, s)
			visible = append(visible, s)
		case Refreshed:
			kept = append(kept, validated)
			visible = append(visible, validated)
			mutated = true
		case ShortLived:
			kept = append(kept, validated)
			mutated = true
		case Unavailable:
			kept = append(kept, s)
		case Dead:
			removed = append(removed, s)
		}
	}

	if len(removed) == 0 && !mutated {
		return visible, nil, nil
	}
	if err := m.store.Save(ctx, kept); err != nil {
		// The caller still gets the usable sessions; the next read retries the write.
		m.log.Warnw("could not persist validated sessions", "error", err)
		return visible, nil, nil
	}
	if len(removed) > 0 {
		m.metrics.Pruned(len(removed))
		m.log.Infow("pruned expired sessions", "count", len(removed))
	}
	return visible, removed, nil
}

// RemoveSession deletes the session with id. Unknown ids are a no-op and fire no event.
func (m *Manager) RemoveSession(ctx context.Context, id string) error {
	dropped, err := m.remove(ctx, func(s domain.StoredSession) bool { return s.ID == id })
	if err != nil {
		return err
	}
	if len(dropped) > 0 {
		m.log.Infow("session removed", "session", id)
		m.events.Emit(domain.ChangeEvent{Removed: domain.Views(dropped)})
	}
	return nil
}

// RemoveAll deletes every stored session and returns their views.
func (m *Manager) RemoveAll(ctx context.Context) ([]domain.Session, error) {
	dropped, err := m.remove(ctx, func(domain.StoredSession) bool { return true })
	if err != nil {
		return nil, err
	}
	views := domain.Views(dropped)
	if len(views) > 0 {
		m.log.Infow("all sessions removed", "count", len(views))
		m.events.Emit(domain.ChangeEvent{Removed: views})
	}
	return views, nil
}

func (m *Manager) remove(ctx context.Context, match func(domain.StoredSession) bool) ([]domain.StoredSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions, err := m.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	var kept, dropped []domain.StoredSession
	for _, s := range sessions {
		if match(s) {
			dropped = append(dropped, s)
		} else {
			kept = append(kept, s)
		}
	}
	if len(dropped) == 0 {
		return nil, nil
	}
	if err := m.store.Save(ctx, kept); err != nil {
		return nil, err
	}
	return dropped, nil
}

func (m *Manager) transition(s State) {
	m.log.Debugw("device flow", "state", s)
	if m.onState != nil {
		m.onState(s)
	}
}

func (m *Manager) finish(s State) {
	m.transition(s)
	m.metrics.DeviceFlowFinished(strings.ToLower(string(s)))
}

func terminalState(err error) State {
	var flowErr *domain.DeviceFlowError
	switch {
	case errors.Is(err, domain.ErrDeviceCodeExpired), errors.Is(err, domain.ErrPollTimeout):
		return StateExpired
	case errors.As(err, &flowErr) && flowErr.Code == domain.CodeAccessDenied:
		return StateDenied
	default:
		return StateError
	}
}
