package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/waabox/deviceauth/internal/domain"
	"github.com/waabox/deviceauth/internal/secret"
)

// StorageKey is the secret store key holding the JSON session list.
const StorageKey = "deviceauth.sessions"

// Store reads and writes the whole session list as a single secret.
type Store struct {
	secrets secret.Store
	log     *zap.SugaredLogger
}

// NewStore creates a Store over secrets.
func NewStore(secrets secret.Store, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Store{secrets: secrets, log: log}
}

// Load returns every stored session.
// A missing or corrupt blob yields an empty list; only backend failures are returned.
func (s *Store) Load(ctx context.Context) ([]domain.StoredSession, error) {
	raw, err := s.secrets.Get(ctx, StorageKey)
	if errors.Is(err, secret.ErrNotFound) {
		return []domain.StoredSession{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading sessions: %w", err)
	}

	var sessions []domain.StoredSession
	if err := json.Unmarshal([]byte(raw), &sessions); err != nil {
		s.log.Warnw("stored sessions are corrupt, treating as empty", "error", err)
		return []domain.StoredSession{}, nil
	}

	valid := sessions[:0]
	for _, sess := range sessions {
		if sess.ID == "" || sess.AccessToken == "" {
			s.log.Warnw("skipping stored session without id or access token", "id", sess.ID)
			continue
		}
		valid = append(valid, sess)
	}
	return valid, nil
}

// Save replaces the stored list with sessions.
func (s *Store) Save(ctx context.Context, sessions []domain.StoredSession) error {
	if sessions == nil {
		sessions = []domain.StoredSession{}
	}
	raw, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("encoding sessions: %w", err)
	}
	if err := s.secrets.Store(ctx, StorageKey, string(raw)); err != nil {
		return fmt.Errorf("saving sessions: %w", err)
	}
	return nil
}
