package domain

import "time"

// Account identifies the user a session was issued to.
type Account struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// StoredSession is the persisted form of a signed-in session.
// ExpiresAt is always issuance time plus the server-reported lifetime.
type StoredSession struct {
	ID           string    `json:"id"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Account      Account   `json:"account"`
	Scopes       []string  `json:"scopes"`
}

// Session is the public view of a StoredSession.
// Refresh tokens and expiry never cross this boundary.
type Session struct {
	ID          string
	AccessToken string
	Account     Account
	Scopes      []string
}

// View returns the public view of s.
func (s StoredSession) View() Session {
	scopes := make([]string, len(s.Scopes))
	copy(scopes, s.Scopes)
	return Session{
		ID:          s.ID,
		AccessToken: s.AccessToken,
		Account:     s.Account,
		Scopes:      scopes,
	}
}

// HasScopes reports whether every scope in required is granted to s.
// An empty required list matches any session.
func (s StoredSession) HasScopes(required []string) bool {
	if len(required) == 0 {
		return true
	}
	granted := make(map[string]struct{}, len(s.Scopes))
	for _, scope := range s.Scopes {
		granted[scope] = struct{}{}
	}
	for _, scope := range required {
		if _, ok := granted[scope]; !ok {
			return false
		}
	}
	return true
}

// ChangeEvent describes sessions added, removed, or mutated by a persisted change.
type ChangeEvent struct {
	Added   []Session
	Removed []Session
	Changed []Session
}

// Empty reports whether the event carries no sessions at all.
func (e ChangeEvent) Empty() bool {
	return len(e.Added) == 0 && len(e.Removed) == 0 && len(e.Changed) == 0
}

// Views maps stored sessions to their public views.
func Views(sessions []StoredSession) []Session {
	out := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.View())
	}
	return out
}
