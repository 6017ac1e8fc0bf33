package facade

import (
	"context"

	"golang.org/x/oauth2"
)

type tokenSource struct {
	ctx    context.Context
	facade *Facade
}

// TokenSource adapts the facade for oauth2.NewClient.
// Tokens carry no expiry because validation already happens on every call; do not wrap it
// in oauth2.ReuseTokenSource.
func (f *Facade) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, facade: f}
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	access, err := s.facade.GetAccessToken(s.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: access, TokenType: "Bearer"}, nil
}
