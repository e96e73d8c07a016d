package auth

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
)

// TokenStore persists the Strava token between runs
type TokenStore interface {
	LoadToken() (*oauth2.Token, error)
	SaveToken(tok *oauth2.Token, athleteID int64) error
}

// TokenSource returns a refreshing token source seeded from the store.
// Refreshed tokens are written back so the next run starts with them.
func TokenSource(ctx context.Context, cfg *oauth2.Config, store TokenStore) (oauth2.TokenSource, error) {
	tok, err := store.LoadToken()
	if err != nil {
		return nil, fmt.Errorf("loading token: %w", err)
	}
	return newSavingSource(cfg.TokenSource(ctx, tok), store, tok), nil
}

// savingSource saves every token that differs from the last one it saw
type savingSource struct {
	mu    sync.Mutex
	base  oauth2.TokenSource
	store TokenStore
	last  string
}

func newSavingSource(base oauth2.TokenSource, store TokenStore, seed *oauth2.Token) *savingSource {
	s := &savingSource{base: base, store: store}
	if seed != nil {
		s.last = seed.AccessToken
	}
	return s
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken == s.last {
		return tok, nil
	}
	if err := s.store.SaveToken(tok, AthleteID(tok)); err != nil {
		return nil, fmt.Errorf("saving refreshed token: %w", err)
	}
	s.last = tok.AccessToken
	return tok, nil
}
