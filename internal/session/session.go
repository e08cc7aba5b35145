// package session holds the single credential of a running client.
//
// Login ([Store.Begin]) creates the credential, refresh ([Store.Update]) rewrites it and
// logout ([Store.End]) destroys it. Every write bumps a generation counter so that
// in-flight requests can tell whether the token they sent is still current.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/anitrack/internal/shared"
	"golang.org/x/oauth2"
)

// Credential is the authenticated identity of the current user.
type Credential struct {
	SessionID string
	Username  string
	Token     *oauth2.Token
}

// Persister saves the credential across process invocations.
type Persister interface {
	SaveSession(ctx context.Context, cred Credential) error
	LoadSession(ctx context.Context) (*Credential, error)
	ClearSession(ctx context.Context) error
}

// Store is the concurrency-safe credential holder.
type Store struct {
	mu        sync.RWMutex
	cred      *Credential
	gen       uint64
	persister Persister
	logger    *log.Logger
}

// NewStore creates an empty [Store]. persister may be nil for an in-memory session.
func NewStore(persister Persister, logger *log.Logger) *Store {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Store{persister: persister, logger: logger}
}

// Load restores a persisted credential, if any.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}

	cred, err := s.persister.LoadSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if cred == nil || cred.Token == nil || cred.Token.AccessToken == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = cloneCredential(cred)
	s.gen++
	s.logger.Debug("restored session", "session_id", cred.SessionID, "username", cred.Username)
	return nil
}

// Begin replaces any existing credential with a fresh session for username.
func (s *Store) Begin(ctx context.Context, username string, tok *oauth2.Token) (Credential, error) {
	if tok == nil || tok.AccessToken == "" {
		return Credential{}, fmt.Errorf("%w: empty access token", shared.ErrAuthFailed)
	}

	cred := Credential{SessionID: shared.GenerateID(), Username: username, Token: cloneToken(tok)}

	s.mu.Lock()
	s.cred = &cred
	s.gen++
	s.mu.Unlock()

	if err := s.persist(ctx, cred); err != nil {
		return cred, err
	}
	return *cloneCredential(&cred), nil
}

// Update stores a refreshed token. A refresh token missing from tok is carried over from
// the current credential.
func (s *Store) Update(ctx context.Context, tok *oauth2.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return fmt.Errorf("%w: empty access token", shared.ErrRefreshFailed)
	}

	s.mu.Lock()
	if s.cred == nil {
		s.mu.Unlock()
		return shared.ErrNotAuthenticated
	}

	next := cloneToken(tok)
	if next.RefreshToken == "" {
		next.RefreshToken = s.cred.Token.RefreshToken
	}
	s.cred.Token = next
	s.gen++
	cred := *cloneCredential(s.cred)
	s.mu.Unlock()

	return s.persist(ctx, cred)
}

// End destroys the credential and returns the one that was active.
func (s *Store) End(ctx context.Context) (Credential, error) {
	s.mu.Lock()
	var ended Credential
	if s.cred != nil {
		ended = *s.cred
	}
	s.cred = nil
	s.gen++
	s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.ClearSession(ctx); err != nil {
			return ended, fmt.Errorf("failed to clear session: %w", err)
		}
	}
	return ended, nil
}

// Token returns a copy of the current token with the generation it belongs to.
//
// The token is nil when no session is active.
func (s *Store) Token() (*oauth2.Token, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cred == nil {
		return nil, s.gen
	}
	return cloneToken(s.cred.Token), s.gen
}

// Generation increments on every login, refresh and logout.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Credential returns a copy of the active credential.
func (s *Store) Credential() (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cred == nil {
		return Credential{}, false
	}
	return *cloneCredential(s.cred), true
}

func (s *Store) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred != nil
}

// SessionID is empty when logged out.
func (s *Store) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cred == nil {
		return ""
	}
	return s.cred.SessionID
}

func (s *Store) persist(ctx context.Context, cred Credential) error {
	if s.persister == nil {
		return nil
	}
	if err := s.persister.SaveSession(ctx, cred); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

func cloneToken(tok *oauth2.Token) *oauth2.Token {
	if tok == nil {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		ExpiresIn:    tok.ExpiresIn,
	}
}

func cloneCredential(c *Credential) *Credential {
	return &Credential{SessionID: c.SessionID, Username: c.Username, Token: cloneToken(c.Token)}
}
