package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/anitrack/internal/shared"
	"golang.org/x/oauth2"
)

type memoryPersister struct {
	mu      sync.Mutex
	cred    *Credential
	saves   int
	saveErr error
}

func (m *memoryPersister) SaveSession(_ context.Context, cred Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.cred = &cred
	return nil
}

func (m *memoryPersister) LoadSession(context.Context) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred, nil
}

func (m *memoryPersister) ClearSession(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = nil
	return nil
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	logger := shared.NewLogger(nil)

	t.Run("starts logged out", func(t *testing.T) {
		store := NewStore(nil, logger)
		if store.Active() {
			t.Fatal("expected inactive store")
		}
		tok, _ := store.Token()
		if tok != nil {
			t.Errorf("expected nil token, got %+v", tok)
		}
		if store.SessionID() != "" {
			t.Errorf("expected empty session id")
		}
	})

	t.Run("Begin creates a session", func(t *testing.T) {
		p := &memoryPersister{}
		store := NewStore(p, logger)

		cred, err := store.Begin(ctx, "spike", &oauth2.Token{AccessToken: "a1", TokenType: "Bearer"})
		if err != nil {
			t.Fatalf("Begin failed: %v", err)
		}
		if cred.SessionID == "" || cred.Username != "spike" {
			t.Errorf("unexpected credential: %+v", cred)
		}
		if !store.Active() || store.SessionID() != cred.SessionID {
			t.Error("store should report the new session")
		}
		if p.saves != 1 {
			t.Errorf("expected 1 save, got %d", p.saves)
		}
	})

	t.Run("Begin rejects empty token", func(t *testing.T) {
		store := NewStore(nil, logger)
		if _, err := store.Begin(ctx, "spike", &oauth2.Token{}); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("Update rewrites token and keeps refresh token", func(t *testing.T) {
		store := NewStore(nil, logger)
		_, _ = store.Begin(ctx, "spike", &oauth2.Token{AccessToken: "a1", RefreshToken: "r1"})
		_, before := store.Token()

		if err := store.Update(ctx, &oauth2.Token{AccessToken: "a2", Expiry: time.Now().Add(time.Hour)}); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		tok, after := store.Token()
		if tok.AccessToken != "a2" || tok.RefreshToken != "r1" {
			t.Errorf("unexpected token: %+v", tok)
		}
		if after <= before {
			t.Errorf("generation did not advance: %d -> %d", before, after)
		}
	})

	t.Run("Update without session", func(t *testing.T) {
		store := NewStore(nil, logger)
		if err := store.Update(ctx, &oauth2.Token{AccessToken: "a2"}); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("Token returns a copy", func(t *testing.T) {
		store := NewStore(nil, logger)
		_, _ = store.Begin(ctx, "spike", &oauth2.Token{AccessToken: "a1"})

		tok, _ := store.Token()
		tok.AccessToken = "mutated"

		again, _ := store.Token()
		if again.AccessToken != "a1" {
			t.Errorf("store token was mutated: %q", again.AccessToken)
		}
	})

	t.Run("End clears session and persistence", func(t *testing.T) {
		p := &memoryPersister{}
		store := NewStore(p, logger)
		started, _ := store.Begin(ctx, "spike", &oauth2.Token{AccessToken: "a1"})

		ended, err := store.End(ctx)
		if err != nil {
			t.Fatalf("End failed: %v", err)
		}
		if ended.SessionID != started.SessionID {
			t.Errorf("expected ended session %q, got %q", started.SessionID, ended.SessionID)
		}
		if store.Active() {
			t.Error("expected inactive store")
		}
		if p.cred != nil {
			t.Error("expected persisted session to be cleared")
		}
	})

	t.Run("Load restores persisted session", func(t *testing.T) {
		p := &memoryPersister{cred: &Credential{SessionID: "s1", Username: "faye", Token: &oauth2.Token{AccessToken: "a9"}}}
		store := NewStore(p, logger)

		if err := store.Load(ctx); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		cred, ok := store.Credential()
		if !ok || cred.SessionID != "s1" || cred.Token.AccessToken != "a9" {
			t.Errorf("unexpected credential: %+v", cred)
		}
	})

	t.Run("persist failure is reported", func(t *testing.T) {
		p := &memoryPersister{saveErr: errors.New("disk full")}
		store := NewStore(p, logger)
		if _, err := store.Begin(ctx, "spike", &oauth2.Token{AccessToken: "a1"}); err == nil {
			t.Error("expected persist error")
		}
		if !store.Active() {
			t.Error("in-memory session should remain active")
		}
	})

	t.Run("concurrent readers and writers", func(t *testing.T) {
		store := NewStore(nil, logger)
		_, _ = store.Begin(ctx, "spike", &oauth2.Token{AccessToken: "a0"})

		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_ = store.Update(ctx, &oauth2.Token{AccessToken: "a" + string(rune('a'+i))})
			}()
			go func() {
				defer wg.Done()
				_, _ = store.Token()
			}()
		}
		wg.Wait()

		if store.Generation() != 21 {
			t.Errorf("expected generation 21, got %d", store.Generation())
		}
	})
}
