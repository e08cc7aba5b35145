package tracker

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/anitrack/internal/models"
	"github.com/desertthunder/anitrack/internal/services"
	"github.com/desertthunder/anitrack/internal/session"
	"github.com/desertthunder/anitrack/internal/shared"
	tu "github.com/desertthunder/anitrack/internal/testing"
)

type fakeSession bool

func (f fakeSession) Active() bool { return bool(f) }

// stubBackend records calls. A non-nil gate blocks UpdateStatus until it is closed.
type stubBackend struct {
	mu        sync.Mutex
	items     []models.TrackedItem
	listErr   error
	updateErr error
	addErr    error
	deleteErr error
	updates   []models.Status
	gate      chan struct{}
	entered   chan struct{}
}

func (s *stubBackend) List(context.Context) ([]models.TrackedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.TrackedItem(nil), s.items...), s.listErr
}

func (s *stubBackend) Add(_ context.Context, a models.SearchResult, st models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addErr != nil {
		return s.addErr
	}
	s.items = append(s.items, models.TrackedItem{ID: "new", ExternalID: a.ExternalID, Name: a.Title, Status: st})
	return nil
}

func (s *stubBackend) UpdateStatus(_ context.Context, id string, st models.Status) error {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, st)
	return s.updateErr
}

func (s *stubBackend) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	for i, it := range s.items {
		if it.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
	return nil
}

func seededItems() []models.TrackedItem {
	return []models.TrackedItem{
		{ID: "1", ExternalID: 20, Name: "Naruto", Status: models.StatusWatching},
		{ID: "2", ExternalID: 1, Name: "Cowboy Bebop", Status: models.StatusCompleted},
	}
}

func newController(t *testing.T, b Backend, active bool) *Controller {
	t.Helper()
	logger := shared.NewLogger(io.Discard)
	n := NewNotifier(time.Hour, logger)
	t.Cleanup(n.Close)
	c := NewController(b, fakeSession(active), n, logger)
	if active {
		if err := c.Refresh(context.Background()); err != nil {
			t.Fatalf("initial refresh failed: %v", err)
		}
	}
	return c
}

func statusOf(c *Controller, id string) models.Status {
	it, _ := c.Item(id)
	return it.Status
}

func TestControllerChangeStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("optimistic write then confirm", func(t *testing.T) {
		b := &stubBackend{items: seededItems()}
		c := newController(t, b, true)

		var seen []models.Status
		c.Subscribe(func(items []models.TrackedItem) {
			for _, it := range items {
				if it.ID == "1" {
					seen = append(seen, it.Status)
				}
			}
		})

		if err := c.ChangeStatus(ctx, "1", models.StatusDropped); err != nil {
			t.Fatalf("ChangeStatus failed: %v", err)
		}
		if statusOf(c, "1") != models.StatusDropped {
			t.Errorf("expected dropped, got %q", statusOf(c, "1"))
		}
		if len(seen) != 1 || seen[0] != models.StatusDropped {
			t.Errorf("expected one optimistic notification, got %v", seen)
		}
	})

	t.Run("rollback on failure", func(t *testing.T) {
		b := &stubBackend{items: seededItems(), updateErr: &shared.APIError{StatusCode: 500}}
		c := newController(t, b, true)

		var seen []models.Status
		c.Subscribe(func(items []models.TrackedItem) {
			for _, it := range items {
				if it.ID == "1" {
					seen = append(seen, it.Status)
				}
			}
		})

		err := c.ChangeStatus(ctx, "1", models.StatusDropped)
		if !errors.Is(err, shared.ErrRequestRejected) {
			t.Fatalf("expected backend error, got %v", err)
		}
		if statusOf(c, "1") != models.StatusWatching {
			t.Errorf("expected rollback to watching, got %q", statusOf(c, "1"))
		}
		if len(seen) != 2 || seen[0] != models.StatusDropped || seen[1] != models.StatusWatching {
			t.Errorf("expected optimistic then rollback notifications, got %v", seen)
		}
		if n, ok := c.Notifier().Current(); !ok || n.Message != MsgUpdateFailed || n.Kind != KindError {
			t.Errorf("expected error notice, got %+v", n)
		}
	})

	t.Run("rollback skipped when entry vanished", func(t *testing.T) {
		b := &stubBackend{items: seededItems(), updateErr: errors.New("boom"), gate: make(chan struct{}), entered: make(chan struct{}, 1)}
		c := newController(t, b, true)

		done := make(chan error, 1)
		go func() { done <- c.ChangeStatus(ctx, "1", models.StatusDropped) }()
		<-b.entered

		b.mu.Lock()
		b.items = b.items[1:]
		b.mu.Unlock()
		if err := c.Refresh(ctx); err != nil {
			t.Fatalf("Refresh failed: %v", err)
		}
		close(b.gate)

		if err := <-done; err == nil {
			t.Fatal("expected error")
		}
		if _, ok := c.Item("1"); ok {
			t.Error("rollback must not resurrect a removed entry")
		}
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		b := &stubBackend{items: seededItems()}
		c := newController(t, b, true)

		if err := c.ChangeStatus(ctx, "1", models.StatusWatching); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(b.updates) != 0 {
			t.Errorf("expected no backend call, got %v", b.updates)
		}
	})

	t.Run("validation", func(t *testing.T) {
		b := &stubBackend{items: seededItems()}
		c := newController(t, b, true)

		if err := c.ChangeStatus(ctx, "1", "paused"); !errors.Is(err, shared.ErrInvalidStatus) {
			t.Errorf("expected ErrInvalidStatus, got %v", err)
		}
		if err := c.ChangeStatus(ctx, "404", models.StatusDropped); !errors.Is(err, shared.ErrItemNotFound) {
			t.Errorf("expected ErrItemNotFound, got %v", err)
		}

		logged := newController(t, b, false)
		if err := logged.ChangeStatus(ctx, "1", models.StatusDropped); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("changes on one entry are serialized", func(t *testing.T) {
		b := &stubBackend{items: seededItems(), gate: make(chan struct{}), entered: make(chan struct{}, 2)}
		c := newController(t, b, true)

		first := make(chan error, 1)
		go func() { first <- c.ChangeStatus(ctx, "1", models.StatusDropped) }()
		<-b.entered

		second := make(chan error, 1)
		go func() { second <- c.ChangeStatus(ctx, "1", models.StatusCompleted) }()

		select {
		case <-b.entered:
			t.Fatal("second change reached the backend before the first finished")
		case <-time.After(50 * time.Millisecond):
		}

		close(b.gate)
		if err := <-first; err != nil {
			t.Fatalf("first change failed: %v", err)
		}
		<-b.entered
		if err := <-second; err != nil {
			t.Fatalf("second change failed: %v", err)
		}

		if len(b.updates) != 2 || b.updates[0] != models.StatusDropped || b.updates[1] != models.StatusCompleted {
			t.Errorf("expected ordered updates, got %v", b.updates)
		}
		if statusOf(c, "1") != models.StatusCompleted {
			t.Errorf("expected final status completed, got %q", statusOf(c, "1"))
		}
	})
}

func TestControllerAdd(t *testing.T) {
	ctx := context.Background()

	t.Run("success refetches", func(t *testing.T) {
		b := &stubBackend{items: seededItems()}
		c := newController(t, b, true)

		if err := c.Add(ctx, models.SearchResult{ExternalID: 5114, Title: "Fullmetal Alchemist: Brotherhood"}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		if len(c.Items()) != 3 {
			t.Errorf("expected refetched list of 3, got %d", len(c.Items()))
		}
		if it, _ := c.Item("new"); it.Status != models.StatusCompleted {
			t.Errorf("expected default status completed, got %q", it.Status)
		}
		n, _ := c.Notifier().Current()
		if n.Message != "Fullmetal Alchemist: Brotherhood has been added to your list!" {
			t.Errorf("unexpected notice: %q", n.Message)
		}
	})

	t.Run("server message or fallback", func(t *testing.T) {
		tests := []struct {
			name string
			err  error
			want string
		}{
			{name: "server message", err: &shared.APIError{StatusCode: 409, Message: "Anime already in your list"}, want: "Anime already in your list"},
			{name: "no message", err: &shared.APIError{StatusCode: 500}, want: MsgAddFailed},
			{name: "network", err: shared.ErrAPIRequest, want: MsgAddFailed},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				c := newController(t, &stubBackend{addErr: tc.err}, true)
				if err := c.Add(ctx, models.SearchResult{ExternalID: 20, Title: "Naruto"}); err == nil {
					t.Fatal("expected error")
				}
				if n, _ := c.Notifier().Current(); n.Message != tc.want || n.Kind != KindError {
					t.Errorf("expected %q, got %+v", tc.want, n)
				}
			})
		}
	})

	t.Run("requires login", func(t *testing.T) {
		c := newController(t, &stubBackend{}, false)
		if err := c.Add(ctx, models.SearchResult{ExternalID: 20, Title: "Naruto"}); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		if n, _ := c.Notifier().Current(); n.Message != MsgLoginToAdd {
			t.Errorf("expected login notice, got %q", n.Message)
		}
	})
}

func TestControllerDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		b := &stubBackend{items: seededItems()}
		c := newController(t, b, true)

		if err := c.Delete(ctx, "1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, ok := c.Item("1"); ok {
			t.Error("expected entry to be gone")
		}
		if n, _ := c.Notifier().Current(); n.Message != MsgDeleted {
			t.Errorf("unexpected notice: %q", n.Message)
		}
	})

	t.Run("failure leaves list unchanged", func(t *testing.T) {
		b := &stubBackend{items: seededItems(), deleteErr: &shared.APIError{StatusCode: 500}}
		c := newController(t, b, true)

		if err := c.Delete(ctx, "1"); err == nil {
			t.Fatal("expected error")
		}
		if len(c.Items()) != 2 {
			t.Errorf("expected unchanged list, got %d items", len(c.Items()))
		}
		if n, _ := c.Notifier().Current(); n.Message != MsgDeleteFailed {
			t.Errorf("unexpected notice: %q", n.Message)
		}
	})

	t.Run("refetch failure removes locally", func(t *testing.T) {
		b := &stubBackend{items: seededItems()}
		c := newController(t, b, true)
		b.listErr = errors.New("offline")

		if err := c.Delete(ctx, "1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, ok := c.Item("1"); ok {
			t.Error("expected local removal")
		}
	})
}

func TestControllerState(t *testing.T) {
	ctx := context.Background()

	t.Run("Filter", func(t *testing.T) {
		c := newController(t, &stubBackend{items: seededItems()}, true)

		if got := c.Filter(models.StatusCompleted); len(got) != 1 || got[0].ID != "2" {
			t.Errorf("unexpected filter result: %+v", got)
		}
		if got := c.Filter(""); len(got) != 2 {
			t.Errorf("expected all items, got %d", len(got))
		}
		if got := c.Filter(models.StatusDropped); len(got) != 0 {
			t.Errorf("expected none, got %d", len(got))
		}
	})

	t.Run("Items is a copy", func(t *testing.T) {
		c := newController(t, &stubBackend{items: seededItems()}, true)
		items := c.Items()
		items[0].Status = models.StatusDropped

		if statusOf(c, "1") != models.StatusWatching {
			t.Error("mutating a snapshot changed controller state")
		}
	})

	t.Run("Reset and unsubscribe", func(t *testing.T) {
		c := newController(t, &stubBackend{items: seededItems()}, true)

		calls := 0
		unsubscribe := c.Subscribe(func([]models.TrackedItem) { calls++ })
		c.Reset()
		if len(c.Items()) != 0 || calls != 1 {
			t.Errorf("expected empty list and one notification, got %d items / %d calls", len(c.Items()), calls)
		}

		unsubscribe()
		_ = c.Refresh(ctx)
		if calls != 1 {
			t.Errorf("unsubscribed callback was invoked")
		}
	})

	t.Run("Refresh requires session", func(t *testing.T) {
		c := newController(t, &stubBackend{}, false)
		if err := c.Refresh(ctx); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})
}

// TestControllerWithBackend drives the controller through the real HTTP stack.
func TestControllerWithBackend(t *testing.T) {
	ctx := context.Background()
	logger := shared.NewLogger(io.Discard)

	setup := func(t *testing.T) (*Controller, *tu.FakeBackend) {
		t.Helper()
		fb := tu.NewFakeBackend(t)
		fb.AddUser("spike@bebop.io", "swordfish", "spike")

		store := session.NewStore(nil, logger)
		backend := services.NewBackendService(services.NewClient(fb.URL(), nil, store, logger), logger)
		if _, err := backend.Login(ctx, "spike@bebop.io", "swordfish"); err != nil {
			t.Fatalf("login failed: %v", err)
		}

		n := NewNotifier(time.Hour, logger)
		t.Cleanup(n.Close)
		return NewController(backend, store, n, logger), fb
	}

	t.Run("adding Naruto", func(t *testing.T) {
		c, fb := setup(t)

		naruto := models.SearchResult{ExternalID: 20, Title: "Naruto", ImageURL: "https://cdn.example/20.jpg", Score: 7.99, Genres: []string{"Action"}}
		if err := c.Add(ctx, naruto); err != nil {
			t.Fatalf("Add failed: %v", err)
		}

		body := fb.LastAdd()
		if body["mal_id"] != float64(20) || body["status"] != "completed" {
			t.Errorf("unexpected body: %v", body)
		}
		if n, _ := c.Notifier().Current(); n.Message != "Naruto has been added to your list!" {
			t.Errorf("unexpected notice: %q", n.Message)
		}
		if items := c.Items(); len(items) != 1 || items[0].ExternalID != 20 {
			t.Errorf("expected refetched list with Naruto, got %+v", items)
		}
	})

	t.Run("delete confirm", func(t *testing.T) {
		c, fb := setup(t)
		fb.Seed(
			models.TrackedItem{ID: "a1", ExternalID: 20, Name: "Naruto", Status: models.StatusWatching},
			models.TrackedItem{ID: "a2", ExternalID: 1, Name: "Cowboy Bebop", Status: models.StatusCompleted},
		)
		_ = c.Refresh(ctx)

		if err := c.Delete(ctx, "a1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if fb.Hits("DELETE /anime/delete/{id}") != 1 {
			t.Error("expected DELETE /anime/delete/a1")
		}
		if len(c.Items()) != 1 {
			t.Errorf("expected refetched list of 1, got %d", len(c.Items()))
		}

		fb.Fail("DELETE /anime/delete/{id}", http.StatusInternalServerError, "")
		if err := c.Delete(ctx, "a2"); err == nil {
			t.Fatal("expected failure")
		}
		if len(c.Items()) != 1 {
			t.Error("failed delete changed the list")
		}
		if n, _ := c.Notifier().Current(); n.Message != MsgDeleteFailed {
			t.Errorf("unexpected notice: %q", n.Message)
		}
	})

	t.Run("status rollback against server", func(t *testing.T) {
		c, fb := setup(t)
		fb.Seed(models.TrackedItem{ID: "a1", ExternalID: 20, Name: "Naruto", Status: models.StatusWatching})
		_ = c.Refresh(ctx)

		fb.Fail("PATCH /anime/status/{id}", http.StatusInternalServerError, "db down")
		if err := c.ChangeStatus(ctx, "a1", models.StatusDropped); err == nil {
			t.Fatal("expected failure")
		}
		if statusOf(c, "a1") != models.StatusWatching {
			t.Errorf("expected rollback, got %q", statusOf(c, "a1"))
		}
	})

	t.Run("session expiry surfaces", func(t *testing.T) {
		c, fb := setup(t)
		fb.Seed(models.TrackedItem{ID: "a1", ExternalID: 20, Name: "Naruto", Status: models.StatusWatching})
		_ = c.Refresh(ctx)

		fb.ExpireTokens()
		fb.SetRefreshOK(false)
		err := c.ChangeStatus(ctx, "a1", models.StatusDropped)
		if !errors.Is(err, shared.ErrSessionExpired) {
			t.Errorf("expected ErrSessionExpired, got %v", err)
		}
	})
}
