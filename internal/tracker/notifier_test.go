package tracker

import (
	"io"
	"testing"
	"time"

	"github.com/desertthunder/anitrack/internal/shared"
)

func nextEvent(t *testing.T, n *Notifier, within time.Duration) (Event, bool) {
	t.Helper()
	select {
	case e, ok := <-n.Events():
		return e, ok
	case <-time.After(within):
		return Event{}, false
	}
}

func TestNotifier(t *testing.T) {
	logger := shared.NewLogger(io.Discard)

	t.Run("shows and auto-dismisses", func(t *testing.T) {
		n := NewNotifier(30*time.Millisecond, logger)
		defer n.Close()

		shown := n.Success("Anime deleted successfully!")
		if cur, ok := n.Current(); !ok || cur.ID != shown.ID || cur.Kind != KindSuccess {
			t.Fatalf("unexpected current notice: %+v", cur)
		}

		e, _ := nextEvent(t, n, time.Second)
		if e.Dismissed || e.Notice.ID != shown.ID {
			t.Errorf("expected show event, got %+v", e)
		}

		e, ok := nextEvent(t, n, time.Second)
		if !ok || !e.Dismissed || e.Notice.ID != shown.ID {
			t.Errorf("expected dismiss event, got %+v", e)
		}
		if _, ok := n.Current(); ok {
			t.Error("expected no current notice after ttl")
		}
	})

	t.Run("new notice replaces old and restarts timer", func(t *testing.T) {
		n := NewNotifier(60*time.Millisecond, logger)
		defer n.Close()

		n.Error("Failed to add anime")
		time.Sleep(40 * time.Millisecond)
		second := n.Success("Naruto has been added to your list!")
		time.Sleep(40 * time.Millisecond)

		cur, ok := n.Current()
		if !ok || cur.ID != second.ID {
			t.Errorf("expected second notice to still be visible, got %+v ok=%v", cur, ok)
		}
	})

	t.Run("manual dismiss", func(t *testing.T) {
		n := NewNotifier(time.Hour, logger)
		defer n.Close()

		n.Error("Failed to update status")
		n.Dismiss()
		if _, ok := n.Current(); ok {
			t.Error("expected dismissed notice")
		}
		n.Dismiss()
	})

	t.Run("close stops timer and channel", func(t *testing.T) {
		n := NewNotifier(10*time.Millisecond, logger)
		n.Success("x")
		n.Close()
		n.Close()

		for range n.Events() {
		}
		n.Success("after close")
		if _, ok := n.Current(); ok {
			t.Error("closed notifier should not hold notices")
		}
	})

	t.Run("default ttl", func(t *testing.T) {
		n := NewNotifier(0, logger)
		defer n.Close()
		if n.ttl != 5*time.Second {
			t.Errorf("expected 5s, got %v", n.ttl)
		}
	})
}
