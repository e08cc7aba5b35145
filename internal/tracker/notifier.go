package tracker

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/anitrack/internal/shared"
)

const DefaultNoticeTTL = 5 * time.Second

// Kind distinguishes success and error notices.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notice is a transient message shown to the user.
type Notice struct {
	ID      string
	Kind    Kind
	Message string
	At      time.Time
}

// Event reports a notice being shown or dismissed.
type Event struct {
	Notice    Notice
	Dismissed bool
}

// Notifier holds at most one notice at a time and dismisses it after a fixed delay.
type Notifier struct {
	ttl    time.Duration
	logger *log.Logger

	mu      sync.Mutex
	current *Notice
	timer   *time.Timer
	events  chan Event
	closed  bool
}

// NewNotifier creates a [Notifier]. ttl <= 0 uses [DefaultNoticeTTL].
func NewNotifier(ttl time.Duration, logger *log.Logger) *Notifier {
	if ttl <= 0 {
		ttl = DefaultNoticeTTL
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Notifier{ttl: ttl, logger: logger, events: make(chan Event, 16)}
}

// Notify replaces the current notice and restarts the dismissal timer.
func (n *Notifier) Notify(kind Kind, msg string) Notice {
	notice := Notice{ID: shared.GenerateID(), Kind: kind, Message: msg, At: time.Now()}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return notice
	}
	if n.timer != nil {
		n.timer.Stop()
	}

	n.current = &notice
	n.timer = time.AfterFunc(n.ttl, func() { n.expire(notice.ID) })
	n.sendLocked(Event{Notice: notice})

	n.logger.Debug("notice", "kind", kind, "message", msg)
	return notice
}

func (n *Notifier) Success(msg string) Notice { return n.Notify(KindSuccess, msg) }

func (n *Notifier) Error(msg string) Notice { return n.Notify(KindError, msg) }

// Current returns the visible notice, if any.
func (n *Notifier) Current() (Notice, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.current == nil {
		return Notice{}, false
	}
	return *n.current, true
}

// Dismiss clears the current notice before its timer fires.
func (n *Notifier) Dismiss() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dismissLocked()
}

// Events delivers show and dismiss events. Sends never block; events are dropped when
// the buffer is full.
func (n *Notifier) Events() <-chan Event {
	return n.events
}

// Close stops the dismissal timer and closes the events channel.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.current = nil
	n.closed = true
	close(n.events)
}

func (n *Notifier) expire(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.current == nil || n.current.ID != id {
		return
	}
	n.dismissLocked()
}

func (n *Notifier) dismissLocked() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	if n.current == nil {
		return
	}

	dismissed := *n.current
	n.current = nil
	n.sendLocked(Event{Notice: dismissed, Dismissed: true})
}

func (n *Notifier) sendLocked(e Event) {
	if n.closed {
		return
	}
	select {
	case n.events <- e:
	default:
		n.logger.Debug("notice event dropped", "id", e.Notice.ID)
	}
}
