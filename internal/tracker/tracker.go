// package tracker owns the in-memory watch list of the logged-in user.
//
// [Controller] applies status changes optimistically: the entry changes locally first,
// the backend is told second, and the entry is rolled back if the backend refuses.
// Mutations on the same entry are serialized so a second change waits for the first to
// confirm or roll back. Success and error feedback flows through a [Notifier].
package tracker

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/anitrack/internal/models"
	"github.com/desertthunder/anitrack/internal/shared"
)

const (
	MsgAddFailed     = "Failed to add anime"
	MsgLoginToAdd    = "Please login to add anime"
	MsgDeleted       = "Anime deleted successfully!"
	MsgDeleteFailed  = "Failed to delete anime"
	MsgUpdateFailed  = "Failed to update status"
	msgAddedTemplate = "%s has been added to your list!"
)

// AddedMessage is the success notice for adding title.
func AddedMessage(title string) string {
	return fmt.Sprintf(msgAddedTemplate, title)
}

// Backend is the list API the controller drives.
type Backend interface {
	List(ctx context.Context) ([]models.TrackedItem, error)
	Add(ctx context.Context, anime models.SearchResult, status models.Status) error
	UpdateStatus(ctx context.Context, id string, status models.Status) error
	Delete(ctx context.Context, id string) error
}

// Session reports whether a credential is active.
type Session interface {
	Active() bool
}

// Controller is the list state controller.
type Controller struct {
	backend  Backend
	session  Session
	notifier *Notifier
	logger   *log.Logger

	mu    sync.RWMutex
	items []models.TrackedItem

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	subsMu sync.Mutex
	subs   map[int]func([]models.TrackedItem)
	nextID int
}

// NewController creates a [Controller]. A nil notifier gets a default one.
func NewController(backend Backend, session Session, notifier *Notifier, logger *log.Logger) *Controller {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if notifier == nil {
		notifier = NewNotifier(DefaultNoticeTTL, logger)
	}
	return &Controller{
		backend:  backend,
		session:  session,
		notifier: notifier,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
		subs:     make(map[int]func([]models.TrackedItem)),
	}
}

// Notifier returns the controller's notifier.
func (c *Controller) Notifier() *Notifier {
	return c.notifier
}

// Refresh replaces the list with the backend's confirmed state.
func (c *Controller) Refresh(ctx context.Context) error {
	if !c.session.Active() {
		return shared.ErrNotAuthenticated
	}

	items, err := c.backend.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load list: %w", err)
	}

	c.mu.Lock()
	c.items = slices.Clone(items)
	snapshot := slices.Clone(c.items)
	c.mu.Unlock()

	c.logger.Debug("list refreshed", "items", len(snapshot))
	c.emit(snapshot)
	return nil
}

// ChangeStatus sets entry id to status, optimistically.
//
// Subscribers see the new status immediately. If the backend rejects the change the entry
// reverts, subscribers are notified again, an error notice is posted and the backend error
// is returned.
func (c *Controller) ChangeStatus(ctx context.Context, id string, status models.Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", shared.ErrInvalidStatus, status)
	}
	if !c.session.Active() {
		return shared.ErrNotAuthenticated
	}

	lock := c.itemLock(id)
	lock.Lock()
	defer lock.Unlock()

	c.mu.Lock()
	idx := c.indexLocked(id)
	if idx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", shared.ErrItemNotFound, id)
	}
	previous := c.items[idx].Status
	if previous == status {
		c.mu.Unlock()
		return nil
	}
	c.items[idx].Status = status
	snapshot := slices.Clone(c.items)
	c.mu.Unlock()

	c.emit(snapshot)

	if err := c.backend.UpdateStatus(ctx, id, status); err != nil {
		c.rollback(id, previous)
		c.notifier.Error(MsgUpdateFailed)
		c.logger.Warn("status update rolled back", "id", id, "from", previous, "to", status, "error", err)
		return err
	}

	c.logger.Debug("status updated", "id", id, "status", status)
	return nil
}

func (c *Controller) rollback(id string, previous models.Status) {
	c.mu.Lock()
	idx := c.indexLocked(id)
	if idx < 0 {
		c.mu.Unlock()
		return
	}
	c.items[idx].Status = previous
	snapshot := slices.Clone(c.items)
	c.mu.Unlock()

	c.emit(snapshot)
}

// Add puts a catalog result on the list as completed, then refetches the list.
func (c *Controller) Add(ctx context.Context, anime models.SearchResult) error {
	return c.AddWithStatus(ctx, anime, models.StatusCompleted)
}

// AddWithStatus is [Controller.Add] with an explicit initial status.
func (c *Controller) AddWithStatus(ctx context.Context, anime models.SearchResult, status models.Status) error {
	if !c.session.Active() {
		c.notifier.Error(MsgLoginToAdd)
		return shared.ErrNotAuthenticated
	}

	if err := c.backend.Add(ctx, anime, status); err != nil {
		c.notifier.Error(shared.ServerMessage(err, MsgAddFailed))
		c.logger.Warn("add failed", "mal_id", anime.ExternalID, "error", err)
		return err
	}

	c.notifier.Success(AddedMessage(anime.Title))
	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn("refetch after add failed", "error", err)
	}
	return nil
}

// Delete removes entry id and refetches the list. The caller confirms with the user first.
func (c *Controller) Delete(ctx context.Context, id string) error {
	if !c.session.Active() {
		return shared.ErrNotAuthenticated
	}

	lock := c.itemLock(id)
	lock.Lock()
	defer lock.Unlock()

	if err := c.backend.Delete(ctx, id); err != nil {
		c.notifier.Error(MsgDeleteFailed)
		c.logger.Warn("delete failed", "id", id, "error", err)
		return err
	}

	c.notifier.Success(MsgDeleted)
	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn("refetch after delete failed", "error", err)
		c.removeLocal(id)
	}
	return nil
}

func (c *Controller) removeLocal(id string) {
	c.mu.Lock()
	c.items = slices.DeleteFunc(c.items, func(it models.TrackedItem) bool { return it.ID == id })
	snapshot := slices.Clone(c.items)
	c.mu.Unlock()

	c.emit(snapshot)
}

// Items returns a copy of the list.
func (c *Controller) Items() []models.TrackedItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.items)
}

// Item returns entry id.
func (c *Controller) Item(id string) (models.TrackedItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if idx := c.indexLocked(id); idx >= 0 {
		return c.items[idx], true
	}
	return models.TrackedItem{}, false
}

// Filter returns entries with the given status. An empty status returns every entry.
func (c *Controller) Filter(status models.Status) []models.TrackedItem {
	items := c.Items()
	if status == "" {
		return items
	}
	return slices.DeleteFunc(items, func(it models.TrackedItem) bool { return it.Status != status })
}

// Subscribe registers fn to receive a snapshot after every change. The returned function
// unsubscribes.
func (c *Controller) Subscribe(fn func([]models.TrackedItem)) func() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	id := c.nextID
	c.nextID++
	c.subs[id] = fn

	return func() {
		c.subsMu.Lock()
		defer c.subsMu.Unlock()
		delete(c.subs, id)
	}
}

// Reset clears the list, as on logout.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.items = nil
	c.mu.Unlock()

	c.locksMu.Lock()
	clear(c.locks)
	c.locksMu.Unlock()

	c.notifier.Dismiss()
	c.emit(nil)
}

func (c *Controller) itemLock(id string) *sync.Mutex {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()

	lock, ok := c.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[id] = lock
	}
	return lock
}

func (c *Controller) indexLocked(id string) int {
	return slices.IndexFunc(c.items, func(it models.TrackedItem) bool { return it.ID == id })
}

func (c *Controller) emit(snapshot []models.TrackedItem) {
	c.subsMu.Lock()
	subs := make([]func([]models.TrackedItem), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subsMu.Unlock()

	for _, fn := range subs {
		fn(slices.Clone(snapshot))
	}
}
