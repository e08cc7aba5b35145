// package search implements the debounced, cached catalog search used by the TUI and CLI.
//
// [Searcher.Search] is the direct path: short queries and cache hits never touch the
// network. [Searcher.Input] is the keystroke path: calls are debounced, every call takes a
// new sequence number, and only the result for the latest sequence is published on
// [Searcher.Results].
package search

import (
	"context"
	"errors"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/anitrack/internal/models"
	"github.com/desertthunder/anitrack/internal/shared"
)

const (
	DefaultMinLength = 3
	DefaultLimit     = 5
	DefaultDebounce  = 500 * time.Millisecond

	RateLimitedMessage = "Rate limited. Please wait a moment..."
	FailedMessage      = "Failed to search anime. Please try again."
)

// Catalog is the catalog operation the searcher depends on.
type Catalog interface {
	SearchAnime(ctx context.Context, query string, limit int) ([]models.SearchResult, error)
}

// Options tunes a [Searcher]. Zero values take the defaults.
type Options struct {
	MinLength int
	Limit     int
	Debounce  time.Duration
}

func (o Options) withDefaults() Options {
	if o.MinLength <= 0 {
		o.MinLength = DefaultMinLength
	}
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	return o
}

// Result is one published search outcome.
type Result struct {
	Seq     uint64
	Query   string
	Results []models.SearchResult
	Err     error
}

// Message is the user-facing error text, empty on success.
func (r Result) Message() string {
	return ErrorMessage(r.Err)
}

// ErrorMessage maps a search error to the text shown to the user.
func ErrorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, shared.ErrRateLimited):
		return RateLimitedMessage
	default:
		return FailedMessage
	}
}

// Searcher is the catalog search client.
type Searcher struct {
	catalog Catalog
	cache   Cache
	opts    Options
	logger  *log.Logger

	mu       sync.Mutex
	seq      uint64
	timer    *time.Timer
	inflight context.CancelFunc
	results  chan Result
	closed   bool
}

// NewSearcher creates a [Searcher]. A nil cache uses a [MemoryCache].
func NewSearcher(catalog Catalog, cache Cache, opts Options, logger *log.Logger) *Searcher {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Searcher{
		catalog: catalog,
		cache:   cache,
		opts:    opts.withDefaults(),
		logger:  logger,
		results: make(chan Result, 1),
	}
}

// Search runs query immediately.
//
// Queries shorter than the minimum length return an empty batch. A cached batch for the
// identical query string is returned without a network call. Successful batches are cached.
func (s *Searcher) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	if utf8.RuneCountInString(query) < s.opts.MinLength {
		return []models.SearchResult{}, nil
	}

	cached, ok, err := s.cache.Get(ctx, query)
	if err != nil {
		s.logger.Warn("search cache read failed", "query", query, "error", err)
	}
	if ok {
		s.logger.Debug("search cache hit", "query", query)
		return cached, nil
	}

	results, err := s.catalog.SearchAnime(ctx, query, s.opts.Limit)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []models.SearchResult{}
	}

	if err := s.cache.Put(ctx, query, results); err != nil {
		s.logger.Warn("search cache write failed", "query", query, "error", err)
	}
	return results, nil
}

// Input records a keystroke-level query change and returns its sequence number.
//
// The search runs once no further Input arrives within the debounce window. Superseded
// searches are cancelled, and their results are never published.
func (s *Searcher) Input(ctx context.Context, query string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.seq
	}

	s.seq++
	seq := s.seq
	s.stopLocked()
	s.timer = time.AfterFunc(s.opts.Debounce, func() { s.run(ctx, seq, query) })
	return seq
}

// Results delivers the latest published [Result]. Older unread results are replaced.
func (s *Searcher) Results() <-chan Result {
	return s.results
}

// Latest returns the most recent sequence number handed out by [Searcher.Input].
func (s *Searcher) Latest() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Cancel drops any pending or running search. Nothing is published for it.
func (s *Searcher) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.stopLocked()
}

// Reset cancels pending work and empties the cache, as on logout.
func (s *Searcher) Reset(ctx context.Context) error {
	s.Cancel()
	return s.cache.Clear(ctx)
}

// Close tears the searcher down and closes the results channel.
func (s *Searcher) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.stopLocked()
	close(s.results)
}

func (s *Searcher) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.inflight != nil {
		s.inflight()
		s.inflight = nil
	}
}

func (s *Searcher) run(ctx context.Context, seq uint64, query string) {
	s.mu.Lock()
	if s.closed || seq != s.seq {
		s.mu.Unlock()
		return
	}
	rctx, cancel := context.WithCancel(ctx)
	s.inflight = cancel
	s.mu.Unlock()

	results, err := s.Search(rctx, query)
	cancel()

	s.publish(Result{Seq: seq, Query: query, Results: results, Err: err})
}

func (s *Searcher) publish(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || r.Seq != s.seq {
		s.logger.Debug("discarding stale search result", "query", r.Query, "seq", r.Seq, "latest", s.seq)
		return
	}
	s.inflight = nil

	select {
	case <-s.results:
	default:
	}
	s.results <- r
}
