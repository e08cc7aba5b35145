package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/anitrack/internal/models"
)

// SearchCacheRepository stores catalog search batches per login session.
type SearchCacheRepository struct {
	db *sql.DB
}

// NewSearchCacheRepository creates a new [SearchCacheRepository] with the given database connection
func NewSearchCacheRepository(db *sql.DB) *SearchCacheRepository {
	return &SearchCacheRepository{db: db}
}

// Get returns the batch cached for query in the session. The bool is false on a miss.
func (r *SearchCacheRepository) Get(ctx context.Context, sessionID, query string) ([]models.SearchResult, bool, error) {
	var payload string
	err := r.db.QueryRowContext(ctx,
		"SELECT results FROM search_cache WHERE session_id = ? AND query = ?",
		sessionID, query).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query search cache: %w", err)
	}

	var results []models.SearchResult
	if err := json.Unmarshal([]byte(payload), &results); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached results: %w", err)
	}
	return results, true, nil
}

// Put stores the batch for query, replacing an earlier one.
func (r *SearchCacheRepository) Put(ctx context.Context, sessionID, query string, results []models.SearchResult) error {
	if results == nil {
		results = []models.SearchResult{}
	}

	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	stmt := `
		INSERT INTO search_cache (session_id, query, results, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, query) DO UPDATE SET results = excluded.results, created_at = excluded.created_at
	`
	if _, err := r.db.ExecContext(ctx, stmt, sessionID, query, string(payload), time.Now()); err != nil {
		return fmt.Errorf("failed to store search results: %w", err)
	}
	return nil
}

// Clear removes every batch belonging to the session.
func (r *SearchCacheRepository) Clear(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM search_cache WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to clear search cache: %w", err)
	}
	return nil
}

// Count returns the number of cached batches for the session.
func (r *SearchCacheRepository) Count(ctx context.Context, sessionID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM search_cache WHERE session_id = ?", sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count search cache: %w", err)
	}
	return n, nil
}

// Prune drops batches left behind by sessions other than keep.
func (r *SearchCacheRepository) Prune(ctx context.Context, keep string) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM search_cache WHERE session_id != ?", keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune search cache: %w", err)
	}
	return res.RowsAffected()
}

// SessionSearchCache adapts [SearchCacheRepository] to the searcher's cache contract,
// scoping every call to whatever session is active at call time.
//
// With no active session the cache behaves as permanently empty.
type SessionSearchCache struct {
	repo      *SearchCacheRepository
	sessionID func() string
}

// ForSession binds the repository to a session id provider such as session.Store.SessionID.
func (r *SearchCacheRepository) ForSession(sessionID func() string) *SessionSearchCache {
	return &SessionSearchCache{repo: r, sessionID: sessionID}
}

func (c *SessionSearchCache) Get(ctx context.Context, query string) ([]models.SearchResult, bool, error) {
	id := c.sessionID()
	if id == "" {
		return nil, false, nil
	}
	return c.repo.Get(ctx, id, query)
}

func (c *SessionSearchCache) Put(ctx context.Context, query string, results []models.SearchResult) error {
	id := c.sessionID()
	if id == "" {
		return nil
	}
	return c.repo.Put(ctx, id, query, results)
}

func (c *SessionSearchCache) Clear(ctx context.Context) error {
	id := c.sessionID()
	if id == "" {
		return nil
	}
	return c.repo.Clear(ctx, id)
}
