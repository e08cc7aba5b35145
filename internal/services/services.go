// package services defines clients for the backend REST API and the public anime catalog
package services

import (
	"context"

	"github.com/desertthunder/anitrack/internal/models"
)

// ListService is the backend surface used by the list controller.
type ListService interface {
	// List fetches the user's tracked titles.
	List(ctx context.Context) ([]models.TrackedItem, error)

	// Add puts a catalog title on the list with the given status.
	Add(ctx context.Context, anime models.SearchResult, status models.Status) error

	// UpdateStatus changes the watch status of a tracked entry.
	UpdateStatus(ctx context.Context, id string, status models.Status) error

	// Delete removes a tracked entry.
	Delete(ctx context.Context, id string) error
}

// AnimeCatalog is the read-only catalog surface used by search and the details view.
type AnimeCatalog interface {
	// SearchAnime returns up to limit titles matching query.
	SearchAnime(ctx context.Context, query string, limit int) ([]models.SearchResult, error)

	// Details returns the full record for one title including its leading characters.
	Details(ctx context.Context, id int) (*models.AnimeDetails, error)
}

var (
	_ ListService  = (*BackendService)(nil)
	_ AnimeCatalog = (*CatalogService)(nil)
)
