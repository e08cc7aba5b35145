// package tasks implements long-running list operations with progress reporting.
//
// The core abstraction is ExportEngine, which exports the tracked list, optionally enriched with catalog details.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/anitrack/internal/formatter"
	"github.com/desertthunder/anitrack/internal/models"
	"github.com/desertthunder/anitrack/internal/shared"
)

const (
	defaultWorkers   = 3
	maxWorkers       = 10
	defaultRateLimit = 2.0
)

// ListSource fetches the authenticated user's list.
type ListSource interface {
	List(ctx context.Context) ([]models.TrackedItem, error)
}

// DetailSource fetches catalog details for one title.
type DetailSource interface {
	Details(ctx context.Context, id int) (*models.AnimeDetails, error)
}

// ExportOpts contains configuration for list exports.
type ExportOpts struct {
	Format     formatter.Format // Export format: json, csv, markdown, txt
	Output     string           // Destination file (default: anime_list.<ext>)
	Username   string           // Shown in export headers
	Details    bool             // Enrich entries with catalog details
	NumWorkers int              // Concurrent detail fetchers (default: 3)
	RateLimit  float64          // Detail requests per second (default: 2)
}

// DetailResult is the outcome of fetching details for one list entry.
type DetailResult struct {
	ExternalID int
	Name       string
	Details    *models.AnimeDetails
	Error      error
}

// ExportResult contains all data from an export run.
type ExportResult struct {
	Path     string
	Export   *models.ListExport
	Total    int            // Entries in the export
	Enriched int            // Unique titles (mal_ids) with catalog details
	Failed   []DetailResult // Unique titles whose detail fetch failed
}

// ExportEngine defines list export operations.
type ExportEngine interface {
	// Export fetches the list, optionally fetches catalog details, and writes the export file.
	Export(ctx context.Context, progress chan<- ProgressUpdate, opts ExportOpts) (*ExportResult, error)
}

// Engine implements ExportEngine against the backend list and the anime catalog.
type Engine struct {
	list    ListSource
	catalog DetailSource
	logger  *log.Logger
	now     func() time.Time
}

// NewEngine creates a new Engine. catalog may be nil when details are never requested.
func NewEngine(list ListSource, catalog DetailSource, logger *log.Logger) *Engine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Engine{list: list, catalog: catalog, logger: logger, now: time.Now}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Export writes the user's list in opts.Format.
//
// Detail failures do not abort the export: the entry is written without details and reported
// in [ExportResult.Failed].
func (e *Engine) Export(ctx context.Context, progress chan<- ProgressUpdate, opts ExportOpts) (*ExportResult, error) {
	if e.list == nil {
		return nil, fmt.Errorf("%w: list service not initialized", shared.ErrServiceUnavailable)
	}
	if opts.Details && e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}
	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}
	if opts.Output == "" {
		opts.Output = "anime_list" + opts.Format.Extension()
	}

	e.sendProgress(progress, fetchingListUpdate())

	items, err := e.list.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch list: %w", err)
	}
	e.sendProgress(progress, fetchedListUpdate(len(items)))

	export := &models.ListExport{
		Username:   opts.Username,
		ExportedAt: e.now().UTC(),
		Items:      items,
	}
	result := &ExportResult{Export: export, Total: len(items)}

	if opts.Details && len(items) > 0 {
		details, failed, err := e.fetchDetails(ctx, progress, items, opts)
		if err != nil {
			return nil, err
		}
		export.Details = details
		result.Enriched = len(details)
		result.Failed = failed
	}

	e.sendProgress(progress, writingExportUpdate(opts.Output))

	path, err := formatter.WriteExport(export, opts.Format, opts.Output)
	if err != nil {
		return nil, err
	}
	result.Path = path

	e.logger.Info("list exported", "path", path, "format", opts.Format, "entries", result.Total, "enriched", result.Enriched)
	e.sendProgress(progress, exportWrittenUpdate(path))
	return result, nil
}
