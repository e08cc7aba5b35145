package tasks

import (
	"context"
	"sync"

	"github.com/desertthunder/anitrack/internal/models"
	"golang.org/x/time/rate"
)

// fetchDetails fetches catalog details for items with a rate-limited worker pool.
//
// Each external id is fetched once. It returns ctx.Err() if the context ends first.
func (e *Engine) fetchDetails(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	items []models.TrackedItem,
	opts ExportOpts,
) (map[int]*models.AnimeDetails, []DetailResult, error) {
	workers := opts.NumWorkers
	if workers <= 0 {
		workers = defaultWorkers
	}
	if workers > maxWorkers {
		workers = maxWorkers
	}
	rps := opts.RateLimit
	if rps <= 0 {
		rps = defaultRateLimit
	}

	seen := make(map[int]bool, len(items))
	jobs := make([]models.TrackedItem, 0, len(items))
	for _, item := range items {
		if item.ExternalID <= 0 || seen[item.ExternalID] {
			continue
		}
		seen[item.ExternalID] = true
		jobs = append(jobs, item)
	}
	total := len(jobs)

	limiter := rate.NewLimiter(rate.Limit(rps), 1)
	queue := make(chan models.TrackedItem, total)
	results := make(chan DetailResult, total)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go e.detailWorker(ctx, &wg, limiter, queue, results)
	}

	for _, job := range jobs {
		queue <- job
	}
	close(queue)

	go func() {
		wg.Wait()
		close(results)
	}()

	details := make(map[int]*models.AnimeDetails, total)
	var failed []DetailResult
	completed := 0
	for res := range results {
		completed++
		if res.Error != nil {
			failed = append(failed, res)
			e.logger.Warn("details fetch failed", "mal_id", res.ExternalID, "error", res.Error)
			e.sendProgress(prog, detailsFailedUpdate(completed, total, res))
			continue
		}
		details[res.ExternalID] = res.Details
		e.sendProgress(prog, detailsFetchedUpdate(completed, total, res))
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return details, failed, nil
}

// detailWorker fetches details for the items on queue until it drains or ctx ends.
func (e *Engine) detailWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	queue <-chan models.TrackedItem,
	results chan<- DetailResult,
) {
	defer wg.Done()

	for item := range queue {
		res := DetailResult{ExternalID: item.ExternalID, Name: item.Name}

		if err := limiter.Wait(ctx); err != nil {
			return
		}

		res.Details, res.Error = e.catalog.Details(ctx, item.ExternalID)
		results <- res
	}
}
