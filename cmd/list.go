package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/anitrack/internal/formatter"
	"github.com/desertthunder/anitrack/internal/models"
	"github.com/desertthunder/anitrack/internal/shared"
	"github.com/desertthunder/anitrack/internal/tasks"
	"github.com/desertthunder/anitrack/internal/tracker"
	"github.com/urfave/cli/v3"
)

// ListShow prints the tracked list, optionally filtered by status.
func (r *Runner) ListShow(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSession(); err != nil {
		return err
	}

	var filter models.Status
	if s := cmd.String("status"); s != "" {
		st, err := models.ParseStatus(s)
		if err != nil {
			return err
		}
		filter = st
	}

	if err := r.controller.Refresh(ctx); err != nil {
		return err
	}

	items := r.controller.Items()
	if filter != "" {
		items = r.controller.Filter(filter)
	}

	if cmd.Bool("json") {
		return r.writeJSON(items, cmd.Bool("pretty"))
	}

	cred, _ := r.store.Credential()
	title := fmt.Sprintf("%s's anime list (%d)", cred.Username, len(items))
	if filter != "" {
		title = fmt.Sprintf("%s [%s]", title, filter.Label())
	}
	r.writePlainHeader(title)

	if len(items) == 0 {
		return r.writePlain("Nothing here yet. Try `anitrack catalog search <query>`.\n")
	}
	for _, it := range items {
		r.writePlain("%-10s %-14s %6s  %s (mal %d)\n", it.ID, it.Status.Label(), it.RatingLabel(), it.Name, it.ExternalID)
	}
	return nil
}

// ListAdd looks a title up in the catalog and adds it to the list.
func (r *Runner) ListAdd(ctx context.Context, cmd *cli.Command) error {
	id, err := malID(cmd.StringArg("mal_id"))
	if err != nil {
		return err
	}

	status := models.StatusCompleted
	if s := cmd.String("status"); s != "" {
		if status, err = models.ParseStatus(s); err != nil {
			return err
		}
	}

	if !r.store.Active() {
		r.controller.Notifier().Error(tracker.MsgLoginToAdd)
		r.printNotice()
		return shared.ErrNotAuthenticated
	}

	anime, err := r.catalog.Anime(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to look up anime %d: %w", id, err)
	}

	err = r.controller.AddWithStatus(ctx, anime.SearchResult(), status)
	if perr := r.printNotice(); perr != nil {
		return perr
	}
	return err
}

// ListStatus changes the status of one entry.
func (r *Runner) ListStatus(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return fmt.Errorf("%w: entry id", shared.ErrMissingArgument)
	}
	status, err := models.ParseStatus(cmd.StringArg("status"))
	if err != nil {
		return err
	}
	if err := r.requireSession(); err != nil {
		return err
	}

	if err := r.controller.Refresh(ctx); err != nil {
		return err
	}

	item, ok := r.controller.Item(id)
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrItemNotFound, id)
	}

	if err := r.controller.ChangeStatus(ctx, id, status); err != nil {
		r.printNotice()
		return err
	}
	return r.writePlain("✓ %s: %s → %s\n", item.Name, item.Status.Label(), status.Label())
}

// ListDelete removes one entry after confirmation.
func (r *Runner) ListDelete(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return fmt.Errorf("%w: entry id", shared.ErrMissingArgument)
	}
	if err := r.requireSession(); err != nil {
		return err
	}

	if err := r.controller.Refresh(ctx); err != nil {
		return err
	}
	item, ok := r.controller.Item(id)
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrItemNotFound, id)
	}

	if !cmd.Bool("yes") {
		ok, err := r.confirm(fmt.Sprintf("Delete '%s' from your list?", item.Name))
		if err != nil {
			return err
		}
		if !ok {
			return r.writePlain("Cancelled\n")
		}
	}

	err := r.controller.Delete(ctx, id)
	if perr := r.printNotice(); perr != nil {
		return perr
	}
	return err
}

// ListExport writes the list to a file, optionally with catalog details.
func (r *Runner) ListExport(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSession(); err != nil {
		return err
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	cred, _ := r.store.Credential()
	opts := tasks.ExportOpts{
		Format:     format,
		Output:     cmd.String("output"),
		Username:   cred.Username,
		Details:    cmd.Bool("details"),
		NumWorkers: int(cmd.Int("workers")),
		RateLimit:  r.config.Catalog.RateLimit,
	}

	progress := make(chan tasks.ProgressUpdate, 32)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.logger.Info(update.Message, "phase", update.Phase, "step", update.Step, "total", update.Total)
		}
	}()

	result, err := r.engine.Export(ctx, progress, opts)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	r.writePlain("✓ Exported %d entries to %s\n", result.Total, result.Path)
	if opts.Details {
		r.writePlain("  Details: %d titles fetched, %d failed\n", result.Enriched, len(result.Failed))
		for _, f := range result.Failed {
			r.writePlain("  ✗ %s: %v\n", f.Name, f.Error)
		}
	}
	return nil
}

func malID(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: mal_id", shared.ErrMissingArgument)
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: mal_id must be a positive integer, got %q", shared.ErrInvalidArgument, raw)
	}
	return id, nil
}
