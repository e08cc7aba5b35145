package main

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/desertthunder/anitrack/internal/models"
	"github.com/desertthunder/anitrack/internal/search"
	"github.com/desertthunder/anitrack/internal/shared"
	"github.com/urfave/cli/v3"
)

// CatalogSearch queries the catalog once, bypassing the debounce.
func (r *Runner) CatalogSearch(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}

	minLength := r.config.Catalog.MinQueryLength
	if minLength <= 0 {
		minLength = search.DefaultMinLength
	}
	if utf8.RuneCountInString(query) < minLength {
		return r.writePlain("Type at least %d characters to search\n", minLength)
	}

	results, err := r.searcher.Search(ctx, query)
	if err != nil {
		r.logger.Error("catalog search failed", "query", query, "error", err)
		return fmt.Errorf("%s: %w", search.ErrorMessage(err), err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(results, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Results for %q (%d)", query, len(results)))
	if len(results) == 0 {
		return r.writePlain("No results found\n")
	}
	for _, res := range results {
		r.writePlain("%-7d %5.2f  %s\n", res.ExternalID, res.Score, res.Title)
		if genres := res.GenreSummary(); genres != "" {
			r.writePlain("              %s\n", genres)
		}
	}
	return r.writePlain("\nAdd one with `anitrack list add <mal_id>`\n")
}

// CatalogDetails shows a title's details and characters.
func (r *Runner) CatalogDetails(ctx context.Context, cmd *cli.Command) error {
	id, err := malID(cmd.StringArg("mal_id"))
	if err != nil {
		return err
	}

	details, err := r.catalog.Details(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch details for %d: %w", id, err)
	}

	if cmd.Bool("open") {
		url := details.URL
		if url == "" {
			url = models.PageURL(id)
		}
		if err := r.openURL(url); err != nil {
			r.logger.Warn("failed to open browser", "url", url, "error", err)
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(details, cmd.Bool("pretty"))
	}

	r.writePlainHeader(details.Title)
	r.writePlain("Score: %.2f\n", details.Score)
	if season := details.SeasonLabel(); season != "" {
		r.writePlain("Season: %s\n", season)
	}
	if len(details.Studios) > 0 {
		r.writePlain("Studios: %s\n", strings.Join(details.Studios, ", "))
	}
	if len(details.Genres) > 0 {
		r.writePlain("Genres: %s\n", strings.Join(details.Genres, ", "))
	}
	if details.Synopsis != "" {
		r.writePlain("\n%s\n", details.Synopsis)
	}

	if len(details.Characters) > 0 {
		r.writePlain("\nCharacters:\n")
		for _, c := range details.Characters {
			if c.VoiceActor == "" {
				r.writePlain("  - %s\n", c.Name)
				continue
			}
			r.writePlain("  - %s (%s, %s)\n", c.Name, c.VoiceActor, c.VoiceLanguage)
		}
	}
	return r.writePlain("\n%s\n", models.PageURL(id))
}
