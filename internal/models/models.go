package models

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/anitrack/internal/shared"
)

// Status is the watch status of a [TrackedItem].
type Status string

const (
	StatusWatching    Status = "watching"
	StatusCompleted   Status = "completed"
	StatusPlanToWatch Status = "plan_to_watch"
	StatusDropped     Status = "dropped"
)

// Statuses lists every valid [Status] in display order.
var Statuses = []Status{StatusWatching, StatusCompleted, StatusPlanToWatch, StatusDropped}

// ParseStatus validates s. Surrounding whitespace and case are ignored, and spaces or dashes
// are accepted in place of underscores ("plan to watch").
func ParseStatus(s string) (Status, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)

	for _, st := range Statuses {
		if string(st) == norm {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", shared.ErrInvalidStatus, s)
}

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

// Label renders the status for display ("plan to watch").
func (s Status) Label() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

func (s Status) String() string { return string(s) }

// TrackedItem is a user's record of one catalog title and its watch status.
type TrackedItem struct {
	ID         string   `json:"id"`
	ExternalID int      `json:"mal_id"`
	Name       string   `json:"name"`
	ImageURL   string   `json:"image_url"`
	Rating     *float64 `json:"vote_average"`
	Status     Status   `json:"status"`
	Genres     string   `json:"genres"`
}

// RatingLabel formats the optional rating, "N/A" when absent.
func (t TrackedItem) RatingLabel() string {
	if t.Rating == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", *t.Rating)
}

// Profile is the authenticated user's profile from GET /auth/profile.
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// SearchResult is one catalog hit from a search query.
type SearchResult struct {
	ExternalID int      `json:"mal_id"`
	Title      string   `json:"title"`
	ImageURL   string   `json:"image_url"`
	Score      float64  `json:"score"`
	Genres     []string `json:"genres"`
}

// GenreSummary joins the genre names the way the backend stores them.
func (r SearchResult) GenreSummary() string {
	return strings.Join(r.Genres, ", ")
}

// Character is a character appearing in a title with its first listed voice actor.
type Character struct {
	Name          string `json:"name"`
	ImageURL      string `json:"image_url"`
	VoiceActor    string `json:"voice_actor,omitempty"`
	VoiceLanguage string `json:"voice_language,omitempty"`
}

// AnimeDetails is the catalog detail view of one title.
type AnimeDetails struct {
	ExternalID    int         `json:"mal_id"`
	Title         string      `json:"title"`
	Synopsis      string      `json:"synopsis"`
	Score         float64     `json:"score"`
	Season        string      `json:"season"`
	Year          int         `json:"year"`
	Studios       []string    `json:"studios"`
	Genres        []string    `json:"genres"`
	ImageURL      string      `json:"image_url"`
	LargeImageURL string      `json:"large_image_url"`
	URL           string      `json:"url"`
	Characters    []Character `json:"characters"`
}

// SeasonLabel renders "Fall 2002", or an empty string when the season is unknown.
func (d AnimeDetails) SeasonLabel() string {
	if d.Season == "" {
		return ""
	}
	season := strings.ToUpper(d.Season[:1]) + d.Season[1:]
	if d.Year == 0 {
		return season
	}
	return fmt.Sprintf("%s %d", season, d.Year)
}

// SearchResult projects the details onto the shape used for adding a title to the list.
func (d AnimeDetails) SearchResult() SearchResult {
	return SearchResult{
		ExternalID: d.ExternalID,
		Title:      d.Title,
		ImageURL:   d.ImageURL,
		Score:      d.Score,
		Genres:     d.Genres,
	}
}

// PageURL returns the public catalog page for a title.
func PageURL(externalID int) string {
	return fmt.Sprintf("https://myanimelist.net/anime/%d", externalID)
}

// ListExport is a snapshot of a user's list for export, optionally enriched with catalog
// details keyed by external id.
type ListExport struct {
	Username   string                `json:"username"`
	ExportedAt time.Time             `json:"exported_at"`
	Items      []TrackedItem         `json:"items"`
	Details    map[int]*AnimeDetails `json:"details,omitempty"`
}

// CountByStatus tallies items per status.
func CountByStatus(items []TrackedItem) map[Status]int {
	counts := make(map[Status]int, len(Statuses))
	for _, it := range items {
		counts[it.Status]++
	}
	return counts
}
