// Jikan v4 implementation of [AnimeCatalog]
//
// Response types based on https://docs.api.jikan.moe/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/anitrack/internal/models"
	"github.com/desertthunder/anitrack/internal/shared"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	defaultCatalogURL   string  = "https://api.jikan.moe/v4"
	defaultCatalogRate  float64 = 3
	maxDetailCharacters int     = 6
)

type jikanImage struct {
	ImageURL      string `json:"image_url"`
	LargeImageURL string `json:"large_image_url"`
}

type jikanImages struct {
	JPG jikanImage `json:"jpg"`
}

type jikanNamed struct {
	MalID int    `json:"mal_id"`
	Name  string `json:"name"`
}

// JikanAnime is the anime resource returned by search and lookup endpoints.
type JikanAnime struct {
	MalID    int          `json:"mal_id"`
	URL      string       `json:"url"`
	Title    string       `json:"title"`
	Images   jikanImages  `json:"images"`
	Score    *float64     `json:"score"`
	Synopsis string       `json:"synopsis"`
	Season   string       `json:"season"`
	Year     *int         `json:"year"`
	Genres   []jikanNamed `json:"genres"`
	Studios  []jikanNamed `json:"studios"`
}

func (a JikanAnime) genreNames() []string {
	names := make([]string, 0, len(a.Genres))
	for _, g := range a.Genres {
		names = append(names, g.Name)
	}
	return names
}

func (a JikanAnime) toSearchResult() models.SearchResult {
	r := models.SearchResult{
		ExternalID: a.MalID,
		Title:      a.Title,
		ImageURL:   a.Images.JPG.ImageURL,
		Genres:     a.genreNames(),
	}
	if a.Score != nil {
		r.Score = *a.Score
	}
	return r
}

func (a JikanAnime) toDetails() *models.AnimeDetails {
	d := &models.AnimeDetails{
		ExternalID:    a.MalID,
		Title:         a.Title,
		Synopsis:      a.Synopsis,
		Season:        a.Season,
		Genres:        a.genreNames(),
		ImageURL:      a.Images.JPG.ImageURL,
		LargeImageURL: a.Images.JPG.LargeImageURL,
		URL:           a.URL,
		Studios:       make([]string, 0, len(a.Studios)),
	}
	if a.Score != nil {
		d.Score = *a.Score
	}
	if a.Year != nil {
		d.Year = *a.Year
	}
	if d.URL == "" {
		d.URL = models.PageURL(a.MalID)
	}
	for _, s := range a.Studios {
		d.Studios = append(d.Studios, s.Name)
	}
	return d
}

// JikanCharacterEntry is one row of GET /anime/{id}/characters.
type JikanCharacterEntry struct {
	Character struct {
		MalID  int         `json:"mal_id"`
		Name   string      `json:"name"`
		Images jikanImages `json:"images"`
	} `json:"character"`
	Role        string `json:"role"`
	VoiceActors []struct {
		Person struct {
			Name string `json:"name"`
		} `json:"person"`
		Language string `json:"language"`
	} `json:"voice_actors"`
}

func (e JikanCharacterEntry) toCharacter() models.Character {
	c := models.Character{Name: e.Character.Name, ImageURL: e.Character.Images.JPG.ImageURL}
	if len(e.VoiceActors) > 0 {
		c.VoiceActor = e.VoiceActors[0].Person.Name
		c.VoiceLanguage = e.VoiceActors[0].Language
	}
	return c
}

// CatalogService is a rate-limited client for the Jikan v4 API.
type CatalogService struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewCatalogService creates a [CatalogService]. requestsPerSecond <= 0 disables pacing.
func NewCatalogService(baseURL string, httpClient *http.Client, requestsPerSecond float64, logger *log.Logger) *CatalogService {
	if baseURL == "" {
		baseURL = defaultCatalogURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}

	return &CatalogService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
}

// SearchAnime returns up to limit titles matching query.
func (c *CatalogService) SearchAnime(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var resp struct {
		Data []JikanAnime `json:"data"`
	}
	if err := c.get(ctx, "/anime", params, &resp); err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(resp.Data))
	for _, a := range resp.Data {
		results = append(results, a.toSearchResult())
	}

	c.logger.Debug("catalog search", "query", query, "results", len(results))
	return results, nil
}

// Anime fetches a single title.
func (c *CatalogService) Anime(ctx context.Context, id int) (*models.AnimeDetails, error) {
	var resp struct {
		Data JikanAnime `json:"data"`
	}
	if err := c.get(ctx, fmt.Sprintf("/anime/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data.toDetails(), nil
}

// Characters fetches the character listing for a title.
func (c *CatalogService) Characters(ctx context.Context, id int) ([]models.Character, error) {
	var resp struct {
		Data []JikanCharacterEntry `json:"data"`
	}
	if err := c.get(ctx, fmt.Sprintf("/anime/%d/characters", id), nil, &resp); err != nil {
		return nil, err
	}

	chars := make([]models.Character, 0, len(resp.Data))
	for _, e := range resp.Data {
		chars = append(chars, e.toCharacter())
	}
	return chars, nil
}

// Details fetches a title and its characters concurrently and keeps the first six characters.
func (c *CatalogService) Details(ctx context.Context, id int) (*models.AnimeDetails, error) {
	var (
		details *models.AnimeDetails
		chars   []models.Character
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		details, err = c.Anime(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		chars, err = c.Characters(gctx, id)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(chars) > maxDetailCharacters {
		chars = chars[:maxDetailCharacters]
	}
	details.Characters = chars
	return details, nil
}

func (c *CatalogService) get(ctx context.Context, path string, params url.Values, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}

	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.Warn("catalog rate limit hit", "path", path)
		return shared.ErrRateLimited
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrAnimeNotFound, path)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: catalog status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &shared.APIError{StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
