package testing

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/anitrack/internal/server"
	"github.com/desertthunder/anitrack/internal/shared"
)

// FakeAnime is a catalog record served by [FakeCatalog].
type FakeAnime struct {
	ID         int
	Title      string
	Score      float64
	Genres     []string
	Synopsis   string
	Season     string
	Year       int
	Studios    []string
	Characters []FakeCharacter
}

// FakeCharacter is a character row with an optional Japanese voice actor.
type FakeCharacter struct {
	Name       string
	VoiceActor string
}

// FakeCatalog serves a Jikan v4 compatible subset over httptest.
type FakeCatalog struct {
	Server *httptest.Server

	requests atomic.Int64
	searches atomic.Int64

	mu          sync.Mutex
	anime       map[int]FakeAnime
	rateLimited bool
	queries     []string
}

// NewFakeCatalog starts a [FakeCatalog] that is closed when the test ends.
func NewFakeCatalog(t *testing.T, anime ...FakeAnime) *FakeCatalog {
	t.Helper()

	fc := &FakeCatalog{anime: make(map[int]FakeAnime)}
	for _, a := range anime {
		fc.anime[a.ID] = a
	}

	router := server.NewBasicRouter()
	router.Use(
		server.Logging(shared.WithLogger(NewTestLogger(t), "fake", "catalog")),
		server.CountRequests(&fc.requests),
		fc.throttle,
	)
	router.HandleFunc(http.MethodGet, "/anime", fc.search)
	router.HandleFunc(http.MethodGet, "/anime/{id}", fc.lookup)
	router.HandleFunc(http.MethodGet, "/anime/{id}/characters", fc.characters)

	fc.Server = httptest.NewServer(router)
	t.Cleanup(fc.Server.Close)
	return fc
}

// URL is the server's base URL.
func (fc *FakeCatalog) URL() string { return fc.Server.URL }

// Requests counts every request that reached the server.
func (fc *FakeCatalog) Requests() int { return int(fc.requests.Load()) }

// Searches counts GET /anime calls.
func (fc *FakeCatalog) Searches() int { return int(fc.searches.Load()) }

// Queries lists the q parameters received, in order.
func (fc *FakeCatalog) Queries() []string {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return slices.Clone(fc.queries)
}

// SetRateLimited makes every request answer 429 while on.
func (fc *FakeCatalog) SetRateLimited(on bool) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.rateLimited = on
}

func (fc *FakeCatalog) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fc.mu.Lock()
		limited := fc.rateLimited
		fc.mu.Unlock()

		if limited {
			server.WriteJSON(w, http.StatusTooManyRequests, map[string]any{"status": 429, "type": "RateLimitException"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (fc *FakeCatalog) search(w http.ResponseWriter, r *http.Request) {
	fc.searches.Add(1)
	q := r.URL.Query().Get("q")
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 25
	}

	fc.mu.Lock()
	fc.queries = append(fc.queries, q)
	ids := make([]int, 0, len(fc.anime))
	for id, a := range fc.anime {
		if strings.Contains(strings.ToLower(a.Title), strings.ToLower(q)) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	data := make([]map[string]any, 0, limit)
	for _, id := range ids {
		if len(data) == limit {
			break
		}
		data = append(data, jikanAnime(fc.anime[id]))
	}
	fc.mu.Unlock()

	server.WriteJSON(w, http.StatusOK, map[string]any{"data": data})
}

func (fc *FakeCatalog) find(r *http.Request) (FakeAnime, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		return FakeAnime{}, false
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()
	a, ok := fc.anime[id]
	return a, ok
}

func (fc *FakeCatalog) lookup(w http.ResponseWriter, r *http.Request) {
	a, ok := fc.find(r)
	if !ok {
		server.WriteJSON(w, http.StatusNotFound, map[string]any{"status": 404, "message": "Resource does not exist"})
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"data": jikanAnime(a)})
}

func (fc *FakeCatalog) characters(w http.ResponseWriter, r *http.Request) {
	a, ok := fc.find(r)
	if !ok {
		server.WriteJSON(w, http.StatusNotFound, map[string]any{"status": 404, "message": "Resource does not exist"})
		return
	}

	data := make([]map[string]any, 0, len(a.Characters))
	for _, c := range a.Characters {
		actors := []map[string]any{}
		if c.VoiceActor != "" {
			actors = append(actors, map[string]any{"person": map[string]any{"name": c.VoiceActor}, "language": "Japanese"})
		}
		data = append(data, map[string]any{
			"character":    map[string]any{"name": c.Name, "images": map[string]any{"jpg": map[string]any{"image_url": "https://cdn.example/c.jpg"}}},
			"role":         "Main",
			"voice_actors": actors,
		})
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"data": data})
}

func jikanAnime(a FakeAnime) map[string]any {
	named := func(names []string) []map[string]any {
		out := make([]map[string]any, 0, len(names))
		for i, n := range names {
			out = append(out, map[string]any{"mal_id": i + 1, "name": n})
		}
		return out
	}

	record := map[string]any{
		"mal_id":   a.ID,
		"url":      "https://myanimelist.net/anime/" + strconv.Itoa(a.ID),
		"title":    a.Title,
		"images":   map[string]any{"jpg": map[string]any{"image_url": "https://cdn.example/" + strconv.Itoa(a.ID) + ".jpg", "large_image_url": "https://cdn.example/" + strconv.Itoa(a.ID) + "l.jpg"}},
		"score":    a.Score,
		"synopsis": a.Synopsis,
		"season":   a.Season,
		"genres":   named(a.Genres),
		"studios":  named(a.Studios),
	}
	if a.Year != 0 {
		record["year"] = a.Year
	} else {
		record["year"] = nil
	}
	return record
}
