package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/anitrack/internal/shared"
	tu "github.com/desertthunder/anitrack/internal/testing"
)

func naruto() tu.FakeAnime {
	return tu.FakeAnime{
		ID: 20, Title: "Naruto", Score: 8.0, Genres: []string{"Action", "Adventure"},
		Synopsis: "Moments prior to Naruto Uzumaki's birth...", Season: "fall", Year: 2002,
		Studios: []string{"Pierrot"},
		Characters: []tu.FakeCharacter{
			{Name: "Uzumaki, Naruto", VoiceActor: "Takeuchi, Junko"},
			{Name: "Uchiha, Sasuke", VoiceActor: "Sugiyama, Noriaki"},
			{Name: "Haruno, Sakura", VoiceActor: "Nakamura, Chie"},
			{Name: "Hatake, Kakashi", VoiceActor: "Inoue, Kazuhiko"},
			{Name: "Umino, Iruka"},
			{Name: "Sarutobi, Hiruzen"},
			{Name: "Gaara"},
		},
	}
}

func TestCatalogService(t *testing.T) {
	ctx := context.Background()
	logger := shared.NewLogger(io.Discard)

	t.Run("SearchAnime", func(t *testing.T) {
		fc := tu.NewFakeCatalog(t, naruto(), tu.FakeAnime{ID: 1735, Title: "Naruto: Shippuuden", Score: 8.26}, tu.FakeAnime{ID: 1, Title: "Cowboy Bebop"})
		c := NewCatalogService(fc.URL(), nil, 0, logger)

		results, err := c.SearchAnime(ctx, "naruto", 5)
		if err != nil {
			t.Fatalf("SearchAnime failed: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(results))
		}

		first := results[0]
		if first.ExternalID != 20 || first.Title != "Naruto" || first.Score != 8.0 {
			t.Errorf("unexpected result: %+v", first)
		}
		if first.ImageURL != "https://cdn.example/20.jpg" {
			t.Errorf("expected images.jpg.image_url, got %q", first.ImageURL)
		}
		if first.GenreSummary() != "Action, Adventure" {
			t.Errorf("unexpected genres: %v", first.Genres)
		}
	})

	t.Run("SearchAnime Respects Limit", func(t *testing.T) {
		fc := tu.NewFakeCatalog(t, naruto(), tu.FakeAnime{ID: 1735, Title: "Naruto: Shippuuden"})
		c := NewCatalogService(fc.URL(), nil, 0, logger)

		results, err := c.SearchAnime(ctx, "naruto", 1)
		if err != nil {
			t.Fatalf("SearchAnime failed: %v", err)
		}
		if len(results) != 1 {
			t.Errorf("expected 1 result, got %d", len(results))
		}
	})

	t.Run("Rate Limited", func(t *testing.T) {
		fc := tu.NewFakeCatalog(t, naruto())
		fc.SetRateLimited(true)
		c := NewCatalogService(fc.URL(), nil, 0, logger)

		if _, err := c.SearchAnime(ctx, "naruto", 5); !errors.Is(err, shared.ErrRateLimited) {
			t.Errorf("expected ErrRateLimited, got %v", err)
		}
	})

	t.Run("Details", func(t *testing.T) {
		fc := tu.NewFakeCatalog(t, naruto())
		c := NewCatalogService(fc.URL(), nil, 0, logger)

		d, err := c.Details(ctx, 20)
		if err != nil {
			t.Fatalf("Details failed: %v", err)
		}
		if d.Title != "Naruto" || d.SeasonLabel() != "Fall 2002" || d.Studios[0] != "Pierrot" {
			t.Errorf("unexpected details: %+v", d)
		}
		if len(d.Characters) != 6 {
			t.Fatalf("expected 6 characters, got %d", len(d.Characters))
		}
		if d.Characters[0].VoiceActor != "Takeuchi, Junko" || d.Characters[0].VoiceLanguage != "Japanese" {
			t.Errorf("unexpected first character: %+v", d.Characters[0])
		}
		if d.Characters[4].VoiceActor != "" {
			t.Errorf("expected empty voice actor, got %q", d.Characters[4].VoiceActor)
		}
		if fc.Requests() != 2 {
			t.Errorf("expected 2 catalog requests, got %d", fc.Requests())
		}
	})

	t.Run("Details Not Found", func(t *testing.T) {
		fc := tu.NewFakeCatalog(t)
		c := NewCatalogService(fc.URL(), nil, 0, logger)

		if _, err := c.Details(ctx, 404); !errors.Is(err, shared.ErrAnimeNotFound) {
			t.Errorf("expected ErrAnimeNotFound, got %v", err)
		}
	})

	t.Run("Server Error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		c := NewCatalogService(srv.URL, nil, 0, logger)
		if _, err := c.SearchAnime(ctx, "naruto", 5); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("Limiter Paces Requests", func(t *testing.T) {
		fc := tu.NewFakeCatalog(t, naruto())
		c := NewCatalogService(fc.URL(), nil, 20, logger)

		start := time.Now()
		for range 3 {
			if _, err := c.SearchAnime(ctx, "naruto", 5); err != nil {
				t.Fatalf("SearchAnime failed: %v", err)
			}
		}
		if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
			t.Errorf("expected pacing of ~50ms per call after the first, took %v", elapsed)
		}
	})

	t.Run("Limiter Honors Context", func(t *testing.T) {
		fc := tu.NewFakeCatalog(t, naruto())
		c := NewCatalogService(fc.URL(), nil, 0.5, logger)
		_, _ = c.SearchAnime(ctx, "naruto", 5)

		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		if _, err := c.SearchAnime(cctx, "naruto", 5); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest from limiter wait, got %v", err)
		}
	})
}
