package tasks

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/anitrack/internal/formatter"
	"github.com/desertthunder/anitrack/internal/models"
	"github.com/desertthunder/anitrack/internal/services"
	"github.com/desertthunder/anitrack/internal/shared"
	tu "github.com/desertthunder/anitrack/internal/testing"
)

type mockList struct {
	items []models.TrackedItem
	err   error
}

func (m *mockList) List(context.Context) ([]models.TrackedItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.items, nil
}

type mockCatalog struct {
	mu      sync.Mutex
	calls   map[int]int
	missing map[int]bool
	active  atomic.Int32
	peak    atomic.Int32
	delay   time.Duration
}

func (m *mockCatalog) Details(ctx context.Context, id int) (*models.AnimeDetails, error) {
	n := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}

	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[int]int)
	}
	m.calls[id]++
	m.mu.Unlock()

	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.missing[id] {
		return nil, shared.ErrAnimeNotFound
	}
	return &models.AnimeDetails{ExternalID: id, Studios: []string{"Studio"}, Season: "spring", Year: 2000 + id}, nil
}

func trackedItems() []models.TrackedItem {
	return []models.TrackedItem{
		{ID: "a", ExternalID: 20, Name: "Naruto", Status: models.StatusCompleted},
		{ID: "b", ExternalID: 30, Name: "Neon Genesis Evangelion", Status: models.StatusWatching},
		{ID: "c", ExternalID: 20, Name: "Naruto (rewatch)", Status: models.StatusPlanToWatch},
		{ID: "d", ExternalID: 1535, Name: "Death Note", Status: models.StatusDropped},
	}
}

func drain(ch chan ProgressUpdate) []ProgressUpdate {
	var out []ProgressUpdate
	for {
		select {
		case u := <-ch:
			out = append(out, u)
		default:
			return out
		}
	}
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{FetchList, "fetch_list"},
		{FetchDetails, "fetch_details"},
		{WriteExport, "write_export"},
		{Phase(99), ""},
	}
	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", tt.phase, got, tt.want)
		}
	}
}

func TestEngine_Export(t *testing.T) {
	t.Run("without details", func(t *testing.T) {
		catalog := &mockCatalog{}
		engine := NewEngine(&mockList{items: trackedItems()}, catalog, nil)
		progress := make(chan ProgressUpdate, 32)
		path := filepath.Join(t.TempDir(), "list.txt")

		result, err := engine.Export(context.Background(), progress, ExportOpts{
			Format:   formatter.FormatText,
			Output:   path,
			Username: "shinji",
		})
		if err != nil {
			t.Fatalf("Export failed: %v", err)
		}

		if result.Path != path || result.Total != 4 || result.Enriched != 0 {
			t.Errorf("unexpected result %+v", result)
		}
		if len(catalog.calls) != 0 {
			t.Errorf("catalog should not be called without details, got %v", catalog.calls)
		}

		content := tu.MustReadFile(t, path)
		if !strings.Contains(content, "shinji's Anime List") || !strings.Contains(content, "4. Death Note [dropped]") {
			t.Errorf("unexpected export content: %s", content)
		}

		updates := drain(progress)
		if len(updates) != 4 {
			t.Fatalf("expected 4 progress updates, got %d", len(updates))
		}
		if updates[0].Phase != FetchList || updates[len(updates)-1].Phase != WriteExport {
			t.Errorf("unexpected phase order: %v ... %v", updates[0].Phase, updates[len(updates)-1].Phase)
		}
		if updates[len(updates)-1].Data != path {
			t.Errorf("final update should carry the path, got %v", updates[len(updates)-1].Data)
		}
	})

	t.Run("with details", func(t *testing.T) {
		catalog := &mockCatalog{missing: map[int]bool{1535: true}, delay: 5 * time.Millisecond}
		engine := NewEngine(&mockList{items: trackedItems()}, catalog, nil)
		progress := make(chan ProgressUpdate, 32)
		path := filepath.Join(t.TempDir(), "out", "list.csv")

		result, err := engine.Export(context.Background(), progress, ExportOpts{
			Format:     formatter.FormatCSV,
			Output:     path,
			Details:    true,
			NumWorkers: 2,
			RateLimit:  1000,
		})
		if err != nil {
			t.Fatalf("Export failed: %v", err)
		}

		// Naruto is tracked twice, so 4 entries map to 2 enriched titles.
		if result.Total != 4 || result.Enriched != 2 {
			t.Errorf("expected 4 entries and 2 enriched titles, got %d and %d", result.Total, result.Enriched)
		}
		if len(result.Failed) != 1 || result.Failed[0].ExternalID != 1535 {
			t.Fatalf("expected Death Note to fail, got %+v", result.Failed)
		}
		if !errors.Is(result.Failed[0].Error, shared.ErrAnimeNotFound) {
			t.Errorf("expected ErrAnimeNotFound, got %v", result.Failed[0].Error)
		}
		if catalog.calls[20] != 1 {
			t.Errorf("duplicate external ids should be fetched once, got %d", catalog.calls[20])
		}
		if peak := catalog.peak.Load(); peak > 2 {
			t.Errorf("expected at most 2 concurrent fetches, got %d", peak)
		}

		content := tu.MustReadFile(t, path)
		if !strings.Contains(content, "Spring 2020,Studio") {
			t.Errorf("CSV missing detail columns: %s", content)
		}

		var fetched, failed int
		for _, u := range drain(progress) {
			if u.Phase != FetchDetails {
				continue
			}
			if strings.Contains(u.Message, "✗") {
				failed++
			} else {
				fetched++
			}
		}
		if fetched != 2 || failed != 1 {
			t.Errorf("expected 2 fetched and 1 failed update, got %d and %d", fetched, failed)
		}
	})

	t.Run("list failure", func(t *testing.T) {
		engine := NewEngine(&mockList{err: shared.ErrSessionExpired}, nil, nil)

		_, err := engine.Export(context.Background(), nil, ExportOpts{Output: filepath.Join(t.TempDir(), "x.json")})
		if !errors.Is(err, shared.ErrSessionExpired) {
			t.Errorf("expected ErrSessionExpired, got %v", err)
		}
	})

	t.Run("details without catalog", func(t *testing.T) {
		engine := NewEngine(&mockList{}, nil, nil)

		_, err := engine.Export(context.Background(), nil, ExportOpts{Details: true})
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		engine := NewEngine(&mockList{items: trackedItems()}, &mockCatalog{}, nil)
		_, err := engine.Export(ctx, nil, ExportOpts{
			Output:  filepath.Join(t.TempDir(), "x.json"),
			Details: true,
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("default format", func(t *testing.T) {
		t.Chdir(t.TempDir())

		engine := NewEngine(&mockList{items: trackedItems()[:1]}, nil, nil)
		result, err := engine.Export(context.Background(), nil, ExportOpts{})
		if err != nil {
			t.Fatalf("Export failed: %v", err)
		}
		if result.Path != "anime_list.json" {
			t.Errorf("expected anime_list.json, got %q", result.Path)
		}
		tu.AssertFileExists(t, result.Path)
	})
}

func TestEngine_ExportWithCatalogService(t *testing.T) {
	fc := tu.NewFakeCatalog(t,
		tu.FakeAnime{ID: 20, Title: "Naruto", Score: 7.99, Season: "fall", Year: 2002, Studios: []string{"Pierrot"}},
		tu.FakeAnime{ID: 30, Title: "Neon Genesis Evangelion", Season: "fall", Year: 1995, Studios: []string{"Gainax"}},
	)
	catalog := services.NewCatalogService(fc.URL(), nil, 0, nil)

	items := []models.TrackedItem{
		{ID: "a", ExternalID: 20, Name: "Naruto", Status: models.StatusCompleted},
		{ID: "b", ExternalID: 30, Name: "Neon Genesis Evangelion", Status: models.StatusWatching},
	}
	engine := NewEngine(&mockList{items: items}, catalog, nil)
	path := filepath.Join(t.TempDir(), "list.md")

	result, err := engine.Export(context.Background(), nil, ExportOpts{
		Format:    formatter.FormatMarkdown,
		Output:    path,
		Details:   true,
		RateLimit: 1000,
	})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if result.Enriched != 2 || len(result.Failed) != 0 {
		t.Errorf("unexpected result %+v", result)
	}

	content := tu.MustReadFile(t, path)
	for _, want := range []string{"Season: Fall 2002", "Studios: Pierrot", "Studios: Gainax"} {
		if !strings.Contains(content, want) {
			t.Errorf("markdown missing %q: %s", want, content)
		}
	}
}
