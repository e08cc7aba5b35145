package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/anitrack/internal/models"
)

var (
	_ list.Item = trackedItem{}
	_ list.Item = resultItem{}
)

// trackedItem wraps [models.TrackedItem] to implement [list.Item].
type trackedItem struct {
	item models.TrackedItem
}

func (i trackedItem) FilterValue() string { return i.item.Name }
func (i trackedItem) Title() string       { return i.item.Name }
func (i trackedItem) Description() string {
	parts := []string{styles.Status(i.item.Status), "★ " + i.item.RatingLabel()}
	if i.item.Genres != "" {
		parts = append(parts, i.item.Genres)
	}
	return strings.Join(parts, " • ")
}

// resultItem wraps [models.SearchResult] to implement [list.Item].
type resultItem struct {
	result models.SearchResult
}

func (i resultItem) FilterValue() string { return i.result.Title }
func (i resultItem) Title() string       { return i.result.Title }
func (i resultItem) Description() string {
	desc := fmt.Sprintf("★ %.2f", i.result.Score)
	if genres := i.result.GenreSummary(); genres != "" {
		desc = fmt.Sprintf("%s • %s", desc, genres)
	}
	return desc
}

func newList(items []list.Item, width, height int) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), width, height)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()
	return l
}

func trackedItems(items []models.TrackedItem) []list.Item {
	out := make([]list.Item, len(items))
	for i, it := range items {
		out[i] = trackedItem{item: it}
	}
	return out
}

func resultItems(results []models.SearchResult) []list.Item {
	out := make([]list.Item, len(results))
	for i, r := range results {
		out[i] = resultItem{result: r}
	}
	return out
}
