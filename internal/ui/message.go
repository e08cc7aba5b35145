package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/anitrack/internal/models"
	"github.com/desertthunder/anitrack/internal/search"
	"github.com/desertthunder/anitrack/internal/tracker"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgListLoaded MsgKind = iota
	MsgListChanged
	MsgSearchResult
	MsgDetailsFetched
	MsgActionDone
	MsgNotice
)

// action names a list mutation started from the TUI.
type action string

const (
	actionAdd    action = "add"
	actionStatus action = "status"
	actionDelete action = "delete"
)

type actionResult struct {
	action action
	err    error
}

type detailsResult struct {
	details *models.AnimeDetails
	err     error
}

// listLoadedMsg is the constructor for [MsgListLoaded]
func listLoadedMsg(err error) Msg {
	return Msg{kind: MsgListLoaded, data: err}
}

// listChangedMsg is the constructor for [MsgListChanged]
func listChangedMsg(items []models.TrackedItem) Msg {
	return Msg{kind: MsgListChanged, data: items}
}

// searchResultMsg is the constructor for [MsgSearchResult]
func searchResultMsg(r search.Result) Msg {
	return Msg{kind: MsgSearchResult, data: r}
}

// detailsFetchedMsg is the constructor for [MsgDetailsFetched]
func detailsFetchedMsg(details *models.AnimeDetails, err error) Msg {
	return Msg{kind: MsgDetailsFetched, data: detailsResult{details, err}}
}

// actionDoneMsg is the constructor for [MsgActionDone]
func actionDoneMsg(a action, err error) Msg {
	return Msg{kind: MsgActionDone, data: actionResult{a, err}}
}

// noticeMsg is the constructor for [MsgNotice]
func noticeMsg(ev tracker.Event) Msg {
	return Msg{kind: MsgNotice, data: ev}
}
