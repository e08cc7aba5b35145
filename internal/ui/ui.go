package ui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/anitrack/internal/models"
	"github.com/desertthunder/anitrack/internal/search"
	"github.com/desertthunder/anitrack/internal/services"
	"github.com/desertthunder/anitrack/internal/shared"
	"github.com/desertthunder/anitrack/internal/tracker"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ListView ViewState = iota
	SearchView
	DetailsView
	StatusView
	ConfirmDeleteView
	ErrorView
	ExpiredView
)

const (
	msgDetailsFailed = "Failed to load anime details"
	msgOpenFailed    = "Could not open the browser"
)

// DetailFetcher loads the catalog detail view for one title.
type DetailFetcher interface {
	Details(ctx context.Context, id int) (*models.AnimeDetails, error)
}

// Deps are the collaborators the TUI drives.
type Deps struct {
	Controller *tracker.Controller
	Searcher   *search.Searcher
	Catalog    DetailFetcher
	Username   string
	OpenURL    func(string) error // defaults to [shared.OpenBrowser]
}

// Model represents the TUI application state.
type Model struct {
	ctx        context.Context
	view       ViewState
	controller *tracker.Controller
	searcher   *search.Searcher
	catalog    DetailFetcher
	username   string
	openURL    func(string) error

	width  int
	height int

	list    list.Model
	results list.Model
	input   textinput.Model
	query   string

	filter       models.Status
	loading      bool
	searching    bool
	searchErr    string
	details      *models.AnimeDetails
	detailsFrom  ViewState
	target       models.TrackedItem
	statusCursor int

	notice      *tracker.Notice
	changes     chan []models.TrackedItem
	unsubscribe func()
	expired     bool
	err         error

	help help.Model
	keys keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, deps Deps) *Model {
	openURL := deps.OpenURL
	if openURL == nil {
		openURL = shared.OpenBrowser
	}

	input := textinput.New()
	input.Placeholder = "Search anime (3+ characters)"
	input.CharLimit = 100

	m := &Model{
		ctx:        ctx,
		view:       ListView,
		controller: deps.Controller,
		searcher:   deps.Searcher,
		catalog:    deps.Catalog,
		username:   deps.Username,
		openURL:    openURL,
		list:       newList(nil, 0, 0),
		results:    newList(nil, 0, 0),
		input:      input,
		loading:    true,
		changes:    make(chan []models.TrackedItem, 1),
		help:       help.New(),
		keys:       newKeyMap(),
	}
	m.results.Title = "Results"
	m.list.Title = m.listTitle()
	m.unsubscribe = m.controller.Subscribe(m.onChange)
	return m
}

// Expired reports whether the TUI exited because the session expired.
func (m *Model) Expired() bool {
	return m.expired
}

// Close unsubscribes from list changes.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// onChange keeps only the newest snapshot when the UI falls behind.
func (m *Model) onChange(items []models.TrackedItem) {
	select {
	case m.changes <- items:
		return
	default:
	}
	select {
	case <-m.changes:
	default:
	}
	select {
	case m.changes <- items:
	default:
	}
}

// Init loads the list and starts listening for changes, notices and search results.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadList(), m.waitForChanges(), m.waitForNotice(), m.waitForSearch())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-6)
		m.results.SetSize(msg.Width-4, msg.Height-10)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		return m.handleMsg(msg)
	}

	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgListLoaded:
		m.loading = false
		err, _ := msg.data.(error)
		if err != nil {
			return m.fail(err)
		}
		m.err = nil
		if m.view == ErrorView {
			m.view = ListView
		}
		m.syncList()
		return m, nil

	case MsgListChanged:
		m.syncList()
		return m, m.waitForChanges()

	case MsgSearchResult:
		r := msg.data.(search.Result)
		if r.Seq != m.searcher.Latest() {
			return m, m.waitForSearch()
		}
		m.searching = false
		m.searchErr = r.Message()
		m.results.SetItems(resultItems(r.Results))
		m.results.Select(0)
		return m, m.waitForSearch()

	case MsgDetailsFetched:
		res := msg.data.(detailsResult)
		m.loading = false
		if m.view != DetailsView {
			return m, nil
		}
		if res.err != nil {
			if services.IsSessionError(res.err) {
				return m.expire()
			}
			m.view = m.detailsFrom
			text := msgDetailsFailed
			if errors.Is(res.err, shared.ErrRateLimited) {
				text = search.RateLimitedMessage
			}
			m.controller.Notifier().Error(text)
			return m, nil
		}
		m.details = res.details
		return m, nil

	case MsgActionDone:
		res := msg.data.(actionResult)
		// A missing credential on add is answered by the login notice.
		if errors.Is(res.err, shared.ErrSessionExpired) ||
			(res.action != actionAdd && errors.Is(res.err, shared.ErrNotAuthenticated)) {
			return m.expire()
		}
		return m, nil

	case MsgNotice:
		ev := msg.data.(tracker.Event)
		if ev.Dismissed {
			if m.notice != nil && m.notice.ID == ev.Notice.ID {
				m.notice = nil
			}
		} else {
			n := ev.Notice
			m.notice = &n
		}
		return m, m.waitForNotice()
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case ListView:
		body = m.renderList()
	case SearchView:
		body = m.renderSearch()
	case DetailsView:
		body = m.renderDetails()
	case StatusView:
		body = m.renderStatus()
	case ConfirmDeleteView:
		body = m.renderConfirmDelete()
	case ErrorView:
		return m.renderError()
	case ExpiredView:
		return m.renderExpired()
	}

	if n := m.renderNotice(); n != "" {
		return body + "\n" + n
	}
	return body
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.view {
	case ListView:
		return m.handleListKeys(msg)
	case SearchView:
		return m.handleSearchKeys(msg)
	case DetailsView:
		return m.handleDetailsKeys(msg)
	case StatusView:
		return m.handleStatusKeys(msg)
	case ConfirmDeleteView:
		return m.handleConfirmKeys(msg)
	case ErrorView:
		return m.handleErrorKeys(msg)
	case ExpiredView:
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.search):
		m.view = SearchView
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.filter):
		m.filter = nextFilter(m.filter)
		m.syncList()
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if it, ok := m.selected(); ok {
			return m, m.showDetails(it.ExternalID, ListView)
		}
		return m, nil
	case key.Matches(msg, m.keys.status):
		if it, ok := m.selected(); ok {
			m.target = it
			m.statusCursor = max(0, slices.Index(models.Statuses, it.Status))
			m.view = StatusView
		}
		return m, nil
	case key.Matches(msg, m.keys.delete):
		if it, ok := m.selected(); ok {
			m.target = it
			m.view = ConfirmDeleteView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searcher.Cancel()
		m.searching = false
		m.input.Blur()
		m.view = ListView
		return m, nil
	case "up", "down":
		var cmd tea.Cmd
		m.results, cmd = m.results.Update(msg)
		return m, cmd
	case "enter":
		if r, ok := m.selectedResult(); ok {
			return m, m.addAnime(r)
		}
		return m, nil
	case "tab":
		if r, ok := m.selectedResult(); ok {
			return m, m.showDetails(r.ExternalID, SearchView)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if q := m.input.Value(); q != m.query {
		m.query = q
		m.searching = true
		m.searchErr = ""
		m.searcher.Input(m.ctx, q)
	}
	return m, cmd
}

func (m *Model) handleDetailsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = m.detailsFrom
		m.details = nil
		return m, nil
	case key.Matches(msg, m.keys.open):
		if m.details != nil {
			if err := m.openURL(m.details.URL); err != nil {
				m.controller.Notifier().Error(msgOpenFailed)
			}
		}
		return m, nil
	case key.Matches(msg, m.keys.add):
		if m.details != nil && m.detailsFrom == SearchView {
			return m, m.addAnime(m.details.SearchResult())
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handleStatusKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		m.view = ListView
		return m, nil
	case key.Matches(msg, m.keys.up):
		if m.statusCursor > 0 {
			m.statusCursor--
		}
		return m, nil
	case key.Matches(msg, m.keys.down):
		if m.statusCursor < len(models.Statuses)-1 {
			m.statusCursor++
		}
		return m, nil
	case key.Matches(msg, m.keys.enter):
		m.view = ListView
		return m, m.changeStatus(m.target.ID, models.Statuses[m.statusCursor])
	}
	return m, nil
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = ListView
		return m, m.deleteItem(m.target.ID)
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.quit):
		m.view = ListView
		return m, nil
	}
	return m, nil
}

func (m *Model) handleErrorKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.retry):
		m.loading = true
		return m, m.loadList()
	}
	return m, nil
}

// fail routes a load error to the expired screen or the retryable error view.
func (m *Model) fail(err error) (tea.Model, tea.Cmd) {
	if services.IsSessionError(err) {
		return m.expire()
	}
	m.err = err
	m.view = ErrorView
	return m, nil
}

func (m *Model) expire() (tea.Model, tea.Cmd) {
	m.expired = true
	m.view = ExpiredView
	m.searcher.Cancel()
	return m, nil
}

func (m *Model) syncList() {
	var items []models.TrackedItem
	if m.filter == "" {
		items = m.controller.Items()
	} else {
		items = m.controller.Filter(m.filter)
	}
	m.list.SetItems(trackedItems(items))
	m.list.Title = m.listTitle()
}

func (m *Model) listTitle() string {
	title := "Your Anime List"
	if m.username != "" {
		title = fmt.Sprintf("Welcome, %s", m.username)
	}
	if m.filter != "" {
		title = fmt.Sprintf("%s [%s]", title, m.filter.Label())
	}
	return title
}

func (m *Model) selected() (models.TrackedItem, bool) {
	if it, ok := m.list.SelectedItem().(trackedItem); ok {
		return it.item, true
	}
	return models.TrackedItem{}, false
}

func (m *Model) selectedResult() (models.SearchResult, bool) {
	if it, ok := m.results.SelectedItem().(resultItem); ok {
		return it.result, true
	}
	return models.SearchResult{}, false
}

func (m *Model) showDetails(id int, from ViewState) tea.Cmd {
	m.detailsFrom = from
	m.details = nil
	m.loading = true
	m.view = DetailsView
	return m.fetchDetails(id)
}

func (m *Model) loadList() tea.Cmd {
	return func() tea.Msg {
		return listLoadedMsg(m.controller.Refresh(m.ctx))
	}
}

func (m *Model) fetchDetails(id int) tea.Cmd {
	return func() tea.Msg {
		d, err := m.catalog.Details(m.ctx, id)
		return detailsFetchedMsg(d, err)
	}
}

func (m *Model) addAnime(r models.SearchResult) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg(actionAdd, m.controller.Add(m.ctx, r))
	}
}

func (m *Model) changeStatus(id string, status models.Status) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg(actionStatus, m.controller.ChangeStatus(m.ctx, id, status))
	}
}

func (m *Model) deleteItem(id string) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg(actionDelete, m.controller.Delete(m.ctx, id))
	}
}

func (m *Model) waitForChanges() tea.Cmd {
	return func() tea.Msg {
		select {
		case items := <-m.changes:
			return listChangedMsg(items)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) waitForNotice() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev, ok := <-m.controller.Notifier().Events():
			if !ok {
				return nil
			}
			return noticeMsg(ev)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) waitForSearch() tea.Cmd {
	return func() tea.Msg {
		select {
		case r, ok := <-m.searcher.Results():
			if !ok {
				return nil
			}
			return searchResultMsg(r)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) renderList() string {
	if m.loading && len(m.list.Items()) == 0 {
		return styles.title.Render(m.listTitle()) + "\nLoading your list..."
	}

	helpKeys := []key.Binding{m.keys.enter, m.keys.search, m.keys.status, m.keys.delete, m.keys.filter, m.keys.quit}
	if len(m.list.Items()) == 0 {
		empty := "Your list is empty. Press / to search the catalog."
		if m.filter != "" {
			empty = fmt.Sprintf("Nothing marked %s. Press f to change the filter.", m.filter.Label())
		}
		return fmt.Sprintf("%s\n%s\n\n%s", styles.title.Render(m.listTitle()), empty, m.help.ShortHelpView(helpKeys))
	}
	return fmt.Sprintf("%s\n%s", m.list.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderSearch() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Search the catalog"))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	switch {
	case m.searchErr != "":
		b.WriteString(styles.err.Render(m.searchErr))
	case m.searching:
		b.WriteString(styles.help.Render("Searching..."))
	case len(m.results.Items()) == 0 && m.query != "":
		b.WriteString(styles.help.Render("No results"))
	default:
		b.WriteString(m.results.View())
	}

	addKey := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "add"))
	helpKeys := []key.Binding{addKey, m.keys.details, m.keys.back}
	b.WriteString("\n\n")
	b.WriteString(m.help.ShortHelpView(helpKeys))
	return b.String()
}

func (m *Model) renderDetails() string {
	if m.details == nil {
		return styles.title.Render("Details") + "\nLoading..."
	}
	d := m.details

	var b strings.Builder
	b.WriteString(styles.title.Render(d.Title))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Score: %.2f\n", d.Score)
	if season := d.SeasonLabel(); season != "" {
		fmt.Fprintf(&b, "Season: %s\n", season)
	}
	if len(d.Studios) > 0 {
		fmt.Fprintf(&b, "Studios: %s\n", strings.Join(d.Studios, ", "))
	}
	if len(d.Genres) > 0 {
		fmt.Fprintf(&b, "Genres: %s\n", strings.Join(d.Genres, ", "))
	}
	if d.Synopsis != "" {
		b.WriteString("\n")
		b.WriteString(wrap(d.Synopsis, max(m.width-4, 40)))
		b.WriteString("\n")
	}
	if len(d.Characters) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.ok.Render("Characters"))
		b.WriteString("\n")
		for _, c := range d.Characters {
			if c.VoiceActor != "" {
				fmt.Fprintf(&b, "  • %s (%s)\n", c.Name, c.VoiceActor)
			} else {
				fmt.Fprintf(&b, "  • %s\n", c.Name)
			}
		}
	}

	helpKeys := []key.Binding{m.keys.open, m.keys.back}
	if m.detailsFrom == SearchView {
		helpKeys = append([]key.Binding{m.keys.add}, helpKeys...)
	}
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView(helpKeys))
	return b.String()
}

func (m *Model) renderStatus() string {
	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("Set status for %s", m.target.Name)))
	b.WriteString("\n")
	for i, s := range models.Statuses {
		cursor := "  "
		if i == m.statusCursor {
			cursor = styles.cursor.Render("> ")
		}
		marker := ""
		if s == m.target.Status {
			marker = styles.help.Render(" (current)")
		}
		fmt.Fprintf(&b, "%s%s%s\n", cursor, styles.Status(s), marker)
	}

	selectKey := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select"))
	helpKeys := []key.Binding{m.keys.up, m.keys.down, selectKey, m.keys.back}
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView(helpKeys))
	return b.String()
}

func (m *Model) renderConfirmDelete() string {
	title := styles.warn.Render(fmt.Sprintf("Delete '%s' from your list?", m.target.Name))
	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	return fmt.Sprintf("%s\n\n%s", title, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderError() string {
	msg := "Something went wrong"
	if m.err != nil {
		msg = fmt.Sprintf("Failed to load your list: %s", errorText(m.err))
	}
	helpKeys := []key.Binding{m.keys.retry, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", styles.err.Render(msg), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderExpired() string {
	return fmt.Sprintf("%s\n\nRun `anitrack auth login` to sign in again.\n\n%s",
		styles.err.Render("Your session has expired."),
		styles.help.Render("Press any key to exit"))
}

func (m *Model) renderNotice() string {
	if m.notice == nil {
		return ""
	}
	if m.notice.Kind == tracker.KindError {
		return styles.err.Render("✗ " + m.notice.Message)
	}
	return styles.ok.Render("✓ " + m.notice.Message)
}

func errorText(err error) string {
	var apiErr *shared.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

func nextFilter(current models.Status) models.Status {
	if current == "" {
		return models.Statuses[0]
	}
	i := slices.Index(models.Statuses, current)
	if i < 0 || i == len(models.Statuses)-1 {
		return ""
	}
	return models.Statuses[i+1]
}

func wrap(text string, width int) string {
	var b strings.Builder
	line := 0
	for i, word := range strings.Fields(text) {
		if i > 0 {
			if line+1+len(word) > width {
				b.WriteString("\n")
				line = 0
			} else {
				b.WriteString(" ")
				line++
			}
		}
		b.WriteString(word)
		line += len(word)
	}
	return b.String()
}
