package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/anitrack/internal/models"
	"github.com/desertthunder/anitrack/internal/server"
	"github.com/desertthunder/anitrack/internal/shared"
)

type fakeUser struct {
	ID       string
	Email    string
	Password string
	Username string
}

type failure struct {
	status int
	msg    string
}

// FakeBackend is an in-process backend REST API served over httptest.
//
// Tokens are opaque strings. [FakeBackend.ExpireTokens] invalidates every issued access token
// so the next authenticated call answers 401, which drives the client's refresh path.
type FakeBackend struct {
	Server *httptest.Server

	requests  atomic.Int64
	refreshes atomic.Int64

	mu        sync.Mutex
	users     map[string]*fakeUser // by email
	valid     map[string]string    // access token -> email
	issued    map[string]string    // every token ever issued -> email
	refreshOK bool
	items     []models.TrackedItem
	nextID    int
	seq       int
	lastAdd   map[string]any
	failures  map[string]failure
	hits      map[string]int
}

// NewFakeBackend starts a [FakeBackend] that is closed when the test ends.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()

	fb := &FakeBackend{
		users:     make(map[string]*fakeUser),
		valid:     make(map[string]string),
		issued:    make(map[string]string),
		refreshOK: true,
		failures:  make(map[string]failure),
		hits:      make(map[string]int),
	}

	router := server.NewBasicRouter()
	router.Use(
		server.Logging(shared.WithLogger(NewTestLogger(t), "fake", "backend")),
		server.CountRequests(&fb.requests),
		server.RequireBearer(fb.validToken, "/auth/login", "/auth/register", "/auth/refresh"),
	)

	fb.route(router, http.MethodPost, "/auth/register", fb.register)
	fb.route(router, http.MethodPost, "/auth/login", fb.login)
	fb.route(router, http.MethodPost, "/auth/refresh", fb.refresh)
	fb.route(router, http.MethodPost, "/auth/logout", fb.logout)
	fb.route(router, http.MethodGet, "/auth/profile", fb.profile)
	fb.route(router, http.MethodGet, "/anime/list", fb.list)
	fb.route(router, http.MethodPost, "/anime/add", fb.add)
	fb.route(router, http.MethodPatch, "/anime/status/{id}", fb.updateStatus)
	fb.route(router, http.MethodDelete, "/anime/delete/{id}", fb.delete)

	fb.Server = httptest.NewServer(router)
	t.Cleanup(fb.Server.Close)
	return fb
}

// URL is the server's base URL.
func (fb *FakeBackend) URL() string { return fb.Server.URL }

// Requests counts every request that reached the server.
func (fb *FakeBackend) Requests() int { return int(fb.requests.Load()) }

// Refreshes counts POST /auth/refresh calls.
func (fb *FakeBackend) Refreshes() int { return int(fb.refreshes.Load()) }

// Hits counts requests handled by the route registered as "METHOD pattern".
func (fb *FakeBackend) Hits(route string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.hits[route]
}

// AddUser registers an account directly.
func (fb *FakeBackend) AddUser(email, password, username string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.users[email] = &fakeUser{ID: shared.GenerateID(), Email: email, Password: password, Username: username}
}

// IssueToken returns a valid access token for the user with email.
func (fb *FakeBackend) IssueToken(email string) string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.issueLocked(email)
}

// ExpireTokens invalidates every access token issued so far.
func (fb *FakeBackend) ExpireTokens() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.valid = make(map[string]string)
}

// SetRefreshOK controls whether POST /auth/refresh succeeds.
func (fb *FakeBackend) SetRefreshOK(ok bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.refreshOK = ok
}

// Seed replaces the tracked list.
func (fb *FakeBackend) Seed(items ...models.TrackedItem) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.items = append([]models.TrackedItem(nil), items...)
}

// Items returns the server-side list.
func (fb *FakeBackend) Items() []models.TrackedItem {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append(make([]models.TrackedItem, 0, len(fb.items)), fb.items...)
}

// LastAdd returns the decoded body of the most recent POST /anime/add.
func (fb *FakeBackend) LastAdd() map[string]any {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.lastAdd
}

// Fail forces the route registered as "METHOD pattern" to answer status with an optional
// error message. A zero status clears the failure.
func (fb *FakeBackend) Fail(route string, status int, msg string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if status == 0 {
		delete(fb.failures, route)
		return
	}
	fb.failures[route] = failure{status: status, msg: msg}
}

func (fb *FakeBackend) route(router *server.BasicRouter, method, pattern string, fn http.HandlerFunc) {
	key := method + " " + pattern
	router.HandleFunc(method, pattern, func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		fb.hits[key]++
		f, failing := fb.failures[key]
		fb.mu.Unlock()

		if failing {
			if f.msg == "" {
				w.WriteHeader(f.status)
				return
			}
			server.WriteError(w, f.status, f.msg)
			return
		}
		fn(w, r)
	})
}

func (fb *FakeBackend) validToken(token string) bool {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	_, ok := fb.valid[token]
	return ok
}

func (fb *FakeBackend) issueLocked(email string) string {
	fb.seq++
	token := fmt.Sprintf("tok-%d", fb.seq)
	fb.valid[token] = email
	fb.issued[token] = email
	return token
}

func (fb *FakeBackend) userFor(r *http.Request) *fakeUser {
	token, _ := server.BearerToken(r)
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.users[fb.valid[token]]
}

func (fb *FakeBackend) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" || body.Password == "" {
		server.WriteError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	fb.mu.Lock()
	_, exists := fb.users[body.Email]
	fb.mu.Unlock()
	if exists {
		server.WriteError(w, http.StatusConflict, "User already registered")
		return
	}

	fb.AddUser(body.Email, body.Password, body.Username)
	server.WriteJSON(w, http.StatusCreated, map[string]string{"message": "Registration successful"})
}

func (fb *FakeBackend) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		server.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()

	u, ok := fb.users[body.Email]
	if !ok || u.Password != body.Password {
		server.WriteError(w, http.StatusUnauthorized, "Invalid login credentials")
		return
	}

	token := fb.issueLocked(u.Email)
	server.WriteJSON(w, http.StatusOK, map[string]any{
		"token":         token,
		"refresh_token": "refresh-" + token,
		"expires_in":    3600,
	})
}

func (fb *FakeBackend) refresh(w http.ResponseWriter, r *http.Request) {
	fb.refreshes.Add(1)
	token, _ := server.BearerToken(r)

	fb.mu.Lock()
	defer fb.mu.Unlock()

	email, known := fb.issued[token]
	if !known || !fb.refreshOK {
		server.WriteError(w, http.StatusUnauthorized, "Token refresh failed")
		return
	}

	next := fb.issueLocked(email)
	server.WriteJSON(w, http.StatusOK, map[string]any{"token": next, "expires_in": 3600})
}

func (fb *FakeBackend) logout(w http.ResponseWriter, r *http.Request) {
	token, _ := server.BearerToken(r)
	fb.mu.Lock()
	delete(fb.valid, token)
	fb.mu.Unlock()
	server.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (fb *FakeBackend) profile(w http.ResponseWriter, r *http.Request) {
	u := fb.userFor(r)
	if u == nil {
		server.WriteJSON(w, http.StatusOK, models.Profile{})
		return
	}
	server.WriteJSON(w, http.StatusOK, models.Profile{ID: u.ID, Username: u.Username, Email: u.Email})
}

func (fb *FakeBackend) list(w http.ResponseWriter, r *http.Request) {
	server.WriteJSON(w, http.StatusOK, fb.Items())
}

func (fb *FakeBackend) add(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		server.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	item := models.TrackedItem{}
	item.Name, _ = body["name"].(string)
	item.ImageURL, _ = body["image_url"].(string)
	if status, ok := body["status"].(string); ok {
		item.Status = models.Status(status)
	}
	if malID, ok := body["mal_id"].(float64); ok {
		item.ExternalID = int(malID)
	}
	if score, ok := body["vote_average"].(float64); ok {
		item.Rating = &score
	}
	if genres, ok := body["genres"].([]any); ok {
		for i, g := range genres {
			if m, ok := g.(map[string]any); ok {
				if i > 0 {
					item.Genres += ", "
				}
				name, _ := m["name"].(string)
				item.Genres += name
			}
		}
	}

	fb.mu.Lock()
	fb.lastAdd = body
	for _, existing := range fb.items {
		if existing.ExternalID == item.ExternalID {
			fb.mu.Unlock()
			server.WriteError(w, http.StatusConflict, "Anime already in your list")
			return
		}
	}
	fb.nextID++
	item.ID = "item-" + strconv.Itoa(fb.nextID)
	fb.items = append(fb.items, item)
	fb.mu.Unlock()

	server.WriteJSON(w, http.StatusCreated, item)
}

func (fb *FakeBackend) updateStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		server.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id := r.PathValue("id")
	fb.mu.Lock()
	defer fb.mu.Unlock()

	for i := range fb.items {
		if fb.items[i].ID == id {
			fb.items[i].Status = models.Status(body.Status)
			server.WriteJSON(w, http.StatusOK, fb.items[i])
			return
		}
	}
	server.WriteError(w, http.StatusNotFound, "Anime not found")
}

func (fb *FakeBackend) delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	fb.mu.Lock()
	defer fb.mu.Unlock()

	for i := range fb.items {
		if fb.items[i].ID == id {
			fb.items = append(fb.items[:i], fb.items[i+1:]...)
			server.WriteJSON(w, http.StatusOK, map[string]string{"message": "Anime deleted"})
			return
		}
	}
	server.WriteError(w, http.StatusNotFound, "Anime not found")
}
