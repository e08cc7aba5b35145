package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/anitrack/internal/models"
	"github.com/desertthunder/anitrack/internal/session"
	"github.com/desertthunder/anitrack/internal/shared"
)

type genreRef struct {
	Name string `json:"name"`
}

// addRequest is the body of POST /anime/add.
type addRequest struct {
	Name        string     `json:"name"`
	ImageURL    string     `json:"image_url"`
	VoteAverage *float64   `json:"vote_average"`
	Status      string     `json:"status"`
	Genres      []genreRef `json:"genres"`
	MalID       int        `json:"mal_id"`
}

func newAddRequest(anime models.SearchResult, status models.Status) addRequest {
	req := addRequest{
		Name:     anime.Title,
		ImageURL: anime.ImageURL,
		Status:   string(status),
		Genres:   make([]genreRef, 0, len(anime.Genres)),
		MalID:    anime.ExternalID,
	}
	if anime.Score != 0 {
		score := anime.Score
		req.VoteAverage = &score
	}
	for _, g := range anime.Genres {
		req.Genres = append(req.Genres, genreRef{Name: g})
	}
	return req
}

// BackendService provides typed operations over the backend REST API.
type BackendService struct {
	client *Client
	store  *session.Store
	logger *log.Logger
}

// NewBackendService creates a [BackendService] sharing the client's session store.
func NewBackendService(client *Client, logger *log.Logger) *BackendService {
	if logger == nil {
		logger = client.logger
	}
	return &BackendService{client: client, store: client.store, logger: logger}
}

// Client returns the underlying request client.
func (b *BackendService) Client() *Client {
	return b.client
}

// Register creates an account. The user logs in separately afterwards.
func (b *BackendService) Register(ctx context.Context, email, password, username string) error {
	body, err := json.Marshal(map[string]string{"email": email, "password": password, "username": username})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := b.client.Request(ctx, "/auth/register", RequestOptions{Method: http.MethodPost, Body: body, SkipAuth: true})
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	b.logger.Info("registered account", "username", username)
	return nil
}

// Login authenticates, starts a session and returns the user's profile.
func (b *BackendService) Login(ctx context.Context, email, password string) (*models.Profile, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := b.client.Request(ctx, "/auth/login", RequestOptions{Method: http.MethodPost, Body: body, SkipAuth: true})
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}

	var payload refreshResponse
	if err := resp.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}
	if payload.Token == "" {
		return nil, fmt.Errorf("%w: response missing token", shared.ErrAuthFailed)
	}

	tok := payload.oauthToken()
	profile, err := b.fetchProfile(ctx, RequestOptions{
		SkipAuth: true,
		Headers:  map[string]string{"Authorization": tok.Type() + " " + tok.AccessToken},
	})
	username := email
	if err != nil {
		b.logger.Warn("profile fetch after login failed", "error", err)
	} else if profile.Username != "" {
		username = profile.Username
	}

	if _, err := b.store.Begin(ctx, username, tok); err != nil {
		if !b.store.Active() {
			return nil, err
		}
		b.logger.Warn("session not persisted", "error", err)
	}

	if profile == nil {
		profile = &models.Profile{Username: username, Email: email}
	}
	return profile, nil
}

// Logout ends the session. The backend is notified on a best-effort basis and the ended
// credential is returned so callers can clean up session-scoped state.
func (b *BackendService) Logout(ctx context.Context) (session.Credential, error) {
	if !b.store.Active() {
		return session.Credential{}, shared.ErrNotAuthenticated
	}

	resp, err := b.client.Request(ctx, "/auth/logout", RequestOptions{Method: http.MethodPost})
	switch {
	case err != nil:
		b.logger.Warn("logout request failed", "error", err)
	case !resp.OK():
		b.logger.Warn("logout rejected by backend", "status", resp.StatusCode)
	}

	return b.store.End(ctx)
}

// Profile fetches the authenticated user's profile.
func (b *BackendService) Profile(ctx context.Context) (*models.Profile, error) {
	if !b.store.Active() {
		return nil, shared.ErrNotAuthenticated
	}
	return b.fetchProfile(ctx, RequestOptions{})
}

func (b *BackendService) fetchProfile(ctx context.Context, opts RequestOptions) (*models.Profile, error) {
	resp, err := b.client.Request(ctx, "/auth/profile", opts)
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var profile models.Profile
	if err := resp.Decode(&profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// List fetches the tracked list.
//
// Entries with an unknown status are dropped and duplicate ids collapse to the first
// occurrence, each with a logged warning.
func (b *BackendService) List(ctx context.Context) ([]models.TrackedItem, error) {
	if !b.store.Active() {
		return nil, shared.ErrNotAuthenticated
	}

	resp, err := b.client.Get(ctx, "/anime/list")
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var raw []models.TrackedItem
	if err := resp.Decode(&raw); err != nil {
		return nil, err
	}
	return b.sanitize(raw), nil
}

func (b *BackendService) sanitize(raw []models.TrackedItem) []models.TrackedItem {
	items := make([]models.TrackedItem, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))

	for _, item := range raw {
		if !item.Status.Valid() {
			b.logger.Warn("dropping list entry with unknown status", "id", item.ID, "status", item.Status)
			continue
		}
		if _, dup := seen[item.ID]; dup {
			b.logger.Warn("dropping duplicate list entry", "id", item.ID)
			continue
		}
		seen[item.ID] = struct{}{}
		items = append(items, item)
	}
	return items
}

// Add puts a catalog title on the list.
func (b *BackendService) Add(ctx context.Context, anime models.SearchResult, status models.Status) error {
	if !b.store.Active() {
		return shared.ErrNotAuthenticated
	}
	if !status.Valid() {
		return fmt.Errorf("%w: %q", shared.ErrInvalidStatus, status)
	}

	body, err := json.Marshal(newAddRequest(anime, status))
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := b.client.Post(ctx, "/anime/add", body)
	if err != nil {
		return err
	}
	return checkResponse(resp)
}

// UpdateStatus changes the status of entry id.
func (b *BackendService) UpdateStatus(ctx context.Context, id string, status models.Status) error {
	if !b.store.Active() {
		return shared.ErrNotAuthenticated
	}
	if !status.Valid() {
		return fmt.Errorf("%w: %q", shared.ErrInvalidStatus, status)
	}

	body, err := json.Marshal(map[string]string{"status": string(status)})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := b.client.Request(ctx, "/anime/status/"+url.PathEscape(id), RequestOptions{Method: http.MethodPatch, Body: body})
	if err != nil {
		return err
	}
	return checkResponse(resp)
}

// Delete removes entry id.
func (b *BackendService) Delete(ctx context.Context, id string) error {
	if !b.store.Active() {
		return shared.ErrNotAuthenticated
	}

	resp, err := b.client.Request(ctx, "/anime/delete/"+url.PathEscape(id), RequestOptions{Method: http.MethodDelete})
	if err != nil {
		return err
	}
	return checkResponse(resp)
}

// checkResponse maps a final response to an error. A 401 that survived the client's
// retry protocol means the session is gone.
func checkResponse(resp *APIResponse) error {
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %w", shared.ErrSessionExpired, resp.Err())
	}
	return resp.Err()
}

// IsSessionError reports whether err requires the user to log in again.
func IsSessionError(err error) bool {
	return errors.Is(err, shared.ErrSessionExpired) || errors.Is(err, shared.ErrNotAuthenticated)
}
