package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/anitrack/internal/session"
	"github.com/desertthunder/anitrack/internal/shared"
	"golang.org/x/oauth2"
)

const defaultBaseURL string = "http://localhost:5000"

// attempt tracks where a [Client.Request] is in the re-authentication protocol.
type attempt int

const (
	attemptSent    attempt = iota // original request sent
	attemptRetried                // refreshed and re-sent; a 401 here is final
)

// RequestOptions configures a single [Client.Request].
type RequestOptions struct {
	Method  string
	Body    []byte
	Headers map[string]string
	// SkipAuth sends the request without credentials and disables the refresh-and-retry path.
	SkipAuth bool
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// OK reports a 2xx status.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the body into v.
func (r *APIResponse) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ErrorMessage returns the server's "error" (or "message") field, if present.
func (r *APIResponse) ErrorMessage() string {
	data, ok := r.JSONData.(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range []string{"error", "message"} {
		if msg, ok := data[key].(string); ok && msg != "" {
			return msg
		}
	}
	return ""
}

// Err converts a non-2xx response into an [*shared.APIError]. It returns nil for 2xx.
func (r *APIResponse) Err() error {
	if r.OK() {
		return nil
	}
	return &shared.APIError{StatusCode: r.StatusCode, Message: r.ErrorMessage()}
}

// refreshResponse is the body of a successful POST /auth/refresh (and /auth/login).
type refreshResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (r refreshResponse) oauthToken() *oauth2.Token {
	tok := &oauth2.Token{AccessToken: r.Token, RefreshToken: r.RefreshToken, TokenType: "Bearer"}
	if r.ExpiresIn > 0 {
		tok.ExpiresIn = r.ExpiresIn
		tok.Expiry = time.Now().Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return tok
}

// Client is the authenticated request client for the backend REST API.
//
// Every request carries the current bearer token from the [session.Store]. A 401 triggers
// at most one token refresh and one retry of the identical request.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      *session.Store
	logger     *log.Logger

	// serializes refreshes so concurrent 401s share one
	refreshMu sync.Mutex
}

// NewClient creates a backend [Client]. store must not be nil.
func NewClient(baseURL string, httpClient *http.Client, store *session.Store, logger *log.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		store:      store,
		logger:     logger,
	}
}

// Request sends a request to endpoint (a path relative to the base URL).
//
// Non-2xx statuses are returned as responses, not errors. Network failures wrap
// [shared.ErrAPIRequest] and are never retried.
func (c *Client) Request(ctx context.Context, endpoint string, opts RequestOptions) (*APIResponse, error) {
	if opts.Method == "" {
		opts.Method = http.MethodGet
	}

	tok, gen := c.store.Token()
	state := attemptSent
	for {
		resp, err := c.send(ctx, endpoint, opts, tok)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusUnauthorized || opts.SkipAuth || state == attemptRetried {
			return resp, nil
		}

		next, ok := c.reauthenticate(ctx, gen)
		if !ok {
			c.logger.Debug("re-authentication failed, returning original response", "endpoint", endpoint)
			return resp, nil
		}

		c.logger.Debug("retrying request with refreshed token", "endpoint", endpoint)
		tok, state = next, attemptRetried
	}
}

// Get performs an authenticated GET request.
func (c *Client) Get(ctx context.Context, path string) (*APIResponse, error) {
	return c.Request(ctx, path, RequestOptions{})
}

// Post performs an authenticated POST request with the given JSON data.
func (c *Client) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return c.Request(ctx, path, RequestOptions{Method: http.MethodPost, Body: data})
}

// Refresh forces a token refresh for the active session.
func (c *Client) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	tok, _ := c.store.Token()
	if tok == nil {
		return shared.ErrNotAuthenticated
	}
	return c.refresh(ctx, tok)
}

// reauthenticate obtains a token newer than generation gen. When another request already
// refreshed, the newer token is reused and no refresh request is made.
func (c *Client) reauthenticate(ctx context.Context, gen uint64) (*oauth2.Token, bool) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	tok, current := c.store.Token()
	if tok == nil {
		return nil, false
	}
	if current != gen {
		return tok, true
	}

	if err := c.refresh(ctx, tok); err != nil {
		c.logger.Warn("token refresh failed", "error", err)
		return nil, false
	}

	next, _ := c.store.Token()
	return next, next != nil
}

// refresh exchanges tok at POST /auth/refresh and stores the result. Callers hold refreshMu.
func (c *Client) refresh(ctx context.Context, tok *oauth2.Token) error {
	var body []byte
	if tok.RefreshToken != "" {
		body, _ = json.Marshal(map[string]string{"refresh_token": tok.RefreshToken})
	}

	resp, err := c.send(ctx, "/auth/refresh", RequestOptions{Method: http.MethodPost, Body: body}, tok)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}
	if !resp.OK() {
		return fmt.Errorf("%w: status %d", shared.ErrRefreshFailed, resp.StatusCode)
	}

	var payload refreshResponse
	if err := resp.Decode(&payload); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}
	if payload.Token == "" {
		return fmt.Errorf("%w: response missing token", shared.ErrRefreshFailed)
	}

	if err := c.store.Update(ctx, payload.oauthToken()); err != nil {
		if errors.Is(err, shared.ErrNotAuthenticated) {
			return fmt.Errorf("%w: session ended during refresh", shared.ErrRefreshFailed)
		}
		// in-memory token is already current
		c.logger.Warn("refreshed token not persisted", "error", err)
	}

	c.logger.Debug("token refreshed")
	return nil
}

// send performs exactly one HTTP round trip.
func (c *Client) send(ctx context.Context, endpoint string, opts RequestOptions, tok *oauth2.Token) (*APIResponse, error) {
	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if !opts.SkipAuth && tok != nil {
		tok.SetAuthHeader(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend request", "method", opts.Method, "endpoint", endpoint, "status", resp.StatusCode)
	return readResponse(resp)
}

func readResponse(resp *http.Response) (*APIResponse, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}

	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}
