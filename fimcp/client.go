package fimcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"fin_backend/core"
	"fin_backend/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client talks to the Fi-MCP provider for one subject. It owns the session
// state and lazily authenticates on first use.
//
// Thread-Safety:
//   - Client is safe for concurrent use.
//   - At most one live authentication attempt is in flight at a time;
//     concurrent callers block on the attempt and observe its result.
type Client struct {
	baseURL    string
	httpClient *http.Client
	fetchDelay time.Duration
	logger     *logging.Logger

	// authenticated is the lock-free fast path for EnsureAuthenticated.
	authenticated atomic.Bool

	// mu guards session and subject; Authenticate may re-point the client
	// at a different subject while fetches are in flight.
	mu      sync.Mutex
	subject string
	session Session
}

// ClientConfig holds configuration for the provider client.
type ClientConfig struct {
	// BaseURL is the provider root, e.g. https://fi-mcp.example.com.
	BaseURL string

	// Subject is the phone-number handle the provider keys data by.
	Subject string

	// FetchDelay is the pause between per-category fetches in FetchAll.
	FetchDelay time.Duration

	// HTTPClient performs all provider requests; its timeout bounds each call.
	HTTPClient *http.Client
}

// Common errors for provider operations.
var (
	// ErrNoSubject indicates no subject was configured; no session can be
	// constructed, synthetic or otherwise.
	ErrNoSubject = errors.New("fimcp: subject cannot be empty")

	// ErrNilHTTPClient indicates the HTTP client is nil.
	ErrNilHTTPClient = errors.New("fimcp: HTTP client cannot be nil")

	// ErrNilLogger indicates the logger is nil.
	ErrNilLogger = errors.New("fimcp: logger cannot be nil")
)

// authResponse is the provider's login response structure.
type authResponse struct {
	Success   bool   `json:"success"`
	Token     string `json:"token"`
	SessionID string `json:"sessionId"`
}

// NewClient creates a provider client. The subject may be empty only if set
// later through Authenticate.
func NewClient(cfg ClientConfig, logger *logging.Logger) (*Client, error) {
	if cfg.HTTPClient == nil {
		return nil, ErrNilHTTPClient
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		subject:    cfg.Subject,
		httpClient: cfg.HTTPClient,
		fetchDelay: cfg.FetchDelay,
		logger:     logger.Named("fimcp"),
	}, nil
}

// Subject returns the configured subject handle.
func (c *Client) Subject() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subject
}

// Session returns a copy of the current session state.
func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// EnsureAuthenticated establishes a session if none exists. Idempotent and
// safe to call concurrently: the common already-authenticated case is a
// single atomic read, and only one login exchange runs at a time.
//
// The client favors availability over authentication strictness: when the
// provider is unreachable or answers with an unexpected shape, a synthetic
// session is fabricated locally and the state is AuthDegraded. AuthFailed is
// returned only when no subject is configured.
func (c *Client) EnsureAuthenticated(ctx context.Context) AuthState {
	if c.authenticated.Load() {
		c.mu.Lock()
		state := c.session.State
		c.mu.Unlock()
		return state
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-check under the lock: another caller may have finished the login
	// while we waited.
	if c.authenticated.Load() {
		return c.session.State
	}

	if c.subject == "" {
		return AuthFailed
	}

	session, err := c.login(ctx, c.subject)
	if err != nil {
		// Degraded fallback: fabricate a session so the pipeline keeps
		// operating. The degraded state is surfaced for observability.
		session = c.syntheticSession(c.subject)
		c.logger.Warn("provider login degraded to synthetic session",
			zap.String("subject", c.subject),
			zap.String("reason", err.Error()),
		)
	} else {
		c.logger.Info("provider login succeeded",
			zap.String("subject", c.subject),
			zap.String("session_id", session.SessionID),
		)
	}

	c.session = session
	c.authenticated.Store(true)
	return session.State
}

// Authenticate performs an explicit login for the given subject. Unlike the
// lazy path, failures are reported rather than converted into a synthetic
// session: callers of the explicit path are expected to react to them.
// Prior session state is left untouched on failure.
func (c *Client) Authenticate(ctx context.Context, subject string) (Session, error) {
	if subject == "" {
		return Session{}, ErrNoSubject
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	session, err := c.login(ctx, subject)
	if err != nil {
		return Session{}, core.ErrAuthFailed(subject, err.Error())
	}

	c.subject = subject
	c.session = session
	c.authenticated.Store(true)
	return session, nil
}

// login performs the provider auth exchange. Caller holds c.mu.
func (c *Client) login(ctx context.Context, subject string) (Session, error) {
	body, err := json.Marshal(map[string]string{"phoneNumber": subject})
	if err != nil {
		return Session{}, fmt.Errorf("failed to encode auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth", bytes.NewReader(body))
	if err != nil {
		return Session{}, fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Session{}, fmt.Errorf("auth returned HTTP %d: %s", resp.StatusCode, string(text))
	}

	var auth authResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return Session{}, fmt.Errorf("auth response malformed: %w", err)
	}
	if !auth.Success || auth.Token == "" || auth.SessionID == "" {
		return Session{}, fmt.Errorf("auth response incomplete (success=%t)", auth.Success)
	}

	return Session{
		SessionID: auth.SessionID,
		AuthToken: auth.Token,
		Subject:   subject,
		State:     AuthOK,
	}, nil
}

// syntheticSession derives a deterministic session from the subject alone.
// Every process fabricating a session for the same subject derives the same
// identity, which keeps stored records correlatable across restarts.
func (c *Client) syntheticSession(subject string) Session {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(subject))
	return Session{
		SessionID: "mcp-session-" + id.String(),
		AuthToken: "synthetic-" + id.String(),
		Subject:   subject,
		State:     AuthDegraded,
	}
}

// Fetch retrieves and normalizes one category. Transport errors and non-200
// statuses are absorbed into a success=false result; Fetch never returns a
// Go error so that multi-category aggregation is never aborted.
func (c *Client) Fetch(ctx context.Context, category Category) FetchResult {
	result := FetchResult{
		Category:  category,
		FetchedAt: time.Now().UTC(),
	}

	if state := c.EnsureAuthenticated(ctx); !state.Authenticated() {
		result.Error = "authentication failed"
		return result
	}

	payload, err := c.fetchPayload(ctx)
	if err != nil {
		result.Error = err.Error()
		c.logger.Warn("category fetch failed",
			zap.String("category", string(category)),
			zap.String("error", err.Error()),
		)
		return result
	}

	result.Success = true
	result.Payload = payload
	result.Metrics = Extract(category, payload)
	return result
}

// fetchPayload issues the provider data request with the bearer token
// attached when present.
func (c *Client) fetchPayload(ctx context.Context) (map[string]interface{}, error) {
	// Read subject and token under one lock so a concurrent re-login never
	// pairs one subject's handle with another's token.
	c.mu.Lock()
	subject := c.subject
	token := c.session.AuthToken
	c.mu.Unlock()

	endpoint := fmt.Sprintf("%s/mcp/test?phone=%s", c.baseURL, url.QueryEscape(subject))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create data request: %w", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("data request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("data request returned HTTP %d: %s", resp.StatusCode, string(text))
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("data response malformed: %w", err)
	}
	return payload, nil
}

// FetchAll sequentially fetches every category, pausing briefly between
// calls to avoid overwhelming the provider. A failure on one category never
// aborts the others; partial results are valid and expected.
func (c *Client) FetchAll(ctx context.Context) []FetchResult {
	categories := AllCategories()
	results := make([]FetchResult, 0, len(categories))

	for i, category := range categories {
		results = append(results, c.Fetch(ctx, category))

		if i < len(categories)-1 && c.fetchDelay > 0 {
			select {
			case <-time.After(c.fetchDelay):
			case <-ctx.Done():
				// Remaining categories become failed results so the
				// aggregate still covers every category.
				for _, rest := range categories[i+1:] {
					results = append(results, FetchResult{
						Category:  rest,
						Error:     ctx.Err().Error(),
						FetchedAt: time.Now().UTC(),
					})
				}
				return results
			}
		}
	}
	return results
}
