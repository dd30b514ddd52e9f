package agentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/parleyhq/parley"
)

// Interface compliance check.
var _ parley.Backend = (*Client)(nil)

// Client implements [parley.Backend] for the agent service's ask endpoint.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	idleTimeout time.Duration
	logger      *log.Logger
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAPIKey sets the bearer token sent with each request. Empty means no
// authentication, for local deployments.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithIdleTimeout sets how long the stream may go without a completed frame
// before it is torn down as a transport failure. Zero disables the watchdog.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Client) { c.idleTimeout = d }
}

// WithLogger sets the logger used for skipped malformed frames and stream
// teardown. Defaults to a silent logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a Client for the agent service at baseURL. An empty baseURL
// selects the local default.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     baseURL,
		httpClient:  http.DefaultClient,
		idleTimeout: defaultIdleTimeout,
		logger:      silentLogger(),
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Ask sends one user turn and returns a [parley.Stream] of decoded events
// from the chunked response body.
func (c *Client) Ask(ctx context.Context, req parley.Request) (parley.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("agentapi: %w", err)
	}

	body, err := json.Marshal(apiRequest{Input: req.Input, SessionID: req.SessionID})
	if err != nil {
		return nil, fmt.Errorf("agentapi: %w", err)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+askPath, bytes.NewReader(body))
	if err != nil {
		cancel(nil)
		return nil, fmt.Errorf("agentapi: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel(nil)
		return nil, fmt.Errorf("agentapi: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		cancel(nil)
		return nil, parseHTTPError(resp)
	}

	return newStream(ctx, cancel, resp.Body, c.idleTimeout, c.logger), nil
}

func parseHTTPError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("agentapi: HTTP %d (failed to read body: %w)", resp.StatusCode, err)
	}
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Message == "" {
		return fmt.Errorf("agentapi: HTTP %d: %s", resp.StatusCode, string(body))
	}
	return fmt.Errorf("agentapi: HTTP %d: %s", resp.StatusCode, apiErr.Message)
}

// silentLogger discards everything; callers opt in to logging explicitly.
func silentLogger() *log.Logger {
	return log.New(io.Discard)
}
