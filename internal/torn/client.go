package torn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	// BaseURL is the v2 API root
	BaseURL = "https://api.torn.com/v2"

	// maxPages bounds cursor pagination so a looping cursor cannot spin forever
	maxPages = 200
)

// ErrNotFound is returned when the API reports an unknown entity
var ErrNotFound = errors.New("torn: not found")

// APIError represents an error envelope returned with HTTP 200 or 4xx
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("torn API error %d: %s", e.Code, e.Message)
}

type errorEnvelope struct {
	Error *APIError `json:"error"`
}

// Client is a Torn API client with rate limiting
type Client struct {
	apiKey     string
	baseURL    string
	factionID  int64
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option customizes a Client
type Option func(*Client)

// WithBaseURL points the client at a different API root (used by tests)
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithRequestsPerMinute sets the client-side request budget
func WithRequestsPerMinute(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 5)
		}
	}
}

// NewClient creates a new Torn API client scoped to our own faction
func NewClient(apiKey string, factionID int64, opts ...Option) *Client {
	c := &Client{
		apiKey:    apiKey,
		baseURL:   BaseURL,
		factionID: factionID,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		// API allows 100 requests per minute per key; stay under it
		limiter: rate.NewLimiter(rate.Every(time.Minute/90), 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FactionID returns the faction the client acts for
func (c *Client) FactionID() int64 {
	return c.factionID
}

// doRequest performs an HTTP request with rate limiting
func (c *Client) doRequest(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "ApiKey "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	// Handle rate limiting (429)
	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		// Wait and retry once
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(1 * time.Second):
		}
		return c.httpClient.Do(req.Clone(ctx))
	}

	return resp, nil
}

// get performs a GET request against an absolute URL and decodes the JSON response
func (c *Client) get(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.doRequest(ctx, req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		if apiErr := parseError(body); apiErr != nil {
			return apiErr
		}
		return fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	// The API reports most errors inside a 200 response
	if apiErr := parseError(body); apiErr != nil {
		if apiErr.Code == 6 {
			return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
		}
		return apiErr
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func parseError(body []byte) *APIError {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		return nil
	}
	return env.Error
}

// endpoint builds an absolute URL from a path and query
func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// metadata is the cursor envelope attached to paginated responses
type metadata struct {
	Links struct {
		Next string `json:"next"`
		Prev string `json:"prev"`
	} `json:"links"`
}

// paginate follows next links starting at first. page decodes one body
// and reports how many items it held and the metadata block.
func (c *Client) paginate(ctx context.Context, first string, page func(raw json.RawMessage) (int, metadata, error)) error {
	next := first
	seen := make(map[string]bool)

	for i := 0; next != "" && i < maxPages; i++ {
		if seen[next] {
			return nil
		}
		seen[next] = true

		var raw json.RawMessage
		if err := c.get(ctx, next, &raw); err != nil {
			return err
		}

		n, meta, err := page(raw)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}

		next = meta.Links.Next
		// Cursor links may carry the key in the query; drop it, the header has it
		if next != "" {
			if u, err := url.Parse(next); err == nil {
				q := u.Query()
				q.Del("key")
				u.RawQuery = q.Encode()
				next = u.String()
			}
		}
	}

	return nil
}
