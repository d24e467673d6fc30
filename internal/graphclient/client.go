// Package graphclient calls the graph service over HTTP to read a user's
// first-degree connections.
package graphclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/linkedge-backend/pkg/config"
)

const (
	firstDegreePath             = "/api/v1/connections/first-degree"
	defaultUserHeader           = "X-User-Id"
	defaultTimeout              = 3 * time.Second
	responseBodyReadLimit int64 = 1024
)

var errBaseURLRequired = errors.New("graph service base url is required")

// Person is one first-degree connection.
type Person struct {
	UserID uuid.UUID `json:"userId"`
	Name   string    `json:"name"`
}

// Lookup is the read surface consumers depend on.
type Lookup interface {
	FirstDegreeConnections(ctx context.Context, userID uuid.UUID) ([]Person, error)
}

// TransientError marks a failure worth retrying: timeouts, network errors,
// 5xx and 429 responses.
type TransientError struct {
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("graph service transient failure (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("graph service transient failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err carries a *TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Client is the HTTP implementation of Lookup.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userHeader string
	timeout    time.Duration
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout bounds every lookup.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithUserHeader overrides the header carrying the user id.
func WithUserHeader(header string) Option {
	return func(c *Client) {
		if h := strings.TrimSpace(header); h != "" {
			c.userHeader = h
		}
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	client := &Client{
		baseURL:    trimmed,
		userHeader: defaultUserHeader,
		timeout:    defaultTimeout,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// NewFromConfig builds the HTTP client from configuration.
func NewFromConfig(cfg config.GraphClientConfig) (*Client, error) {
	return NewClient(cfg.BaseURL, WithTimeout(cfg.Timeout), WithUserHeader(cfg.UserHeader))
}

// FirstDegreeConnections returns the user's first-degree connections. An
// unknown user and an empty network both yield an empty slice.
func (c *Client) FirstDegreeConnections(ctx context.Context, userID uuid.UUID) ([]Person, error) {
	if userID == uuid.Nil {
		return nil, errors.New("user id is required")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+firstDegreePath, nil)
	if err != nil {
		return nil, fmt.Errorf("build first-degree request: %w", err)
	}
	req.Header.Set(c.userHeader, userID.String())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransientError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return []Person{}, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, &TransientError{StatusCode: resp.StatusCode, Err: errors.New(readSnippet(resp.Body))}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("first-degree lookup failed with status %d: %s", resp.StatusCode, readSnippet(resp.Body))
	}

	var body struct {
		Data []Person `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if ctx.Err() != nil {
			return nil, &TransientError{Err: err}
		}
		return nil, fmt.Errorf("decode first-degree response: %w", err)
	}
	if body.Data == nil {
		return []Person{}, nil
	}
	return body.Data, nil
}

func readSnippet(r io.Reader) string {
	msg, _ := io.ReadAll(io.LimitReader(r, responseBodyReadLimit))
	return strings.TrimSpace(string(msg))
}
