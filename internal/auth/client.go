package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrUnknownUser = errors.New("unknown user")

// Checker answers whether a user currently has a live session.
type Checker interface {
	IsLoggedIn(ctx context.Context, userID string) (bool, error)
}

// Client calls the authentication service.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	callTimeout time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(baseURL string, callTimeout time.Duration, opts ...Option) *Client {
	if callTimeout <= 0 {
		callTimeout = 5 * time.Second
	}
	c := &Client{
		httpClient:  &http.Client{},
		baseURL:     strings.TrimRight(baseURL, "/"),
		callTimeout: callTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type loggedInResponse struct {
	IsLoggedIn bool `json:"is_logged_in"`
}

// IsLoggedIn returns ErrUnknownUser when the service does not know userID.
func (c *Client) IsLoggedIn(ctx context.Context, userID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/users/%s/is-logged-in", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("create auth request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, ErrUnknownUser
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return false, fmt.Errorf("auth service returned status %d", resp.StatusCode)
	}

	var out loggedInResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&out); err != nil {
		return false, fmt.Errorf("decode auth response: %w", err)
	}
	return out.IsLoggedIn, nil
}
