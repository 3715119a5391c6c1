package screening

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultCallTimeout = 30 * time.Second

	// responses larger than this are treated as malformed
	maxResponseBytes = 1 << 20
)

var (
	ErrNoTransactionID = errors.New("registration response has no transaction id")
	ErrMissingIMO      = errors.New("payload has no usable vessel imo")
)

// ProviderError describes a failed provider call. StatusCode is zero for transport failures.
type ProviderError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("screening provider %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("screening provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Provider is the upstream screening API.
type Provider interface {
	Register(ctx context.Context, imo string) (string, error)
	Transaction(ctx context.Context, transactionID string) (TransactionResponse, error)
}

type TransactionResponse struct {
	Objects []TransactionObject `json:"objects"`
}

type TransactionObject struct {
	ID              flexString    `json:"id"`
	ScreeningStatus flexString    `json:"screening_status"`
	OverallSeverity flexString    `json:"overall_severity"`
	ScreenResults   []CheckResult `json:"screen_results"`
}

type CheckResult struct {
	Check  flexString `json:"check"`
	Status flexString `json:"status"`
}

// flexString accepts JSON strings, numbers and booleans. null decodes to "".
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(b) == "true" || string(b) == "false" {
		*f = flexString(b)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = flexString(n.String())
	return nil
}

type ClientConfig struct {
	BaseURL     string
	APIKey      string
	Username    string
	CallTimeout time.Duration

	// requests per second shared by every session; 0 disables limiting
	RateLimit float64
	RateBurst int
}

// Client talks to the screening provider over HTTP.
// Each call is bounded by CallTimeout and waits on a shared rate limiter.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	username    string
	callTimeout time.Duration
	limiter     *rate.Limiter
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(cfg ClientConfig, opts ...Option) *Client {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	c := &Client{
		httpClient:  &http.Client{},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		username:    cfg.Username,
		callTimeout: cfg.CallTimeout,
		limiter:     limiter,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type registrationRequest struct {
	RegisteredName string `json:"registered_name"`
}

type registrationResponse struct {
	TransactionID flexString `json:"transaction_id"`
}

// Register enrols a vessel and returns the provider's transaction id.
func (c *Client) Register(ctx context.Context, imo string) (string, error) {
	body, err := json.Marshal(registrationRequest{RegisteredName: imo})
	if err != nil {
		return "", fmt.Errorf("encode registration: %w", err)
	}

	var out registrationResponse
	if err := c.do(ctx, "register", http.MethodPost, "/registration", nil, body, &out); err != nil {
		return "", err
	}

	id := strings.TrimSpace(string(out.TransactionID))
	if id == "" {
		return "", ErrNoTransactionID
	}
	return id, nil
}

// Transaction fetches the current state of a registration.
func (c *Client) Transaction(ctx context.Context, transactionID string) (TransactionResponse, error) {
	q := url.Values{}
	q.Set("id", transactionID)

	var out TransactionResponse
	if err := c.do(ctx, "poll", http.MethodGet, "/transaction", q, nil, &out); err != nil {
		return TransactionResponse{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, body []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return &ProviderError{Op: op, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	if q == nil {
		q = url.Values{}
	}
	q.Set("api_key", c.apiKey)
	q.Set("username", c.username)
	requestURL := c.baseURL + path + "?" + q.Encode()

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, requestURL, rdr)
	if err != nil {
		return &ProviderError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ProviderError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &ProviderError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ProviderError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(snippet(raw))}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &ProviderError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		return "empty response body"
	}
	return strconv.Quote(s)
}
