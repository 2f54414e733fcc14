// Package client is a typed Go client for the product catalog API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultBaseURL   = "http://localhost:3000/api"
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "product-catalog-client/1.0"

	userMsgNetwork  = "Cannot connect to server. Please make sure the backend is running on port 3000."
	userMsgServer   = "Server error. Please check the backend logs."
	userMsgNotFound = "API endpoint not found. Check backend routes."
)

// Product mirrors the API's product representation.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NewProduct is the payload for Create.
type NewProduct struct {
	Name        string          `json:"name"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
}

// ProductUpdate is the payload for Update. Nil fields are left unchanged by the server.
type ProductUpdate struct {
	Name        *string          `json:"name,omitempty"`
	Image       *string          `json:"image,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Description *string          `json:"description,omitempty"`
}

type HealthStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Port      any    `json:"port"`
	Timestamp string `json:"timestamp"`
}

// APIError is returned for non-2xx responses and transport failures.
type APIError struct {
	// StatusCode is 0 when no response was received.
	StatusCode int
	// Message is the server's message, or the transport error text.
	Message string
	// UserMessage is a hint suitable for showing to an end user.
	UserMessage string
	Err         error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return "product api: " + e.Message
	}
	return fmt.Sprintf("product api: status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// IsNetworkError reports whether the request never got a response.
func (e *APIError) IsNetworkError() bool { return e.StatusCode == 0 }

type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the request timeout on a copy of the configured HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a client for the API rooted at baseURL, e.g. http://localhost:3000/api.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type productEnvelope struct {
	Success bool     `json:"success"`
	Product *Product `json:"product"`
}

func (c *Client) List(ctx context.Context) ([]Product, error) {
	products := make([]Product, 0)
	if err := c.do(ctx, http.MethodGet, "/products", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) Get(ctx context.Context, id int64) (*Product, error) {
	return c.doProduct(ctx, http.MethodGet, productPath(id), nil)
}

func (c *Client) Create(ctx context.Context, p NewProduct) (*Product, error) {
	return c.doProduct(ctx, http.MethodPost, "/products", p)
}

func (c *Client) Update(ctx context.Context, id int64, u ProductUpdate) (*Product, error) {
	return c.doProduct(ctx, http.MethodPut, productPath(id), u)
}

// Delete removes a product and returns the deleted record.
func (c *Client) Delete(ctx context.Context, id int64) (*Product, error) {
	return c.doProduct(ctx, http.MethodDelete, productPath(id), nil)
}

func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.do(ctx, http.MethodGet, "/health", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func productPath(id int64) string {
	return "/products/" + strconv.FormatInt(id, 10)
}

func (c *Client) doProduct(ctx context.Context, method, path string, body any) (*Product, error) {
	var env productEnvelope
	if err := c.do(ctx, method, path, body, &env); err != nil {
		return nil, err
	}
	if env.Product == nil {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "response has no product"}
	}
	return env.Product, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	slog.Debug("api request", slog.String("method", method), slog.String("url", req.URL.String()))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Message: err.Error(), UserMessage: userMsgNetwork, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, payload)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func newAPIError(status int, payload []byte) *APIError {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(payload, &body)

	msg := body.Message
	if msg == "" {
		msg = body.Error
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	apiErr := &APIError{StatusCode: status, Message: msg}
	switch status {
	case http.StatusInternalServerError:
		apiErr.UserMessage = userMsgServer
	case http.StatusNotFound:
		apiErr.UserMessage = userMsgNotFound
	}
	return apiErr
}

// AsAPIError unwraps err into an *APIError when possible.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
