package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dgellow/wishlist-front/internal/ioutil"
	"github.com/dgellow/wishlist-front/internal/log"
	"github.com/dgellow/wishlist-front/internal/urlutil"
)

const maxResponseBytes = 1 << 20

// Endpoint names label metrics and failures
const (
	EndpointHello        = "hello"
	EndpointGetUser      = "get_user"
	EndpointCreateUser   = "create_user"
	EndpointAuthenticate = "authenticate"
	EndpointSecured      = "secured"
)

// Recorder receives request metrics. *metrics.Collector satisfies it.
type Recorder interface {
	RecordRequest(method, endpoint string, statusCode int, d time.Duration)
	RecordFailure(kind string)
}

type noopRecorder struct{}

func (noopRecorder) RecordRequest(string, string, int, time.Duration) {}
func (noopRecorder) RecordFailure(string)                             {}

// Config configures the API client
type Config struct {
	BaseURL string
	Timeout time.Duration
	Metrics Recorder
}

// Response is a fully read API response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON decodes the body into v
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}

// Client is the authorizing API client. Every request goes through Transport
// on the way out and through failure classification on the way back.
type Client struct {
	baseURL    string
	httpClient *http.Client
	hooks      *hookRegistry
	metrics    Recorder
}

// New creates a client over http.DefaultTransport
func New(cfg Config, creds Credentials) (*Client, error) {
	return NewWith(cfg, creds, nil)
}

// NewWith creates a client whose interceptor wraps base
func NewWith(cfg Config, creds Credentials, base http.RoundTripper) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := urlutil.JoinPath(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	recorder := cfg.Metrics
	if recorder == nil {
		recorder = noopRecorder{}
	}

	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &Transport{Base: base, Credentials: creds},
		},
		hooks:   newHookRegistry(),
		metrics: recorder,
	}, nil
}

// OnFailure registers hook for failures of the given kind. Hooks run in
// registration order on the goroutine that issued the request.
func (c *Client) OnFailure(kind Kind, hook Hook) {
	c.hooks.add(kind, hook)
}

// Hello calls GET /hello
func (c *Client) Hello(ctx context.Context) (*Response, error) {
	return c.do(ctx, http.MethodGet, EndpointHello, nil, "hello")
}

// GetUser calls GET /user/{userID}
func (c *Client) GetUser(ctx context.Context, userID string) (*Response, error) {
	return c.do(ctx, http.MethodGet, EndpointGetUser, nil, "user", userID)
}

// CreateUser calls POST /user/{firstName}/{lastName}
func (c *Client) CreateUser(ctx context.Context, firstName, lastName string) (*Response, error) {
	return c.do(ctx, http.MethodPost, EndpointCreateUser, nil, "user", firstName, lastName)
}

type authenticateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Authenticate calls POST /authenticate with the credentials as JSON
func (c *Client) Authenticate(ctx context.Context, username, password string) (*Response, error) {
	return c.do(ctx, http.MethodPost, EndpointAuthenticate, authenticateRequest{
		Username: username,
		Password: password,
	}, "authenticate")
}

// GetSecured calls GET /secured/
func (c *Client) GetSecured(ctx context.Context) (*Response, error) {
	return c.do(ctx, http.MethodGet, EndpointSecured, nil, "secured/")
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload any, segments ...string) (*Response, error) {
	target, err := urlutil.JoinPath(c.baseURL, segments...)
	if err != nil {
		return nil, fmt.Errorf("building %s URL: %w", endpoint, err)
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s request: %w", endpoint, err)
		}
		body = bytes.NewReader(data)
	}

	reqCtx, sent := withSentBearer(ctx)
	req, err := http.NewRequestWithContext(reqCtx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordRequest(method, endpoint, 0, time.Since(start))
		c.intercept(ctx, Failure{
			Kind:     KindNetwork,
			Method:   method,
			Endpoint: endpoint,
			URL:      target,
			Bearer:   sent.token,
			Err:      err,
		})
		return nil, err
	}
	defer resp.Body.Close()

	data, readErr := ioutil.ReadAll(resp.Body, maxResponseBytes)
	c.metrics.RecordRequest(method, endpoint, resp.StatusCode, time.Since(start))

	out := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respErr := &ResponseError{
			Method:     method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Response:   out,
			BodyErr:    readErr,
		}
		c.intercept(ctx, Failure{
			Kind:       respErr.Kind(),
			Method:     method,
			Endpoint:   endpoint,
			URL:        target,
			StatusCode: resp.StatusCode,
			Bearer:     sent.token,
			Err:        respErr,
		})
		return nil, respErr
	}

	// A 2xx whose body never arrived is as good as no response
	if readErr != nil {
		err := fmt.Errorf("reading %s response: %w", endpoint, readErr)
		c.intercept(ctx, Failure{
			Kind:       KindNetwork,
			Method:     method,
			Endpoint:   endpoint,
			URL:        target,
			StatusCode: resp.StatusCode,
			Bearer:     sent.token,
			Err:        err,
		})
		return nil, err
	}

	log.LogTraceWithFields("client", "Request completed", map[string]any{
		"method":      method,
		"endpoint":    endpoint,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return out, nil
}

// intercept is the response-side half of the interceptor: it observes,
// it never suppresses
func (c *Client) intercept(ctx context.Context, f Failure) {
	c.metrics.RecordFailure(string(f.Kind))

	fields := map[string]any{
		"kind":   string(f.Kind),
		"method": f.Method,
		"url":    f.URL,
	}
	if f.StatusCode != 0 {
		fields["status"] = f.StatusCode
	}
	switch {
	case f.Kind == KindNetwork && f.StatusCode != 0:
		fields["error"] = f.Err.Error()
		log.LogWarnWithFields("client", "Response body could not be read", fields)
	case f.Kind == KindNetwork:
		fields["error"] = f.Err.Error()
		log.LogWarnWithFields("client", "Request failed without a response", fields)
	default:
		log.LogDebugWithFields("client", "Request failed", fields)
	}

	c.hooks.dispatch(ctx, f)
}
