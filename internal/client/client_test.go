package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgellow/wishlist-front/internal/ioutil"
)

type recordedRequest struct {
	Method      string
	Path        string
	ContentType string
	Body        []byte
}

type fakeRecorder struct {
	mu       sync.Mutex
	requests []string
	failures []string
}

func (f *fakeRecorder) RecordRequest(method, endpoint string, statusCode int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, method+" "+endpoint)
}

func (f *fakeRecorder) RecordFailure(kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, kind)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *fakeRecorder) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	recorder := &fakeRecorder{}
	c, err := New(Config{BaseURL: srv.URL + "/api", Timeout: time.Second, Metrics: recorder}, &fakeCredentials{})
	require.NoError(t, err)
	return c, recorder
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.EqualError(t, err, "base URL is required")

	_, err = New(Config{BaseURL: "://nope"}, nil)
	assert.ErrorContains(t, err, "invalid base URL")
}

func TestClient_Endpoints(t *testing.T) {
	tests := []struct {
		name       string
		call       func(ctx context.Context, c *Client) (*Response, error)
		wantMethod string
		wantPath   string
		wantBody   map[string]string
	}{
		{
			name:       "hello",
			call:       func(ctx context.Context, c *Client) (*Response, error) { return c.Hello(ctx) },
			wantMethod: http.MethodGet,
			wantPath:   "/api/hello",
		},
		{
			name:       "get_user",
			call:       func(ctx context.Context, c *Client) (*Response, error) { return c.GetUser(ctx, "42") },
			wantMethod: http.MethodGet,
			wantPath:   "/api/user/42",
		},
		{
			name: "create_user",
			call: func(ctx context.Context, c *Client) (*Response, error) {
				return c.CreateUser(ctx, "Ada", "Lovelace")
			},
			wantMethod: http.MethodPost,
			wantPath:   "/api/user/Ada/Lovelace",
		},
		{
			name: "create_user_escapes_segments",
			call: func(ctx context.Context, c *Client) (*Response, error) {
				return c.CreateUser(ctx, "Mary Ann", "a/b")
			},
			wantMethod: http.MethodPost,
			wantPath:   "/api/user/Mary%20Ann/a%2Fb",
		},
		{
			name: "authenticate",
			call: func(ctx context.Context, c *Client) (*Response, error) {
				return c.Authenticate(ctx, "alice", "secret")
			},
			wantMethod: http.MethodPost,
			wantPath:   "/api/authenticate",
			wantBody:   map[string]string{"username": "alice", "password": "secret"},
		},
		{
			name:       "secured",
			call:       func(ctx context.Context, c *Client) (*Response, error) { return c.GetSecured(ctx) },
			wantMethod: http.MethodGet,
			wantPath:   "/api/secured/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got recordedRequest
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				got = recordedRequest{
					Method:      r.Method,
					Path:        r.URL.EscapedPath(),
					ContentType: r.Header.Get("Content-Type"),
					Body:        body,
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"ok":true}`))
			})

			resp, err := tt.call(context.Background(), c)
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.JSONEq(t, `{"ok":true}`, string(resp.Body))

			assert.Equal(t, tt.wantMethod, got.Method)
			assert.Equal(t, tt.wantPath, got.Path)
			if tt.wantBody != nil {
				assert.Equal(t, "application/json", got.ContentType)
				var body map[string]string
				require.NoError(t, json.Unmarshal(got.Body, &body))
				assert.Equal(t, tt.wantBody, body)
			} else {
				assert.Empty(t, got.Body)
			}
		})
	}
}

func TestResponse_JSON(t *testing.T) {
	resp := &Response{Body: []byte(`{"token":"abc123"}`)}
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, resp.JSON(&out))
	assert.Equal(t, "abc123", out.Token)

	bad := &Response{Body: []byte(`<html>`)}
	assert.ErrorContains(t, bad.JSON(&out), "decoding response body")
}

func TestClient_FailureClassification(t *testing.T) {
	tests := []struct {
		status   int
		wantKind Kind
	}{
		{http.StatusUnauthorized, KindUnauthorized},
		{http.StatusNotFound, KindNotFound},
		{http.StatusInternalServerError, KindServerError},
		{http.StatusBadGateway, KindServerError},
		{http.StatusForbidden, KindOther},
		{http.StatusBadRequest, KindOther},
		{http.StatusTeapot, KindOther},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c, recorder := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			})

			var seen []Failure
			for _, kind := range []Kind{KindNetwork, KindUnauthorized, KindNotFound, KindServerError, KindOther} {
				c.OnFailure(kind, func(_ context.Context, f Failure) {
					seen = append(seen, f)
				})
			}

			resp, err := c.GetSecured(context.Background())
			require.Error(t, err)
			assert.Nil(t, resp)

			var respErr *ResponseError
			require.True(t, errors.As(err, &respErr))
			assert.Equal(t, tt.status, respErr.StatusCode)
			assert.Equal(t, tt.wantKind, Classify(err))
			assert.Equal(t, tt.status, StatusCode(err))
			assert.Contains(t, err.Error(), "nope")

			require.Len(t, seen, 1)
			assert.Equal(t, tt.wantKind, seen[0].Kind)
			assert.Equal(t, tt.status, seen[0].StatusCode)
			assert.Same(t, err, seen[0].Err, "hooks see the very error returned to the caller")

			assert.Equal(t, []string{string(tt.wantKind)}, recorder.failures)
		})
	}
}

func TestClient_SuccessDoesNotFireHooks(t *testing.T) {
	c, recorder := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	fired := false
	c.OnFailure(KindOther, func(context.Context, Failure) { fired = true })

	resp, err := c.CreateUser(context.Background(), "Ada", "Lovelace")
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.False(t, fired)
	assert.Empty(t, recorder.failures)
	assert.Equal(t, []string{"POST create_user"}, recorder.requests)
}

func TestClient_NetworkErrorWithoutResponse(t *testing.T) {
	// reserve a port, then close it so the dial is refused
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	recorder := &fakeRecorder{}
	c, err := New(Config{BaseURL: "http://" + addr + "/api", Timeout: time.Second, Metrics: recorder}, nil)
	require.NoError(t, err)

	var seen []Failure
	c.OnFailure(KindNetwork, func(_ context.Context, f Failure) { seen = append(seen, f) })

	resp, err := c.Hello(context.Background())
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, KindNetwork, Classify(err))
	assert.Equal(t, 0, StatusCode(err))

	require.Len(t, seen, 1)
	assert.Equal(t, 0, seen[0].StatusCode)
	assert.Same(t, err, seen[0].Err)
	assert.Equal(t, []string{"network"}, recorder.failures)
}

func TestClient_TimeoutIsNetworkFailure(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c, err := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	require.NoError(t, err)

	var seen []Failure
	c.OnFailure(KindNetwork, func(_ context.Context, f Failure) { seen = append(seen, f) })

	_, err = c.Hello(context.Background())
	require.Error(t, err)

	var netErr net.Error
	require.True(t, errors.As(err, &netErr))
	assert.True(t, netErr.Timeout())
	require.Len(t, seen, 1)
	assert.Equal(t, KindNetwork, seen[0].Kind)
}

func TestClient_HooksRunInOrderAndCannotSuppress(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	var order []string
	c.OnFailure(KindUnauthorized, func(context.Context, Failure) { order = append(order, "first") })
	c.OnFailure(KindUnauthorized, func(context.Context, Failure) { panic("boom") })
	c.OnFailure(KindUnauthorized, func(context.Context, Failure) { order = append(order, "third") })

	_, err := c.GetSecured(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindUnauthorized, Classify(err))
	assert.Equal(t, []string{"first", "third"}, order)
}

func TestClient_OversizedBody(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantKind   Kind
		wantStatus int
		wantErr    string
	}{
		{
			name:       "success status",
			status:     http.StatusOK,
			wantKind:   KindNetwork,
			wantStatus: 0,
			wantErr:    "reading secured response",
		},
		{
			name:       "unauthorized keeps its status",
			status:     http.StatusUnauthorized,
			wantKind:   KindUnauthorized,
			wantStatus: http.StatusUnauthorized,
			wantErr:    "unexpected status 401: reading body",
		},
		{
			name:       "server error keeps its status",
			status:     http.StatusBadGateway,
			wantKind:   KindServerError,
			wantStatus: http.StatusBadGateway,
			wantErr:    "unexpected status 502: reading body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, recorder := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write(make([]byte, maxResponseBytes+1))
			})

			var seen []Failure
			c.OnFailure(tt.wantKind, func(_ context.Context, f Failure) { seen = append(seen, f) })

			resp, err := c.GetSecured(context.Background())
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.ErrorContains(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ioutil.ErrTooLarge)
			assert.Equal(t, tt.wantKind, Classify(err))
			assert.Equal(t, tt.wantStatus, StatusCode(err))

			require.Len(t, seen, 1)
			assert.Equal(t, tt.status, seen[0].StatusCode)
			assert.Equal(t, EndpointSecured, seen[0].Endpoint)
			assert.Same(t, err, seen[0].Err)
			assert.Equal(t, []string{string(tt.wantKind)}, recorder.failures)
		})
	}
}

func TestClient_FailureCarriesSentBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	creds := &fakeCredentials{}
	c, err := New(Config{BaseURL: srv.URL + "/api", Timeout: time.Second}, creds)
	require.NoError(t, err)

	var seen []Failure
	c.OnFailure(KindUnauthorized, func(_ context.Context, f Failure) { seen = append(seen, f) })

	_, err = c.GetSecured(context.Background())
	require.Error(t, err)

	creds.set(true, "abc123")
	_, err = c.Authenticate(context.Background(), "alice", "wrong")
	require.Error(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, EndpointSecured, seen[0].Endpoint)
	assert.Empty(t, seen[0].Bearer, "sent without a session")
	assert.Equal(t, EndpointAuthenticate, seen[1].Endpoint)
	assert.Equal(t, "abc123", seen[1].Bearer)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindNone, Classify(nil))
	assert.Equal(t, KindNetwork, Classify(context.DeadlineExceeded))
	wrapped := errors.Join(errors.New("context"), &ResponseError{StatusCode: http.StatusNotFound})
	assert.Equal(t, KindNotFound, Classify(wrapped))
}
