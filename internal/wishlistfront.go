package internal

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/dgellow/wishlist-front/internal/client"
	"github.com/dgellow/wishlist-front/internal/config"
	"github.com/dgellow/wishlist-front/internal/log"
	"github.com/dgellow/wishlist-front/internal/metrics"
	"github.com/dgellow/wishlist-front/internal/session"
)

const maxConcurrentCalls = 4

// WishlistFront wires the session store to the authorizing client
type WishlistFront struct {
	config   config.Config
	store    *session.Store
	client   *client.Client
	registry *prometheus.Registry
}

// NewWishlistFront builds the application over the default HTTP transport
func NewWishlistFront(cfg config.Config) (*WishlistFront, error) {
	return NewWishlistFrontWith(cfg, nil)
}

// NewWishlistFrontWith builds the application with a custom base transport
func NewWishlistFrontWith(cfg config.Config, base http.RoundTripper) (*WishlistFront, error) {
	log.LogInfoWithFields("wishlistfront", "Building wishlist client", map[string]any{
		"baseURL": cfg.API.BaseURL,
		"timeout": cfg.API.Timeout.String(),
	})

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	store := session.NewStore(
		session.WithCredentialRetention(cfg.Session.RetainPassword),
		session.WithMetrics(collector),
	)
	store.Subscribe(func(st session.State) {
		collector.SetSessionActive(st.IsLoggedIn())
	})

	apiClient, err := client.NewWith(client.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Metrics: collector,
	}, store, base)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	if cfg.Session.InvalidateOnUnauthorized {
		apiClient.OnFailure(client.KindUnauthorized, func(_ context.Context, f client.Failure) {
			// A 401 from authenticate is a failed login, which the store
			// already accounts for under its attempt ordering
			if f.Endpoint == client.EndpointAuthenticate {
				return
			}
			store.InvalidateToken(f.Bearer, fmt.Sprintf("%s %s returned %d", f.Method, f.URL, f.StatusCode))
		})
	}

	// A CLI has no error page to redirect to, so surface these loudly instead
	errorPage := func(_ context.Context, f client.Failure) {
		log.LogWarnWithFields("wishlistfront", "API returned an error page", map[string]any{
			"status": f.StatusCode,
			"method": f.Method,
			"url":    f.URL,
		})
	}
	apiClient.OnFailure(client.KindNotFound, errorPage)
	apiClient.OnFailure(client.KindServerError, errorPage)

	return &WishlistFront{
		config:   cfg,
		store:    store,
		client:   apiClient,
		registry: registry,
	}, nil
}

// Store returns the session store
func (w *WishlistFront) Store() *session.Store {
	return w.store
}

// Client returns the authorizing API client
func (w *WishlistFront) Client() *client.Client {
	return w.client
}

// Login runs the authentication transaction through the API client
func (w *WishlistFront) Login(ctx context.Context, username, password string) error {
	_, err := w.store.Authenticate(ctx, w.client, username, password)
	return err
}

// LoginConfigured logs in with the credentials from the config file, if any
func (w *WishlistFront) LoginConfigured(ctx context.Context) error {
	creds := w.config.Credentials
	if creds == nil {
		log.LogDebug("No credentials configured, continuing unauthenticated")
		return nil
	}
	return w.Login(ctx, creds.Username, creds.Password.Reveal())
}

// Call names one endpoint invocation requested on the command line
type Call struct {
	Name string
	Args []string
}

func (c Call) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + ":" + strings.Join(c.Args, "/")
}

// CallResult is the outcome of one Call
type CallResult struct {
	Call     Call
	Response *client.Response
	Err      error
}

// ParseCalls parses a comma separated list such as
// "hello,secured,user:42,create:Ada/Lovelace"
func ParseCalls(list string) ([]Call, error) {
	var calls []Call
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		name, rest, hasArgs := strings.Cut(item, ":")
		call := Call{Name: name}
		switch name {
		case "hello", "secured":
			if hasArgs {
				return nil, fmt.Errorf("call %q takes no arguments", name)
			}
		case "user":
			if rest == "" {
				return nil, fmt.Errorf("call %q requires a user ID: user:<id>", name)
			}
			call.Args = []string{rest}
		case "create":
			first, last, ok := strings.Cut(rest, "/")
			if !ok || first == "" || last == "" {
				return nil, fmt.Errorf("call %q requires a name: create:<first>/<last>", name)
			}
			call.Args = []string{first, last}
		default:
			return nil, fmt.Errorf("unknown call %q - supported: hello, secured, user:<id>, create:<first>/<last>", name)
		}
		calls = append(calls, call)
	}
	return calls, nil
}

// Run performs calls concurrently. Every call runs to completion; failures
// are reported per call.
func (w *WishlistFront) Run(ctx context.Context, calls []Call) []CallResult {
	results := make([]CallResult, len(calls))

	var g errgroup.Group
	g.SetLimit(maxConcurrentCalls)
	for i, call := range calls {
		g.Go(func() error {
			resp, err := w.invoke(ctx, call)
			results[i] = CallResult{Call: call, Response: resp, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (w *WishlistFront) invoke(ctx context.Context, call Call) (*client.Response, error) {
	switch call.Name {
	case "hello":
		return w.client.Hello(ctx)
	case "secured":
		return w.client.GetSecured(ctx)
	case "user":
		return w.client.GetUser(ctx, call.Args[0])
	case "create":
		return w.client.CreateUser(ctx, call.Args[0], call.Args[1])
	default:
		return nil, fmt.Errorf("unknown call %q", call.Name)
	}
}

// MetricsSummary returns the current counter values keyed by series
func (w *WishlistFront) MetricsSummary() (map[string]float64, error) {
	return metrics.Summary(w.registry)
}
