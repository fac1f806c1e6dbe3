package client

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	// XSRFHeaderName and XSRFCookieName are the cross-site-request-forgery
	// fields browsers and some HTTP stacks attach automatically. The API uses
	// bearer tokens only, so both are stripped from every request.
	XSRFHeaderName = "X-XSRF-TOKEN"
	XSRFCookieName = "XSRF-TOKEN"

	RequestIDHeader = "X-Request-ID"
)

// Credentials is the read-only session view the transport consults on every
// request. *session.Store satisfies it.
type Credentials interface {
	IsLoggedIn() bool
	CurrentToken() (string, bool)
}

// Transport is the request interceptor. It authorizes outgoing requests from
// the current session and never fails on its own: errors come only from Base.
type Transport struct {
	Base        http.RoundTripper
	Credentials Credentials
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request
	out := req.Clone(req.Context())

	out.Header.Del(XSRFHeaderName)
	stripCookie(out, XSRFCookieName)

	if out.Header.Get(RequestIDHeader) == "" {
		out.Header.Set(RequestIDHeader, uuid.NewString())
	}

	if t.Credentials != nil && t.Credentials.IsLoggedIn() {
		if token, ok := t.Credentials.CurrentToken(); ok {
			bearer := &oauth2.Token{AccessToken: token, TokenType: "Bearer"}
			bearer.SetAuthHeader(out)
			if sent, ok := out.Context().Value(sentBearerKey{}).(*sentBearer); ok {
				sent.token = token
			}
		}
	}

	return t.base().RoundTrip(out)
}

type sentBearerKey struct{}

// sentBearer reports back which token the transport attached. RoundTrip runs
// on the goroutine that called http.Client.Do.
type sentBearer struct {
	token string
}

func withSentBearer(ctx context.Context) (context.Context, *sentBearer) {
	sent := &sentBearer{}
	return context.WithValue(ctx, sentBearerKey{}, sent), sent
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func stripCookie(req *http.Request, name string) {
	cookies := req.Cookies()
	if len(cookies) == 0 {
		return
	}

	kept := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == name {
			continue
		}
		kept = append(kept, c.Name+"="+c.Value)
	}

	req.Header.Del("Cookie")
	if len(kept) > 0 {
		req.Header.Set("Cookie", strings.Join(kept, "; "))
	}
}
