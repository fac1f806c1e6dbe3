package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dgellow/wishlist-front/internal/ioutil"
)

// Kind classifies a failed request
type Kind string

const (
	KindNone         Kind = ""
	KindNetwork      Kind = "network"
	KindUnauthorized Kind = "unauthorized"
	KindNotFound     Kind = "not_found"
	KindServerError  Kind = "server_error"
	KindOther        Kind = "other"
)

const errorBodySnippet = 256

// ResponseError is returned for any response outside 2xx. The response is
// attached; its body is empty when BodyErr is set.
type ResponseError struct {
	Method     string
	URL        string
	StatusCode int
	Response   *Response
	BodyErr    error // reading the body failed, the status is still authoritative
}

func (e *ResponseError) Error() string {
	msg := fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
	if e.BodyErr != nil {
		return msg + ": reading body: " + e.BodyErr.Error()
	}
	if e.Response != nil && len(e.Response.Body) > 0 {
		msg += ": " + ioutil.Snippet(e.Response.Body, errorBodySnippet)
	}
	return msg
}

func (e *ResponseError) Unwrap() error {
	return e.BodyErr
}

// Kind reports the classification of the status code
func (e *ResponseError) Kind() Kind {
	return kindForStatus(e.StatusCode)
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= 500 && status <= 599:
		return KindServerError
	default:
		return KindOther
	}
}

// Classify reports how a request error should be treated. Errors that carry
// no response (timeouts, refused connections, DNS failures) are KindNetwork.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return respErr.Kind()
	}
	return KindNetwork
}

// StatusCode returns the HTTP status carried by err, or 0 when there was no response
func StatusCode(err error) int {
	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}
