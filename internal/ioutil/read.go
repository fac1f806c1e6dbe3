package ioutil

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// ErrTooLarge is returned by ReadAll when the body exceeds the limit
var ErrTooLarge = errors.New("body exceeds size limit")

// ReadAll reads r fully, failing with ErrTooLarge instead of silently
// truncating once more than limit bytes arrive.
func ReadAll(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return body, nil
}

// Snippet renders at most limit bytes of body for error messages and logs,
// marking truncation and never splitting a UTF-8 sequence.
func Snippet(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return string(body[:cut]) + "..."
}
