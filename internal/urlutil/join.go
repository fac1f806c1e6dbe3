package urlutil

import (
	"net/url"
	"strings"
)

// JoinPath appends path segments to base. Every segment is escaped as a single
// path element, so caller-supplied values such as user IDs can neither add
// path levels nor climb out with "..". A trailing slash on the last segment is
// preserved.
func JoinPath(base string, segments ...string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if len(segments) == 0 {
		return u.String(), nil
	}

	trailing := strings.HasSuffix(segments[len(segments)-1], "/")
	escaped := make([]string, len(segments))
	for i, segment := range segments {
		escaped[i] = escapeSegment(strings.TrimSuffix(segment, "/"))
	}
	if trailing {
		escaped[len(escaped)-1] += "/"
	}

	return u.JoinPath(escaped...).String(), nil
}

func escapeSegment(segment string) string {
	switch segment {
	case ".":
		return "%2E"
	case "..":
		return "%2E%2E"
	}
	return url.PathEscape(segment)
}
