package stream

import (
	"fmt"
	"net/url"
	"strings"
)

// StreamURL derives the websocket endpoint from the HTTP base URL: the
// scheme is rewritten http(s) -> ws(s), the session id is appended under
// /ws/stream, and the auth token rides as a query parameter when present.
func StreamURL(base, sessionID, token string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", fmt.Errorf("session id is required")
	}
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", base, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q in base url %q", u.Scheme, base)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/stream/" + url.PathEscape(sessionID)
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
