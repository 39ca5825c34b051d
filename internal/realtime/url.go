package realtime

import (
	"fmt"
	"net/url"
	"strings"
)

// SocketBase derives the WebSocket base from an API base URL: http becomes ws,
// https becomes wss, and a bare host gets ws://.
func SocketBase(apiBase string) string {
	base := strings.TrimRight(strings.TrimSpace(apiBase), "/")
	switch {
	case base == "":
		return ""
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	case strings.HasPrefix(base, "ws://"), strings.HasPrefix(base, "wss://"):
		return base
	}
	return "ws://" + base
}

// ChatURL builds ws(s)://host/ws/chat/{chatID}/?token=... ; the backend reads the
// bearer token from the query, not from a header.
func ChatURL(base, chatID, token string) (string, error) {
	return socketURL(base, token, "chat", chatID)
}

// NotificationsURL builds ws(s)://host/ws/notifications/?token=... for the
// session's notification feed.
func NotificationsURL(base, token string) (string, error) {
	return socketURL(base, token, "notifications")
}

func socketURL(base, token string, segments ...string) (string, error) {
	u, err := url.Parse(SocketBase(base))
	if err != nil {
		return "", fmt.Errorf("realtime: parse base url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("realtime: base url %q has no host", base)
	}

	path := strings.TrimRight(u.Path, "/") + "/ws/"
	rawPath := strings.TrimRight(u.EscapedPath(), "/") + "/ws/"
	for _, seg := range segments {
		path += seg + "/"
		rawPath += url.PathEscape(seg) + "/"
	}
	u.Path = path
	u.RawPath = rawPath
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
