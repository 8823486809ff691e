package ui

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/desertthunder/glance/internal/formatter"
	"github.com/gorilla/websocket"
)

// Stream reads [formatter.StreamEvent]s from a server's /v1/stream endpoint.
type Stream struct {
	conn *websocket.Conn
}

// StreamURL turns an http(s) base URL into the websocket stream URL.
func StreamURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server url %q: %w", baseURL, err)
	}
	switch u.Scheme {
	case "http", "":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/v1/stream"
	return u.String(), nil
}

// DialStream connects to the server at baseURL.
func DialStream(ctx context.Context, baseURL string) (*Stream, error) {
	target, err := StreamURL(baseURL)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}
	return &Stream{conn: conn}, nil
}

// Next blocks for the next event.
func (s *Stream) Next() (formatter.StreamEvent, error) {
	var e formatter.StreamEvent
	err := s.conn.ReadJSON(&e)
	return e, err
}

// Close sends a close frame and closes the connection.
func (s *Stream) Close() error {
	s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}
