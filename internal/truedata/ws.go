package truedata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
)

// Conn is one live feed connection.
type Conn interface {
	ReadMessage() ([]byte, error)
	Close() error
}

// WSDialer opens websocket connections to the TrueData push feed.
type WSDialer struct {
	dialer *websocket.Dialer
}

func NewWSDialer() *WSDialer {
	return &WSDialer{dialer: websocket.DefaultDialer}
}

// Dial connects with credentials passed as query parameters, the way the
// push feed authenticates. A 401 or 403 handshake maps to ErrAuth.
func (d *WSDialer) Dial(ctx context.Context, rawURL, username, password string) (Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse feed url: %w", err)
	}
	qs := u.Query()
	qs.Set("user", username)
	qs.Set("password", password)
	u.RawQuery = qs.Encode()

	conn, resp, err := d.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("feed handshake status %d: %w", resp.StatusCode, ErrAuth)
		}
		return nil, fmt.Errorf("dial feed: %w", err)
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn    *websocket.Conn
	checked bool
}

// ReadMessage reads the next frame. The first frame is inspected for a
// login rejection so credential errors surface before any data flows.
func (c *wsConn) ReadMessage() ([]byte, error) {
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if !c.checked {
		c.checked = true
		if err := authReject(msg); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

func (c *wsConn) Close() error {
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}
