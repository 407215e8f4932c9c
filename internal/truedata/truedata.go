// Package truedata talks to the TrueData market-data vendor: the push
// websocket that streams corporate announcements and the history REST API
// used for backfill and attachment retrieval.
package truedata

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrAuth marks credential rejections. Callers treat it differently from
// transient connection failures: retrying quickly cannot help.
var ErrAuth = errors.New("feed credentials rejected")

// authReject classifies a feed control frame. TrueData answers a bad login
// with a success=false envelope before closing the socket.
func authReject(frame []byte) error {
	var env struct {
		Success *bool  `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(frame, &env); err != nil || env.Success == nil || *env.Success {
		return nil
	}

	msg := strings.ToLower(env.Message)
	for _, marker := range []string{"credential", "unauthor", "invalid user", "login"} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("feed login rejected: %s: %w", env.Message, ErrAuth)
		}
	}
	return fmt.Errorf("feed rejected connection: %s", env.Message)
}

// IsHeartbeat reports whether a decoded frame is a keepalive.
func IsHeartbeat(m map[string]any) bool {
	if t, ok := m["t"].(string); ok && strings.EqualFold(t, "heartbeat") {
		return true
	}
	if msg, ok := m["message"].(string); ok && strings.EqualFold(msg, "heartbeat") {
		return true
	}
	return false
}

// IsControl reports whether a decoded frame is a connection control
// envelope (login acknowledgements, subscription status) rather than data.
func IsControl(m map[string]any) bool {
	_, ok := m["success"].(bool)
	return ok
}
