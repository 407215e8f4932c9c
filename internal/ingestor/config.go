package ingestor

import (
	"encoding/json"
	"fmt"
	"os"
)

// ConnectionConfig describes one upstream feed connection. It is produced by
// the credentials admin surface and consumed read-only here.
type ConnectionConfig struct {
	ConnectionID string `json:"connection_id"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	Enabled      bool   `json:"enabled"`
}

// LoadConnections reads connection configs from a JSON file. Both a bare
// array and an object wrapping a connections array are accepted.
func LoadConnections(path string) ([]ConnectionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read connections file: %w", err)
	}

	var wrapped struct {
		Connections []ConnectionConfig `json:"connections"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Connections != nil {
		return validateConfigs(wrapped.Connections)
	}

	var list []ConnectionConfig
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse connections file: %w", err)
	}
	return validateConfigs(list)
}

func validateConfigs(configs []ConnectionConfig) ([]ConnectionConfig, error) {
	seen := make(map[string]bool, len(configs))
	for _, cfg := range configs {
		if cfg.ConnectionID == "" {
			return nil, fmt.Errorf("connection config without connection_id")
		}
		if seen[cfg.ConnectionID] {
			return nil, fmt.Errorf("duplicate connection_id %q", cfg.ConnectionID)
		}
		seen[cfg.ConnectionID] = true
		if cfg.Enabled && cfg.URL == "" {
			return nil, fmt.Errorf("connection %q is enabled but has no url", cfg.ConnectionID)
		}
	}
	return configs, nil
}
