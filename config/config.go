package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
)

const (
	// AppDirectoryName is the per-user application data directory name.
	AppDirectoryName = "oldschool-messanger"
	// DefaultServerBaseURL is the hosted backend used when no override exists.
	DefaultServerBaseURL = "https://oldschool-messanger-backend.onrender.com"
	// DefaultRequestTimeoutSeconds bounds each request/response API call.
	DefaultRequestTimeoutSeconds = 30
	// DefaultTypingExpirySeconds clears a stale remote-typing flag when the
	// peer's stopTyping event is lost in transit.
	DefaultTypingExpirySeconds = 10
	// configFileName is the persisted configuration file.
	configFileName = "config.json"
)

// ClientConfig contains persistent local client settings.
type ClientConfig struct {
	DeviceID              string `json:"device_id"`
	ServerBaseURL         string `json:"server_base_url"`
	SocketURL             string `json:"socket_url"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
	TypingExpirySeconds   int    `json:"typing_expiry_seconds"`
}

// ResolveDataDir returns the OS-aware app data directory.
//
// If OLDSCHOOL_DATA_DIR is set, its value is used as an explicit override.
func ResolveDataDir() (string, error) {
	if override := os.Getenv("OLDSCHOOL_DATA_DIR"); override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(base, AppDirectoryName), nil
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppDirectoryName), nil
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			base = filepath.Join(home, ".config")
		}
		return filepath.Join(base, AppDirectoryName), nil
	}
}

// ConfigPath returns the full path to config.json for a data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, configFileName)
}

// Load reads and unmarshals config.json from disk.
func Load(path string) (*ClientConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg ClientConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// Save marshals and writes config.json to disk.
func Save(path string, cfg *ClientConfig) error {
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	raw = append(raw, '\n')
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// LoadOrCreate ensures the data directory and config exist, then returns
// the config and its path.
func LoadOrCreate() (*ClientConfig, string, error) {
	dataDir, err := ResolveDataDir()
	if err != nil {
		return nil, "", err
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, "", fmt.Errorf("create data directory: %w", err)
	}

	cfgPath := ConfigPath(dataDir)
	cfg, err := Load(cfgPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", err
		}

		cfg = defaultConfig()
		if err := Save(cfgPath, cfg); err != nil {
			return nil, "", err
		}

		return cfg, cfgPath, nil
	}

	if normalizeDefaults(cfg) {
		if err := Save(cfgPath, cfg); err != nil {
			return nil, "", err
		}
	}

	return cfg, cfgPath, nil
}

func defaultConfig() *ClientConfig {
	return &ClientConfig{
		DeviceID:              uuid.NewString(),
		ServerBaseURL:         DefaultServerBaseURL,
		SocketURL:             socketURLFor(DefaultServerBaseURL),
		RequestTimeoutSeconds: DefaultRequestTimeoutSeconds,
		TypingExpirySeconds:   DefaultTypingExpirySeconds,
	}
}

func normalizeDefaults(cfg *ClientConfig) bool {
	updated := false

	if cfg.DeviceID == "" {
		cfg.DeviceID = uuid.NewString()
		updated = true
	}

	if cfg.ServerBaseURL == "" {
		cfg.ServerBaseURL = DefaultServerBaseURL
		updated = true
	}

	if cfg.SocketURL == "" {
		cfg.SocketURL = socketURLFor(cfg.ServerBaseURL)
		updated = true
	}

	if cfg.RequestTimeoutSeconds <= 0 {
		cfg.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
		updated = true
	}

	if cfg.TypingExpirySeconds <= 0 {
		cfg.TypingExpirySeconds = DefaultTypingExpirySeconds
		updated = true
	}

	return updated
}

func socketURLFor(baseURL string) string {
	switch {
	case len(baseURL) >= 8 && baseURL[:8] == "https://":
		return "wss://" + baseURL[8:] + "/ws"
	case len(baseURL) >= 7 && baseURL[:7] == "http://":
		return "ws://" + baseURL[7:] + "/ws"
	default:
		return baseURL + "/ws"
	}
}
