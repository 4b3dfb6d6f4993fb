package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	User      UserConfig      `yaml:"user"`
	Chat      ChatConfig      `yaml:"chat"`
	Transport TransportConfig `yaml:"transport"`
	LogLevel  string          `yaml:"log_level"`
}

type ServerConfig struct {
	APIURL    string `yaml:"api_url"`
	SocketURL string `yaml:"socket_url"`
}

type UserConfig struct {
	ID    string `yaml:"id"`
	Token string `yaml:"token"`
}

type ChatConfig struct {
	PageSize      int           `yaml:"page_size"`
	TypingQuiet   time.Duration `yaml:"typing_quiet"`
	TypingExpiry  time.Duration `yaml:"typing_expiry"`
	SendTimeout   time.Duration `yaml:"send_timeout"`
	EmitLeaveRoom bool          `yaml:"emit_leave_room"`
	MessageType   string        `yaml:"message_type"`
}

type TransportConfig struct {
	DialRetries   *uint64       `yaml:"dial_retries"`
	AutoReconnect *bool         `yaml:"auto_reconnect"`
	PingInterval  time.Duration `yaml:"ping_interval"`
}

const (
	EnvAPIURL    = "ARABSOCIAL_API_URL"
	EnvSocketURL = "ARABSOCIAL_SOCKET_URL"
	EnvUserID    = "ARABSOCIAL_USER_ID"
	EnvToken     = "ARABSOCIAL_TOKEN"
	EnvLogLevel  = "ARABSOCIAL_LOG_LEVEL"
)

func Dir() string {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		cfgDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(cfgDir, "arabsocial-chat")
}

// LoadEnv reads KEY=value pairs from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load env %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the YAML file at path, overlays the environment and fills in
// defaults. A missing file is not an error as long as the environment
// supplies the required keys; Validate reports what is still missing.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	overlay := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	overlay(&c.Server.APIURL, EnvAPIURL)
	overlay(&c.Server.SocketURL, EnvSocketURL)
	overlay(&c.User.ID, EnvUserID)
	overlay(&c.User.Token, EnvToken)
	overlay(&c.LogLevel, EnvLogLevel)
}

func (c *Config) applyDefaults() error {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Chat.PageSize <= 0 {
		c.Chat.PageSize = 20
	}
	if c.Chat.TypingQuiet <= 0 {
		c.Chat.TypingQuiet = 2 * time.Second
	}
	if c.Chat.TypingExpiry <= 0 {
		c.Chat.TypingExpiry = 5 * time.Second
	}
	if c.Chat.SendTimeout <= 0 {
		c.Chat.SendTimeout = 10 * time.Second
	}
	if c.Chat.MessageType == "" {
		c.Chat.MessageType = "text"
	}
	if c.Transport.DialRetries == nil {
		n := uint64(3)
		c.Transport.DialRetries = &n
	}
	if c.Transport.AutoReconnect == nil {
		on := true
		c.Transport.AutoReconnect = &on
	}
	if c.Transport.PingInterval <= 0 {
		c.Transport.PingInterval = 30 * time.Second
	}

	c.Server.APIURL = strings.TrimRight(c.Server.APIURL, "/")
	if c.Server.SocketURL == "" && c.Server.APIURL != "" {
		socket, err := SocketURLFor(c.Server.APIURL)
		if err != nil {
			return err
		}
		c.Server.SocketURL = socket
	}
	return nil
}

// SocketURLFor derives the websocket endpoint from the REST base URL:
// http becomes ws and https becomes wss, path and query are dropped.
func SocketURLFor(apiURL string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("parse api_url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("api_url: unsupported scheme %q", u.Scheme)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// Validate reports required keys that are still empty after Load.
func (c *Config) Validate() error {
	var missing []string
	if c.Server.APIURL == "" {
		missing = append(missing, "server.api_url ("+EnvAPIURL+")")
	}
	if c.User.ID == "" {
		missing = append(missing, "user.id ("+EnvUserID+")")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}
