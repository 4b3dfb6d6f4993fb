package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aebaduq/arabsocial-chat/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{config.EnvAPIURL, config.EnvSocketURL, config.EnvUserID, config.EnvToken, config.EnvLogLevel} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`server:
  api_url: "https://api.example.com/"
user:
  id: "42"
  token: "tok"
chat:
  page_size: 50
  send_timeout: 3s
  emit_leave_room: true
transport:
  dial_retries: 0
  auto_reconnect: false
log_level: debug
`)
	if err := os.WriteFile(cfgPath, content, 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.APIURL != "https://api.example.com" {
		t.Errorf("APIURL = %q, want trailing slash trimmed", cfg.Server.APIURL)
	}
	if cfg.Server.SocketURL != "wss://api.example.com" {
		t.Errorf("SocketURL = %q, want %q", cfg.Server.SocketURL, "wss://api.example.com")
	}
	if cfg.User.ID != "42" || cfg.User.Token != "tok" {
		t.Errorf("User = %+v", cfg.User)
	}
	if cfg.Chat.PageSize != 50 {
		t.Errorf("PageSize = %d, want 50", cfg.Chat.PageSize)
	}
	if cfg.Chat.SendTimeout != 3*time.Second {
		t.Errorf("SendTimeout = %v, want 3s", cfg.Chat.SendTimeout)
	}
	if !cfg.Chat.EmitLeaveRoom {
		t.Error("EmitLeaveRoom = false, want true")
	}
	if *cfg.Transport.DialRetries != 0 {
		t.Errorf("DialRetries = %d, want explicit 0 kept", *cfg.Transport.DialRetries)
	}
	if *cfg.Transport.AutoReconnect {
		t.Error("AutoReconnect = true, want explicit false kept")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("server:\n  api_url: http://localhost:3000/api\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.SocketURL != "ws://localhost:3000" {
		t.Errorf("SocketURL = %q, want %q", cfg.Server.SocketURL, "ws://localhost:3000")
	}
	if cfg.Chat.PageSize != 20 {
		t.Errorf("PageSize = %d, want 20", cfg.Chat.PageSize)
	}
	if cfg.Chat.TypingQuiet != 2*time.Second || cfg.Chat.TypingExpiry != 5*time.Second {
		t.Errorf("typing = %v/%v, want 2s/5s", cfg.Chat.TypingQuiet, cfg.Chat.TypingExpiry)
	}
	if cfg.Chat.SendTimeout != 10*time.Second {
		t.Errorf("SendTimeout = %v, want 10s", cfg.Chat.SendTimeout)
	}
	if cfg.Chat.MessageType != "text" {
		t.Errorf("MessageType = %q, want text", cfg.Chat.MessageType)
	}
	if *cfg.Transport.DialRetries != 3 || !*cfg.Transport.AutoReconnect {
		t.Errorf("Transport = %d/%v, want 3/true", *cfg.Transport.DialRetries, *cfg.Transport.AutoReconnect)
	}
	if cfg.Transport.PingInterval != 30*time.Second {
		t.Errorf("PingInterval = %v, want 30s", cfg.Transport.PingInterval)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("server:\n  api_url: http://file\nuser:\n  id: file-user\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.EnvUserID, "env-user")
	t.Setenv(config.EnvToken, "env-token")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.User.ID != "env-user" {
		t.Errorf("User.ID = %q, want env-user", cfg.User.ID)
	}
	if cfg.User.Token != "env-token" {
		t.Errorf("User.Token = %q, want env-token", cfg.User.Token)
	}
	if cfg.Server.APIURL != "http://file" {
		t.Errorf("APIURL = %q, want file value", cfg.Server.APIURL)
	}
}

func TestLoadEnv_DotEnvFile(t *testing.T) {
	clearEnv(t)
	os.Unsetenv(config.EnvAPIURL)
	os.Unsetenv(config.EnvUserID)
	envPath := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envPath, []byte(config.EnvAPIURL+"=https://dotenv.example\n"+config.EnvUserID+"=7\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := config.LoadEnv(envPath, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadEnv() error: %v", err)
	}
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.SocketURL != "wss://dotenv.example" {
		t.Errorf("SocketURL = %q", cfg.Server.SocketURL)
	}
	if cfg.User.ID != "7" {
		t.Errorf("User.ID = %q, want 7", cfg.User.ID)
	}
}

func TestLoadConfig_MissingFileAndEnv(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load("/nonexistent/config.yaml")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected Validate error")
	}
	if !strings.Contains(err.Error(), "server.api_url") || !strings.Contains(err.Error(), "user.id") {
		t.Errorf("Validate() = %v, want both keys named", err)
	}
}

func TestLoadConfig_BadYAML(t *testing.T) {
	clearEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("server: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := config.Load(cfgPath); err == nil {
		t.Error("expected parse error")
	}
}

func TestSocketURLFor(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{"http://localhost:3000", "ws://localhost:3000", false},
		{"https://api.arabsocials.com/v1", "wss://api.arabsocials.com", false},
		{"ftp://nope", "", true},
	}
	for _, tt := range tests {
		got, err := config.SocketURLFor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("SocketURLFor(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("SocketURLFor(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConfigDir(t *testing.T) {
	dir := config.Dir()
	if dir == "" {
		t.Error("Dir() returned empty string")
	}
}
