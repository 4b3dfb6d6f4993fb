package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aebaduq/arabsocial-chat/internal/auth"
	"github.com/aebaduq/arabsocial-chat/internal/config"
	"github.com/aebaduq/arabsocial-chat/internal/domain"
	"github.com/aebaduq/arabsocial-chat/internal/history"
	"github.com/aebaduq/arabsocial-chat/internal/presence"
	"github.com/aebaduq/arabsocial-chat/internal/roomlist"
	"github.com/aebaduq/arabsocial-chat/internal/session"
	"github.com/aebaduq/arabsocial-chat/internal/state"
	"github.com/aebaduq/arabsocial-chat/internal/transport"
	"github.com/aebaduq/arabsocial-chat/internal/ui"
)

func main() {
	cfgDir := config.Dir()
	cfgPath := filepath.Join(cfgDir, "config.yaml")

	if err := config.LoadEnv(".env", filepath.Join(cfgDir, ".env")); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(cfgPath)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config from %s: %v\n", cfgPath, err)
		fmt.Fprintf(os.Stderr, "\nCreate the config file with:\n")
		fmt.Fprintf(os.Stderr, "  mkdir -p %s\n", cfgDir)
		fmt.Fprintf(os.Stderr, "  cat > %s << 'EOF'\n", cfgPath)
		fmt.Fprintf(os.Stderr, "server:\n  api_url: \"https://YOUR_API_HOST\"\nuser:\n  id: \"YOUR_USER_ID\"\nEOF\n")
		fmt.Fprintf(os.Stderr, "\nor set %s and %s in the environment.\n", config.EnvAPIURL, config.EnvUserID)
		os.Exit(1)
	}

	// Setup logging to file; the terminal belongs to the UI
	if err := os.MkdirAll(cfgDir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", cfgDir, err)
		os.Exit(1)
	}
	logPath := filepath.Join(cfgDir, "arabsocial-chat.log")
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log_level %q: %v\n", cfg.LogLevel, err)
		os.Exit(1)
	}
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = level
	logCfg.OutputPaths = []string{logPath}
	logCfg.ErrorOutputPaths = []string{logPath}
	logger, err := logCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, cfgDir, logger); err != nil {
		logger.Error("exiting with error", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, cfgDir string, logger *zap.Logger) error {
	// Token: config/env wins, else whatever the last session saved
	tokenStore := auth.NewFileStore(filepath.Join(cfgDir, "session.yaml"))
	token := cfg.User.Token
	if token == "" {
		saved, err := tokenStore.Load()
		if err != nil {
			logger.Warn("ignoring unreadable session file", zap.Error(err))
		}
		token = saved
	}
	tokens := auth.NewHolder(token, tokenStore, logger)

	// Create store (drawFunc will be set after app is created)
	store := state.New(nil)

	topts := transport.DefaultOptions()
	topts.DialRetries = *cfg.Transport.DialRetries
	topts.AutoReconnect = *cfg.Transport.AutoReconnect
	topts.PingInterval = cfg.Transport.PingInterval
	conn := transport.New(cfg.Server.SocketURL, topts, logger)

	api := history.NewClient(cfg.Server.APIURL, tokens, logger)
	rooms := roomlist.New(api, store, cfg.User.ID, logger)
	follow := rooms.Follow(conn)
	defer follow.Release()

	var app *ui.App
	manager := session.NewManager(session.Config{
		SelfID:        cfg.User.ID,
		PageSize:      cfg.Chat.PageSize,
		MessageType:   cfg.Chat.MessageType,
		SendTimeout:   cfg.Chat.SendTimeout,
		EmitLeaveRoom: cfg.Chat.EmitLeaveRoom,
		Typing: presence.Options{
			Quiet:  cfg.Chat.TypingQuiet,
			Expiry: cfg.Chat.TypingExpiry,
		},
	}, session.Deps{
		Transport: conn,
		History:   api,
		Timeline:  store,
		Rooms:     rooms,
		OnChange: func(string) {
			if app != nil {
				app.Send(ui.StoreUpdatedMsg{})
			}
		},
	}, logger)
	defer manager.Shutdown()

	app = ui.NewApp(ui.Deps{
		Sessions:  manager,
		Rooms:     store,
		Tokens:    tokens,
		Refresher: rooms,
		SelfID:    cfg.User.ID,
	})
	store.SetDrawFunc(app.DrawFunc())
	connSub := conn.OnStateChange(func(s domain.ConnState) {
		app.Send(ui.ConnStateMsg{State: s})
	})
	defer connSub.Release()

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return auth.Bind(gctx, tokens, conn, logger)
	})
	g.Go(func() error {
		<-gctx.Done()
		app.Quit()
		return nil
	})
	g.Go(func() error {
		// Run TUI (blocks until quit)
		defer cancel()
		return app.Run()
	})

	err := g.Wait()
	logger.Info("shut down")
	return err
}
