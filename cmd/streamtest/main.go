// streamtest restores a session, connects both sockets, and prints events to console.
// Usage: go run ./cmd/streamtest --config configs/sessiond.example.yaml
//
// Credentials come from -token/-refresh when set, otherwise from the
// configured credential store.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/gamelink/internal/auth"
	"github.com/rickgao/gamelink/internal/config"
	"github.com/rickgao/gamelink/internal/connection"
	"github.com/rickgao/gamelink/internal/credstore"
	"github.com/rickgao/gamelink/internal/dispatch"
	"github.com/rickgao/gamelink/internal/event"
	"github.com/rickgao/gamelink/internal/lifecycle"
)

func main() {
	configPath := flag.String("config", "configs/sessiond.example.yaml", "path to config file")
	token := flag.String("token", "", "session token (overrides the credential store)")
	refresh := flag.String("refresh", "", "refresh token used with -token")
	verbose := flag.Bool("verbose", false, "print full event JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	var store credstore.Store
	if *token != "" {
		store = credstore.NewMemoryWith(auth.Credentials{Token: *token, RefreshToken: *refresh})
		logger.Info("using credentials from flags")
	} else {
		store, err = credstore.NewStore(ctx, cfg.Credentials)
		if err != nil {
			logger.Error("failed to open credential store", "error", err)
			os.Exit(1)
		}
		logger.Info("using credential store", "type", cfg.Credentials.Type, "profile", cfg.Credentials.Profile)
	}
	defer store.Close()

	dispatcher := dispatch.New(logger)
	dispatcher.Register(printer(*verbose))

	manager := lifecycle.NewManager(store,
		lifecycle.WithLogger(logger),
		lifecycle.WithWirer(dispatcher),
		lifecycle.WithSessionConfig(cfg.Session),
		lifecycle.WithRetry(cfg.Retry),
		lifecycle.WithReconnectOnDrop(true),
		lifecycle.WithClientOptions(connection.WithLogger(logger)),
	)

	if err := manager.InitializeClient(cfg.Server); err != nil {
		logger.Error("failed to initialize client", "error", err)
		os.Exit(1)
	}

	logger.Info("restoring session", "host", cfg.Server.Host, "port", cfg.Server.Port)
	if err := manager.RestoreSession(ctx); err != nil {
		// A partial connection still streams the connected channel.
		logger.Error("restore failed", "error", err, "aggregate", manager.State())
		var rerr *lifecycle.RestoreError
		if errors.As(err, &rerr) {
			for _, ch := range event.Channels {
				if chErr := rerr.For(ch); chErr != nil {
					logger.Warn("channel not connected", "channel", ch, "error", chErr)
				}
			}
		}
		if manager.State() == lifecycle.Disconnected {
			os.Exit(1)
		}
	}

	if s := manager.Session(); s != nil {
		logger.Info("session restored",
			"user_id", s.UserID,
			"username", s.Username,
			"expires_at", s.ExpiresAt,
		)
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := dispatcher.Stats()
				game, chat := manager.Sockets()
				logger.Info("stats",
					"aggregate", manager.State(),
					"game", game.State(),
					"chat", chat.State(),
					"game_delivered", stats.Queues[event.ChannelGame].Delivered,
					"chat_delivered", stats.Queues[event.ChannelChat].Delivered,
					"observer_panics", stats.ObserverPanics,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	<-ctx.Done()

	logger.Info("shutting down...")
	manager.Close()
	dispatcher.Close()

	logger.Info("shutdown complete")
}

func printer(verbose bool) dispatch.Observer {
	if verbose {
		return dispatch.ObserverFunc(func(ev event.Event) {
			data, _ := json.MarshalIndent(ev, "", "  ")
			fmt.Printf("[%s] %s\n", ev.Kind(), data)
		})
	}

	return dispatch.Funcs{
		OnMatchState: func(e event.MatchState) {
			fmt.Printf("[MATCH] match=%s op=%d bytes=%d\n", e.MatchID, e.OpCode, len(e.Data))
		},
		OnNotification: func(e event.Notification) {
			fmt.Printf("[NOTIFICATION] id=%s code=%d subject=%q\n", e.ID, e.Code, e.Subject)
		},
		OnChannelMessage: func(e event.ChannelMessage) {
			fmt.Printf("[CHAT] channel=%s user=%s content=%s\n", e.ChannelID, e.Username, e.Content)
		},
		OnPresenceChange: func(e event.PresenceChange) {
			fmt.Printf("[PRESENCE] channel=%s joins=%d leaves=%d\n", e.ChannelID, len(e.Joins), len(e.Leaves))
		},
	}
}
