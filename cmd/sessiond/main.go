// sessiond keeps a game and chat socket connected for the stored session
// while the verified flag is set.
// Usage: go run ./cmd/sessiond --config configs/sessiond.example.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/gamelink/internal/config"
	"github.com/rickgao/gamelink/internal/connection"
	"github.com/rickgao/gamelink/internal/credstore"
	"github.com/rickgao/gamelink/internal/dispatch"
	"github.com/rickgao/gamelink/internal/lifecycle"
	"github.com/rickgao/gamelink/internal/refresher"
	"github.com/rickgao/gamelink/internal/sink"
	"github.com/rickgao/gamelink/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/sessiond.example.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting sessiond",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"use_ssl", cfg.Server.UseSSL,
		"credentials", cfg.Credentials.Type,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	store, err := credstore.NewStore(ctx, cfg.Credentials)
	if err != nil {
		logger.Error("failed to open credential store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	dispatcher := dispatch.New(logger)
	dispatcher.Register(dispatch.LogObserver(logger))
	var sinks []io.Closer

	if len(cfg.Events.Kafka.Brokers) > 0 {
		kafkaSink, err := sink.NewKafka(cfg.Events.Kafka, logger)
		if err != nil {
			logger.Error("failed to create kafka sink", "error", err)
			os.Exit(1)
		}
		dispatcher.Register(kafkaSink)
		sinks = append(sinks, kafkaSink)
		logger.Info("forwarding events to kafka",
			"brokers", cfg.Events.Kafka.Brokers,
			"topic", cfg.Events.Kafka.Topic,
		)
	}

	manager := lifecycle.NewManager(store,
		lifecycle.WithLogger(logger),
		lifecycle.WithWirer(dispatcher),
		lifecycle.WithSessionConfig(cfg.Session),
		lifecycle.WithRetry(cfg.Retry),
		lifecycle.WithReconnectOnDrop(cfg.Reconnect.OnDrop),
		lifecycle.WithClientOptions(
			connection.WithLogger(logger),
			connection.WithDialer(&websocket.Dialer{
				Proxy:            http.ProxyFromEnvironment,
				HandshakeTimeout: cfg.Session.ConnectTimeout,
			}),
			connection.WithSocketConfig(connection.SocketConfig{
				PingInterval: cfg.Socket.PingInterval,
				PingTimeout:  cfg.Socket.PingTimeout,
				WriteTimeout: cfg.Socket.WriteTimeout,
			}),
		),
	)
	manager.OnStateChange(func(ev lifecycle.StateEvent) {
		logger.Info("connection state",
			"channel", ev.Channel,
			"state", ev.To,
			"aggregate", ev.Aggregate,
		)
	})

	// Verified when credentials are already stored
	_, loadErr := store.Load(ctx)
	switch {
	case loadErr == nil:
	case errors.Is(loadErr, credstore.ErrNotFound):
		logger.Info("no stored credentials, waiting for verification")
	default:
		logger.Warn("failed to check stored credentials", "error", loadErr)
	}
	trigger := lifecycle.NewTrigger(loadErr == nil)

	sessionRefresher := refresher.New(refresher.Config{
		Interval: cfg.Session.RefreshInterval,
		Window:   cfg.Session.RefreshWindow,
	}, manager, logger)
	if err := sessionRefresher.Start(ctx); err != nil {
		logger.Error("failed to start session refresher", "error", err)
		os.Exit(1)
	}

	healthServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Health.Port),
		Handler:           newHandler(manager, trigger, dispatcher, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		if err := manager.Watch(ctx, trigger, cfg.Server); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("watch stopped", "error", err)
		}
	}()

	logger.Info("sessiond running",
		"verified", trigger.Value(),
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Health.Port),
	)

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	healthServer.Shutdown(shutdownCtx)

	sessionRefresher.Stop(shutdownCtx)
	<-watchDone
	manager.Close()
	closeEvents(logger, dispatcher, sinks...)

	logger.Info("sessiond stopped")
}
