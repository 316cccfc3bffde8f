package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pants721/mao/engine"
	"github.com/pants721/mao/internal/config"
	"github.com/pants721/mao/internal/db"
	"github.com/pants721/mao/internal/history"
	"github.com/pants721/mao/internal/lobbycode"
	"github.com/pants721/mao/internal/logger"
	"github.com/pants721/mao/internal/redis"
	"github.com/pants721/mao/models"
	"github.com/pants721/mao/server"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer lg.Sync()

	if err := run(cfg, lg); err != nil {
		lg.Error("server exited", zap.Error(err))
		lg.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var serverOpts []server.Option

	reserver := lobbycode.Reserver(lobbycode.NewMemoryReserver())
	if cfg.Redis.Enabled() {
		rdb, err := redis.New(ctx, cfg.Redis, lg)
		if err != nil {
			return err
		}
		defer rdb.Close()
		reserver = lobbycode.NewRedisReserver(rdb)
		serverOpts = append(serverOpts, server.WithHealthCheck("redis", rdb.HealthCheck))
	}

	manager := engine.NewLobbyManager(
		lobbycode.NewMinter(reserver, cfg.LobbyCodeLength),
		engine.WithEventBuffer(cfg.EventBuffer),
		engine.WithLogger(lg),
	)
	defer manager.Close()

	recorderDone := make(chan struct{})
	if cfg.DB.Enabled() {
		database, err := db.New(cfg.DB, lg)
		if err != nil {
			return err
		}
		defer database.Close()

		recorder, err := history.NewRecorder(database, lg)
		if err != nil {
			return err
		}
		serverOpts = append(serverOpts,
			server.WithHistory(recorder),
			server.WithHealthCheck("database", database.Ping))
		go func() {
			defer close(recorderDone)
			recorder.Run(ctx, manager.Events())
		}()
	} else {
		go func() {
			defer close(recorderDone)
			drainEvents(ctx, manager.Events(), lg.Named("events"))
		}()
	}

	srv := server.NewServer(server.Config{
		Environment:    cfg.Environment,
		AllowedOrigins: cfg.AllowedOrigins,
		SendBuffer:     cfg.SendBuffer,
		RateLimit:      cfg.RateLimit,
	}, manager, append(serverOpts, server.WithLogger(lg))...)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(":" + cfg.ServerPort)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		lg.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}

	manager.Close()
	stop()
	<-recorderDone
	return nil
}

// drainEvents logs lobby events when no history store is configured.
func drainEvents(ctx context.Context, events <-chan models.Event, lg *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			lg.Debug("lobby event",
				zap.String("event", string(event.Event)),
				zap.String("lobby_id", event.LobbyID),
				zap.String("player", event.Player))
		}
	}
}
