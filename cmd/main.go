package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"chat-relay/internal/announce"
	"chat-relay/internal/api"
	"chat-relay/internal/config"
	"chat-relay/internal/presence"
	"chat-relay/internal/room"
	"chat-relay/internal/session"
	"chat-relay/internal/ws"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conf, err := config.New()
	if err != nil {
		return err
	}

	var loggerOpts slog.HandlerOptions
	if conf.Env == config.EnvDev {
		loggerOpts = slog.HandlerOptions{Level: slog.LevelDebug}
	}

	jsonHandler := slog.NewJSONHandler(os.Stdout, &loggerOpts)
	logger := slog.New(jsonHandler)

	redisClient := redis.NewClient(&redis.Options{Addr: net.JoinHostPort(conf.RedisHost, conf.RedisPort)})
	presenceNotifier := presence.NewRedisPresence(redisClient, conf.RedisPresenceChannel, 30*time.Minute, logger)

	registry := room.NewRegistry()
	broadcaster := room.NewBroadcaster(registry, logger)
	controller := session.NewController(registry, broadcaster, presenceNotifier, logger)

	sub := announce.NewSubscriber(logger, redisClient, conf.RedisAnnounceChannel, broadcaster)
	go func() {
		if err := sub.Start(ctx); err != nil {
			logger.Error("subscriber stopped with error", "error", err)
		}
	}()

	wsManager := ws.NewManager(ctx, logger, controller)
	go wsManager.Start()
	defer wsManager.Shutdown()

	server := api.NewServer(conf, wsManager, logger)
	if err := server.Start(ctx); err != nil {
		return err
	}

	return nil
}
