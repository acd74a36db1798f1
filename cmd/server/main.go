package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/HARSHARORA2812/Vichola/internal/api"
	"github.com/HARSHARORA2812/Vichola/internal/auth"
	"github.com/HARSHARORA2812/Vichola/internal/config"
	"github.com/HARSHARORA2812/Vichola/internal/events"
	"github.com/HARSHARORA2812/Vichola/internal/logger"
	"github.com/HARSHARORA2812/Vichola/internal/presence"
	"github.com/HARSHARORA2812/Vichola/internal/service"
	"github.com/HARSHARORA2812/Vichola/internal/store"
	"github.com/HARSHARORA2812/Vichola/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zl, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	sugar := zl.Sugar()

	var threads store.ThreadStore
	switch cfg.App.Storage {
	case "memory":
		threads = store.NewMemoryStore()
	default:
		mc, err := store.NewMongoClient(context.Background(), cfg.Mongo.URI)
		if err != nil {
			sugar.Fatalw("mongo init", "err", err)
		}
		defer func() { _ = mc.Disconnect(context.Background()) }()
		threads = store.NewMongoStore(mc.Database(cfg.Mongo.DB).Collection("threads"))
	}

	var pres *presence.Store
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		pres = presence.NewStore(rdb, cfg.Redis.Prefix)
	}

	var pub *events.Publisher
	var eventSink service.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		pub = events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicMessageAppended)
		eventSink = pub
	}

	svc := service.NewChatService(threads, eventSink, sugar)
	validator := auth.NewValidator(cfg.App.JWTSecret)

	hub := ws.NewHub()
	var tracker ws.PresenceTracker
	if pres != nil {
		tracker = pres
	}
	router := ws.NewRouter(hub, validator, tracker, sugar,
		cfg.PingInterval, cfg.WriteDeadline, cfg.WS.MaxMessageSizeBytes)

	app := api.NewServer(svc, validator, router, pres, sugar)

	errs := make(chan error, 1)
	go func() {
		addr := ":" + strconv.Itoa(cfg.App.Port)
		sugar.Infow("chat service listening", "addr", addr, "storage", cfg.App.Storage)
		errs <- app.Listen(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errs:
		sugar.Fatalw("server error", "err", err)
	case sig := <-quit:
		sugar.Infow("signal received", "sig", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		sugar.Warnw("shutdown", "err", err)
	}
	if pub != nil {
		_ = pub.Close()
	}
	sugar.Info("chat service stopped")
}
