package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"assist/internal/app/registry"
	"assist/internal/app/server"
	"assist/internal/app/worker"
	"assist/internal/config"
	"assist/internal/core/contracts"
	"assist/internal/core/domain"
	"assist/internal/core/services"
	"assist/internal/platform/logger"
	"assist/internal/platform/telemetry"
	"assist/internal/plugins/mail"
	"assist/internal/plugins/memory"
	mongoPlugin "assist/internal/plugins/mongo"
	redisPlugin "assist/internal/plugins/redis"
	"assist/internal/plugins/storage"
	"assist/internal/plugins/webhook"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config
	cfg := config.Load()

	// Logger
	log := logger.NewLogger(*cfg)
	log.Info("starting application")
	if cfg.Service.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
		otelShutdown = func(context.Context) error { return nil }
	}
	defer func() {
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "err", err)
		}
	}()

	clk := clockwork.NewRealClock()
	if cfg.Auth.Secret == "" {
		log.Warn("JWT_SECRET is empty, account tokens cannot be validated")
	}
	tokenSvc := services.NewTokenService(cfg.Auth.Secret, cfg.Auth.Issuer, 0)

	// Stores
	var (
		tickets  domain.TicketRepository
		settings domain.SettingsRepository
		accounts domain.AccountRepository
		health   server.HealthCheck
	)
	switch cfg.Drivers.Store {
	case "memory":
		settingsStore := memory.NewSettingsStore()
		dev := domain.Account{ID: primitive.NewObjectID(), FirstName: "Dev", LastName: "Owner", Email: "dev@assist.local"}
		tickets = memory.NewTicketStore(settingsStore)
		settings = settingsStore
		accounts = memory.NewAccountStore(dev)
		if tok, err := tokenSvc.GenerateToken(dev.ID.Hex()); err == nil {
			log.Warn("memory store in use, seeded a development account", "account_id", dev.ID.Hex(), "token", tok)
		}
	default:
		client, err := mongoPlugin.New(ctx, *cfg.Mongo)
		if err != nil {
			log.Error("mongo connection failed", "uri", cfg.Mongo.URI, "err", err)
			return
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		log.Info("mongo connected")
		db := client.Database(cfg.Mongo.Database)
		if err := mongoPlugin.EnsureIndexes(ctx, db, *cfg.Mongo); err != nil {
			log.Error("mongo indexes failed", "err", err)
			return
		}
		tickets = mongoPlugin.NewTicketRepo(db.Collection(cfg.Mongo.TicketsCollection), cfg.Mongo.SettingsCollection)
		settings = mongoPlugin.NewSettingsRepo(db.Collection(cfg.Mongo.SettingsCollection))
		accounts = mongoPlugin.NewAccountRepo(db.Collection(cfg.Mongo.UsersCollection))
		health = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	}

	// Presence, fanout, sweep lock
	var (
		presence contracts.PresenceStore
		bus      contracts.EventBus
		locker   contracts.Locker
	)
	switch cfg.Drivers.Presence {
	case "memory":
		presence = memory.NewPresenceStore()
	default:
		var rdb *redis.Client
		if rdb, err = redisPlugin.NewRedisClient(ctx, *cfg.Redis); err != nil {
			log.Error("redis connection failed", "url", cfg.Redis.URL, "err", err)
			return
		}
		defer rdb.Close()
		log.Info("redis connected")
		presence = redisPlugin.NewRedisPresenceStore(rdb)
		locker = redisPlugin.NewRedisLocker(rdb)
		if cfg.Redis.Fanout {
			bus = redisPlugin.NewRedisEventBus(log, rdb, cfg.Redis.FanoutChannel)
		}
	}

	// Adapters
	var uploader contracts.Uploader = storage.DisabledUploader{}
	if cfg.Storage.Endpoint != "" {
		mc, err := storage.NewMinioClient(ctx, *cfg.Storage)
		if err != nil {
			log.Error("minio connection failed", "endpoint", cfg.Storage.Endpoint, "err", err)
			return
		}
		uploader = storage.NewMinioUploader(mc, *cfg.Storage)
	} else {
		log.Warn("object storage not configured, image messages are disabled")
	}

	var notifier contracts.Notifier
	switch cfg.Notifier.Kind {
	case "webhook":
		notifier = webhook.NewWebhookNotifier(*cfg.Notifier)
	case "smtp":
		notifier = mail.NewSMTPNotifier(*cfg.Notifier)
	default:
		log.Warn("no notifier configured, visitors will not be mailed")
	}

	// Core Services
	hub := registry.NewRegistry(log, presence, bus, uuid.NewString())
	ticketSvc := services.NewTicketService(log, tickets, accounts, uploader, clk)
	tenantSvc := services.NewTenantService(log, accounts, settings, clk)
	bot := services.NewBotReplier(log, ticketSvc, hub, clk, cfg.Bot.Delay, cfg.Bot.Text)
	managerSvc := services.NewManagerService(log, hub, bot)

	sweep := worker.NewNotificationSweep(log, tickets, notifier, locker, clk, cfg.Sweep.Interval, cfg.Sweep.LockTTL)

	// Server
	srv := server.NewServer(cfg, log, ticketSvc, tenantSvc, tokenSvc, managerSvc, health)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error {
		sweep.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error("application stopped with error", "err", err)
	}
}
