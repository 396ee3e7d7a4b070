package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/cache"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/grpcserver"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/hub"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/kafka"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/logger"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository/memory"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository/postgresql"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/server"
)

type staffStore interface {
	server.StaffRepo
	EnsureStaff(ctx context.Context, username, password string) (bool, error)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, source, err := config.Load()
	if err != nil {
		logger.New("info").Fatal("failed to load config", zap.Error(err))
	}

	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()
	if source != "" {
		log.Info("loaded environment file", zap.String("path", source))
	}

	var (
		database db.DB
		repos    hub.Repositories
		staff    staffStore
	)
	switch cfg.StoreDriver {
	case config.DriverMemory:
		store := memory.NewStore()
		database, repos, staff = store, store.Repositories(), store.Staff()
		log.Warn("using in-memory store, state is lost on exit")
	default:
		pool, err := db.NewDb(ctx, cfg.DB)
		if err != nil {
			log.Fatal("database init error", zap.Error(err))
		}
		defer pool.Close()

		database = pool
		repos = hub.Repositories{
			Parcels: postgresql.NewParcelRepo(pool),
			Groups:  postgresql.NewGroupRepo(pool),
			Users:   postgresql.NewUserRepo(pool),
			History: postgresql.NewHistoryRepo(pool),
			Outbox:  postgresql.NewOutboxTaskRepo(),
		}
		staff = postgresql.NewStaffRepo(pool)
	}

	if cfg.AdminUsername != "" {
		created, err := staff.EnsureStaff(ctx, cfg.AdminUsername, cfg.AdminPassword)
		if err != nil {
			log.Fatal("failed to provision admin account", zap.Error(err))
		}
		if created {
			log.Info("admin account created", zap.String("username", cfg.AdminUsername))
		}
	}

	parcelCache := cache.NewParcelCache(log)
	svc := hub.New(database, repos,
		hub.WithLogger(log),
		hub.WithCache(parcelCache),
		hub.WithNotificationsTopic(cfg.NotificationsTopic),
	)
	if err := parcelCache.LoadInitialData(ctx, svc); err != nil {
		log.Fatal("failed to load parcel cache", zap.Error(err))
	}

	var producer kafka.Producer
	if len(cfg.KafkaBrokers) == 0 {
		producer = kafka.NewLogProducer(log)
	} else {
		producer = kafka.NewKafkaProducer(cfg.KafkaBrokers, kafka.DefaultBreakerConfig(), log)
	}
	publisher := kafka.NewPublisher(database, repos.Outbox, producer, kafka.PublisherConfig{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		MaxAttempts:  cfg.OutboxMaxAttempts,
	}, log)

	srv := server.New(svc, staff, server.NewOutboxAuditSink(database, repos.Outbox, cfg.AuditTopic), log)
	grpcSrv := grpcserver.NewServer(svc, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, cfg.HTTPPort)
	})
	g.Go(func() error {
		return grpcSrv.Run(gctx, cfg.GRPCPort)
	})
	g.Go(func() error {
		publisher.Run(gctx)
		publisher.Shutdown()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("hub stopped with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("hub gracefully stopped")
}
