package main

import (
	"context"
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/hub"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/logger"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/server"
)

const groupID = "parcelhub-consumer-group"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, err := config.Load()
	if err != nil {
		logger.New("info").Fatal("failed to load config", zap.Error(err))
	}
	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consume(gctx, log, cfg.KafkaBrokers, cfg.NotificationsTopic, logNotification)
	})
	g.Go(func() error {
		return consume(gctx, log, cfg.KafkaBrokers, cfg.AuditTopic, logAudit)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("consumer stopped with error", zap.Error(err))
	}
	log.Info("consumer stopped")
}

func consume(ctx context.Context, log *zap.Logger, brokers []string, topic string, handle func(*zap.Logger, kafka.Message) error) error {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        groupID,
		Topic:          topic,
		MinBytes:       10e3,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		MaxWait:        3 * time.Second,
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Error("error closing kafka reader", zap.String("topic", topic), zap.Error(err))
		}
	}()

	log.Info("consumer connected", zap.String("topic", topic), zap.Strings("brokers", brokers))

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			log.Error("error reading message", zap.String("topic", topic), zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(5 * time.Second):
			}
			continue
		}

		if err := handle(log, m); err != nil {
			log.Warn("skipping malformed message",
				zap.String("topic", topic), zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

func logNotification(log *zap.Logger, m kafka.Message) error {
	var ev hub.Event
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		return err
	}
	fields := []zap.Field{
		zap.String("event_id", ev.ID),
		zap.String("type", string(ev.Type)),
		zap.Time("occurred_at", ev.OccurredAt),
		zap.String("owner_id", ev.OwnerID),
		zap.String("parcel_id", ev.ParcelID),
		zap.String("group_id", ev.GroupID),
		zap.String("status", ev.Status),
	}
	if ev.Amount != nil {
		fields = append(fields, zap.Stringer("amount", *ev.Amount))
	}
	for k, v := range ev.Data {
		fields = append(fields, zap.String(k, v))
	}
	if ev.Type == hub.EventAllocationMismatch {
		log.Error("payment reconciliation alert", fields...)
		return nil
	}
	log.Info("notification", fields...)
	return nil
}

func logAudit(log *zap.Logger, m kafka.Message) error {
	var entry server.AuditLogEntry
	if err := json.Unmarshal(m.Value, &entry); err != nil {
		return err
	}
	log.Info("audit",
		zap.Time("timestamp", entry.Timestamp),
		zap.String("staff", entry.Staff),
		zap.String("handler", entry.Handler),
		zap.String("method", entry.Method),
		zap.String("path", entry.Path),
		zap.Int("status_code", entry.StatusCode),
		zap.String("entity_id", entry.EntityID),
		zap.String("old_status", entry.OldStatus),
		zap.String("new_status", entry.NewStatus),
	)
	return nil
}
