package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository"
)

type AuditLogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Handler    string    `json:"handler"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	StatusCode int       `json:"status_code"`
	Staff      string    `json:"staff,omitempty"`
	EntityID   string    `json:"entity_id,omitempty"`
	OldStatus  string    `json:"old_status,omitempty"`
	NewStatus  string    `json:"new_status,omitempty"`
	Request    string    `json:"request,omitempty"`
	Response   string    `json:"response,omitempty"`
}

// AuditSink persists a batch of audit entries.
type AuditSink interface {
	WriteAudit(ctx context.Context, batch []AuditLogEntry) error
}

type OutboxWriter interface {
	CreateTx(ctx context.Context, tx db.Tx, task *repository.OutboxTask) error
}

// OutboxAuditSink stores every batch in the outbox, one task per entry, so
// audit records reach the broker through the same publisher as notifications.
type OutboxAuditSink struct {
	db     db.DB
	outbox OutboxWriter
	topic  string
}

func NewOutboxAuditSink(database db.DB, outbox OutboxWriter, topic string) *OutboxAuditSink {
	return &OutboxAuditSink{db: database, outbox: outbox, topic: topic}
}

func (s *OutboxAuditSink) WriteAudit(ctx context.Context, batch []AuditLogEntry) error {
	return db.RunInTx(ctx, s.db, func(tx db.Tx) error {
		for _, entry := range batch {
			payload, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("failed to marshal audit entry: %w", err)
			}
			task := &repository.OutboxTask{Topic: s.topic, Payload: payload}
			if err := s.outbox.CreateTx(ctx, tx, task); err != nil {
				return fmt.Errorf("failed to enqueue audit entry: %w", err)
			}
		}
		return nil
	})
}
