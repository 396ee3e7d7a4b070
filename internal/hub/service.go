// Package hub orchestrates the parcel and shipment lifecycle: every exposed
// operation runs as one transaction over the repositories, applying the
// lifecycle, billing, consolidation and referral rules.
package hub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/cache"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/consolidation"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/lifecycle"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/model"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/referral"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository"
)

const DefaultNotificationsTopic = "hub_notifications"

type Repositories struct {
	Parcels ParcelRepository
	Groups  GroupRepository
	Users   UserRepository
	History HistoryRepository
	Outbox  OutboxTaskRepository
}

type Service struct {
	db      db.DB
	parcels ParcelRepository
	groups  GroupRepository
	users   UserRepository
	history HistoryRepository
	outbox  OutboxTaskRepository

	cache     *cache.ParcelCache
	validator *consolidation.Validator
	referrals *referral.Engine
	clock     clockz.Clock
	logger    *zap.Logger
	topic     string
}

type Option func(*Service)

func WithClock(clock clockz.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithCache(c *cache.ParcelCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithNotificationsTopic(topic string) Option {
	return func(s *Service) { s.topic = topic }
}

func New(database db.DB, repos Repositories, opts ...Option) *Service {
	s := &Service{
		db:        database,
		parcels:   repos.Parcels,
		groups:    repos.Groups,
		users:     repos.Users,
		history:   repos.History,
		outbox:    repos.Outbox,
		validator: consolidation.NewValidator(),
		referrals: referral.NewEngine(),
		clock:     clockz.RealClock,
		logger:    zap.NewNop(),
		topic:     DefaultNotificationsTopic,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

// inTx runs fn in one transaction and counts failures per operation.
func (s *Service) inTx(ctx context.Context, op string, fn func(tx db.Tx) error) error {
	err := db.RunInTx(ctx, s.db, fn)
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues(op).Inc()
		s.logger.Warn("operation failed", zap.String("op", op), zap.Error(err))
	}
	return err
}

func (s *Service) cacheParcels(parcels ...*model.Parcel) {
	if s.cache == nil {
		return
	}
	for _, p := range parcels {
		s.cache.Set(p)
	}
}

func (s *Service) recordTx(ctx context.Context, tx db.Tx, entityType, entityID, status, note string, at time.Time) error {
	entry := &repository.HistoryEntry{
		EntityType: entityType,
		EntityID:   entityID,
		Status:     status,
		Note:       note,
		ChangedAt:  at,
	}
	if err := s.history.CreateTx(ctx, tx, entry); err != nil {
		return fmt.Errorf("failed to add %s history entry: %w", entityType, err)
	}
	metrics.TransitionsTotal.WithLabelValues(entityType, status).Inc()
	return nil
}

// walkParcel moves p along the shortest legal path to target, recording
// every intermediate status. The row itself is not saved.
func (s *Service) walkParcel(ctx context.Context, tx db.Tx, p *model.Parcel, target lifecycle.ParcelStatus, note string, now time.Time) error {
	path, err := lifecycle.ParcelPath(p.Status, target)
	if err != nil {
		return fmt.Errorf("parcel %s: %w", p.ID, err)
	}
	for _, step := range path {
		if err := p.Transition(step, now); err != nil {
			return fmt.Errorf("parcel %s: %w", p.ID, err)
		}
		if err := s.recordTx(ctx, tx, repository.EntityParcel, p.ID, string(step), note, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) walkGroup(ctx context.Context, tx db.Tx, g *model.ShipmentGroup, target lifecycle.GroupStatus, note string, now time.Time) error {
	path, err := lifecycle.GroupPath(g.Status, target)
	if err != nil {
		return fmt.Errorf("group %s: %w", g.ID, err)
	}
	for _, step := range path {
		if err := g.Transition(step, now); err != nil {
			return fmt.Errorf("group %s: %w", g.ID, err)
		}
		if err := s.recordTx(ctx, tx, repository.EntityGroup, g.ID, string(step), note, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) saveParcelTx(ctx context.Context, tx db.Tx, p *model.Parcel) error {
	if err := s.parcels.UpdateTx(ctx, tx, parcelToRow(p)); err != nil {
		return fmt.Errorf("failed to update parcel %s: %w", p.ID, err)
	}
	return nil
}

func (s *Service) saveGroupTx(ctx context.Context, tx db.Tx, g *model.ShipmentGroup) error {
	if err := s.groups.UpdateTx(ctx, tx, groupToRow(g)); err != nil {
		return fmt.Errorf("failed to update group %s: %w", g.ID, err)
	}
	return nil
}

func (s *Service) lockParcelTx(ctx context.Context, tx db.Tx, id string) (*model.Parcel, error) {
	row, err := s.parcels.GetByIDTx(ctx, tx, id)
	if err != nil {
		return nil, notFound("parcel", id, err)
	}
	return parcelFromRow(row), nil
}

func (s *Service) lockGroupTx(ctx context.Context, tx db.Tx, id string) (*model.ShipmentGroup, error) {
	row, err := s.groups.GetByIDTx(ctx, tx, id)
	if err != nil {
		return nil, notFound("group", id, err)
	}
	return groupFromRow(row), nil
}

// lockParcelsTx locks every listed parcel and returns them in the order of ids.
func (s *Service) lockParcelsTx(ctx context.Context, tx db.Tx, ids []string) ([]*model.Parcel, error) {
	rows, err := s.parcels.GetByIDsTx(ctx, tx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock parcels: %w", err)
	}
	byID := make(map[string]*model.Parcel, len(rows))
	for _, row := range rows {
		byID[row.ID] = parcelFromRow(row)
	}

	out := make([]*model.Parcel, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("parcel %s: %w", id, ErrNotFound)
		}
		out = append(out, p)
	}
	return out, nil
}

func notFound(entity, id string, err error) error {
	if errors.Is(err, repository.ErrObjectNotFound) {
		return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
	}
	return fmt.Errorf("failed to get %s %s: %w", entity, id, err)
}

func newHubCode() string {
	return "HUB-" + shortID()
}

func newShipmentNumber(now time.Time) string {
	return fmt.Sprintf("SH-%s-%s", now.Format("060102"), shortID())
}

func newReferralCode() string {
	return "REF" + shortID()
}

func shortID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
