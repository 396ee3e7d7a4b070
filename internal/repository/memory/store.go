// Package memory is an in-process implementation of the hub repositories.
// Transactions are serialized by a single mutex and rolled back through an
// undo log, which gives the same all-or-nothing behaviour as the Postgres
// store at development scale.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/zoobzio/clockz"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/hub"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository"
)

var (
	ErrUnsupported = errors.New("raw queries are not supported by the memory store")
	ErrForeignTx   = errors.New("transaction does not belong to this store")
)

type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	parcels    map[string]*repository.Parcel
	groups     map[string]*repository.ShipmentGroup
	users      map[string]*repository.User
	staff      map[string][]byte
	history    []*repository.HistoryEntry
	historySeq int64
	outbox     []*repository.OutboxTask

	clock clockz.Clock
}

type Option func(*Store)

func WithClock(clock clockz.Clock) Option {
	return func(s *Store) { s.clock = clock }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		parcels: make(map[string]*repository.Parcel),
		groups:  make(map[string]*repository.ShipmentGroup),
		users:   make(map[string]*repository.User),
		staff:   make(map[string][]byte),
		clock:   clockz.RealClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repositories wires every hub repository to this store.
func (s *Store) Repositories() hub.Repositories {
	return hub.Repositories{
		Parcels: &ParcelRepo{s: s},
		Groups:  &GroupRepo{s: s},
		Users:   &UserRepo{s: s},
		History: &HistoryRepo{s: s},
		Outbox:  &OutboxTaskRepo{s: s},
	}
}

func (s *Store) Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return ErrUnsupported
}

func (s *Store) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return ErrUnsupported
}

func (s *Store) Exec(ctx context.Context, query string, args ...interface{}) (pgconn.CommandTag, error) {
	return nil, ErrUnsupported
}

func (s *Store) ExecQueryRow(ctx context.Context, query string, args ...interface{}) pgx.Row {
	return errRow{err: ErrUnsupported}
}

// BeginTx blocks until every other transaction has finished.
func (s *Store) BeginTx(ctx context.Context) (db.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.txMu.Lock()
	if err := ctx.Err(); err != nil {
		s.txMu.Unlock()
		return nil, err
	}
	return &Tx{s: s}, nil
}

func (s *Store) now() time.Time {
	return s.clock.Now().UTC()
}

// write applies fn under the data lock and records undo on tx.
func (s *Store) write(tx *Tx, fn func() (undo func())) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if undo := fn(); undo != nil && tx != nil {
		tx.undo = append(tx.undo, undo)
	}
}

func (s *Store) txFrom(tx db.Tx) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t.s != s {
		return nil, ErrForeignTx
	}
	if t.closed {
		return nil, pgx.ErrTxClosed
	}
	return t, nil
}

type Tx struct {
	s      *Store
	undo   []func()
	closed bool
}

func (t *Tx) Commit(ctx context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	t.undo = nil
	t.s.txMu.Unlock()
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	t.s.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.s.mu.Unlock()
	t.undo = nil
	t.s.txMu.Unlock()
	return nil
}

func (t *Tx) Exec(ctx context.Context, query string, args ...interface{}) (pgconn.CommandTag, error) {
	return nil, ErrUnsupported
}

func (t *Tx) ExecQueryRow(ctx context.Context, query string, args ...interface{}) pgx.Row {
	return errRow{err: ErrUnsupported}
}

func (t *Tx) Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return ErrUnsupported
}

func (t *Tx) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return ErrUnsupported
}

type errRow struct {
	err error
}

func (r errRow) Scan(dest ...interface{}) error {
	return r.err
}

func ptr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneParcel(p *repository.Parcel) *repository.Parcel {
	c := *p
	c.CarrierTracking = ptr(p.CarrierTracking)
	c.StoragePaidUntil = ptr(p.StoragePaidUntil)
	c.StorageInvoiceID = ptr(p.StorageInvoiceID)
	c.GroupID = ptr(p.GroupID)
	c.ArrivedAt = ptr(p.ArrivedAt)
	return &c
}

func cloneGroup(g *repository.ShipmentGroup) *repository.ShipmentGroup {
	c := *g
	c.ParcelIDs = append([]string(nil), g.ParcelIDs...)
	c.PaymentRef = ptr(g.PaymentRef)
	c.CarrierTracking = ptr(g.CarrierTracking)
	c.PaidAt = ptr(g.PaidAt)
	return &c
}

func cloneUser(u *repository.User) *repository.User {
	c := *u
	c.ReferredBy = ptr(u.ReferredBy)
	return &c
}

func cloneTask(t *repository.OutboxTask) *repository.OutboxTask {
	c := *t
	c.Payload = append([]byte(nil), t.Payload...)
	c.LastError = ptr(t.LastError)
	c.CompletedAt = ptr(t.CompletedAt)
	return &c
}
