package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/model"
)

type ParcelLoader interface {
	ActiveParcels(ctx context.Context) ([]*model.Parcel, error)
}

// ParcelCache keeps copies of non-terminal parcels for read paths. Storage
// debt is never cached; it is projected from the cached fields on each read.
//
// Writers reach the cache after their transaction commits, so copies can
// arrive out of order. A copy older than the one already known (by
// UpdatedAt) is dropped. Evicted terminal parcels leave their UpdatedAt
// behind so a late non-terminal copy cannot bring them back.
type ParcelCache struct {
	mu      sync.RWMutex
	cache   map[string]*model.Parcel
	evicted map[string]time.Time
	logger  *zap.Logger
}

func NewParcelCache(logger *zap.Logger) *ParcelCache {
	return &ParcelCache{
		cache:   make(map[string]*model.Parcel),
		evicted: make(map[string]time.Time),
		logger:  logger,
	}
}

func (c *ParcelCache) LoadInitialData(ctx context.Context, loader ParcelLoader) error {
	c.logger.Info("loading active parcels into cache")
	parcels, err := loader.ActiveParcels(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range parcels {
		c.cache[p.ID] = clone(p)
	}
	metrics.ParcelCacheItems.Set(float64(len(c.cache)))
	c.logger.Info("parcel cache loaded", zap.Int("parcels", len(c.cache)))
	return nil
}

func (c *ParcelCache) Get(id string) (*model.Parcel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, found := c.cache[id]
	if !found {
		return nil, false
	}
	return clone(p), true
}

// Set stores p, or evicts it once it reaches a terminal status. It reports
// false when p is older than the copy the cache already has seen.
func (c *ParcelCache) Set(p *model.Parcel) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if known, ok := c.latest(p.ID); ok && p.UpdatedAt.Before(known) {
		c.logger.Debug("cache: dropped stale parcel",
			zap.String("parcel_id", p.ID), zap.Time("updated_at", p.UpdatedAt), zap.Time("known", known))
		return false
	}

	if p.Status.IsTerminal() {
		delete(c.cache, p.ID)
		c.evicted[p.ID] = p.UpdatedAt
		metrics.ParcelCacheItems.Set(float64(len(c.cache)))
		c.logger.Debug("cache: evicted terminal parcel", zap.String("parcel_id", p.ID))
		return true
	}

	delete(c.evicted, p.ID)
	c.cache[p.ID] = clone(p)
	metrics.ParcelCacheItems.Set(float64(len(c.cache)))
	c.logger.Debug("cache: set parcel", zap.String("parcel_id", p.ID), zap.String("status", string(p.Status)))
	return true
}

func (c *ParcelCache) latest(id string) (time.Time, bool) {
	if p, ok := c.cache[id]; ok {
		return p.UpdatedAt, true
	}
	at, ok := c.evicted[id]
	return at, ok
}

func (c *ParcelCache) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, found := c.cache[id]; found {
		delete(c.cache, id)
		metrics.ParcelCacheItems.Set(float64(len(c.cache)))
		c.logger.Debug("cache: deleted parcel", zap.String("parcel_id", id))
	}
}

func (c *ParcelCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

func clone(p *model.Parcel) *model.Parcel {
	cp := *p
	cp.StoragePaidUntil = clonePtr(p.StoragePaidUntil)
	cp.StorageInvoiceID = clonePtr(p.StorageInvoiceID)
	cp.GroupID = clonePtr(p.GroupID)
	cp.ArrivedAt = clonePtr(p.ArrivedAt)
	return &cp
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}
