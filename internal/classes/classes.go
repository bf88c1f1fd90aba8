// Package classes resolves class master metadata (name, location,
// state, type, level) behind a per-id cache.
package classes

import (
	"context"
	"errors"
	"time"

	"elaun/internal/cache"
	"elaun/internal/core"
	"elaun/internal/storage"
)

// Store loads class rows from durable storage.
type Store interface {
	GetClass(ctx context.Context, id string) (core.Class, error)
	ListClasses(ctx context.Context) ([]core.Class, error)
}

type Directory struct {
	store Store
	byID  *cache.LRUCache[core.Class]
}

func NewDirectory(store Store, size int, ttl time.Duration) *Directory {
	return &Directory{
		store: store,
		byID:  cache.NewLRUCache[core.Class](size, ttl),
	}
}

// Get resolves one class. An unknown id returns (Class{}, false, nil)
// so aggregation can keep going with a placeholder row.
func (d *Directory) Get(ctx context.Context, id string) (core.Class, bool, error) {
	if c, ok := d.byID.Get(id); ok {
		return c, true, nil
	}
	c, err := d.store.GetClass(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return core.Class{}, false, nil
	}
	if err != nil {
		return core.Class{}, false, err
	}
	d.byID.Set(id, c)
	return c, true, nil
}

func (d *Directory) All(ctx context.Context) ([]core.Class, error) {
	return d.store.ListClasses(ctx)
}

// Refresh drops the per-id cache.
func (d *Directory) Refresh() {
	d.byID.Purge()
}

// CleanExpired evicts stale entries.
func (d *Directory) CleanExpired() int {
	return d.byID.CleanExpired()
}
