// Package rates serves the external stipend rate table through a
// read-through cache. The table is small and changes rarely; edits made
// out of band become visible after the TTL or an explicit Refresh.
package rates

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"elaun/internal/cache"
	"elaun/internal/core"
)

const tableKey = "rate_table"

// Source loads rate rows from durable storage.
type Source interface {
	ListRates(ctx context.Context) ([]core.RateCategory, error)
}

// Service answers (kategori, jenis) lookups from a cached copy of the
// whole table.
type Service struct {
	source Source
	table  *cache.LRUCache[map[string]core.RateCategory]
}

func NewService(source Source, ttl time.Duration) *Service {
	return &Service{
		source: source,
		// One entry: the whole table keyed by tableKey.
		table: cache.NewLRUCache[map[string]core.RateCategory](1, ttl),
	}
}

func key(kategori, jenis string) string {
	return kategori + "/" + jenis
}

func (s *Service) load(ctx context.Context) (map[string]core.RateCategory, error) {
	if table, ok := s.table.Get(tableKey); ok {
		return table, nil
	}

	rows, err := s.source.ListRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rate table: %w", err)
	}
	table := make(map[string]core.RateCategory, len(rows))
	for _, r := range rows {
		table[key(r.Kategori, r.Jenis)] = r
	}
	s.table.Set(tableKey, table)

	slog.InfoContext(ctx, "Rate table loaded", "entries", len(table))
	return table, nil
}

// Lookup resolves the rate for an exact (kategori, jenis) pair. A
// missing pair returns (nil, nil); the caller treats it as a zero
// stipend, not an error.
func (s *Service) Lookup(ctx context.Context, kategori, jenis string) (*core.RateCategory, error) {
	if kategori == "" {
		return nil, nil
	}
	table, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	r, ok := table[key(kategori, jenis)]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// All returns the full table, for the options endpoint and reports.
func (s *Service) All(ctx context.Context) ([]core.RateCategory, error) {
	table, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.RateCategory, 0, len(table))
	for _, r := range table {
		out = append(out, r)
	}
	return out, nil
}

// Refresh drops the cached table so the next lookup reloads it.
func (s *Service) Refresh(ctx context.Context) error {
	s.table.Purge()
	_, err := s.load(ctx)
	return err
}

// CleanExpired evicts the table once its TTL passes.
func (s *Service) CleanExpired() int {
	return s.table.CleanExpired()
}
