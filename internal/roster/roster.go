// Package roster fronts the master worker and student registries with
// per-id caches. The editor resolves people here when adding them to a
// record; the snapshot it takes is then owned by the record.
package roster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"elaun/internal/cache"
	"elaun/internal/core"
	"elaun/internal/storage"
)

// Store loads master roster rows from durable storage.
type Store interface {
	GetWorker(ctx context.Context, id string) (core.Worker, error)
	GetStudent(ctx context.Context, id string) (core.Student, error)
	ListWorkers(ctx context.Context) ([]core.Worker, error)
	ListStudents(ctx context.Context) ([]core.Student, error)
}

type Service struct {
	store    Store
	workers  *cache.LRUCache[core.Worker]
	students *cache.LRUCache[core.Student]
}

func NewService(store Store, size int, ttl time.Duration) *Service {
	return &Service{
		store:    store,
		workers:  cache.NewLRUCache[core.Worker](size, ttl),
		students: cache.NewLRUCache[core.Student](size, ttl),
	}
}

func (s *Service) Worker(ctx context.Context, id string) (core.Worker, error) {
	if w, ok := s.workers.Get(id); ok {
		return w, nil
	}
	w, err := s.store.GetWorker(ctx, id)
	if err != nil {
		return core.Worker{}, err
	}
	s.workers.Set(id, w)
	return w, nil
}

func (s *Service) Student(ctx context.Context, id string) (core.Student, error) {
	if st, ok := s.students.Get(id); ok {
		return st, nil
	}
	st, err := s.store.GetStudent(ctx, id)
	if err != nil {
		return core.Student{}, err
	}
	s.students.Set(id, st)
	return st, nil
}

// Snapshot resolves a person in the master roster and returns the
// participant snapshot a record embeds: identity fields plus the pay
// category as registered right now.
func (s *Service) Snapshot(ctx context.Context, role core.Role, personID string) (core.Participant, error) {
	switch role {
	case core.RoleWorker:
		w, err := s.Worker(ctx, personID)
		if err != nil {
			return core.Participant{}, fmt.Errorf("resolve worker %s: %w", personID, err)
		}
		return core.Participant{
			ID:            w.ID,
			Name:          w.Name,
			Position:      w.Position,
			KategoriElaun: w.KategoriElaun,
		}, nil
	case core.RoleStudent:
		st, err := s.Student(ctx, personID)
		if err != nil {
			return core.Participant{}, fmt.Errorf("resolve student %s: %w", personID, err)
		}
		return core.Participant{
			ID:            st.ID,
			Name:          st.Name,
			IdentityNo:    st.IdentityNo,
			KategoriElaun: st.KategoriElaun,
		}, nil
	default:
		return core.Participant{}, core.ErrInvalidRole
	}
}

// Category returns the registered pay category for a person, or empty
// when the person is unknown. Used by the category backfill pass.
func (s *Service) Category(ctx context.Context, role core.Role, personID string) (string, error) {
	p, err := s.Snapshot(ctx, role, personID)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return p.KategoriElaun, nil
}

func (s *Service) Workers(ctx context.Context) ([]core.Worker, error) {
	return s.store.ListWorkers(ctx)
}

func (s *Service) Students(ctx context.Context) ([]core.Student, error) {
	return s.store.ListStudents(ctx)
}

// Refresh drops the per-id caches.
func (s *Service) Refresh() {
	s.workers.Purge()
	s.students.Purge()
}

// CleanExpired evicts stale entries from both caches.
func (s *Service) CleanExpired() int {
	return s.workers.CleanExpired() + s.students.CleanExpired()
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
