// Package memory is the in-process report sink: the default backend in
// development and the double the worker tests run against.
package memory

import (
	"context"
	"sort"
	"sync"

	"elaun/internal/report"
)

type Sink struct {
	mu   sync.Mutex
	rows map[string][]report.Row
}

func New() *Sink {
	return &Sink{rows: make(map[string][]report.Row)}
}

// WriteRows replaces the stored rows for the record. Writing an empty
// slice clears the record from the sink.
func (s *Sink) WriteRows(_ context.Context, recordID string, rows []report.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(rows) == 0 {
		delete(s.rows, recordID)
		return nil
	}
	s.rows[recordID] = append([]report.Row(nil), rows...)
	return nil
}

// Rows returns the stored rows for one record.
func (s *Sink) Rows(recordID string) []report.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]report.Row(nil), s.rows[recordID]...)
}

// All returns every stored row ordered by record id.
func (s *Sink) All() []report.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.rows))
	for id := range s.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []report.Row
	for _, id := range ids {
		out = append(out, s.rows[id]...)
	}
	return out
}
