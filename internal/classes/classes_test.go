package classes

import (
	"context"
	"testing"
	"time"

	"elaun/internal/core"
	"elaun/internal/storage"
)

type fakeStore struct {
	classes map[string]core.Class
	calls   int
}

func (f *fakeStore) GetClass(ctx context.Context, id string) (core.Class, error) {
	f.calls++
	c, ok := f.classes[id]
	if !ok {
		return core.Class{}, storage.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) ListClasses(ctx context.Context) ([]core.Class, error) {
	out := make([]core.Class, 0, len(f.classes))
	for _, c := range f.classes {
		out = append(out, c)
	}
	return out, nil
}

func TestGet(t *testing.T) {
	store := &fakeStore{classes: map[string]core.Class{
		"kelas-01": {ID: "kelas-01", Name: "Kelas Fardu Ain", Location: "Masjid Alor Setar", State: "Kedah"},
	}}
	dir := NewDirectory(store, 10, time.Minute)
	ctx := context.Background()

	c, ok, err := dir.Get(ctx, "kelas-01")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || c.State != "Kedah" {
		t.Errorf("Get = %+v ok=%v", c, ok)
	}

	// Unknown class is a miss, not an error.
	_, ok, err = dir.Get(ctx, "kelas-99")
	if err != nil {
		t.Fatalf("Get unknown: %v", err)
	}
	if ok {
		t.Error("unknown class reported as found")
	}

	dir.Get(ctx, "kelas-01")
	if store.calls != 2 {
		// One for the first load, one for the unknown id; the repeat
		// is served from cache.
		t.Errorf("store hit %d times, want 2", store.calls)
	}
}
