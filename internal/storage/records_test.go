package storage

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/kalambet/stagelog/internal/journal"
)

func newTestArrayStore(t *testing.T) *ArrayStore {
	t.Helper()
	return NewArrayStore(openTestStore(t), "")
}

func sampleRecord(id string) journal.Record {
	return journal.Record{
		ID:       id,
		Title:    "Hamlet",
		Date:     "2024-06-01",
		Time:     "19:30",
		Location: "国家大剧院",
		Price:    380,
		Cast:     []journal.CastMember{{Role: "Hamlet", Actor: "A. Actor"}},
		Status:   journal.StatusWatched,
		Notes:    "row 5",
	}
}

func TestArrayStoreEmpty(t *testing.T) {
	a := newTestArrayStore(t)
	ctx := context.Background()

	recs, err := a.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Errorf("List() = %v, want empty non-nil slice", recs)
	}
	raw, err := a.Raw(ctx)
	if err != nil {
		t.Fatalf("Raw: %v", err)
	}
	if string(raw) != "[]" {
		t.Errorf("Raw() = %q, want []", raw)
	}
}

func TestArrayStoreInsertListRoundTrip(t *testing.T) {
	a := newTestArrayStore(t)
	ctx := context.Background()

	want := sampleRecord("r1")
	if err := a.Insert(ctx, want); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	recs, err := a.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("len = %d, want 1", len(recs))
	}
	if !reflect.DeepEqual(recs[0], want) {
		t.Errorf("List()[0] = %+v, want %+v", recs[0], want)
	}

	got, err := a.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Hamlet" {
		t.Errorf("Get().Title = %q", got.Title)
	}
}

func TestArrayStoreDuplicateID(t *testing.T) {
	a := newTestArrayStore(t)
	ctx := context.Background()

	if err := a.Insert(ctx, sampleRecord("dup")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	err := a.Insert(ctx, sampleRecord("dup"))
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("second Insert err = %v, want ErrDuplicateID", err)
	}
	recs, _ := a.List(ctx)
	if len(recs) != 1 {
		t.Errorf("len = %d after rejected insert, want 1", len(recs))
	}
}

func TestArrayStoreUpdateDelete(t *testing.T) {
	a := newTestArrayStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := a.Insert(ctx, sampleRecord(id)); err != nil {
			t.Fatalf("Insert %s: %v", id, err)
		}
	}

	upd := sampleRecord("b")
	upd.Title = "Macbeth"
	if err := a.Update(ctx, "b", upd); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := a.Update(ctx, "zzz", upd); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) err = %v, want ErrNotFound", err)
	}

	if err := a.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := a.Delete(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete err = %v, want ErrNotFound", err)
	}
	if _, err := a.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(deleted) err = %v, want ErrNotFound", err)
	}

	recs, _ := a.List(ctx)
	if len(recs) != 2 || recs[0].ID != "b" || recs[0].Title != "Macbeth" || recs[1].ID != "c" {
		t.Errorf("List() = %+v", recs)
	}

	removed, err := a.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if len(removed) != 2 || removed[0].ID != "b" || removed[1].ID != "c" {
		t.Errorf("Clear removed %+v, want b and c", removed)
	}
	recs, _ = a.List(ctx)
	if len(recs) != 0 {
		t.Errorf("len = %d after Clear, want 0", len(recs))
	}
}

func TestArrayStoreCoercesStoredPrice(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	raw := `[{"id":"x","title":"T","date":"2024-01-01","price":"abc","cast":[]},{"id":"y","title":"U","date":"2024-01-02","price":"120"}]`
	if err := s.Update(ctx, RecordsKey, func([]byte) ([]byte, error) { return []byte(raw), nil }); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	recs, err := NewArrayStore(s, "").List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if recs[0].Price != 0 || recs[1].Price != 120 {
		t.Errorf("prices = %v, %v; want 0, 120", recs[0].Price, recs[1].Price)
	}
}

func TestArrayStoreConcurrentInserts(t *testing.T) {
	a := newTestArrayStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := a.Insert(ctx, sampleRecord(string(rune('a'+i)))); err != nil {
				t.Errorf("Insert: %v", err)
			}
		}(i)
	}
	wg.Wait()

	recs, _ := a.List(ctx)
	if len(recs) != 20 {
		t.Errorf("len = %d, want 20", len(recs))
	}
}

// memKV is an in-memory KV for tests.
type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memKV) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memKV) Update(_ context.Context, key string, fn func([]byte) ([]byte, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := fn(m.data[key])
	if err != nil {
		return err
	}
	m.data[key] = next
	return nil
}

func TestArrayStoreCustomKey(t *testing.T) {
	kv := &memKV{data: map[string][]byte{}}
	a := NewArrayStore(kv, "other")
	if err := a.Insert(context.Background(), sampleRecord("k")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, ok := kv.data["other"]; !ok {
		t.Error("records not stored under custom key")
	}
	if _, ok := kv.data[RecordsKey]; ok {
		t.Error("records leaked into default key")
	}
}
