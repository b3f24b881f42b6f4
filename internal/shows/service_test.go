package shows

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kalambet/stagelog/internal/journal"
	"github.com/kalambet/stagelog/internal/metrics"
	"github.com/kalambet/stagelog/internal/storage"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

type mockMirror struct {
	upserts []string
	deletes []string
	err     error
}

func (m *mockMirror) QueueUpsert(rec journal.Record) error {
	m.upserts = append(m.upserts, rec.ID)
	return m.err
}

func (m *mockMirror) QueueDelete(id string) error {
	m.deletes = append(m.deletes, id)
	return m.err
}

type testEnv struct {
	svc    *Service
	store  *storage.ArrayStore
	mirror *mockMirror
	clock  *fixedClock
	logs   *observer.ObservedLogs
	m      *metrics.Metrics
}

func newTestService(t *testing.T) *testEnv {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	core, logs := observer.New(zap.InfoLevel)
	env := &testEnv{
		store:  storage.NewArrayStore(db, ""),
		mirror: &mockMirror{},
		clock:  &fixedClock{now: time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)},
		logs:   logs,
		m:      metrics.New(),
	}
	n := 0
	env.svc = New(Options{
		Store:    env.store,
		Mirror:   env.mirror,
		Clock:    env.clock,
		Location: time.UTC,
		Logger:   zap.New(core),
		Metrics:  env.m,
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	})
	return env
}

func TestCreateStampsStatusAndID(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	past, err := env.svc.Create(ctx, journal.Record{Title: "Hamlet", Date: "2024-06-14", Price: 120, Status: journal.StatusToWatch})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if past.ID != "id-1" {
		t.Errorf("ID = %q, want id-1", past.ID)
	}
	if past.Status != journal.StatusWatched {
		t.Errorf("Status = %q, want watched", past.Status)
	}

	today, err := env.svc.Create(ctx, journal.Record{Title: "Cats", Date: "2024-06-15"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if today.Status != journal.StatusToWatch {
		t.Errorf("today Status = %q, want towatch", today.Status)
	}
	if today.Cast == nil {
		t.Error("Cast is nil, want empty slice")
	}

	if !reflect.DeepEqual(env.mirror.upserts, []string{"id-1", "id-2"}) {
		t.Errorf("mirror upserts = %v", env.mirror.upserts)
	}
	if got := testutil.ToFloat64(env.m.Mutations.WithLabelValues("create", "ok")); got != 2 {
		t.Errorf("create ok = %v, want 2", got)
	}
}

func TestCreateRoundTrip(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	in := journal.Record{
		ID:          "fixed",
		Title:       "Les Misérables",
		Date:        "2024-07-01",
		Time:        "19:30",
		Location:    "上海文化广场",
		Price:       680,
		PosterImage: "data:image/png;base64,AAAA",
		Cast:        []journal.CastMember{{Role: "Valjean", Actor: "A"}, {Role: "", Actor: "B"}},
		Status:      journal.StatusWatched,
		Notes:       "front row",
	}
	if _, err := env.svc.Create(ctx, in); err != nil {
		t.Fatalf("Create: %v", err)
	}
	recs, err := env.svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := in
	want.Status = journal.StatusToWatch
	if len(recs) != 1 || !reflect.DeepEqual(recs[0], want) {
		t.Errorf("List() = %+v, want %+v", recs, want)
	}
}

func TestCreateNormalizes(t *testing.T) {
	env := newTestService(t)

	rec, err := env.svc.Create(context.Background(), journal.Record{Title: "T", Date: "2024-1-5", Price: -3})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Date != "2024-01-05" {
		t.Errorf("Date = %q, want 2024-01-05", rec.Date)
	}
	if rec.Price != 0 {
		t.Errorf("Price = %v, want 0", rec.Price)
	}
}

func TestCreateValidation(t *testing.T) {
	env := newTestService(t)

	_, err := env.svc.Create(context.Background(), journal.Record{Title: "", Date: ""})
	var ve *journal.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	recs, _ := env.svc.List(context.Background())
	if len(recs) != 0 {
		t.Error("invalid record was saved")
	}
	if len(env.mirror.upserts) != 0 {
		t.Error("invalid record was mirrored")
	}
	if got := testutil.ToFloat64(env.m.Mutations.WithLabelValues("create", "invalid")); got != 1 {
		t.Errorf("create invalid = %v, want 1", got)
	}
}

func TestCreateDuplicateID(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	rec := journal.Record{ID: "same", Title: "A", Date: "2024-01-01"}

	if _, err := env.svc.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := env.svc.Create(ctx, rec); !errors.Is(err, storage.ErrDuplicateID) {
		t.Errorf("second Create err = %v, want ErrDuplicateID", err)
	}
}

func TestUpdateRestampsStatus(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	rec, err := env.svc.Create(ctx, journal.Record{Title: "A", Date: "2024-06-20"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Status != journal.StatusToWatch {
		t.Fatalf("Status = %q", rec.Status)
	}

	env.clock.now = time.Date(2024, 6, 25, 9, 0, 0, 0, time.UTC)
	rec.Notes = "seen it"
	updated, err := env.svc.Update(ctx, rec.ID, rec)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != journal.StatusWatched {
		t.Errorf("Status after update = %q, want watched", updated.Status)
	}
	got, _ := env.svc.Get(ctx, rec.ID)
	if got.Notes != "seen it" || got.Status != journal.StatusWatched {
		t.Errorf("stored = %+v", got)
	}

	if _, err := env.svc.Update(ctx, "missing", rec); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Update(missing) err = %v, want ErrNotFound", err)
	}
}

func TestUpdateKeepsID(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	rec, _ := env.svc.Create(ctx, journal.Record{Title: "A", Date: "2024-01-01"})
	rec.ID = "hijack"
	updated, err := env.svc.Update(ctx, "id-1", rec)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.ID != "id-1" {
		t.Errorf("ID = %q, want id-1", updated.ID)
	}
}

func TestDeleteAndClear(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := env.svc.Create(ctx, journal.Record{Title: "S", Date: "2024-01-01"}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := env.svc.Delete(ctx, "id-2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := env.svc.Delete(ctx, "id-2"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second Delete err = %v, want ErrNotFound", err)
	}

	n, err := env.svc.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 2 {
		t.Errorf("Clear removed %d, want 2", n)
	}
	if !reflect.DeepEqual(env.mirror.deletes, []string{"id-2", "id-1", "id-3"}) {
		t.Errorf("mirror deletes = %v", env.mirror.deletes)
	}
	raw, _ := env.svc.Export(ctx)
	if string(raw) != "[]" {
		t.Errorf("Export after clear = %s, want []", raw)
	}
}

// racingStore inserts a record right before clearing, as a concurrent
// writer would.
type racingStore struct {
	*storage.ArrayStore
	late journal.Record
}

func (r *racingStore) Clear(ctx context.Context) ([]journal.Record, error) {
	if err := r.ArrayStore.Insert(ctx, r.late); err != nil {
		return nil, err
	}
	return r.ArrayStore.Clear(ctx)
}

func TestClearMirrorsRecordsInsertedConcurrently(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	if _, err := env.svc.Create(ctx, journal.Record{Title: "S", Date: "2024-01-01"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	racing := &racingStore{ArrayStore: env.store, late: journal.Record{ID: "late", Title: "L", Date: "2024-02-01"}}
	svc := New(Options{Store: racing, Mirror: env.mirror, Clock: env.clock, Location: time.UTC})

	n, err := svc.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 2 {
		t.Errorf("Clear removed %d, want 2", n)
	}
	if !reflect.DeepEqual(env.mirror.deletes, []string{"id-1", "late"}) {
		t.Errorf("mirror deletes = %v, want [id-1 late]", env.mirror.deletes)
	}
}

func TestMirrorFailureDoesNotFailSave(t *testing.T) {
	env := newTestService(t)
	env.mirror.err = errors.New("queue full")

	if _, err := env.svc.Create(context.Background(), journal.Record{Title: "A", Date: "2024-01-01"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if env.logs.FilterMessage("queueing mirror upsert").Len() != 1 {
		t.Error("mirror failure not logged")
	}
}

func TestTodayUsesLocation(t *testing.T) {
	env := newTestService(t)
	env.clock.now = time.Date(2024, 6, 14, 20, 0, 0, 0, time.UTC)
	shanghai := time.FixedZone("CST", 8*3600)
	svc := New(Options{Store: env.store, Clock: env.clock, Location: shanghai})

	if got := svc.Today().String(); got != "2024-06-15" {
		t.Errorf("Today() = %s, want 2024-06-15", got)
	}
}
