//go:build integration

package storage

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
)

func openTestMongo(t *testing.T) *MongoStore {
	t.Helper()
	uri := os.Getenv("STAGELOG_TEST_MONGO_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	m, err := OpenMongo(context.Background(), uri, "stagelog_test")
	if err != nil {
		t.Skipf("mongo not available: %v", err)
	}
	t.Cleanup(func() { m.Close(context.Background()) })
	return m
}

func TestMongoMirror(t *testing.T) {
	m := openTestMongo(t)
	ctx := context.Background()
	user := "user-" + uuid.NewString()

	rec := sampleRecord(uuid.NewString())
	if err := m.Upsert(ctx, user, rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	rec.Title = "Macbeth"
	if err := m.Upsert(ctx, user, rec); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	page, err := m.List(ctx, user, "all", 1, 20)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 1 || page.HasMore || page.List[0].Title != "Macbeth" {
		t.Errorf("page = %+v", page)
	}

	if _, err := m.Get(ctx, "someone-else", rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(other user) err = %v, want ErrNotFound", err)
	}
	if err := m.Delete(ctx, user, rec.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := m.Delete(ctx, user, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete err = %v, want ErrNotFound", err)
	}
}
