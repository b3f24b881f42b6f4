//go:build integration

package backup

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestMinioSnapshot(t *testing.T) {
	endpoint := os.Getenv("STAGELOG_TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}
	ctx := context.Background()
	store, err := OpenMinio(ctx, MinioOptions{
		Endpoint:  endpoint,
		Bucket:    "stagelog-test",
		Region:    "us-east-1",
		AccessKey: envOr("STAGELOG_TEST_MINIO_ACCESS_KEY", "minioadmin"),
		SecretKey: envOr("STAGELOG_TEST_MINIO_SECRET_KEY", "minioadmin"),
	})
	if err != nil {
		t.Skipf("minio not available: %v", err)
	}

	prefix := "it-" + uuid.NewString()
	svc := New(store, staticSource(`[]`), prefix, nil)
	obj, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	objs, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(objs) != 1 || objs[0].Key != obj.Key {
		t.Errorf("List = %v, want [%s]", objs, obj.Key)
	}
	if !strings.HasPrefix(obj.Key, prefix+"-") {
		t.Errorf("Key = %q, want prefix %q", obj.Key, prefix)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
