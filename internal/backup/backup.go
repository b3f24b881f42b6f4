// Package backup uploads snapshots of the record array to S3-compatible
// object storage.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// ErrDisabled is returned when no object store is configured.
var ErrDisabled = errors.New("backups are not configured")

const snapshotTimeFormat = "20060102T150405Z"

// Object describes a stored snapshot.
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// ObjectStore is the subset of an S3 bucket used for snapshots.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	List(ctx context.Context, prefix string) ([]Object, error)
}

// Source yields the raw persisted array.
type Source interface {
	Export(ctx context.Context) ([]byte, error)
}

// Service takes snapshots of a Source.
type Service struct {
	store  ObjectStore
	source Source
	prefix string
	now    func() time.Time
	logger *zap.Logger
}

// New returns a backup Service. prefix is the storage key the snapshots are
// named after.
func New(store ObjectStore, source Source, prefix string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		source: source,
		prefix: prefix,
		now:    time.Now,
		logger: logger.Named("backup"),
	}
}

// Snapshot uploads the current array and returns the object written.
func (s *Service) Snapshot(ctx context.Context) (Object, error) {
	if s == nil || s.store == nil {
		return Object{}, ErrDisabled
	}
	data, err := s.source.Export(ctx)
	if err != nil {
		return Object{}, fmt.Errorf("exporting records: %w", err)
	}
	now := s.now().UTC()
	key := fmt.Sprintf("%s-%s.json", s.prefix, now.Format(snapshotTimeFormat))
	if err := s.store.Put(ctx, key, data); err != nil {
		return Object{}, fmt.Errorf("uploading %s: %w", key, err)
	}
	s.logger.Info("snapshot uploaded", zap.String("key", key), zap.Int("bytes", len(data)))
	return Object{Key: key, Size: int64(len(data)), LastModified: now}, nil
}

// List returns existing snapshots, newest first.
func (s *Service) List(ctx context.Context) ([]Object, error) {
	if s == nil || s.store == nil {
		return nil, ErrDisabled
	}
	objs, err := s.store.List(ctx, s.prefix+"-")
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].Key > objs[j].Key })
	return objs, nil
}

// MinioOptions configures a MinIO bucket.
type MinioOptions struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Minio is an ObjectStore backed by a MinIO or S3 bucket.
type Minio struct {
	client *minio.Client
	bucket string
}

// OpenMinio connects to the endpoint and creates the bucket if missing.
func OpenMinio(ctx context.Context, opts MinioOptions) (*Minio, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", opts.Bucket, err)
		}
	}
	return &Minio{client: client, bucket: opts.Bucket}, nil
}

func (m *Minio) Put(ctx context.Context, key string, data []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

func (m *Minio) List(ctx context.Context, prefix string) ([]Object, error) {
	var out []Object
	for info := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if info.Err != nil {
			return nil, info.Err
		}
		if !strings.HasSuffix(info.Key, ".json") {
			continue
		}
		out = append(out, Object{Key: info.Key, Size: info.Size, LastModified: info.LastModified})
	}
	return out, nil
}
