package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/rampellisaieshwar/GravityEdits/internal/edl"
	"github.com/rampellisaieshwar/GravityEdits/internal/export"
)

const backupPrefix = "projects/"

type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// ObjectStore copies project snapshots to an S3-compatible bucket.
type ObjectStore struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
	now    func() time.Time
}

// NewObjectStore connects and creates the bucket when it does not exist.
func NewObjectStore(ctx context.Context, cfg ObjectStoreConfig, logger *slog.Logger) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
		logger.Info("created backup bucket", "bucket", cfg.Bucket)
	}

	return &ObjectStore{client: client, bucket: cfg.Bucket, logger: logger, now: time.Now}, nil
}

// Backup uploads p under projects/<name>/<timestamp>.json.
func (o *ObjectStore) Backup(ctx context.Context, p *edl.Project) (Backup, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return Backup{}, fmt.Errorf("marshal project %q: %w", p.Name, err)
	}

	now := o.now().UTC()
	key := path.Join(backupPrefix, export.SanitizeName(p.Name, 120), now.Format("20060102T150405.000000000Z")+".json")
	info, err := o.client.PutObject(ctx, o.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return Backup{}, fmt.Errorf("upload backup %s: %w", key, err)
	}

	o.logger.Debug("project backed up", "key", key, "size", info.Size)
	return Backup{Project: p.Name, ObjectKey: key, Size: info.Size, CreatedAt: now}, nil
}

// Restore downloads a snapshot by object key.
func (o *ObjectStore) Restore(ctx context.Context, key string) (*edl.Project, error) {
	obj, err := o.client.GetObject(ctx, o.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get backup %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: backup %s", ErrProjectNotFound, key)
		}
		return nil, fmt.Errorf("read backup %s: %w", key, err)
	}

	var p edl.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: backup %s: %v", edl.ErrInvalidProject, key, err)
	}
	p.ApplyDefaults()
	return &p, nil
}

// Keys lists the snapshot keys of a project, oldest first.
func (o *ObjectStore) Keys(ctx context.Context, project string) ([]string, error) {
	prefix := path.Join(backupPrefix, export.SanitizeName(project, 120)) + "/"
	var keys []string
	for obj := range o.client.ListObjects(ctx, o.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list backups: %w", obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	sort.Strings(keys)
	return keys, nil
}
