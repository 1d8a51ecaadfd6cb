package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kjk/travelstore/log"
)

// Config describes S3-compatible bucket for snapshots
type Config struct {
	Endpoint string
	Access   string
	Secret   string
	Bucket   string
	Region   string
	// Insecure uses http instead of https, for local minio servers
	Insecure     bool
	RequestTrace io.Writer
}

// Validate checks all required fields are set
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("must provide config")
	}
	if c.Access == "" || c.Secret == "" || c.Bucket == "" || c.Endpoint == "" {
		return errors.New("must provide Endpoint, Access, Secret and Bucket in config")
	}
	return nil
}

type Remote struct {
	Client *minio.Client
	Bucket string
}

// NewRemote connects to storage described by cfg and verifies the bucket exists
func NewRemote(ctx context.Context, cfg *Config) (*Remote, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Access, cfg.Secret, ""),
		Region: cfg.Region,
		Secure: !cfg.Insecure,
	})
	if err != nil {
		return nil, err
	}
	if cfg.RequestTrace != nil {
		mc.TraceOn(cfg.RequestTrace)
	}
	found, err := mc.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("bucket '%s' doesn't exist", cfg.Bucket)
	}
	return &Remote{
		Client: mc,
		Bucket: cfg.Bucket,
	}, nil
}

// RemotePath returns remote path for a snapshot file name, e.g.
// "backups/2026-10-18/data.dat.zst" for prefix "backups" on 2026-10-18
func RemotePath(prefix string, name string, t time.Time) string {
	day := t.UTC().Format("2006-01-02")
	prefix = strings.Trim(prefix, "/")
	return path.Join(prefix, day, filepath.Base(name))
}

func contentTypeForPath(remotePath string) string {
	switch ext := strings.ToLower(path.Ext(remotePath)); ext {
	case ".zst", ".zstd":
		return "application/zstd"
	case ".br":
		return "application/x-brotli"
	case ".gz":
		return "application/gzip"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
	}
	return "application/octet-stream"
}

// Upload uploads a local file to remotePath
func (r *Remote) Upload(ctx context.Context, remotePath string, localPath string) (minio.UploadInfo, error) {
	opts := minio.PutObjectOptions{
		ContentType: contentTypeForPath(remotePath),
	}
	info, err := r.Client.FPutObject(ctx, r.Bucket, remotePath, localPath, opts)
	if err != nil {
		return info, fmt.Errorf("archive.Upload: '%s' => '%s': %w", localPath, remotePath, err)
	}
	log.Logf("archive.Upload: '%s' => '%s', %d bytes\n", localPath, remotePath, info.Size)
	return info, nil
}

// Exists returns true if remotePath exists in the bucket
func (r *Remote) Exists(ctx context.Context, remotePath string) bool {
	_, err := r.Client.StatObject(ctx, r.Bucket, remotePath, minio.StatObjectOptions{})
	return err == nil
}

// Download downloads remotePath to localPath. localPath is only
// replaced if the whole object was downloaded.
func (r *Remote) Download(ctx context.Context, localPath string, remotePath string) error {
	obj, err := r.Client.GetObject(ctx, r.Bucket, remotePath, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("archive.Download: '%s': %w", remotePath, err)
	}
	defer obj.Close()

	f, err := newAtomicFile(localPath)
	if err != nil {
		return fmt.Errorf("archive.Download: %w", err)
	}
	defer f.Cancel()
	n, err := io.Copy(f, obj)
	if err != nil {
		return fmt.Errorf("archive.Download: '%s': %w", remotePath, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("archive.Download: %w", err)
	}
	log.Logf("archive.Download: '%s' => '%s', %d bytes\n", remotePath, localPath, n)
	return nil
}

// Remove deletes remotePath from the bucket
func (r *Remote) Remove(ctx context.Context, remotePath string) error {
	return r.Client.RemoveObject(ctx, r.Bucket, remotePath, minio.RemoveObjectOptions{})
}

// List returns names of objects under prefix
func (r *Remote) List(ctx context.Context, prefix string) ([]string, error) {
	opts := minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}
	var res []string
	for oi := range r.Client.ListObjects(ctx, r.Bucket, opts) {
		if oi.Err != nil {
			return res, oi.Err
		}
		res = append(res, oi.Key)
	}
	return res, nil
}
