// Package gcs stores files in Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"partscatalog/internal/domain/files"
)

// ProviderName is recorded on every file row stored here.
const ProviderName = "gcp-storage"

// Config selects the project and credentials.
type Config struct {
	ProjectID string
	// CredentialsFile is a service account key; empty means application default credentials
	CredentialsFile string
}

// NewClient creates a storage client.
func NewClient(ctx context.Context, cfg Config) (*storage.Client, error) {
	var opts []option.ClientOption
	if f := strings.TrimSpace(cfg.CredentialsFile); f != "" {
		opts = append(opts, option.WithCredentialsFile(f))
	}
	if p := strings.TrimSpace(cfg.ProjectID); p != "" {
		opts = append(opts, option.WithQuotaProject(p))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: create client: %w", err)
	}
	return client, nil
}

// Storage implements files.ObjectStorage.
type Storage struct {
	client *storage.Client
}

var _ files.ObjectStorage = (*Storage)(nil)

// New wraps an existing client.
func New(client *storage.Client) *Storage {
	return &Storage{client: client}
}

func (s *Storage) Provider() string { return ProviderName }

func (s *Storage) object(bucket, path string) (*storage.ObjectHandle, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("gcs: storage client is nil")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("gcs: bucket is empty")
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("gcs: object path is empty")
	}
	return s.client.Bucket(bucket).Object(path), nil
}

// Put uploads the object in one request.
func (s *Storage) Put(ctx context.Context, obj files.PutObject) error {
	oh, err := s.object(obj.Bucket, obj.Path)
	if err != nil {
		return err
	}

	w := oh.NewWriter(ctx)
	w.ContentType = obj.ContentType
	// Single-request upload; the payload is already in memory.
	w.ChunkSize = 0
	w.Metadata = map[string]string{
		"uploadedAt": time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := w.Write(obj.Data); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs: write %s/%s: %w", obj.Bucket, obj.Path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs: finalize %s/%s: %w", obj.Bucket, obj.Path, err)
	}
	return nil
}

// Get reads the object. maxBytes > 0 caps the read.
func (s *Storage) Get(ctx context.Context, bucket, path string, maxBytes int64) ([]byte, error) {
	oh, err := s.object(bucket, path)
	if err != nil {
		return nil, err
	}

	r, err := oh.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, files.ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("gcs: open %s/%s: %w", bucket, path, err)
	}
	defer r.Close()

	var src io.Reader = r
	if maxBytes > 0 {
		if r.Attrs.Size > maxBytes {
			return nil, fmt.Errorf("gcs: object %s/%s is %d bytes, limit %d", bucket, path, r.Attrs.Size, maxBytes)
		}
		src = io.LimitReader(r, maxBytes)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("gcs: read %s/%s: %w", bucket, path, err)
	}
	return data, nil
}

// SignedURL issues a V4 GET URL. The signing identity comes from the
// client's credentials.
func (s *Storage) SignedURL(_ context.Context, bucket, path string, expiry time.Duration) (string, error) {
	if _, err := s.object(bucket, path); err != nil {
		return "", err
	}

	u, err := s.client.Bucket(bucket).SignedURL(path, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().UTC().Add(expiry),
	})
	if err != nil {
		return "", fmt.Errorf("gcs: sign %s/%s: %w", bucket, path, err)
	}
	return u, nil
}

// Delete removes the object. A missing object yields files.ErrObjectNotFound.
func (s *Storage) Delete(ctx context.Context, bucket, path string) error {
	oh, err := s.object(bucket, path)
	if err != nil {
		return err
	}
	if err := oh.Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return files.ErrObjectNotFound
		}
		return fmt.Errorf("gcs: delete %s/%s: %w", bucket, path, err)
	}
	return nil
}
