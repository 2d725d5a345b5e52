package files

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"partscatalog/internal/core/apperror"
	"partscatalog/internal/core/id"
	"partscatalog/pkg/logger"
)

// ServiceConfig configures the file service.
type ServiceConfig struct {
	Repo      Repository
	Storage   ObjectStorage
	Bucket    string
	URLExpiry time.Duration
	// MaxBytes rejects larger uploads, 0 means no limit
	MaxBytes int64
}

// Service manages uploaded files.
type Service struct {
	repo      Repository
	storage   ObjectStorage
	bucket    string
	urlExpiry time.Duration
	maxBytes  int64
}

// NewService creates a file service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = 24 * time.Hour
	}
	return &Service{
		repo:      cfg.Repo,
		storage:   cfg.Storage,
		bucket:    cfg.Bucket,
		urlExpiry: cfg.URLExpiry,
		maxBytes:  cfg.MaxBytes,
	}
}

// Upload writes the object and records its metadata.
// If the insert fails the object is removed again.
func (s *Service) Upload(ctx context.Context, in UploadInput, actorID string) (*File, error) {
	if err := s.validateUpload(in); err != nil {
		return nil, err
	}

	fileName, fullPath := objectName(in.Path, in.OriginalName)
	mimeType := strings.TrimSpace(in.MimeType)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	if err := s.storage.Put(ctx, PutObject{
		Bucket:      s.bucket,
		Path:        fullPath,
		ContentType: mimeType,
		Data:        in.Data,
	}); err != nil {
		return nil, fmt.Errorf("upload object: %w", err)
	}

	f := &File{
		FileName:     fileName,
		OriginalName: strings.TrimSpace(in.OriginalName),
		MimeType:     mimeType,
		FileSize:     int64(len(in.Data)),
		FilePath:     fullPath,
		Bucket:       s.bucket,
		Provider:     s.storage.Provider(),
		Tags:         cleanTags(in.Tags),
	}
	f.PublicID = id.New()
	if actorID != "" {
		f.UploadedBy = &actorID
	}

	if err := s.repo.Create(ctx, f); err != nil {
		if delErr := s.storage.Delete(ctx, s.bucket, fullPath); delErr != nil {
			logger.Warn(ctx, "orphaned object after failed insert", "path", fullPath, "error", delErr)
		}
		return nil, fmt.Errorf("save file metadata: %w", err)
	}

	logger.Info(ctx, "file uploaded", "file_id", f.PublicID, "path", fullPath, "size", f.FileSize)
	return f, nil
}

func (s *Service) validateUpload(in UploadInput) error {
	if len(in.Data) == 0 {
		return apperror.NewValidation("File is empty").WithDetail("field", "file")
	}
	if s.maxBytes > 0 && int64(len(in.Data)) > s.maxBytes {
		return apperror.NewValidation(fmt.Sprintf("File exceeds the %d byte limit", s.maxBytes)).
			WithDetail("field", "file").
			WithDetail("size", len(in.Data))
	}
	if strings.TrimSpace(in.OriginalName) == "" {
		return apperror.NewValidation("File name is required").WithDetail("field", "file")
	}
	if strings.Contains(in.Path, "..") {
		return apperror.NewValidation("Invalid upload path").WithDetail("field", "path")
	}
	return nil
}

// GetByPublicID returns (nil, nil) when the file does not exist.
func (s *Service) GetByPublicID(ctx context.Context, publicID string) (*File, error) {
	if !id.Valid(publicID) {
		return nil, nil
	}
	f, err := s.repo.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return f, nil
}

// SignedURL issues a read URL valid for the configured expiry.
// Returns (nil, nil) when the file does not exist.
func (s *Service) SignedURL(ctx context.Context, publicID string) (*DownloadURL, error) {
	f, err := s.GetByPublicID(ctx, publicID)
	if err != nil || f == nil {
		return nil, err
	}

	expiresAt := time.Now().UTC().Add(s.urlExpiry)
	url, err := s.storage.SignedURL(ctx, f.Bucket, f.FilePath, s.urlExpiry)
	if err != nil {
		return nil, fmt.Errorf("sign url: %w", err)
	}
	return &DownloadURL{URL: url, ExpiresAt: expiresAt}, nil
}

// Content loads the object bytes of a file, up to the upload size limit.
func (s *Service) Content(ctx context.Context, publicID string) ([]byte, *File, error) {
	f, err := s.GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, nil, err
	}
	if f == nil {
		return nil, nil, apperror.NewNotFound(EntityName, publicID)
	}

	data, err := s.storage.Get(ctx, f.Bucket, f.FilePath, s.maxBytes)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, nil, apperror.NewNotFound(EntityName, publicID).WithCause(err)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read object: %w", err)
	}
	return data, f, nil
}

// Delete removes the row, then the object. A row still referenced (for
// example as a manufacturer logo) fails with a conflict and keeps the object.
func (s *Service) Delete(ctx context.Context, publicID string) (bool, error) {
	f, err := s.GetByPublicID(ctx, publicID)
	if err != nil || f == nil {
		return false, err
	}

	deleted, err := s.repo.DeleteByPublicID(ctx, publicID)
	if err != nil {
		return false, err
	}
	if !deleted {
		return false, nil
	}

	if err := s.storage.Delete(ctx, f.Bucket, f.FilePath); err != nil && !errors.Is(err, ErrObjectNotFound) {
		logger.Warn(ctx, "object not removed after row delete", "file_id", publicID, "path", f.FilePath, "error", err)
	}
	return true, nil
}
