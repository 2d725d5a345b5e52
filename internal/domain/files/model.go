// Package files stores uploaded binaries in object storage and keeps their
// metadata in the file table.
package files

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"partscatalog/internal/core/entity"
	"partscatalog/internal/core/id"
)

// EntityName is used in error messages.
const EntityName = "File"

// ErrObjectNotFound is returned by ObjectStorage when the object is missing.
var ErrObjectNotFound = errors.New("storage object not found")

// File is the metadata of an uploaded object.
type File struct {
	entity.Identity

	FileName     string    `db:"file_name" json:"fileName"`
	OriginalName string    `db:"original_name" json:"originalName"`
	MimeType     string    `db:"mime_type" json:"mimeType"`
	FileSize     int64     `db:"file_size" json:"fileSize"`
	FilePath     string    `db:"file_path" json:"filePath"`
	Bucket       string    `db:"bucket" json:"bucket"`
	Provider     string    `db:"provider" json:"provider"`
	UploadedBy   *string   `db:"uploaded_by" json:"uploadedBy,omitempty"`
	Tags         []string  `db:"tags" json:"tags"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// UploadInput is one file received from a client.
type UploadInput struct {
	Data         []byte
	OriginalName string
	MimeType     string
	// Path is an optional folder prefix inside the bucket
	Path string
	Tags []string
}

// DownloadURL is a time-limited link to a stored object.
type DownloadURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// PutObject describes an object write.
type PutObject struct {
	Bucket      string
	Path        string
	ContentType string
	Data        []byte
}

// ObjectStorage is the blob store behind the file service.
type ObjectStorage interface {
	// Provider names the backend, stored with each file row
	Provider() string
	Put(ctx context.Context, obj PutObject) error
	Get(ctx context.Context, bucket, path string, maxBytes int64) ([]byte, error)
	SignedURL(ctx context.Context, bucket, path string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, bucket, path string) error
}

// Repository persists file metadata.
type Repository interface {
	Create(ctx context.Context, f *File) error
	FindByPublicID(ctx context.Context, publicID string) (*File, error)
	DeleteByPublicID(ctx context.Context, publicID string) (bool, error)
}

// objectName builds "<uuid><ext>" under the optional folder prefix.
func objectName(folder, originalName string) (fileName, fullPath string) {
	fileName = id.New().String() + strings.ToLower(path.Ext(originalName))
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		return fileName, fileName
	}
	return fileName, folder + "/" + fileName
}

// cleanTags trims tags and drops blanks and duplicates, keeping order.
func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
