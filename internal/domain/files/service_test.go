package files

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partscatalog/internal/core/apperror"
	"partscatalog/internal/core/id"
)

type memStorage struct {
	objects map[string][]byte
	putErr  error
	deletes []string
}

func newMemStorage() *memStorage { return &memStorage{objects: map[string][]byte{}} }

func (m *memStorage) Provider() string { return "memory" }

func (m *memStorage) Put(_ context.Context, obj PutObject) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[obj.Bucket+"/"+obj.Path] = obj.Data
	return nil
}

func (m *memStorage) Get(_ context.Context, bucket, path string, _ int64) ([]byte, error) {
	data, ok := m.objects[bucket+"/"+path]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return data, nil
}

func (m *memStorage) SignedURL(_ context.Context, bucket, path string, expiry time.Duration) (string, error) {
	return "https://signed.example/" + bucket + "/" + path + "?ttl=" + expiry.String(), nil
}

func (m *memStorage) Delete(_ context.Context, bucket, path string) error {
	m.deletes = append(m.deletes, bucket+"/"+path)
	if _, ok := m.objects[bucket+"/"+path]; !ok {
		return ErrObjectNotFound
	}
	delete(m.objects, bucket+"/"+path)
	return nil
}

type memRepo struct {
	rows      map[string]*File
	createErr error
	deleteErr error
}

func newMemRepo() *memRepo { return &memRepo{rows: map[string]*File{}} }

func (r *memRepo) Create(_ context.Context, f *File) error {
	if r.createErr != nil {
		return r.createErr
	}
	f.ID = int64(len(r.rows) + 1)
	f.CreatedAt = time.Now()
	f.UpdatedAt = f.CreatedAt
	r.rows[f.PublicID.String()] = f
	return nil
}

func (r *memRepo) FindByPublicID(_ context.Context, publicID string) (*File, error) {
	return r.rows[publicID], nil
}

func (r *memRepo) DeleteByPublicID(_ context.Context, publicID string) (bool, error) {
	if r.deleteErr != nil {
		return false, r.deleteErr
	}
	if _, ok := r.rows[publicID]; !ok {
		return false, nil
	}
	delete(r.rows, publicID)
	return true, nil
}

func newTestService(repo *memRepo, storage *memStorage) *Service {
	return NewService(ServiceConfig{
		Repo:      repo,
		Storage:   storage,
		Bucket:    "catalog-assets",
		URLExpiry: 2 * time.Hour,
		MaxBytes:  1024,
	})
}

func TestService_Upload(t *testing.T) {
	repo, storage := newMemRepo(), newMemStorage()
	svc := newTestService(repo, storage)

	f, err := svc.Upload(context.Background(), UploadInput{
		Data:         []byte("png-bytes"),
		OriginalName: "Honda Logo.PNG",
		MimeType:     "image/png",
		Path:         "/logos/",
		Tags:         []string{" logo ", "", "logo", "brand"},
	}, "5b0c1c3e-2f7a-4d8e-9c55-0d3f1e2a4b6c")
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(f.FileName, ".png"))
	assert.Equal(t, "logos/"+f.FileName, f.FilePath)
	assert.Equal(t, "catalog-assets", f.Bucket)
	assert.Equal(t, "memory", f.Provider)
	assert.Equal(t, int64(9), f.FileSize)
	assert.Equal(t, []string{"logo", "brand"}, f.Tags)
	require.NotNil(t, f.UploadedBy)
	assert.Contains(t, storage.objects, "catalog-assets/"+f.FilePath)
	assert.Contains(t, repo.rows, f.PublicID.String())
}

func TestService_Upload_DefaultsMimeType(t *testing.T) {
	svc := newTestService(newMemRepo(), newMemStorage())

	f, err := svc.Upload(context.Background(), UploadInput{Data: []byte("x"), OriginalName: "page.bin"}, "")
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", f.MimeType)
	assert.Equal(t, f.FileName, f.FilePath)
	assert.Nil(t, f.UploadedBy)
}

func TestService_Upload_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input UploadInput
		field string
	}{
		{"empty body", UploadInput{OriginalName: "a.png"}, "file"},
		{"too large", UploadInput{Data: make([]byte, 2048), OriginalName: "a.png"}, "file"},
		{"missing name", UploadInput{Data: []byte("x"), OriginalName: "  "}, "file"},
		{"path traversal", UploadInput{Data: []byte("x"), OriginalName: "a.png", Path: "../secrets"}, "path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(newMemRepo(), newMemStorage())

			_, err := svc.Upload(context.Background(), tt.input, "")
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok, "expected AppError, got %v", err)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
			assert.Equal(t, tt.field, appErr.Details["field"])
		})
	}
}

func TestService_Upload_RemovesObjectWhenInsertFails(t *testing.T) {
	repo, storage := newMemRepo(), newMemStorage()
	repo.createErr = errors.New("connection reset")
	svc := newTestService(repo, storage)

	_, err := svc.Upload(context.Background(), UploadInput{Data: []byte("x"), OriginalName: "a.png"}, "")
	require.Error(t, err)
	assert.Empty(t, storage.objects)
	assert.Len(t, storage.deletes, 1)
}

func TestService_Upload_StorageFailure(t *testing.T) {
	repo, storage := newMemRepo(), newMemStorage()
	storage.putErr = errors.New("bucket missing")
	svc := newTestService(repo, storage)

	_, err := svc.Upload(context.Background(), UploadInput{Data: []byte("x"), OriginalName: "a.png"}, "")
	assert.ErrorContains(t, err, "bucket missing")
	assert.Empty(t, repo.rows)
}

func TestService_GetAndSignedURL(t *testing.T) {
	svc := newTestService(newMemRepo(), newMemStorage())
	ctx := context.Background()

	f, err := svc.Upload(ctx, UploadInput{Data: []byte("x"), OriginalName: "a.jpg"}, "")
	require.NoError(t, err)

	got, err := svc.GetByPublicID(ctx, f.PublicID.String())
	require.NoError(t, err)
	assert.Equal(t, f, got)

	u, err := svc.SignedURL(ctx, f.PublicID.String())
	require.NoError(t, err)
	assert.Contains(t, u.URL, f.FilePath)
	assert.Contains(t, u.URL, "ttl=2h0m0s")
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), u.ExpiresAt, time.Minute)

	missing, err := svc.SignedURL(ctx, id.New().String())
	require.NoError(t, err)
	assert.Nil(t, missing)

	malformed, err := svc.GetByPublicID(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.Nil(t, malformed)
}

func TestService_Content(t *testing.T) {
	repo, storage := newMemRepo(), newMemStorage()
	svc := newTestService(repo, storage)
	ctx := context.Background()

	f, err := svc.Upload(ctx, UploadInput{Data: []byte("diagram"), OriginalName: "page.jpg", MimeType: "image/jpeg"}, "")
	require.NoError(t, err)

	data, meta, err := svc.Content(ctx, f.PublicID.String())
	require.NoError(t, err)
	assert.Equal(t, []byte("diagram"), data)
	assert.Equal(t, "image/jpeg", meta.MimeType)

	delete(storage.objects, "catalog-assets/"+f.FilePath)
	_, _, err = svc.Content(ctx, f.PublicID.String())
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeNotFound, appErr.Code)
}

func TestService_Delete(t *testing.T) {
	repo, storage := newMemRepo(), newMemStorage()
	svc := newTestService(repo, storage)
	ctx := context.Background()

	f, err := svc.Upload(ctx, UploadInput{Data: []byte("x"), OriginalName: "a.png"}, "")
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, f.PublicID.String())
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Empty(t, repo.rows)
	assert.Empty(t, storage.objects)

	deleted, err = svc.Delete(ctx, f.PublicID.String())
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestService_Delete_ReferencedFileKeepsObject(t *testing.T) {
	repo, storage := newMemRepo(), newMemStorage()
	svc := newTestService(repo, storage)
	ctx := context.Background()

	f, err := svc.Upload(ctx, UploadInput{Data: []byte("x"), OriginalName: "a.png"}, "")
	require.NoError(t, err)

	repo.deleteErr = apperror.NewConflict("File is referenced by other records")
	_, err = svc.Delete(ctx, f.PublicID.String())
	require.Error(t, err)
	assert.Len(t, storage.objects, 1)
}
