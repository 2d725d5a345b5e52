package gcs

import (
	"context"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"partscatalog/internal/domain/files"
)

func TestStorage_NilClient(t *testing.T) {
	ctx := context.Background()

	var nilStorage *Storage
	assert.EqualError(t, nilStorage.Put(ctx, files.PutObject{Bucket: "b", Path: "p"}), "gcs: storage client is nil")

	_, err := New(nil).Get(ctx, "b", "p", 0)
	assert.EqualError(t, err, "gcs: storage client is nil")
}

func TestStorage_RejectsIncompleteLocations(t *testing.T) {
	ctx := context.Background()
	client, err := storage.NewClient(ctx, option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	s := New(client)

	assert.EqualError(t, s.Put(ctx, files.PutObject{Path: "logos/a.png"}), "gcs: bucket is empty")
	assert.EqualError(t, s.Delete(ctx, "catalog-assets", " "), "gcs: object path is empty")

	_, err = s.SignedURL(ctx, "", "logos/a.png", 0)
	assert.EqualError(t, err, "gcs: bucket is empty")
}

func TestStorage_Provider(t *testing.T) {
	assert.Equal(t, "gcp-storage", New(nil).Provider())
}
