package file_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partscatalog/internal/core/id"
	"partscatalog/internal/domain/files"
)

func TestFileColumns(t *testing.T) {
	assert.Equal(t, []string{
		"id", "public_id", "file_name", "original_name", "mime_type", "file_size",
		"file_path", "bucket", "provider", "uploaded_by", "tags", "created_at", "updated_at",
	}, fileColumns)
}

func TestFileRepo_InsertQuery(t *testing.T) {
	r := NewFileRepo(nil)
	f := &files.File{
		FileName:     "a.png",
		OriginalName: "logo.png",
		MimeType:     "image/png",
		FileSize:     12,
		FilePath:     "logos/a.png",
		Bucket:       "catalog-assets",
		Provider:     "gcp-storage",
	}
	f.PublicID = id.New()

	sql, args, err := r.insertQuery(f).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"INSERT INTO file (public_id,file_name,original_name,mime_type,file_size,file_path,bucket,provider,uploaded_by,tags) "+
			"VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id, created_at, updated_at",
		sql)
	require.Len(t, args, 10)
	assert.Equal(t, []string{}, args[9], "nil tags are stored as an empty array")
}

func TestFileRepo_SelectByPublicID(t *testing.T) {
	sql, args, err := NewFileRepo(nil).selectByPublicID("0b9c").ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM file WHERE public_id = $1")
	assert.Equal(t, []any{"0b9c"}, args)
}
