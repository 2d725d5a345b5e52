package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"partscatalog/internal/core/entity"
)

type sampleRow struct {
	entity.Identity
	Name      string `db:"name"`
	Ignored   string `db:"-"`
	Untagged  string
	CreatedAt time.Time `db:"created_at"`
}

func TestExtractDBColumns(t *testing.T) {
	cols := ExtractDBColumns[sampleRow]()
	assert.Equal(t, []string{"id", "public_id", "name", "created_at"}, cols)

	cols[0] = "mutated"
	assert.Equal(t, "id", ExtractDBColumns[sampleRow]()[0])
	assert.Equal(t, []string{"id", "public_id", "name", "created_at"}, ExtractDBColumns[*sampleRow]())
}

func TestQualify(t *testing.T) {
	assert.Equal(t, []string{"f.id", "f.name"}, Qualify("f", []string{"id", "name"}))
}
