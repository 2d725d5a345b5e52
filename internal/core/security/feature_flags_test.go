package security

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaticFlags(t *testing.T) {
	flags := NewStaticFlags(map[string]bool{
		"FILE_UPLOADS": true,
		FlagAIAnalysis: false,
	})
	ctx := context.Background()

	assert.True(t, flags.IsEnabled(ctx, FlagFileUploads))
	assert.False(t, flags.IsEnabled(ctx, FlagAIAnalysis))
	assert.False(t, flags.IsEnabled(ctx, "unknown"))
	assert.Equal(t, []string{FlagFileUploads}, flags.Enabled())
}

func TestUserID_RoundTrip(t *testing.T) {
	ctx := WithUserID(context.Background(), "7f1c1a52-7a53-4a4b-9d0b-4f5e3a1b2c3d")
	assert.Equal(t, "7f1c1a52-7a53-4a4b-9d0b-4f5e3a1b2c3d", GetUserID(ctx))
	assert.Empty(t, GetUserID(context.Background()))
}
