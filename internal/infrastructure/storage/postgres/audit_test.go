package postgres

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditService_CompressRoundTrip(t *testing.T) {
	svc, err := NewAuditService(nil)
	require.NoError(t, err)

	small := json.RawMessage(`{"isActive":false}`)
	changes, compressed, algo := svc.compress(small)
	assert.Equal(t, CompressionNone, algo)
	assert.Nil(t, compressed)
	assert.Equal(t, small, changes)

	big, err := json.Marshal(map[string]any{"description": strings.Repeat("brake pads ", 2000)})
	require.NoError(t, err)

	changes, compressed, algo = svc.compress(big)
	assert.Equal(t, CompressionZstd, algo)
	assert.Nil(t, changes)
	assert.Less(t, len(compressed), len(big))

	restored, err := svc.decompress(AuditEntry{ChangesCompressed: compressed, CompressionAlgo: algo})
	require.NoError(t, err)
	assert.JSONEq(t, string(big), string(restored))
}
