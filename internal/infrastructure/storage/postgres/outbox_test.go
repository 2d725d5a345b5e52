package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxRelay_ClaimQuery(t *testing.T) {
	relay := NewOutboxRelay(nil, OutboxRelayConfig{BatchSize: 50, Lease: 30 * time.Second}, nil)

	sql, args, err := relay.claimQuery()
	require.NoError(t, err)

	assert.Contains(t, sql, "UPDATE sys_outbox SET next_retry_at = NOW() + make_interval(secs => $1)")
	assert.Contains(t, sql, "WHERE id IN (SELECT id FROM sys_outbox WHERE status = $2 AND (next_retry_at IS NULL OR next_retry_at <= NOW())")
	assert.Contains(t, sql, "ORDER BY created_at LIMIT 50 FOR UPDATE SKIP LOCKED)")
	assert.Contains(t, sql, "RETURNING id, aggregate_type, aggregate_id, event_type, payload")
	assert.Equal(t, []any{30.0, OutboxStatusPending}, args)
}

func TestNewOutboxRelay_Defaults(t *testing.T) {
	relay := NewOutboxRelay(nil, OutboxRelayConfig{}, nil)

	assert.Equal(t, 100, relay.cfg.BatchSize)
	assert.Equal(t, 5, relay.cfg.MaxRetries)
	assert.Equal(t, time.Minute, relay.cfg.Lease)
}

func TestRetryBackoff(t *testing.T) {
	assert.Equal(t, time.Minute, RetryBackoff(0))
	assert.Equal(t, time.Minute, RetryBackoff(1))
	assert.Equal(t, 4*time.Minute, RetryBackoff(3))
	assert.Equal(t, time.Hour, RetryBackoff(12))
	assert.Equal(t, time.Hour, RetryBackoff(80))
}
