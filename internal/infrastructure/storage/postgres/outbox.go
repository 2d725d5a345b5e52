package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"partscatalog/internal/core/id"
	"partscatalog/internal/domain"
	"partscatalog/pkg/logger"
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// OutboxMessage represents a message in the transactional outbox.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"` // e.g. "manufacturer"
	AggregateID   id.ID        `db:"aggregate_id"`   // public id of the entity
	EventType     string       `db:"event_type"`     // e.g. "manufacturer.created"
	Payload       []byte       `db:"payload"`        // JSON payload
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

var outboxColumns = []string{
	"id", "aggregate_type", "aggregate_id", "event_type", "payload", "status",
	"retry_count", "last_error", "next_retry_at", "created_at", "published_at",
}

func outboxBuilder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// OutboxPublisher writes events to the outbox table.
type OutboxPublisher struct {
	txManager *TxManager
}

var _ domain.EventPublisher = (*OutboxPublisher)(nil)

// NewOutboxPublisher creates a new outbox publisher.
func NewOutboxPublisher(txManager *TxManager) *OutboxPublisher {
	return &OutboxPublisher{txManager: txManager}
}

// Publish writes an event to the outbox within the current transaction.
// MUST be called inside a transaction context.
func (p *OutboxPublisher) Publish(ctx context.Context, event domain.Event) error {
	tx := p.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("outbox publish requires transaction context")
	}

	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	sql, args, err := outboxBuilder().
		Insert("sys_outbox").
		Columns("id", "aggregate_type", "aggregate_id", "event_type", "payload", "status", "created_at").
		Values(id.New(), event.AggregateType, event.AggregateID, event.EventType, payloadBytes, OutboxStatusPending, time.Now().UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build outbox insert: %w", err)
	}

	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// OutboxHandler processes outbox messages.
type OutboxHandler interface {
	// Handle processes a message and returns error if failed
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxRelayConfig tunes the relay loop.
type OutboxRelayConfig struct {
	BatchSize  int
	MaxRetries int
	// Lease hides claimed messages from other relays while they are handled
	Lease time.Duration
}

// OutboxRelay reads pending messages and hands them to a broker.
// Used by the background worker.
type OutboxRelay struct {
	txManager *TxManager
	cfg       OutboxRelayConfig
	handler   OutboxHandler
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(txManager *TxManager, cfg OutboxRelayConfig, handler OutboxHandler) *OutboxRelay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.Lease <= 0 {
		cfg.Lease = time.Minute
	}
	return &OutboxRelay{txManager: txManager, cfg: cfg, handler: handler}
}

// claimQuery leases up to BatchSize due messages. SKIP LOCKED lets several
// relays run side by side without handing out the same row twice.
func (r *OutboxRelay) claimQuery() (string, []any, error) {
	// Built with "?" placeholders; the outer builder numbers them.
	due := squirrel.
		Select("id").
		From("sys_outbox").
		Where(squirrel.Eq{"status": OutboxStatusPending}).
		Where("(next_retry_at IS NULL OR next_retry_at <= NOW())").
		OrderBy("created_at").
		Limit(uint64(r.cfg.BatchSize)).
		Suffix("FOR UPDATE SKIP LOCKED")

	dueSQL, dueArgs, err := due.ToSql()
	if err != nil {
		return "", nil, err
	}

	return outboxBuilder().
		Update("sys_outbox").
		Set("next_retry_at", squirrel.Expr("NOW() + make_interval(secs => ?)", r.cfg.Lease.Seconds())).
		Where(squirrel.Expr("id IN ("+dueSQL+")", dueArgs...)).
		Suffix("RETURNING " + strings.Join(outboxColumns, ", ")).
		ToSql()
}

// ProcessBatch claims and processes due messages.
// Returns number of published messages.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	sql, args, err := r.claimQuery()
	if err != nil {
		return 0, fmt.Errorf("build claim query: %w", err)
	}

	var messages []*OutboxMessage
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &messages, sql, args...); err != nil {
		return 0, fmt.Errorf("claim outbox messages: %w", err)
	}

	processed := 0
	for _, msg := range messages {
		if err := r.processMessage(ctx, msg); err != nil {
			logger.Warn(ctx, "outbox message not published",
				"message_id", msg.ID, "event_type", msg.EventType, "retry", msg.RetryCount+1, "error", err)
			continue
		}
		processed++
	}

	return processed, nil
}

// processMessage handles a single outbox message.
func (r *OutboxRelay) processMessage(ctx context.Context, msg *OutboxMessage) error {
	q := r.txManager.GetQuerier(ctx)

	if err := r.handler.Handle(ctx, msg); err != nil {
		nextRetry := time.Now().UTC().Add(RetryBackoff(msg.RetryCount + 1))
		_, updateErr := q.Exec(ctx, `
			UPDATE sys_outbox
			SET retry_count = retry_count + 1,
			    last_error = $1,
			    next_retry_at = $2,
			    status = CASE WHEN retry_count + 1 >= $3 THEN $4 ELSE status END
			WHERE id = $5
		`, err.Error(), nextRetry, r.cfg.MaxRetries, OutboxStatusFailed, msg.ID)
		if updateErr != nil {
			return fmt.Errorf("update failed message: %w", updateErr)
		}
		return err
	}

	_, err := q.Exec(ctx, `
		UPDATE sys_outbox
		SET status = $1, published_at = $2
		WHERE id = $3
	`, OutboxStatusPublished, time.Now().UTC(), msg.ID)
	return err
}

// MoveToDLQ moves messages that exhausted their retries to sys_outbox_dlq.
func (r *OutboxRelay) MoveToDLQ(ctx context.Context) (int64, error) {
	cols := strings.Join(outboxColumns, ", ")
	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		WITH moved AS (
			DELETE FROM sys_outbox
			WHERE status = $1
			RETURNING `+cols+`
		)
		INSERT INTO sys_outbox_dlq (`+cols+`, failed_at, failure_reason)
		SELECT `+cols+`, NOW(), last_error FROM moved
	`, OutboxStatusFailed)
	if err != nil {
		return 0, fmt.Errorf("move to DLQ: %w", err)
	}

	return result.RowsAffected(), nil
}

// Run polls the outbox until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := r.ProcessBatch(ctx)
		if err != nil && ctx.Err() == nil {
			logger.Error(ctx, "outbox relay batch failed", "error", err)
		}
		if n > 0 {
			logger.Debug(ctx, "outbox relay published", "count", n)
		}
		if moved, err := r.MoveToDLQ(ctx); err != nil && ctx.Err() == nil {
			logger.Error(ctx, "outbox dead-lettering failed", "error", err)
		} else if moved > 0 {
			logger.Warn(ctx, "outbox messages dead-lettered", "count", moved)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RetryBackoff is the delay before the given attempt: 1m, 2m, 4m ... capped at 1h.
func RetryBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 7 {
		return time.Hour
	}
	return min(time.Minute<<(attempt-1), time.Hour)
}
