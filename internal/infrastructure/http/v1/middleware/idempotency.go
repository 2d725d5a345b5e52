package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"partscatalog/internal/core/apperror"
	appctx "partscatalog/internal/core/context"
	"partscatalog/internal/infrastructure/storage/postgres"
	"partscatalog/pkg/logger"
)

const HeaderIdempotencyKey = "Idempotency-Key"

const (
	// DefaultIdempotencyMaxBody caps bodies hashed for JSON write routes.
	DefaultIdempotencyMaxBody = 1 << 20 // 1 MiB
	// bodies above this size are spooled to a temp file while hashing
	idempotencyMemoryBytes  = 1 << 20
	maxIdempotencyKeyLength = 255

	idempotencyKeyCtx   = "idempotency_key"
	idempotencyStoreCtx = "idempotency_store"
)

// IdempotencyStore is implemented by postgres.IdempotencyStore.
type IdempotencyStore interface {
	AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*postgres.IdempotencyReplay, error)
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
	FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
}

type idempotencyOptions struct {
	maxBody int64
}

// IdempotencyOption configures Idempotency.
type IdempotencyOption func(*idempotencyOptions)

// WithMaxBody sets the largest body a keyed request may carry. Zero or less
// removes the cap.
func WithMaxBody(n int64) IdempotencyOption {
	return func(o *idempotencyOptions) { o.maxBody = n }
}

// Idempotency replays the stored response when a POST is retried with the
// same Idempotency-Key header. Requests without the header pass through.
func Idempotency(store IdempotencyStore, opts ...IdempotencyOption) gin.HandlerFunc {
	o := idempotencyOptions{maxBody: DefaultIdempotencyMaxBody}
	for _, opt := range opts {
		opt(&o)
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if store == nil || key == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			_ = c.Error(apperror.NewValidation("Idempotency key is too long").
				WithDetail("maxLength", maxIdempotencyKeyLength))
			c.Abort()
			return
		}

		if c.Request.Body == nil {
			c.Request.Body = http.NoBody
		}
		body, hash, err := hashBody(c.Request.Body, idempotencyMemoryBytes, o.maxBody)
		if errors.Is(err, errBodyTooLarge) {
			appErr := apperror.NewValidation("Request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("maxBytes", o.maxBody))
			c.Abort()
			return
		}
		if err != nil {
			_ = c.Error(apperror.NewValidation("Could not read request body").WithCause(err))
			c.Abort()
			return
		}
		defer func() { _ = body.Close() }()
		c.Request.Body = body

		ctx := c.Request.Context()
		operation := c.Request.Method + " " + c.FullPath()
		replay, err := store.AcquireKey(ctx, key, appctx.GetUserID(ctx), operation, hash)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		if replay != nil {
			c.Header("Idempotent-Replayed", "true")
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		c.Set(idempotencyKeyCtx, key)
		c.Set(idempotencyStoreCtx, store)
		c.Next()
	}
}

// CompleteIdempotency stores a successful response for replay. No-op for
// requests without a key.
func CompleteIdempotency(c *gin.Context, statusCode int, response any) {
	key, store, ok := idempotencyFrom(c)
	if !ok {
		return
	}
	contentType := "application/json"
	if response == nil {
		contentType = ""
	}
	if err := store.CompleteKey(c.Request.Context(), key, statusCode, contentType, response); err != nil {
		logger.Warn(c.Request.Context(), "idempotency completion failed", "key", key, "error", err)
	}
}

func failIdempotency(c *gin.Context, statusCode int, body any) {
	key, store, ok := idempotencyFrom(c)
	if !ok {
		return
	}
	if err := store.FailKey(c.Request.Context(), key, statusCode, "application/json", body); err != nil {
		logger.Warn(c.Request.Context(), "idempotency failure record failed", "key", key, "error", err)
	}
}

func idempotencyFrom(c *gin.Context) (string, IdempotencyStore, bool) {
	key := c.GetString(idempotencyKeyCtx)
	if key == "" {
		return "", nil, false
	}
	v, _ := c.Get(idempotencyStoreCtx)
	store, ok := v.(IdempotencyStore)
	return key, store, ok && store != nil
}

var errBodyTooLarge = errors.New("request body too large")

// hashBody reads r to the end, returning a rewound copy of the body and its
// hex SHA-256. Up to memLimit bytes stay in memory; the rest is spooled to a
// temp file removed on Close. maxBytes <= 0 means no cap.
func hashBody(r io.Reader, memLimit, maxBytes int64) (io.ReadCloser, string, error) {
	if maxBytes > 0 {
		r = io.LimitReader(r, maxBytes+1)
	}
	h := sha256.New()
	tee := io.TeeReader(r, h)

	head, err := io.ReadAll(io.LimitReader(tee, memLimit+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(head)) <= memLimit {
		if maxBytes > 0 && int64(len(head)) > maxBytes {
			return nil, "", errBodyTooLarge
		}
		return io.NopCloser(bytes.NewReader(head)), hex.EncodeToString(h.Sum(nil)), nil
	}

	spool, err := os.CreateTemp("", "idempotency-body-*")
	if err != nil {
		return nil, "", fmt.Errorf("spool body: %w", err)
	}
	body := &spooledBody{File: spool}
	n, err := spool.Write(head)
	if err == nil {
		var rest int64
		rest, err = io.Copy(spool, tee)
		n += int(rest)
	}
	if err == nil && maxBytes > 0 && int64(n) > maxBytes {
		err = errBodyTooLarge
	}
	if err == nil {
		_, err = spool.Seek(0, io.SeekStart)
	}
	if err != nil {
		_ = body.Close()
		return nil, "", err
	}
	return body, hex.EncodeToString(h.Sum(nil)), nil
}

// spooledBody deletes its temp file on Close.
type spooledBody struct {
	*os.File
}

func (b *spooledBody) Close() error {
	err := b.File.Close()
	if rmErr := os.Remove(b.File.Name()); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}
