package mongodb

import (
	"context"
	"strings"
	"time"

	"github.com/vhvplatform/go-reminder-engine/internal/metrics"
	apperrors "github.com/vhvplatform/go-reminder-engine/internal/shared/errors"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	retryMaxAttempts = 3
	retryBaseDelay   = 1 * time.Second
)

// transientMarkers are connection-failure fragments observed from the
// driver and the server across disconnect scenarios.
var transientMarkers = []string{
	"connection closed",
	"connection refused",
	"connection reset",
	"connection limit",
	"server has closed the connection",
	"server selection timeout",
	"server selection error",
	"socket was unexpectedly closed",
	"i/o timeout",
	"operation was interrupted",
	"EOF",
}

// IsTransientError classifies an error as retry-worthy infrastructure
// failure. Constraint violations, not-found and validation errors are
// permanent and must propagate immediately.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	if apperrors.IsTransientStore(err) {
		return true
	}
	if err == mongo.ErrNoDocuments || mongo.IsDuplicateKeyError(err) {
		return false
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}

	msg := err.Error()
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// WithRetry runs op, transparently recovering from transient store
// failures. Each transient failure drops and recreates the underlying
// connection, waits baseDelay * attempt, and retries the same operation.
// Permanent errors propagate on the first attempt; exhausting the budget
// surfaces the last error.
func (c *MongoClient) WithRetry(ctx context.Context, name string, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= retryMaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !IsTransientError(err) {
			return err
		}

		lastErr = err
		if attempt == retryMaxAttempts {
			break
		}

		c.log.Warn("transient store error, reconnecting",
			"operation", name, "attempt", attempt, "error", err)
		metrics.StoreRetries.WithLabelValues(name).Inc()

		if recErr := c.reconnect(ctx); recErr != nil {
			c.log.Error("store reconnect failed", "operation", name, "error", recErr)
		} else {
			metrics.StoreReconnects.Inc()
		}

		delay := c.retryDelay
		if delay == 0 {
			delay = retryBaseDelay
		}
		select {
		case <-time.After(delay * time.Duration(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return apperrors.NewTransientStoreError("retry budget exhausted for "+name, lastErr)
}
