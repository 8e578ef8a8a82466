package mongodb

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/vhvplatform/go-reminder-engine/internal/shared/logger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// connectMaxAttempts is the bootstrap retry budget, deliberately larger
	// than the per-operation budget in WithRetry.
	connectMaxAttempts = 5
	connectBaseDelay   = 2 * time.Second

	// healthCheckTimeout bounds connection health probes, separate from
	// the retry backoff sleeps.
	healthCheckTimeout = 2 * time.Second

	// defaultMaxPoolSize is appended to the connection URI when the caller
	// did not size the pool.
	defaultMaxPoolSize = "20"
)

// MongoClient wraps the MongoDB client with reconnect support. All engine
// persistence goes through this handle; see WithRetry in retry.go.
type MongoClient struct {
	mu       sync.Mutex
	client   *mongo.Client
	database *mongo.Database
	uri      string
	dbName   string
	log      *logger.Logger

	// reconnect is swapped out in tests to count invocations.
	reconnect func(ctx context.Context) error
	// retryDelay overrides the WithRetry backoff base; zero means default.
	retryDelay time.Duration
}

// Connect establishes the process-wide MongoDB client. Transient dial
// failures are retried with a linear backoff before giving up.
func Connect(uri, database string, log *logger.Logger) (*MongoClient, error) {
	c := &MongoClient{
		uri:    withPoolSizeHint(uri),
		dbName: database,
		log:    log,
	}
	c.reconnect = c.redial

	var lastErr error
	for attempt := 1; attempt <= connectMaxAttempts; attempt++ {
		if err := c.redial(context.Background()); err != nil {
			lastErr = err
			if !IsTransientError(err) {
				return nil, err
			}
			c.log.Warn("MongoDB connect failed, retrying",
				"attempt", attempt, "max_attempts", connectMaxAttempts, "error", err)
			time.Sleep(connectBaseDelay * time.Duration(attempt))
			continue
		}
		return c, nil
	}
	return nil, fmt.Errorf("connect to MongoDB after %d attempts: %w", connectMaxAttempts, lastErr)
}

// redial drops the current client, if any, and dials a fresh one. It is
// idempotent and safe to call concurrently.
func (c *MongoClient) redial(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		disconnectCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		_ = c.client.Disconnect(disconnectCtx)
		cancel()
		c.client = nil
		c.database = nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(dialCtx, options.Client().ApplyURI(c.uri))
	if err != nil {
		return err
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancelPing()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return err
	}

	c.client = client
	c.database = client.Database(c.dbName)
	return nil
}

// Collection returns a collection handle
func (c *MongoClient) Collection(name string) *mongo.Collection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.database.Collection(name)
}

// Ping probes connection health with a short timeout
func (c *MongoClient) Ping(ctx context.Context) error {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil {
		return fmt.Errorf("mongodb: not connected")
	}

	pingCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return client.Ping(pingCtx, nil)
}

// Disconnect closes the MongoDB connection
func (c *MongoClient) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Disconnect(ctx)
	c.client = nil
	c.database = nil
	return err
}

// withPoolSizeHint adds a bounded maxPoolSize to the connection string
// unless the caller already set one.
func withPoolSizeHint(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	q := u.Query()
	for key := range q {
		if strings.EqualFold(key, "maxPoolSize") {
			return uri
		}
	}
	q.Set("maxPoolSize", defaultMaxPoolSize)
	u.RawQuery = q.Encode()
	return u.String()
}
