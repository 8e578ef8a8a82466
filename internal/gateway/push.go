package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/vhvplatform/go-reminder-engine/internal/metrics"
	apperrors "github.com/vhvplatform/go-reminder-engine/internal/shared/errors"
	"github.com/vhvplatform/go-reminder-engine/internal/shared/logger"
	"golang.org/x/time/rate"
)

// PushMessage is one push notification
type PushMessage struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound,omitempty"`
}

// PushSender delivers push notifications. The returned bool reports
// whether the message was actually handed to the provider; a rate-limited
// drop returns (false, nil).
type PushSender interface {
	Send(ctx context.Context, userID string, msg PushMessage) (bool, error)
}

// PushConfig configures the HTTP push gateway
type PushConfig struct {
	URL         string
	APIKey      string
	RatePerUser float64
	Burst       int
	Timeout     time.Duration
}

// HTTPPushGateway delivers pushes over the provider's HTTP API, guarded
// by a circuit breaker and a per-user rate limiter.
type HTTPPushGateway struct {
	cfg     PushConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	log     *logger.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPPushGateway creates a new push gateway
func NewHTTPPushGateway(cfg PushConfig, log *logger.Logger) *HTTPPushGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerUser <= 0 {
		cfg.RatePerUser = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "push-gateway",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &HTTPPushGateway{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		breaker:  breaker,
		log:      log,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (g *HTTPPushGateway) limiter(userID string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	l, ok := g.limiters[userID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(g.cfg.RatePerUser), g.cfg.Burst)
		g.limiters[userID] = l
	}
	return l
}

// Send delivers one push notification
func (g *HTTPPushGateway) Send(ctx context.Context, userID string, msg PushMessage) (bool, error) {
	if !g.limiter(userID).Allow() {
		metrics.DeliveryFailures.WithLabelValues("push", "rate_limited").Inc()
		g.log.Warn("push dropped by per-user rate limit", "user_id", userID)
		return false, nil
	}

	payload, err := json.Marshal(struct {
		UserID string      `json:"user_id"`
		Notif  PushMessage `json:"notification"`
	}{UserID: userID, Notif: msg})
	if err != nil {
		return false, apperrors.NewDeliveryError("marshal push payload", err)
	}

	start := time.Now()
	resp, err := g.breaker.Execute(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if g.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
		}

		resp, err := g.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("push provider returned %d", resp.StatusCode)
		}
		return resp, nil
	})
	metrics.DeliveryDuration.WithLabelValues("push").Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.DeliveryFailures.WithLabelValues("push", "send_error").Inc()
		return false, apperrors.NewDeliveryError("push send failed", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		metrics.DeliveryFailures.WithLabelValues("push", "rejected").Inc()
		return false, apperrors.NewDeliveryError(fmt.Sprintf("push provider rejected request: %d", resp.StatusCode), nil)
	}
	return true, nil
}
