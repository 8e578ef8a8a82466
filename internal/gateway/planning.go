package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/vhvplatform/go-reminder-engine/internal/shared/errors"
	"github.com/vhvplatform/go-reminder-engine/internal/shared/logger"
)

// PlanningClient triggers daily plan generation on the planning service
type PlanningClient interface {
	GeneratePlan(ctx context.Context, userID string) error
}

// PlanningConfig configures the planning service gateway
type PlanningConfig struct {
	URL     string
	Timeout time.Duration
}

// HTTPPlanningGateway calls the planning service over HTTP
type HTTPPlanningGateway struct {
	cfg    PlanningConfig
	client *http.Client
	log    *logger.Logger
}

// NewHTTPPlanningGateway creates a new planning gateway
func NewHTTPPlanningGateway(cfg PlanningConfig, log *logger.Logger) *HTTPPlanningGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPPlanningGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}
}

// GeneratePlan requests plan generation for one user
func (g *HTTPPlanningGateway) GeneratePlan(ctx context.Context, userID string) error {
	payload, err := json.Marshal(map[string]string{"user_id": userID})
	if err != nil {
		return apperrors.NewDeliveryError("marshal planning payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL+"/api/v1/plans/generate", bytes.NewReader(payload))
	if err != nil {
		return apperrors.NewDeliveryError("build planning request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return apperrors.NewDeliveryError("planning service unreachable", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return apperrors.NewDeliveryError(fmt.Sprintf("planning service returned %d", resp.StatusCode), nil)
	}
	return nil
}
