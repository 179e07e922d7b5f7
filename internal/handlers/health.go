package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/arzanfood/api/internal/platform/httpx"
)

// ReadinessCheck probes one dependency; a non-nil error marks the service unready.
type ReadinessCheck func(ctx context.Context) error

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	checks  []ReadinessCheck
	timeout time.Duration
}

// NewHealthHandlers constructs the probe handlers with optional dependency checks.
func NewHealthHandlers(checks ...ReadinessCheck) *HealthHandlers {
	return &HealthHandlers{
		checks:  checks,
		timeout: 5 * time.Second,
	}
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	httpx.WritePlain(w, http.StatusOK, "ok")
}

// Readyz reports whether dependencies are reachable.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	for _, check := range h.checks {
		if check == nil {
			continue
		}
		if err := check(ctx); err != nil {
			httpx.WritePlain(w, http.StatusServiceUnavailable, "unready")
			return
		}
	}
	httpx.WritePlain(w, http.StatusOK, "ok")
}
