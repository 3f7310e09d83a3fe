package http

import (
	"context"
	"net/http"
	"time"

	"github.com/DRSN-tech/thrift-backend/pkg/logger"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck — проверка одной зависимости. nil означает, что она доступна.
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]HealthCheck
	logger logger.Logger
}

func NewHealthHandler(checks map[string]HealthCheck, logger logger.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, logger: logger}
}

// healthz
//
//	@Summary	Состояние сервиса
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	healthResponse
//	@Failure	503	{object}	healthResponse
//	@Router		/healthz [get]
func (h *HealthHandler) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	res := healthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warnf("health check %s failed: %v", name, err)
			res.Status = "degraded"
			res.Checks[name] = err.Error()
			continue
		}
		res.Checks[name] = "ok"
	}

	status := http.StatusOK
	if res.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	WriteSuccess(w, status, res)
}
