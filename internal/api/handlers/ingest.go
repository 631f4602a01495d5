package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"cargo_ingest/internal/domain"
	"cargo_ingest/internal/scheduler"
)

// CycleRunner runs a cycle under the scheduler's overlap guard.
type CycleRunner interface {
	RunOnce(ctx context.Context) (*domain.ProcessOutcome, error)
}

type Processor interface {
	Process(ctx context.Context) (*domain.ProcessOutcome, error)
}

type IngestHandler struct {
	runner      CycleRunner
	processor   Processor
	invalidator scheduler.Invalidator
	production  bool
	logger      *slog.Logger
}

func NewIngestHandler(runner CycleRunner, processor Processor, invalidator scheduler.Invalidator, production bool, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{
		runner:      runner,
		processor:   processor,
		invalidator: invalidator,
		production:  production,
		logger:      logger.With("handler", "ingest"),
	}
}

// Run godoc
// @Summary Run an ingestion cycle
// @Description Runs one cycle synchronously. Refused while a scheduled cycle is running.
// @Tags ingest
// @Produce json
// @Param X-Admin-Key header string false "Admin key"
// @Param X-Scheduler-Identity header string false "Allow-listed scheduler identity"
// @Success 200 {object} domain.ProcessOutcome
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Security AdminKeyAuth
// @Router /api/v1/ingest/run [post]
func (h *IngestHandler) Run(c *gin.Context) {
	outcome, err := h.runner.RunOnce(context.WithoutCancel(c.Request.Context()))
	if errors.Is(err, scheduler.ErrCycleInProgress) {
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		internalError(c, h.logger, h.production, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// Webhook godoc
// @Summary Run an ingestion cycle from a webhook
// @Description Runs one cycle synchronously, authenticated by a shared secret.
// @Tags ingest
// @Produce json
// @Param X-Webhook-Secret header string false "Shared secret"
// @Param secret query string false "Shared secret"
// @Success 200 {object} domain.ProcessOutcome
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/ingest/webhook [post]
func (h *IngestHandler) Webhook(c *gin.Context) {
	// Not guarded by the scheduler: may overlap a scheduled cycle.
	outcome, err := h.processor.Process(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		internalError(c, h.logger, h.production, err)
		return
	}

	scheduler.Invalidate(h.invalidator)
	c.JSON(http.StatusOK, outcome)
}
