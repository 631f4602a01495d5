package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"cargo_ingest/internal/cache"
	"cargo_ingest/internal/domain"
)

type RunReader interface {
	Latest(ctx context.Context) (*domain.IngestionRun, error)
}

type StatusResponse struct {
	TotalLoads          int                  `json:"totalLoads"`
	PendingNotification int                  `json:"pendingNotification"`
	LastRun             *domain.IngestionRun `json:"lastRun"`
}

type StatusHandler struct {
	loads      LoadReader
	runs       RunReader
	responses  cachedJSON
	production bool
	logger     *slog.Logger
}

func NewStatusHandler(loads LoadReader, runs RunReader, rc *cache.Cache, ttl time.Duration, production bool, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		loads:      loads,
		runs:       runs,
		responses:  cachedJSON{cache: rc, ttl: ttl, tags: []string{cache.TagStatus}},
		production: production,
		logger:     logger.With("handler", "status"),
	}
}

// Get godoc
// @Summary Ingestion status
// @Description Load counts and the latest ingestion run
// @Tags status
// @Produce json
// @Success 200 {object} StatusResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/status [get]
func (h *StatusHandler) Get(c *gin.Context) {
	err := h.responses.serve(c, cache.TagStatus, func() (any, error) {
		return h.build(c.Request.Context())
	})
	if err != nil {
		internalError(c, h.logger, h.production, err)
	}
}

func (h *StatusHandler) build(ctx context.Context) (*StatusResponse, error) {
	total, err := h.loads.Count(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := h.loads.CountNotNotified(ctx)
	if err != nil {
		return nil, err
	}
	last, err := h.runs.Latest(ctx)
	if err != nil {
		return nil, err
	}
	return &StatusResponse{
		TotalLoads:          total,
		PendingNotification: pending,
		LastRun:             last,
	}, nil
}
