package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cargo_ingest/internal/cache"
	"cargo_ingest/internal/domain"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

type LoadReader interface {
	FindAll(ctx context.Context, q domain.ListQuery) ([]domain.LoadRecord, error)
	FindNotNotified(ctx context.Context, q domain.ListQuery) ([]domain.LoadRecord, error)
	Count(ctx context.Context) (int, error)
	CountNotNotified(ctx context.Context) (int, error)
}

type LoadsResponse struct {
	Data   any  `json:"data"`
	Limit  int  `json:"limit"`
	Offset int  `json:"offset"`
	Total  *int `json:"total,omitempty"`
}

type LoadsHandler struct {
	loads      LoadReader
	responses  cachedJSON
	production bool
	logger     *slog.Logger
}

func NewLoadsHandler(loads LoadReader, rc *cache.Cache, ttl time.Duration, production bool, logger *slog.Logger) *LoadsHandler {
	return &LoadsHandler{
		loads:      loads,
		responses:  cachedJSON{cache: rc, ttl: ttl, tags: []string{cache.TagLoads}},
		production: production,
		logger:     logger.With("handler", "loads"),
	}
}

type listParams struct {
	query        domain.ListQuery
	notNotified  bool
	fields       []string
	includeTotal bool
}

func (p listParams) cacheKey() string {
	notified := ""
	if p.notNotified {
		notified = "false"
	}
	return cache.Key(cache.TagLoads, map[string]string{
		"limit":        strconv.Itoa(p.query.Limit),
		"offset":       strconv.Itoa(p.query.Offset),
		"sortBy":       string(p.query.SortBy),
		"sortOrder":    string(p.query.SortOrder),
		"notified":     notified,
		"fields":       strings.Join(p.fields, ","),
		"includeTotal": strconv.FormatBool(p.includeTotal),
	})
}

// List godoc
// @Summary List loads
// @Description Paginated, sorted list of stored loads
// @Tags loads
// @Produce json
// @Param limit query int false "Page size (1-100)" default(10)
// @Param offset query int false "Rows to skip" default(0)
// @Param notified query string false "false lists only loads not yet notified"
// @Param sortBy query string false "createdAt, expectedPickupAt, tripId, origin, destination or product"
// @Param sortOrder query string false "asc or desc"
// @Param fields query string false "Comma-separated projection"
// @Param includeTotal query bool false "Include the total count"
// @Success 200 {object} LoadsResponse
// @Success 304
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/loads [get]
func (h *LoadsHandler) List(c *gin.Context) {
	params, err := parseListParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	err = h.responses.serve(c, params.cacheKey(), func() (any, error) {
		return h.build(c.Request.Context(), params)
	})
	if err != nil {
		internalError(c, h.logger, h.production, err)
	}
}

func (h *LoadsHandler) build(ctx context.Context, p listParams) (*LoadsResponse, error) {
	find, count := h.loads.FindAll, h.loads.Count
	if p.notNotified {
		find, count = h.loads.FindNotNotified, h.loads.CountNotNotified
	}

	records, err := find(ctx, p.query)
	if err != nil {
		return nil, err
	}

	data, err := project(records, p.fields)
	if err != nil {
		return nil, err
	}

	resp := &LoadsResponse{Data: data, Limit: p.query.Limit, Offset: p.query.Offset}
	if p.includeTotal {
		total, err := count(ctx)
		if err != nil {
			return nil, err
		}
		resp.Total = &total
	}
	return resp, nil
}

func parseListParams(c *gin.Context) (listParams, error) {
	p := listParams{
		query: domain.ListQuery{
			Limit:     defaultLimit,
			SortBy:    domain.SortField(c.Query("sortBy")),
			SortOrder: domain.SortOrder(strings.ToLower(c.Query("sortOrder"))),
		},
		notNotified:  c.Query("notified") == "false",
		includeTotal: c.Query("includeTotal") == "true",
	}

	if raw, ok := c.GetQuery("limit"); ok {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxLimit {
			return p, fmt.Errorf("limit must be an integer between 1 and %d", maxLimit)
		}
		p.query.Limit = limit
	}

	if raw, ok := c.GetQuery("offset"); ok {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return p, fmt.Errorf("offset must be a non-negative integer")
		}
		p.query.Offset = offset
	}

	for _, f := range strings.Split(c.Query("fields"), ",") {
		if f = strings.TrimSpace(f); f != "" {
			p.fields = append(p.fields, f)
		}
	}

	p.query = p.query.Normalized()
	return p, nil
}

// project keeps only the requested JSON fields of each record. Unknown
// field names are ignored.
func project(records []domain.LoadRecord, fields []string) (any, error) {
	if len(fields) == 0 {
		return records, nil
	}

	out := make([]map[string]json.RawMessage, 0, len(records))
	for _, r := range records {
		raw, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshal load: %w", err)
		}
		var full map[string]json.RawMessage
		if err := json.Unmarshal(raw, &full); err != nil {
			return nil, fmt.Errorf("unmarshal load: %w", err)
		}

		picked := make(map[string]json.RawMessage, len(fields))
		for _, f := range fields {
			if v, ok := full[f]; ok {
				picked[f] = v
			}
		}
		out = append(out, picked)
	}
	return out, nil
}
