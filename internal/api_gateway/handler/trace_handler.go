package handler

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/provenance-ledger/internal/api_gateway/middleware"
	"github.com/provenance-ledger/internal/api_gateway/service"
	"github.com/provenance-ledger/internal/domain/ledger"
)

// TraceHandler handles the read-only traceability queries
type TraceHandler struct {
	traceService service.TraceService
	logger       *slog.Logger
}

// NewTraceHandler creates a new trace handler
func NewTraceHandler(logger *slog.Logger, traceService service.TraceService) *TraceHandler {
	return &TraceHandler{
		traceService: traceService,
		logger:       logger,
	}
}

// Timeline returns a product's visible records filtered by time and type
func (h *TraceHandler) Timeline(c *gin.Context) {
	opts, ok := h.timelineOptions(c)
	if !ok {
		return
	}
	records, err := h.traceService.Timeline(c.Request.Context(), middleware.GetActor(c), c.Param("id"), opts)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}
	RespondOK(c, TimelineResponse{ProductID: c.Param("id"), Records: mapRecordsToResponse(records)})
}

// Trace returns the product, its current state and its timeline
func (h *TraceHandler) Trace(c *gin.Context) {
	opts, ok := h.timelineOptions(c)
	if !ok {
		return
	}
	trace, err := h.traceService.Trace(c.Request.Context(), middleware.GetActor(c), c.Param("id"), opts)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}
	RespondOK(c, mapTraceToResponse(trace))
}

// LatestReading returns the newest cached sample of a device
func (h *TraceHandler) LatestReading(c *gin.Context) {
	reading, err := h.traceService.LatestReading(c.Request.Context(), middleware.GetActor(c), c.Param("id"))
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}
	RespondOK(c, mapReadingToResponse(reading))
}

// DeviceHistory returns a page of a device's archived records
func (h *TraceHandler) DeviceHistory(c *gin.Context) {
	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	records, total, err := h.traceService.DeviceHistory(c.Request.Context(), middleware.GetActor(c), c.Param("id"), pagination.Page, pagination.PerPage)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}
	RespondWithPaginatedData(c, mapRecordsToResponse(records), pagination.Page, pagination.PerPage, total)
}

func (h *TraceHandler) timelineOptions(c *gin.Context) (ledger.TimelineOptions, bool) {
	var q TimelineQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return ledger.TimelineOptions{}, false
	}

	var opts ledger.TimelineOptions
	for _, bound := range []struct {
		name string
		raw  string
		dst  **time.Time
	}{
		{"from", q.From, &opts.From},
		{"to", q.To, &opts.To},
	} {
		if bound.raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, bound.raw)
		if err != nil {
			RespondBadRequest(c, "Invalid '"+bound.name+"' timestamp, expected RFC3339")
			return ledger.TimelineOptions{}, false
		}
		*bound.dst = &t
	}

	if q.Types != "" {
		for _, raw := range strings.Split(q.Types, ",") {
			t, err := ledger.ParseRecordType(strings.TrimSpace(raw))
			if err != nil {
				RespondBadRequest(c, err.Error())
				return ledger.TimelineOptions{}, false
			}
			opts.Types = append(opts.Types, t)
		}
	}
	return opts, true
}
