package handler

import (
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/provenance-ledger/internal/api_gateway/middleware"
	"github.com/provenance-ledger/internal/api_gateway/service"
	"github.com/provenance-ledger/internal/domain/telemetry"
	"github.com/provenance-ledger/internal/provenance"
)

// RecordHandler handles HTTP requests that append to a product's ledger
type RecordHandler struct {
	recordService service.RecordService
	logger        *slog.Logger
}

// NewRecordHandler creates a new record handler
func NewRecordHandler(logger *slog.Logger, recordService service.RecordService) *RecordHandler {
	return &RecordHandler{
		recordService: recordService,
		logger:        logger,
	}
}

// Checkpoint records a logistics scan
func (h *RecordHandler) Checkpoint(c *gin.Context) {
	token, ok := idempotencyKey(c)
	if !ok {
		return
	}
	var req CheckpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	rec, err := h.recordService.RecordCheckpoint(c.Request.Context(), middleware.GetActor(c), c.Param("id"), provenance.CheckpointInput{
		Location:  req.Location,
		Note:      req.Note,
		ClaimedAt: req.ClaimedAt,
	}, token)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}
	RespondCreated(c, mapRecordToResponse(rec))
}

// Telemetry records a sensor sample posted by a device gateway. Samples
// are deduplicated by device and observation time, so the token header is
// not consulted.
func (h *RecordHandler) Telemetry(c *gin.Context) {
	var req TelemetryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	rec, err := h.recordService.IngestTelemetry(c.Request.Context(), middleware.GetActor(c), telemetry.Reading{
		DeviceID:    req.DeviceID,
		ProductID:   c.Param("id"),
		Temperature: *req.Temperature,
		Humidity:    *req.Humidity,
		Latitude:    *req.Latitude,
		Longitude:   *req.Longitude,
		ObservedAt:  req.ObservedAt,
	})
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}
	RespondCreated(c, mapRecordToResponse(rec))
}

// Correct suppresses a telemetry or checkpoint record
func (h *RecordHandler) Correct(c *gin.Context) {
	token, ok := idempotencyKey(c)
	if !ok {
		return
	}
	recordID, err := strconv.ParseInt(c.Param("recordId"), 10, 64)
	if err != nil || recordID < 1 {
		RespondBadRequest(c, "Invalid record ID")
		return
	}
	var req CorrectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	rec, err := h.recordService.CorrectRecord(c.Request.Context(), middleware.GetActor(c), c.Param("id"), recordID, req.Reason, token)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}
	RespondCreated(c, mapRecordToResponse(rec))
}
