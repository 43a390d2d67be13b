package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/provenance-ledger/internal/api_gateway/middleware"
	"github.com/provenance-ledger/internal/api_gateway/service"
	"github.com/provenance-ledger/internal/domain/product"
	"github.com/provenance-ledger/internal/provenance"
)

// ProductHandler handles HTTP requests for registry and lifecycle operations
type ProductHandler struct {
	productService service.ProductService
	logger         *slog.Logger
}

// NewProductHandler creates a new product handler
func NewProductHandler(logger *slog.Logger, productService service.ProductService) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// Create registers a new product owned by the calling producer
func (h *ProductHandler) Create(c *gin.Context) {
	token, ok := idempotencyKey(c)
	if !ok {
		return
	}
	var req RegisterProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	p, err := h.productService.RegisterProduct(c.Request.Context(), middleware.GetActor(c), product.Attributes{
		ID:             req.ID,
		Name:           req.Name,
		Category:       req.Category,
		Description:    req.Description,
		BatchNumber:    req.BatchNumber,
		ProductionDate: req.ProductionDate,
		ExpiryDate:     req.ExpiryDate,
	}, token)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	RespondCreated(c, mapProductToResponse(p))
}

// GetByID returns a product the caller is related to
func (h *ProductHandler) GetByID(c *gin.Context) {
	p, err := h.productService.GetProduct(c.Request.Context(), middleware.GetActor(c), c.Param("id"))
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}
	RespondOK(c, mapProductToResponse(p))
}

// GetByRFID resolves a product by its bound tag
func (h *ProductHandler) GetByRFID(c *gin.Context) {
	p, err := h.productService.GetProductByRFID(c.Request.Context(), middleware.GetActor(c), c.Param("tag"))
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}
	RespondOK(c, mapProductToResponse(p))
}

// BindRFID binds a tag to a freshly registered product
func (h *ProductHandler) BindRFID(c *gin.Context) {
	token, ok := idempotencyKey(c)
	if !ok {
		return
	}
	var req BindRFIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	p, rec, err := h.productService.BindRFID(c.Request.Context(), middleware.GetActor(c), c.Param("id"), req.RFIDTag, token)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}
	RespondCreated(c, TransitionResponse{Product: mapProductToResponse(p), Record: mapRecordToResponse(rec)})
}

// Transition applies a lifecycle event to a product
func (h *ProductHandler) Transition(c *gin.Context) {
	token, ok := idempotencyKey(c)
	if !ok {
		return
	}
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	ev, err := product.ParseEvent(req.Event)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	p, rec, err := h.productService.Transition(c.Request.Context(), middleware.GetActor(c), c.Param("id"), ev, provenance.TransitionOptions{
		CounterpartID: req.CounterpartID,
		RFIDTag:       req.RFIDTag,
		ClaimedAt:     req.ClaimedAt,
		Token:         token,
	})
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}
	RespondCreated(c, TransitionResponse{Product: mapProductToResponse(p), Record: mapRecordToResponse(rec)})
}

// Verify checks the product's hash chain and replays its lifecycle
func (h *ProductHandler) Verify(c *gin.Context) {
	v, err := h.productService.VerifyProduct(c.Request.Context(), middleware.GetActor(c), c.Param("id"))
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}
	RespondOK(c, v)
}

// idempotencyKey reads the request token, answering 400 when it is unusable
func idempotencyKey(c *gin.Context) (string, bool) {
	token, ok := middleware.GetIdempotencyKey(c)
	if !ok {
		RespondBadRequest(c, "Idempotency-Key must not exceed 255 characters")
	}
	return token, ok
}
