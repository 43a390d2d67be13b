package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/provenance-ledger/internal/api_gateway/middleware"
	"github.com/provenance-ledger/internal/domain/shared"
)

// Response represents a standard API response
type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Error         *ErrorInfo  `json:"error,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Meta          *MetaInfo   `json:"meta,omitempty"`
}

// ErrorInfo represents error information in a response
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MetaInfo represents metadata in a response
type MetaInfo struct {
	Page       int   `json:"page,omitempty"`
	PerPage    int   `json:"per_page,omitempty"`
	TotalPages int   `json:"total_pages,omitempty"`
	TotalItems int64 `json:"total_items"`
}

// NewPaginatedResponse creates a new paginated response
func NewPaginatedResponse(data interface{}, page, perPage int, totalItems int64) *Response {
	totalPages := int(totalItems / int64(perPage))
	if totalItems%int64(perPage) > 0 {
		totalPages++
	}

	return &Response{
		Data: data,
		Meta: &MetaInfo{
			Page:       page,
			PerPage:    perPage,
			TotalPages: totalPages,
			TotalItems: totalItems,
		},
	}
}

// RespondWithData sends a JSON response with data
func RespondWithData(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, &Response{Data: data, CorrelationID: middleware.GetCorrelationID(c)})
}

// RespondWithError sends a JSON response with an error
func RespondWithError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, &Response{
		Error:         &ErrorInfo{Code: code, Message: message},
		CorrelationID: middleware.GetCorrelationID(c),
	})
}

// RespondWithPaginatedData sends a JSON response with paginated data
func RespondWithPaginatedData(c *gin.Context, data interface{}, page, perPage int, totalItems int64) {
	response := NewPaginatedResponse(data, page, perPage, totalItems)
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(http.StatusOK, response)
}

// RespondOK sends a 200 OK response with data
func RespondOK(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusOK, data)
}

// RespondCreated sends a 201 Created response with data
func RespondCreated(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusCreated, data)
}

// RespondBadRequest sends a 400 response for a request that could not be decoded
func RespondBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, string(shared.KindInvalidInput), message)
}

// StatusForKind maps an error kind onto its HTTP status
func StatusForKind(kind shared.ErrorKind) int {
	switch kind {
	case shared.KindUnauthenticated:
		return http.StatusUnauthorized
	case shared.KindForbidden:
		return http.StatusForbidden
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindDuplicateID, shared.KindIllegalTransition, shared.KindInvalidState, shared.KindAlreadyCorrected:
		return http.StatusConflict
	case shared.KindInvalidInput:
		return http.StatusBadRequest
	case shared.KindInvalidSample:
		return http.StatusUnprocessableEntity
	case shared.KindRateLimited:
		return http.StatusTooManyRequests
	case shared.KindStorage:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// RespondDomainError maps err onto the status for its kind. Messages of
// storage and unclassified errors stay in the log.
func RespondDomainError(c *gin.Context, logger *slog.Logger, err error) {
	kind := shared.KindOf(err)
	status := StatusForKind(kind)
	_ = c.Error(err)

	switch status {
	case http.StatusServiceUnavailable:
		logger.Error("Storage unavailable", "error", err, "correlation_id", middleware.GetCorrelationID(c))
		RespondWithError(c, status, string(kind), "Storage is temporarily unavailable, retry with the same Idempotency-Key")
	case http.StatusInternalServerError:
		logger.Error("Unhandled error", "error", err, "kind", kind, "correlation_id", middleware.GetCorrelationID(c))
		RespondWithError(c, status, "INTERNAL", "An internal server error occurred")
	default:
		RespondWithError(c, status, string(kind), err.Error())
	}
}
