// Package http holds middleware and response helpers shared by the member and admin APIs.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes carried in the "code" field of error responses.
const (
	CodeOpenInLine         = "open_in_line"
	CodeBackendUnavailable = "backend_unavailable"
	CodeNotRegistered      = "not_registered"
	CodeValidationFailed   = "validation_failed"
	CodeLocationRequired   = "location_required"
	CodeNotFound           = "not_found"
	CodeDuplicateReceipt   = "duplicate_receipt"
	CodeBadRequest         = "bad_request"
	CodeConflict           = "conflict"
	CodeInternal           = "internal"
)

// ContextLineUserID is the gin context key holding the verified LINE user ID.
const ContextLineUserID = "lineUserID"

// ErrorBody builds the error envelope.
func ErrorBody(code, message string) gin.H {
	return gin.H{"error": message, "code": code}
}

// AbortError writes the envelope and stops the handler chain.
func AbortError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorBody(code, message))
}

// RespondError writes the envelope.
func RespondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorBody(code, message))
}

// RespondValidation writes a 422 with per-field messages.
func RespondValidation(c *gin.Context, fields map[string]string) {
	body := ErrorBody(CodeValidationFailed, "validation failed")
	body["fields"] = fields
	c.JSON(http.StatusUnprocessableEntity, body)
}
