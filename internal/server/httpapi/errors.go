package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zhusq20/APIFarm/internal/common"
)

// Error codes returned in {"error": {"code", "message"}}.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeNotOwned           = "NOT_OWNED"
	CodePoolEmpty          = "POOL_EMPTY"
	CodeAllKeysFailed      = "ALL_KEYS_FAILED"
	CodeTimeout            = "TIMEOUT"
	CodeInternal           = "INTERNAL_SERVER_ERROR"
)

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

// respondServiceError maps a pool, session or dispatch error to its HTTP
// status. Unknown errors are logged and reported as 500 without detail.
func (h *Handler) respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrStreamDisabled):
		respondError(c, http.StatusBadRequest, CodeValidation, err.Error())
	case errors.Is(err, common.ErrUnauthorized):
		respondError(c, http.StatusUnauthorized, CodeUnauthorized, "Not authenticated")
	case errors.Is(err, common.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, CodeInvalidCredentials, "Invalid credentials")
	case errors.Is(err, common.ErrInvalidToken):
		respondError(c, http.StatusUnauthorized, CodeInvalidToken, "Invalid authentication credentials")
	case errors.Is(err, common.ErrNotOwned):
		respondError(c, http.StatusNotFound, CodeNotOwned, "Key not found for this user")
	case errors.Is(err, common.ErrPoolEmpty):
		respondError(c, http.StatusServiceUnavailable, CodePoolEmpty, "No API keys available in the pool")
	case errors.Is(err, common.ErrAllKeysFailed):
		respondError(c, http.StatusBadGateway, CodeAllKeysFailed, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(c, http.StatusGatewayTimeout, CodeTimeout, "request timed out")
	default:
		h.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		respondError(c, http.StatusInternalServerError, CodeInternal, "internal server error")
	}
}
