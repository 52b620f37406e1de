package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zhusq20/APIFarm/internal/common"
	"github.com/zhusq20/APIFarm/internal/logging"
)

const (
	ctxKeyToken  = "token"
	ctxKeyUserID = "user_id"
)

func requestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// bearerRequired rejects requests without a bearer token and stores the
// token in the gin context.
func bearerRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := common.BearerToken(c.GetHeader(common.AuthorizationHeaderName))
		if token == "" {
			c.Header("WWW-Authenticate", "Bearer")
			respondError(c, http.StatusUnauthorized, CodeUnauthorized, "Not authenticated")
			c.Abort()
			return
		}
		c.Set(ctxKeyToken, token)
		c.Next()
	}
}

// sessionRequired resolves the bearer token to a user id. It must run
// after bearerRequired.
func sessionRequired(s Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := s.Resolve(c.Request.Context(), c.GetString(ctxKeyToken))
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			if errors.Is(err, common.ErrUnauthorized) {
				respondError(c, http.StatusUnauthorized, CodeUnauthorized, "Not authenticated")
			} else {
				respondError(c, http.StatusUnauthorized, CodeInvalidToken, "Invalid authentication credentials")
			}
			c.Abort()
			return
		}
		c.Set(ctxKeyUserID, userID)
		c.Next()
	}
}
