// Package httpapi exposes the key pool, the session manager and the
// failover dispatcher over HTTP/JSON.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zhusq20/APIFarm/internal/logging"
	"github.com/zhusq20/APIFarm/internal/server/dispatch"
	"github.com/zhusq20/APIFarm/internal/server/pool"
	"github.com/zhusq20/APIFarm/internal/server/upstream"
)

// KeyPool is the subset of *pool.Pool the handlers use.
type KeyPool interface {
	AddCredential(ctx context.Context, userID, secret, endpoint string) (bool, error)
	RemoveCredential(ctx context.Context, userID, secret string) (pool.RemoveStatus, error)
	ListCredentials(ctx context.Context, userID string) []string
	Snapshot() []upstream.Handle
	Size() int
}

// Sessions is the subset of *sessions.Manager the handlers use.
type Sessions interface {
	Register(ctx context.Context, username, password string) (string, bool, error)
	Login(ctx context.Context, username, password string) (string, string, error)
	Logout(ctx context.Context, token string) (bool, error)
	Resolve(ctx context.Context, token string) (string, error)
}

type Handler struct {
	pool       KeyPool
	sessions   Sessions
	dispatcher *dispatch.Dispatcher
	logger     logging.Logger
}

func NewHandler(p KeyPool, s Sessions, d *dispatch.Dispatcher, logger logging.Logger) *Handler {
	return &Handler{pool: p, sessions: s, dispatcher: d, logger: logger.With("module", "httpapi")}
}

// NewRouter builds the gin engine with every route wired.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.logger))

	r.GET("/healthz", h.health)

	users := r.Group("/users")
	{
		users.POST("/register", h.register)
		users.POST("/login", h.login)
		users.POST("/logout", bearerRequired(), h.logout)
	}

	keys := r.Group("/keys", bearerRequired(), sessionRequired(h.sessions))
	{
		keys.POST("", h.addKey)
		keys.GET("", h.listKeys)
		keys.DELETE("", h.removeKey)
	}

	r.POST("/chat/completions", h.chatCompletions)
	r.POST("/chat/completions/batch", h.batchChatCompletions)
	r.POST("/embeddings", h.embeddings)

	return r
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "keys": h.pool.Size()})
}
