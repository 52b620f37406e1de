package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zhusq20/APIFarm/internal/server/pool"
)

type addKeyRequest struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

type removeKeyRequest struct {
	APIKey string `json:"api_key"`
}

func (h *Handler) addKey(c *gin.Context) {
	var req addKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeValidation, "invalid json")
		return
	}

	added, err := h.pool.AddCredential(c.Request.Context(), c.GetString(ctxKeyUserID), req.APIKey, req.BaseURL)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	msg := "Key added"
	if !added {
		msg = "Key already registered"
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": msg})
}

func (h *Handler) listKeys(c *gin.Context) {
	keys := h.pool.ListCredentials(c.Request.Context(), c.GetString(ctxKeyUserID))
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

func (h *Handler) removeKey(c *gin.Context) {
	var req removeKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeValidation, "invalid json")
		return
	}

	status, err := h.pool.RemoveCredential(c.Request.Context(), c.GetString(ctxKeyUserID), req.APIKey)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	msg := "Key removed from the pool"
	if status == pool.StillShared {
		msg = "Key removed from your account, still shared by other users"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"message":           msg,
		"removed_from_pool": status == pool.RemovedFromPool,
	})
}
