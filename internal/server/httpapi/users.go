package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeValidation, "invalid json")
		return
	}

	userID, created, err := h.sessions.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	msg := "User registered successfully"
	if !created {
		msg = "User already exists"
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "created": created, "message": msg})
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeValidation, "invalid json")
		return
	}

	token, userID, err := h.sessions.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user_id": userID})
}

func (h *Handler) logout(c *gin.Context) {
	ok, err := h.sessions.Logout(c.Request.Context(), c.GetString(ctxKeyToken))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	msg := "Logged out successfully"
	if !ok {
		msg = "Not logged in"
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}
