package handlers

import (
	"net/http"

	"assist/internal/core/services"
	"assist/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type TenantHandler struct {
	tenants *services.TenantService
}

func NewTenantHandler(tenants *services.TenantService) *TenantHandler {
	return &TenantHandler{tenants: tenants}
}

func (h *TenantHandler) GenerateKey(c *gin.Context) {
	key, err := h.tenants.GenerateKey(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"key": key})
}

func (h *TenantHandler) Settings(c *gin.Context) {
	st, err := h.tenants.Settings(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *TenantHandler) UpdateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	st, err := h.tenants.UpdateSettings(c.Request.Context(), middleware.AccountID(c), req.patch())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
