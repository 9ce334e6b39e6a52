package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/haulpass/cdl-backend/internal/bank"
	"github.com/haulpass/cdl-backend/internal/middleware"
	"github.com/haulpass/cdl-backend/internal/response"
	"github.com/haulpass/cdl-backend/internal/service"
)

// CatalogHandler serves the question catalog metadata and the per-device
// study progress built on top of it.
type CatalogHandler struct {
	bank      *bank.Bank
	dashboard *service.DashboardService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(b *bank.Bank, dashboard *service.DashboardService) *CatalogHandler {
	return &CatalogHandler{bank: b, dashboard: dashboard}
}

// ListCategories godoc
// GET /api/v1/catalog/categories
// Returns the distinct topic labels with question counts. The catalog only
// changes on reseed, so responses carry a cache header.
func (h *CatalogHandler) ListCategories(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"categories": h.bank.Categories()})
}

// GetProgress godoc
// GET /api/v1/catalog/progress
// Returns per-category mastery coverage for the device.
func (h *CatalogHandler) GetProgress(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	progress := h.dashboard.Progress(c.Request.Context(), claims.DeviceID)
	response.Success(c, http.StatusOK, gin.H{"progress": progress})
}
