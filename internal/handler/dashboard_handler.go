package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/haulpass/cdl-backend/internal/middleware"
	"github.com/haulpass/cdl-backend/internal/model"
	"github.com/haulpass/cdl-backend/internal/response"
	"github.com/haulpass/cdl-backend/internal/service"
)

// DashboardHandler serves the home-screen aggregates.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// GetSummary godoc
// GET /api/v1/dashboard/summary
func (h *DashboardHandler) GetSummary(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	summary, err := h.dashboard.Summary(c.Request.Context(), claims.DeviceID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"summary": summary})
}

// GetAnswerLog godoc
// GET /api/v1/dashboard/answer-log
// Returns the raw per-question log of the most recent completed session.
func (h *DashboardHandler) GetAnswerLog(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	entries, err := h.dashboard.AnswerLog(c.Request.Context(), claims.DeviceID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if entries == nil {
		entries = []model.AnswerLogEntry{}
	}
	response.Success(c, http.StatusOK, gin.H{"answer_log": entries})
}
