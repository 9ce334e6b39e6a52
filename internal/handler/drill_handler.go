package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/haulpass/cdl-backend/internal/engine"
	"github.com/haulpass/cdl-backend/internal/middleware"
	"github.com/haulpass/cdl-backend/internal/model"
	"github.com/haulpass/cdl-backend/internal/response"
	"github.com/haulpass/cdl-backend/internal/service"
	"github.com/haulpass/cdl-backend/internal/validator"
)

// DrillHandler handles the single-category drill station endpoints.
type DrillHandler struct {
	sessions *service.SessionManager
}

// NewDrillHandler creates a new DrillHandler.
func NewDrillHandler(sessions *service.SessionManager) *DrillHandler {
	return &DrillHandler{sessions: sessions}
}

func (h *DrillHandler) drill(c *gin.Context) (*engine.DrillEngine, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}

	d, ok := h.sessions.Drill(claims.DeviceID)
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrNoDrillSession)
		return nil, false
	}
	return d, true
}

func failDrill(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrDrillComplete):
		response.Fail(c, http.StatusConflict, response.ErrDrillComplete)
	case errors.Is(err, engine.ErrAlreadyRevealed):
		response.Fail(c, http.StatusConflict, response.ErrAlreadyAnswered)
	case errors.Is(err, engine.ErrNotRevealed):
		response.Fail(c, http.StatusConflict, response.ErrSessionNotReady)
	case errors.Is(err, engine.ErrStudyModeOnly):
		response.Fail(c, http.StatusConflict, response.ErrStudyModeOnly)
	case errors.Is(err, engine.ErrInvalidPosition):
		response.Fail(c, http.StatusBadRequest, response.ErrPositionInvalid)
	case errors.Is(err, engine.ErrInvalidOption):
		response.Fail(c, http.StatusBadRequest, response.ErrOptionInvalid)
	case errors.Is(err, engine.ErrEmptyCategory):
		response.Fail(c, http.StatusNotFound, response.ErrEmptyCategory)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// StartDrill godoc
// POST /api/v1/drills
// Opens a drill station for one category, replacing any previous drill.
func (h *DrillHandler) StartDrill(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.StartDrillRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	d, err := h.sessions.StartDrill(c.Request.Context(), claims.DeviceID, req.Category, model.DrillMode(req.Mode))
	if err != nil {
		failDrill(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"drill": d.Current()})
}

// GetCurrent godoc
// GET /api/v1/drills/current
// Returns the question at the current position.
func (h *DrillHandler) GetCurrent(c *gin.Context) {
	d, ok := h.drill(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{"drill": d.Current()})
}

// AnswerDrill godoc
// POST /api/v1/drills/answer
// Grades the current question immediately and reveals the explanation.
func (h *DrillHandler) AnswerDrill(c *gin.Context) {
	d, ok := h.drill(c)
	if !ok {
		return
	}

	var req model.DrillAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	reveal, err := d.Answer(c.Request.Context(), *req.OptionIndex)
	if err != nil {
		failDrill(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reveal": reveal})
}

// NextQuestion godoc
// POST /api/v1/drills/next
// Advances past the current (answered) question.
func (h *DrillHandler) NextQuestion(c *gin.Context) {
	d, ok := h.drill(c)
	if !ok {
		return
	}

	if err := d.Next(); err != nil {
		failDrill(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"drill": d.Current()})
}

// GoToQuestion godoc
// POST /api/v1/drills/position
// Jumps to an arbitrary question. Study mode only.
func (h *DrillHandler) GoToQuestion(c *gin.Context) {
	d, ok := h.drill(c)
	if !ok {
		return
	}

	var req model.GoToRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := d.GoTo(*req.Position); err != nil {
		failDrill(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"drill": d.Current()})
}

// GetSummary godoc
// GET /api/v1/drills/summary
// Returns the running tally and the qualification determination.
func (h *DrillHandler) GetSummary(c *gin.Context) {
	d, ok := h.drill(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{"summary": d.Summary()})
}

// EndDrill godoc
// DELETE /api/v1/drills
// Closes the drill station and returns the final summary.
func (h *DrillHandler) EndDrill(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	summary, ok := h.sessions.EndDrill(claims.DeviceID)
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrNoDrillSession)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"summary": summary})
}
