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

// ExamHandler handles the timed exam simulator endpoints.
type ExamHandler struct {
	sessions *service.SessionManager
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(sessions *service.SessionManager) *ExamHandler {
	return &ExamHandler{sessions: sessions}
}

// engine lazily boots (or fetches) the device's exam engine.
func (h *ExamHandler) engine(c *gin.Context) (*engine.ExamEngine, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}

	e, err := h.sessions.Exam(c.Request.Context(), claims.DeviceID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return nil, false
	}
	return e, true
}

// failExam maps engine errors onto API error codes.
func failExam(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrWrongState):
		response.Fail(c, http.StatusConflict, response.ErrSessionNotReady)
	case errors.Is(err, engine.ErrNotActive):
		response.Fail(c, http.StatusConflict, response.ErrSessionNotActive)
	case errors.Is(err, engine.ErrInvalidPosition):
		response.Fail(c, http.StatusBadRequest, response.ErrPositionInvalid)
	case errors.Is(err, engine.ErrInvalidOption):
		response.Fail(c, http.StatusBadRequest, response.ErrOptionInvalid)
	case errors.Is(err, engine.ErrNoResult):
		response.Fail(c, http.StatusConflict, response.ErrNoResult)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// GetManifest godoc
// GET /api/v1/exam/manifest
// Returns the pre-start determination: fresh vs resume, session dimensions,
// and the current engine state (pollable through the boot delay).
func (h *ExamHandler) GetManifest(c *gin.Context) {
	e, ok := h.engine(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{"manifest": e.Manifest()})
}

// StartExam godoc
// POST /api/v1/exam/start
// Begins (or resumes) the timed session and starts the countdown.
func (h *ExamHandler) StartExam(c *gin.Context) {
	e, ok := h.engine(c)
	if !ok {
		return
	}

	if err := e.Start(c.Request.Context()); err != nil {
		failExam(c, err)
		return
	}

	view, err := e.View()
	if err != nil {
		failExam(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": view})
}

// GetState godoc
// GET /api/v1/exam/state
// Returns the full live session view.
func (h *ExamHandler) GetState(c *gin.Context) {
	e, ok := h.engine(c)
	if !ok {
		return
	}

	view, err := e.View()
	if err != nil {
		failExam(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": view})
}

// SelectAnswer godoc
// POST /api/v1/exam/answers
// Records or replaces the answer at a position.
func (h *ExamHandler) SelectAnswer(c *gin.Context) {
	e, ok := h.engine(c)
	if !ok {
		return
	}

	var req model.SelectAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := e.Select(c.Request.Context(), *req.Position, *req.OptionIndex); err != nil {
		failExam(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

// ToggleFlag godoc
// POST /api/v1/exam/flags
// Toggles the review flag at a position.
func (h *ExamHandler) ToggleFlag(c *gin.Context) {
	e, ok := h.engine(c)
	if !ok {
		return
	}

	var req model.ToggleFlagRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := e.ToggleFlag(c.Request.Context(), *req.Position); err != nil {
		failExam(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

// GoToPosition godoc
// POST /api/v1/exam/position
// Moves the current question pointer.
func (h *ExamHandler) GoToPosition(c *gin.Context) {
	e, ok := h.engine(c)
	if !ok {
		return
	}

	var req model.GoToRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := e.GoTo(c.Request.Context(), *req.Position); err != nil {
		failExam(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

// SubmitExam godoc
// POST /api/v1/exam/submit
// Closes the session for grading. Unanswered questions count as incorrect.
func (h *ExamHandler) SubmitExam(c *gin.Context) {
	e, ok := h.engine(c)
	if !ok {
		return
	}

	if err := e.Submit(c.Request.Context()); err != nil {
		failExam(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"state": e.CurrentState()})
}

// GetResult godoc
// GET /api/v1/exam/result
// Returns the score report once grading has finished.
func (h *ExamHandler) GetResult(c *gin.Context) {
	e, ok := h.engine(c)
	if !ok {
		return
	}

	report, answerLog, err := e.Result()
	if err != nil {
		failExam(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"report":     report,
		"answer_log": answerLog,
	})
}

// ResetExam godoc
// POST /api/v1/exam/reset
// Reboots the device's engine. An unexpired stored session resumes; a
// finished or expired one yields a fresh assembly.
func (h *ExamHandler) ResetExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	e, err := h.sessions.Reset(c.Request.Context(), claims.DeviceID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"manifest": e.Manifest()})
}
