package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/haulpass/cdl-backend/internal/model"
	"github.com/haulpass/cdl-backend/internal/response"
	"github.com/haulpass/cdl-backend/internal/service"
	"github.com/haulpass/cdl-backend/internal/validator"
)

// AuthHandler handles device registration and token issuance.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RegisterDevice godoc
// POST /api/v1/devices/register
// Issues a device ID and token. An existing device ID may be supplied to
// keep previously stored sessions after a reinstall.
func (h *AuthHandler) RegisterDevice(c *gin.Context) {
	// The body is optional; a bare POST registers a brand new device.
	var req model.RegisterDeviceRequest
	if c.Request.ContentLength > 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	deviceID, token, err := h.authService.RegisterDevice(req.DeviceID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"device_id": deviceID,
		"token":     token,
	})
}
