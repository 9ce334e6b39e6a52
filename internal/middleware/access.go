package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/haulpass/cdl-backend/internal/billing"
	"github.com/haulpass/cdl-backend/internal/response"
)

// RequireExamAccess checks the device's entitlement on every request so a
// lapsed subscription locks the simulator out immediately.
func RequireExamAccess(checker billing.AccessChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		level, err := checker.AccessLevel(c.Request.Context(), claims.DeviceID)
		if err != nil {
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
		if !level.CanTakeExam() {
			response.AbortFail(c, http.StatusForbidden, response.ErrExamAccessRequired)
			return
		}

		c.Next()
	}
}
