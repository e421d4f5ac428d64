package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/raine/telegram-skinwise-bot/internal/analysis"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func statusFor(kind analysis.Kind) int {
	switch kind {
	case analysis.KindEntitlementExhausted:
		return http.StatusPaymentRequired
	case analysis.KindImageTooLarge:
		return http.StatusRequestEntityTooLarge
	case analysis.KindInvalidImage:
		return http.StatusUnsupportedMediaType
	case analysis.KindProfileNotFound:
		return http.StatusNotFound
	case analysis.KindClassificationFailed,
		analysis.KindSeverityAssessmentFailed,
		analysis.KindRemedyGenerationFailed,
		analysis.KindIngredientReadFailed,
		analysis.KindSuitabilityCheckFailed,
		analysis.KindFollowUpFailed:
		return http.StatusBadGateway
	case analysis.KindProfileUpdateFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes the failure kind of err as the response body.
func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	kind := analysis.KindOf(err)
	code := string(kind)
	if code == "" {
		code = "internal_error"
	}
	abortWithCode(c, statusFor(kind), code, analysis.UserMessage(kind))
}

func abortWithCode(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Code: code, Message: message})
}
