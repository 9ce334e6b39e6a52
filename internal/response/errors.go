package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Entitlement ───────────────────────────────────────────────────
	ErrExamAccessRequired ErrCode = "EXAM_ACCESS_REQUIRED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Exam session ──────────────────────────────────────────────────
	ErrSessionNotReady  ErrCode = "SESSION_NOT_READY"
	ErrSessionNotActive ErrCode = "SESSION_NOT_ACTIVE"
	ErrNoResult         ErrCode = "NO_RESULT"
	ErrPositionInvalid  ErrCode = "POSITION_INVALID"
	ErrOptionInvalid    ErrCode = "OPTION_INVALID"

	// ─── Drill station ─────────────────────────────────────────────────
	ErrNoDrillSession  ErrCode = "NO_DRILL_SESSION"
	ErrDrillComplete   ErrCode = "DRILL_COMPLETE"
	ErrAlreadyAnswered ErrCode = "ALREADY_ANSWERED"
	ErrEmptyCategory   ErrCode = "EMPTY_CATEGORY"
	ErrStudyModeOnly   ErrCode = "STUDY_MODE_ONLY"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is not valid."
	case ErrTokenExpired:
		return "The authentication token has expired."
	case ErrExamAccessRequired:
		return "An active subscription or lifetime access is required for this feature."
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "The request payload is not valid."
	case ErrNotFound:
		return "The resource was not found."
	case ErrSessionNotReady:
		return "The exam session is not ready for this operation yet."
	case ErrSessionNotActive:
		return "There is no active exam session."
	case ErrNoResult:
		return "No exam result is available yet."
	case ErrPositionInvalid:
		return "The question position is out of range."
	case ErrOptionInvalid:
		return "The selected option is out of range."
	case ErrNoDrillSession:
		return "There is no open drill session."
	case ErrDrillComplete:
		return "The drill session is already complete."
	case ErrAlreadyAnswered:
		return "This question has already been answered."
	case ErrEmptyCategory:
		return "No questions are available for this topic and profile."
	case ErrStudyModeOnly:
		return "Jumping to a question is only available in study mode."
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
