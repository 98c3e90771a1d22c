package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Session Lifecycle ─────────────────────────────────────────────
	ErrAlreadyStarted   ErrCode = "ALREADY_STARTED"
	ErrSessionNotActive ErrCode = "SESSION_NOT_ACTIVE"
	ErrNotFound         ErrCode = "NOT_FOUND"

	// ─── Collaborators ─────────────────────────────────────────────────
	ErrUpstreamUnavailable ErrCode = "UPSTREAM_UNAVAILABLE"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrAlreadyStarted:
		return "An interview session is already running for this candidate."
	case ErrSessionNotActive:
		return "No active interview session for this candidate."
	case ErrNotFound:
		return "Session record not found or already closed."
	case ErrUpstreamUnavailable:
		return "An upstream collaborator is unavailable; the signal was dropped."
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid identifier format."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
