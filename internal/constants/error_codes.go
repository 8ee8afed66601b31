package constants

const (
	// Shared REST/WS transport-agnostic errors
	ErrCodeAuthFailed     = "AUTH_FAILED"
	ErrCodeAuthExpired    = "AUTH_EXPIRED"
	ErrCodeRateLimited    = "RATE_LIMITED"
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeInternal       = "INTERNAL_ERROR"

	// Chat domain errors
	ErrCodeMessageEmpty   = "MESSAGE_EMPTY"
	ErrCodeMessageTooLong = "MESSAGE_TOO_LONG"
	ErrCodeUpstream       = "UPSTREAM_ERROR"
)
