package dto

import "net/http"

// Error codes returned by the API. The set is deliberately small; the sync
// pipeline reports most failures through result records, not HTTP errors.
const (
	ErrCodeInternal         = "ERR_INTERNAL"
	ErrCodeBadRequest       = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON      = "ERR_INVALID_JSON"
	ErrCodeUnauthorized     = "ERR_UNAUTHORIZED"
	ErrCodeNotFound         = "ERR_NOT_FOUND"
	ErrCodeConflict         = "ERR_CONFLICT"
	ErrCodeInvalidState     = "ERR_INVALID_STATE"
	ErrCodeInvalidSignature = "ERR_INVALID_SIGNATURE"
	ErrCodeUpdateBlocked    = "ERR_UPDATE_BLOCKED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:         http.StatusInternalServerError,
	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeInvalidJSON:      http.StatusBadRequest,
	ErrCodeUnauthorized:     http.StatusUnauthorized,
	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodeConflict:         http.StatusConflict,
	ErrCodeInvalidState:     http.StatusUnprocessableEntity,
	ErrCodeInvalidSignature: http.StatusUnauthorized,
	ErrCodeUpdateBlocked:    http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status for an error code, 500 for unknown
// codes.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
