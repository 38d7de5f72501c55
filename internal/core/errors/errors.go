package errors

const (
	HttpInternalError       = "internal_error"
	HttpValidationError     = "validation_error"
	HttpNotFoundError       = "not_found"
	HttpUpstreamError       = "upstream_error"
	HttpDuplicateEventError = "duplicate_event"
)

// ErrorResponse is the error response body for all API errors.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
