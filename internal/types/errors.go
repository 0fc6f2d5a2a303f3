package types

// ErrorBody carries a machine-readable code (e.g. COVER_404, AUTH_401)
// plus a human-readable message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// NewErrorResponse builds a consistent API error payload.
// details can be string, map, struct, etc.
func NewErrorResponse(code, message string, details any) ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// NewValidationError wraps per-field validation problems under a fixed
// code so clients can render them uniformly.
func NewValidationError(fields map[string]string) ErrorResponse {
	return NewErrorResponse("VALIDATION_400", "Request validation failed", fields)
}
