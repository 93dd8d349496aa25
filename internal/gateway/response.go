// internal/gateway/response.go
package gateway

import "net/http"

// ErrorType is the fixed failure taxonomy exposed to callers.
type ErrorType string

const (
	ErrAmbiguousIntent       ErrorType = "AMBIGUOUS_INTENT"
	ErrUnauthorizedOperation ErrorType = "UNAUTHORIZED_OPERATION"
	ErrUnauthorizedField     ErrorType = "UNAUTHORIZED_FIELD"
	ErrInvalidQuery          ErrorType = "INVALID_QUERY"
	ErrResourceNotFound      ErrorType = "RESOURCE_NOT_FOUND"
	ErrConflict              ErrorType = "CONFLICT"
	ErrExecutionFailed       ErrorType = "EXECUTION_ERROR"
)

// HTTPStatus maps an error type to its response code.
func (t ErrorType) HTTPStatus() int {
	switch t {
	case ErrAmbiguousIntent:
		return http.StatusUnprocessableEntity
	case ErrUnauthorizedOperation, ErrUnauthorizedField:
		return http.StatusForbidden
	case ErrInvalidQuery:
		return http.StatusBadRequest
	case ErrResourceNotFound:
		return http.StatusNotFound
	case ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBody is the error leaf of the envelope.
type ErrorBody struct {
	Type          ErrorType      `json:"type"`
	Message       string         `json:"message"`
	Clarification string         `json:"clarification,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
}

// Page carries pagination metadata for partial reads.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Envelope is the single response shape of the gateway endpoint.
type Envelope struct {
	OK        bool             `json:"ok"`
	Operation string           `json:"operation,omitempty"`
	Resource  string           `json:"resource,omitempty"`
	Data      []map[string]any `json:"data"`
	Count     int              `json:"count"`
	Page      *Page            `json:"page,omitempty"`
	Error     *ErrorBody       `json:"error,omitempty"`
}

func errorEnvelope(body ErrorBody) Envelope {
	return Envelope{OK: false, Data: []map[string]any{}, Error: &body}
}
