package aiprovider

import (
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrorType classifies provider failures for logging and response mapping.
type ErrorType string

const (
	ErrorTypeAuth           ErrorType = "auth"
	ErrorTypeModel          ErrorType = "model"
	ErrorTypeEndpoint       ErrorType = "endpoint"
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	ErrorTypeEmptyResponse  ErrorType = "empty_response"
	ErrorTypeUnknown        ErrorType = "unknown"
)

// Error represents a structured provider error with classification.
type Error struct {
	Type       ErrorType
	Provider   ModelType
	Message    string
	StatusCode int
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	parts = append(parts, string(e.Provider), string(e.Type))
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	parts = append(parts, e.Message)

	msg := strings.Join(parts, " ")
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new structured provider error.
func NewError(provider ModelType, errType ErrorType, message string, cause error) *Error {
	return &Error{
		Type:     errType,
		Provider: provider,
		Message:  message,
		Cause:    cause,
	}
}

// classifyError categorizes an SDK error into a structured Error.
func classifyError(provider ModelType, err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		e := &Error{
			Provider:   provider,
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Cause:      err,
		}
		switch apiErr.HTTPStatusCode {
		case 401, 403:
			e.Type = ErrorTypeAuth
		case 404:
			e.Type = ErrorTypeModel
		case 400, 422:
			e.Type = ErrorTypeInvalidRequest
		case 500, 502, 503, 504, 429:
			e.Type = ErrorTypeEndpoint
		default:
			e.Type = ErrorTypeUnknown
		}
		return e
	}

	return &Error{
		Type:     ErrorTypeEndpoint,
		Provider: provider,
		Message:  "provider request failed",
		Cause:    err,
	}
}
