/*
Package middleware provides error handling utilities and structured error responses.
*/
package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrorCode represents different types of application errors
type ErrorCode string

const (
	ErrCodeBadRequest     ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeConflict       ErrorCode = "CONFLICT"
	ErrCodeRateLimited    ErrorCode = "RATE_LIMITED"
	ErrCodeQueueFull      ErrorCode = "QUEUE_FULL"
	ErrCodeInternalError  ErrorCode = "INTERNAL_ERROR"
	ErrCodeUnavailable    ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeValidation     ErrorCode = "VALIDATION_ERROR"
)

// APIError represents a structured error response
type APIError struct {
	Error     ErrorCode `json:"error"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp string    `json:"timestamp"`
}

// ErrorHandler writes a structured error response and logs it
func ErrorHandler(w http.ResponseWriter, err error, code ErrorCode, statusCode int, requestID string) {
	apiErr := APIError{
		Error:     code,
		Message:   getErrorMessage(code),
		Details:   err.Error(),
		RequestID: requestID,
		Timestamp: fmt.Sprintf("%d", time.Now().Unix()),
	}

	Logger.WithFields(logrus.Fields{
		"error_code":  code,
		"status_code": statusCode,
		"request_id":  requestID,
		"error":       err.Error(),
	}).Error("API error occurred")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	json.NewEncoder(w).Encode(apiErr)
}

func getErrorMessage(code ErrorCode) string {
	switch code {
	case ErrCodeBadRequest:
		return "The request is invalid or malformed"
	case ErrCodeNotFound:
		return "The requested resource was not found"
	case ErrCodeConflict:
		return "The resource is not in a state that allows this operation"
	case ErrCodeRateLimited:
		return "Rate limit exceeded. Please try again later"
	case ErrCodeQueueFull:
		return "The job queue is at capacity. Please retry after a backoff"
	case ErrCodeInternalError:
		return "An internal server error occurred"
	case ErrCodeUnavailable:
		return "The service is temporarily unavailable"
	case ErrCodeValidation:
		return "Request validation failed"
	default:
		return "An unknown error occurred"
	}
}

// Common error response helpers
func RespondBadRequest(w http.ResponseWriter, err error, requestID string) {
	ErrorHandler(w, err, ErrCodeBadRequest, http.StatusBadRequest, requestID)
}

func RespondNotFound(w http.ResponseWriter, err error, requestID string) {
	ErrorHandler(w, err, ErrCodeNotFound, http.StatusNotFound, requestID)
}

func RespondConflict(w http.ResponseWriter, err error, requestID string) {
	ErrorHandler(w, err, ErrCodeConflict, http.StatusConflict, requestID)
}

func RespondRateLimited(w http.ResponseWriter, err error, requestID string) {
	ErrorHandler(w, err, ErrCodeRateLimited, http.StatusTooManyRequests, requestID)
}

func RespondQueueFull(w http.ResponseWriter, err error, requestID string) {
	ErrorHandler(w, err, ErrCodeQueueFull, http.StatusTooManyRequests, requestID)
}

func RespondInternalError(w http.ResponseWriter, err error, requestID string) {
	ErrorHandler(w, err, ErrCodeInternalError, http.StatusInternalServerError, requestID)
}

func RespondServiceUnavailable(w http.ResponseWriter, err error, requestID string) {
	ErrorHandler(w, err, ErrCodeUnavailable, http.StatusServiceUnavailable, requestID)
}

func RespondValidationError(w http.ResponseWriter, err error, requestID string) {
	ErrorHandler(w, err, ErrCodeValidation, http.StatusBadRequest, requestID)
}
