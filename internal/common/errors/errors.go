// Package errors provides standardized error handling for the rating API and
// the Zeebe job workers.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeSnapshotUnavailable ErrorCode = "SNAPSHOT_UNAVAILABLE"
	ErrCodeSnapshotTimeout     ErrorCode = "SNAPSHOT_TIMEOUT"

	ErrCodeHistoryQueryFailed  ErrorCode = "HISTORY_QUERY_FAILED"
	ErrCodeHistoryAppendFailed ErrorCode = "HISTORY_APPEND_FAILED"
	ErrCodeDedupeCheckFailed   ErrorCode = "DEDUPE_CHECK_FAILED"

	ErrCodeInvalidCompanyID ErrorCode = "INVALID_COMPANY_ID"
	ErrCodeInvalidJobInput  ErrorCode = "INVALID_JOB_INPUT"
	ErrCodeInvalidCategory  ErrorCode = "INVALID_CATEGORY"

	ErrCodeAlertPublishFailed ErrorCode = "ALERT_PUBLISH_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewSnapshotUnavailableError reports that a collaborator store could not supply
// a consistent snapshot. Callers surface this instead of guessing values.
func NewSnapshotUnavailableError(source string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSnapshotUnavailable,
		Message:   "Rating data is temporarily unavailable",
		Details:   fmt.Sprintf("source: %s, error: %s", source, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSnapshotTimeoutError creates a retryable snapshot timeout error.
func NewSnapshotTimeoutError(source string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSnapshotTimeout,
		Message:   "Timed out reading rating data",
		Details:   fmt.Sprintf("source: %s", source),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewHistoryQueryFailedError creates a retryable history read error.
func NewHistoryQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeHistoryQueryFailed,
		Message:   "Failed to read rating history",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewHistoryAppendFailedError creates a retryable history write error.
func NewHistoryAppendFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeHistoryAppendFailed,
		Message:   "Failed to append rating history entry",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDedupeCheckFailedError creates a retryable idempotency-store error.
func NewDedupeCheckFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDedupeCheckFailed,
		Message:   "Failed to check request idempotency",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidCompanyIDError creates a non-retryable scoping error.
func NewInvalidCompanyIDError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidCompanyID,
		Message:   "Missing or invalid company identity",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidJobInputError creates a non-retryable job validation error.
func NewInvalidJobInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidJobInput,
		Message:   "Job variables failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidCategoryError creates a non-retryable category error.
func NewInvalidCategoryError(category string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidCategory,
		Message:   "Unknown rating category",
		Details:   fmt.Sprintf("category: %s", category),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAlertPublishFailedError creates a retryable notification error.
func NewAlertPublishFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAlertPublishFailed,
		Message:   "Failed to publish rating alert",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewBusinessRuleError(message, details string) *StandardError {
	return &StandardError{
		Code:      "BUSINESS_RULE_VIOLATION",
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// Normalize returns err as a *StandardError, wrapping unknown errors as INTERNAL_ERROR.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended job retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeSnapshotUnavailable,
		ErrCodeHistoryQueryFailed,
		ErrCodeHistoryAppendFailed,
		ErrCodeDedupeCheckFailed,
		ErrCodeAlertPublishFailed:
		return 3

	case ErrCodeSnapshotTimeout:
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
// BPMN codes are identical to the internal codes.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// HTTPStatus maps an error code to the status returned by the rating API.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidCompanyID:
		return http.StatusUnauthorized
	case ErrCodeInvalidJobInput, ErrCodeInvalidCategory, "BUSINESS_RULE_VIOLATION":
		return http.StatusBadRequest
	case ErrCodeSnapshotUnavailable, ErrCodeHistoryQueryFailed, ErrCodeDedupeCheckFailed:
		return http.StatusServiceUnavailable
	case ErrCodeSnapshotTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "SNAPSHOT"):
		return "DATA_SOURCE"
	case strings.Contains(codeStr, "HISTORY") || strings.Contains(codeStr, "DEDUPE"):
		return "HISTORY"
	case strings.Contains(codeStr, "ALERT"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
