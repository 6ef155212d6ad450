package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition. The
// prefix before the first underscore names the module that owns the code.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
)

// Sentinel codes.
const (
	CodeOK      = ErrorCode("OK")
	CodeUnknown = ErrorCode("UNKNOWN")
)

// Document format codes. Raised by the structure parser; always
// recoverable by the caller.
const (
	ErrCodeDocumentFormat   ErrorCode = "FMT_001"
	ErrCodeMarkerMissing    ErrorCode = "FMT_002"
	ErrCodeMarkerOrder      ErrorCode = "FMT_003"
	ErrCodeMarkerPosition   ErrorCode = "FMT_004"
	ErrCodeSectionEmpty     ErrorCode = "FMT_005"
	ErrCodeEmbeddingShape   ErrorCode = "FMT_006"
	ErrCodeLawTextMalformed ErrorCode = "FMT_007"
)

// External service codes. Any error carrying one of these aborts the current
// case; earlier persisted cases remain.
const (
	ErrCodeLLMUnavailable     ErrorCode = "EXT_001"
	ErrCodeLLMBadResponse     ErrorCode = "EXT_002"
	ErrCodeEmbeddingFailed    ErrorCode = "EXT_003"
	ErrCodeGraphStoreError    ErrorCode = "EXT_004"
	ErrCodeSearchIndexError   ErrorCode = "EXT_005"
	ErrCodeCacheError         ErrorCode = "EXT_006"
	ErrCodeMessageBrokerError ErrorCode = "EXT_007"
	ErrCodeObjectStorageError ErrorCode = "EXT_008"
	ErrCodeDatabaseError      ErrorCode = "EXT_009"
	ErrCodeLockNotAcquired    ErrorCode = "EXT_010"
)

// Domain codes.
const (
	ErrCodeCaseNotFound      ErrorCode = "CASE_001"
	ErrCodeLawNotFound       ErrorCode = "LAW_001"
	ErrCodeNoSimilarCases    ErrorCode = "RET_001"
	ErrCodeDraftNotFound     ErrorCode = "GEN_001"
	ErrCodeGenerationAborted ErrorCode = "GEN_002"
	ErrCodeInvalidTransition ErrorCode = "GEN_003"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeDocumentFormat:   http.StatusUnprocessableEntity,
	ErrCodeMarkerMissing:    http.StatusUnprocessableEntity,
	ErrCodeMarkerOrder:      http.StatusUnprocessableEntity,
	ErrCodeMarkerPosition:   http.StatusUnprocessableEntity,
	ErrCodeSectionEmpty:     http.StatusUnprocessableEntity,
	ErrCodeEmbeddingShape:   http.StatusInternalServerError,
	ErrCodeLawTextMalformed: http.StatusBadRequest,

	ErrCodeLLMUnavailable:     http.StatusBadGateway,
	ErrCodeLLMBadResponse:     http.StatusBadGateway,
	ErrCodeEmbeddingFailed:    http.StatusBadGateway,
	ErrCodeGraphStoreError:    http.StatusServiceUnavailable,
	ErrCodeSearchIndexError:   http.StatusServiceUnavailable,
	ErrCodeCacheError:         http.StatusServiceUnavailable,
	ErrCodeMessageBrokerError: http.StatusServiceUnavailable,
	ErrCodeObjectStorageError: http.StatusServiceUnavailable,
	ErrCodeDatabaseError:      http.StatusServiceUnavailable,
	ErrCodeLockNotAcquired:    http.StatusConflict,

	ErrCodeCaseNotFound:      http.StatusNotFound,
	ErrCodeLawNotFound:       http.StatusNotFound,
	ErrCodeNoSimilarCases:    http.StatusNotFound,
	ErrCodeDraftNotFound:     http.StatusNotFound,
	ErrCodeGenerationAborted: http.StatusBadGateway,
	ErrCodeInvalidTransition: http.StatusInternalServerError,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeDocumentFormat:   "document format invalid",
	ErrCodeMarkerMissing:    "section marker missing",
	ErrCodeMarkerOrder:      "section markers out of order",
	ErrCodeMarkerPosition:   "leading marker not near the start",
	ErrCodeSectionEmpty:     "section content empty",
	ErrCodeEmbeddingShape:   "embedding dimensionality mismatch",
	ErrCodeLawTextMalformed: "law text malformed",

	ErrCodeLLMUnavailable:     "text generation service unavailable",
	ErrCodeLLMBadResponse:     "text generation service returned an invalid response",
	ErrCodeEmbeddingFailed:    "embedding service failed",
	ErrCodeGraphStoreError:    "graph store error",
	ErrCodeSearchIndexError:   "search index error",
	ErrCodeCacheError:         "cache error",
	ErrCodeMessageBrokerError: "message broker error",
	ErrCodeObjectStorageError: "object storage error",
	ErrCodeDatabaseError:      "database error",
	ErrCodeLockNotAcquired:    "lock not acquired",

	ErrCodeCaseNotFound:      "case not found",
	ErrCodeLawNotFound:       "law not found",
	ErrCodeNoSimilarCases:    "no similar cases found",
	ErrCodeDraftNotFound:     "draft not found",
	ErrCodeGenerationAborted: "draft generation aborted",
	ErrCodeInvalidTransition: "invalid generation state transition",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.SplitN(string(code), "_", 2)
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
