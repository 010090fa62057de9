package connectors

import (
	"errors"
	"fmt"
)

// ErrorCode is the fixed failure taxonomy every connector classifies its own
// errors into.
type ErrorCode string

const (
	CodeAuth             ErrorCode = "auth_error"
	CodeRateLimit        ErrorCode = "rate_limit"
	CodeInvalidParams    ErrorCode = "invalid_params"
	CodePermissionDenied ErrorCode = "permission_denied"
	CodeNotFound         ErrorCode = "not_found"
	CodeNetwork          ErrorCode = "network_error"
	CodeUnknown          ErrorCode = "unknown"
)

// ConnectorError carries a taxonomy code alongside the underlying cause.
type ConnectorError struct {
	Connector string
	Code      ErrorCode
	Err       error
}

func (e *ConnectorError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Connector, e.Code, e.Err)
}

func (e *ConnectorError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure class is transient. Only rate limits
// and network failures are worth retrying; auth and permission failures need
// a human.
func (e *ConnectorError) Retryable() bool {
	return e.Code == CodeRateLimit || e.Code == CodeNetwork
}

// NewError wraps err with a taxonomy code for the named connector.
func NewError(connector string, code ErrorCode, err error) *ConnectorError {
	return &ConnectorError{Connector: connector, Code: code, Err: err}
}

// CodeOf extracts the taxonomy code from an error chain, defaulting to
// unknown for unclassified errors.
func CodeOf(err error) ErrorCode {
	var ce *ConnectorError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeUnknown
}

// IsRetryable reports whether err should be retried. Unclassified errors are
// treated as retryable; an explicit non-transient code stops retries.
func IsRetryable(err error) bool {
	var ce *ConnectorError
	if errors.As(err, &ce) {
		return ce.Retryable()
	}
	return true
}

// NeedsCredentialRefresh reports whether err is an auth or permission failure
// that should surface a high-priority notification for a human.
func NeedsCredentialRefresh(err error) bool {
	code := CodeOf(err)
	return code == CodeAuth || code == CodePermissionDenied
}
