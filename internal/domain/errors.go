package domain

import (
	"errors"
	"fmt"
)

// Category sentinels for the configuration flow. Every failure a stage can
// surface wraps exactly one of these, so callers can branch on errors.Is
// without string matching.
var (
	// ErrValidation is a client-side pre-submit failure. It never reaches
	// the network and the offending field keeps its value.
	ErrValidation = fmt.Errorf("validation failed")

	// ErrRemoteRejected means the backend returned a structured failure.
	// The Detail of the wrapping FlowError is shown to the user verbatim.
	ErrRemoteRejected = fmt.Errorf("rejected by backend")

	// ErrTransport is a network or connection failure. The UI shows a
	// generic retry prompt instead of the raw error.
	ErrTransport = fmt.Errorf("transport failure")

	// ErrStaleResponse marks a response superseded by a newer request.
	// It is silently discarded and never user-visible.
	ErrStaleResponse = fmt.Errorf("stale response discarded")

	// ErrInvalidTransition is returned when Advance is called while the
	// current stage's advance predicate is false.
	ErrInvalidTransition = fmt.Errorf("invalid stage transition")

	// ErrOperationInProgress rejects a duplicate non-cancelable operation,
	// e.g. a second persona generation while one is pending.
	ErrOperationInProgress = fmt.Errorf("operation already in progress")

	// ErrNotConfigured means a stage depends on state that has not been
	// committed yet (e.g. persona generation without a provider).
	ErrNotConfigured = fmt.Errorf("not configured")
)

// FlowError wraps a sentinel error with the operation that produced it.
type FlowError struct {
	Op     string // operation name (e.g., "Session.CommitProvider")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail, shown verbatim for remote rejections
}

func (e *FlowError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *FlowError) Unwrap() error { return e.Err }

// NewFlowError creates a FlowError.
func NewFlowError(op string, err error, detail string) *FlowError {
	return &FlowError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error. Returns nil if err is nil,
// enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// UserMessage returns the text a surface should show for err. Remote
// rejections carry backend detail verbatim; transport failures collapse to a
// generic retry prompt; stale responses produce nothing.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrStaleResponse):
		return ""
	case errors.Is(err, ErrTransport):
		return "Connection failed. Check your network and try again."
	}
	var fe *FlowError
	if errors.As(err, &fe) && fe.Detail != "" {
		return fe.Detail
	}
	return err.Error()
}

// ErrorCode is a machine-parseable error category for logs and monitoring.
type ErrorCode string

const (
	CodeUnknown             ErrorCode = "UNKNOWN"
	CodeValidation          ErrorCode = "VALIDATION"
	CodeRemoteRejected      ErrorCode = "REMOTE_REJECTED"
	CodeTransport           ErrorCode = "TRANSPORT"
	CodeStaleResponse       ErrorCode = "STALE_RESPONSE"
	CodeInvalidTransition   ErrorCode = "INVALID_TRANSITION"
	CodeOperationInProgress ErrorCode = "OPERATION_IN_PROGRESS"
	CodeNotConfigured       ErrorCode = "NOT_CONFIGURED"
)

var errorCodeMap = map[error]ErrorCode{
	ErrValidation:          CodeValidation,
	ErrRemoteRejected:      CodeRemoteRejected,
	ErrTransport:           CodeTransport,
	ErrStaleResponse:       CodeStaleResponse,
	ErrInvalidTransition:   CodeInvalidTransition,
	ErrOperationInProgress: CodeOperationInProgress,
	ErrNotConfigured:       CodeNotConfigured,
}

// ErrorCodeOf returns the machine-parseable code for err, walking the error
// chain with errors.Is. Returns CodeUnknown when no sentinel matches.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeUnknown
}
