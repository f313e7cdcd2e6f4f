package errors

import (
	"context"
	stderrors "errors"
	"time"
)

// ErrorHandler turns any error escaping a request into a status code and a
// response envelope, logging it once on the way out.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle normalizes err and returns the status and body to answer with.
func (h *ErrorHandler) Handle(operation string, err error) (int, ErrorBody) {
	stdErr := h.normalizeError(err)
	status := HTTPStatus(stdErr)
	h.logError(operation, status, stdErr)
	return status, ToBody(stdErr)
}

// normalizeError ensures we always have a StandardError
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := As(err); ok {
		return stdErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError("request", err)
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Kind:      KindInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

func (h *ErrorHandler) logError(operation string, status int, stdErr *StandardError) {
	if h.logger == nil {
		return
	}
	fields := map[string]interface{}{
		"operation": operation,
		"status":    status,
		"errorCode": stdErr.Code,
		"errorKind": stdErr.Kind,
		"category":  GetErrorCategory(stdErr.Code),
		"retryable": stdErr.Retryable,
		"details":   stdErr.Details,
	}
	if len(stdErr.Fields) > 0 {
		fields["fields"] = stdErr.Fields
	}
	// client mistakes are expected traffic
	if status < 500 {
		h.logger.Warn("request rejected", fields)
		return
	}
	h.logger.Error("request failed", fields)
}
