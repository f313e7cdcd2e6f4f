package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardError_ErrorAndUnwrap(t *testing.T) {
	cause := stderrors.New("dial tcp: connection refused")
	err := NewRepositoryUnavailableError("FetchRoster", cause)

	assert.Equal(t, "StandardError[REPOSITORY_UNAVAILABLE]: Candidate repository request failed", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, err.Retryable)
}

func TestKindClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
		is   func(error) bool
	}{
		{"validation", NewValidationError(FieldError{Field: "feedback", Message: "required"}), KindValidation, IsValidation},
		{"illegal transition", NewIllegalTransitionError("ROUND2", "ROUND1"), KindPrecondition, IsPrecondition},
		{"assignment", NewAssignmentRequiredError("ROUND1", "notification not sent"), KindPrecondition, IsPrecondition},
		{"duplicate", NewDuplicateApplicationError(7, 9), KindConflict, IsConflict},
		{"stale", NewStaleStageError(9, "ROUND1", "ROUND3"), KindConflict, IsConflict},
		{"network", NewNotificationSendFailedError("email", stderrors.New("throttled")), KindNetwork, IsNetwork},
		{"not found", NewJobNotFoundError(3), KindNotFound, IsNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.Equal(t, tt.kind, KindOf(wrapped))
			assert.True(t, tt.is(wrapped))
		})
	}

	assert.Equal(t, KindInternal, KindOf(stderrors.New("plain")))
	assert.False(t, IsNotFound(nil))
}

func TestNewValidationError_KeepsFieldsIndependent(t *testing.T) {
	err := NewValidationError(
		FieldError{Field: "feedback", Message: "feedback is required"},
		FieldError{Field: "technicalScore", Message: "technical score is required"},
	)

	require.Len(t, Fields(err), 2)
	assert.True(t, err.HasField("feedback"))
	assert.True(t, err.HasField("technicalScore"))
	assert.False(t, err.HasField("behaviourScore"))
	assert.Contains(t, err.Details, "feedback, technicalScore")
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NewValidationError(), http.StatusBadRequest},
		{NewIllegalTransitionError("HIRED", "REJECTED"), http.StatusUnprocessableEntity},
		{NewDuplicateApplicationError(1, 2), http.StatusConflict},
		{NewCandidateNotFoundError(4), http.StatusNotFound},
		{NewTimeoutError("repository", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{NewDatabaseQueryFailedError("select", stderrors.New("boom")), http.StatusServiceUnavailable},
		{stderrors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(CodeOf(tt.err)), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestFromHTTPStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      *ErrorBody
		kind      Kind
		code      ErrorCode
		retryable bool
	}{
		{"404 without body", http.StatusNotFound, nil, KindNotFound, ErrCodeCandidateNotFound, false},
		{"404 job", http.StatusNotFound, &ErrorBody{Code: ErrCodeJobNotFound, Message: "Job not found"}, KindNotFound, ErrCodeJobNotFound, false},
		{"409 duplicate", http.StatusConflict, &ErrorBody{Code: ErrCodeDuplicateApplication}, KindConflict, ErrCodeDuplicateApplication, false},
		{"422", http.StatusUnprocessableEntity, nil, KindPrecondition, ErrCodeIllegalTransition, false},
		{"400 fields", http.StatusBadRequest, &ErrorBody{Fields: []FieldError{{Field: "status"}}}, KindValidation, ErrCodeValidationFailed, false},
		{"502", http.StatusBadGateway, nil, KindNetwork, ErrCodeRepositoryUnavailable, true},
		{"504", http.StatusGatewayTimeout, nil, KindNetwork, ErrCodeTimeout, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromHTTPStatus("op", tt.status, tt.body)
			assert.Equal(t, tt.kind, err.Kind)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}

	assert.True(t, FromHTTPStatus("op", http.StatusBadRequest,
		&ErrorBody{Fields: []FieldError{{Field: "status"}}}).HasField("status"))
}

func TestRetryCountAndCategory(t *testing.T) {
	assert.Equal(t, 3, GetRetryCount(ErrCodeRepositoryUnavailable))
	assert.Equal(t, 2, GetRetryCount(ErrCodeNotificationSendFailed))
	assert.Equal(t, 0, GetRetryCount(ErrCodeIllegalTransition))
	assert.False(t, IsRetryableErrorCode(ErrCodeDuplicateApplication))

	assert.Equal(t, "PIPELINE", GetErrorCategory(ErrCodeIllegalTransition))
	assert.Equal(t, "ASSIGNMENT", GetErrorCategory(ErrCodeAssignmentMissing))
	assert.Equal(t, "NOTIFICATION", GetErrorCategory(ErrCodeNotificationSendFailed))
	assert.Equal(t, "DIRECTORY", GetErrorCategory(ErrCodeInterviewerNotFound))
	assert.Equal(t, "NOT_FOUND", GetErrorCategory(ErrCodeJobNotFound))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeDuplicateApplication))
}

type recordingLogger struct {
	warns, errs []string
}

func (r *recordingLogger) Warn(msg string, _ map[string]interface{})  { r.warns = append(r.warns, msg) }
func (r *recordingLogger) Error(msg string, _ map[string]interface{}) { r.errs = append(r.errs, msg) }

func TestErrorHandler_Handle(t *testing.T) {
	log := &recordingLogger{}
	h := NewErrorHandler(log)

	status, body := h.Handle("update-status", NewIllegalTransitionError("ROUND2", "ROUND1"))
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, ErrCodeIllegalTransition, body.Code)

	status, body = h.Handle("roster", stderrors.New("nil pointer"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, ErrCodeInternal, body.Code)

	status, _ = h.Handle("roster", fmt.Errorf("query: %w", context.DeadlineExceeded))
	assert.Equal(t, http.StatusGatewayTimeout, status)

	assert.Len(t, log.warns, 1)
	assert.Len(t, log.errs, 2)
}
