package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================================================================
// Codes and kinds
// ==========================================================================

type ErrorCode string

const (
	ErrCodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	ErrCodeIllegalTransition ErrorCode = "ILLEGAL_TRANSITION"
	ErrCodeAssignmentMissing ErrorCode = "ASSIGNMENT_REQUIRED"
	ErrCodeInvalidFlowState  ErrorCode = "INVALID_FLOW_STATE"
	ErrCodeRoundsExhausted   ErrorCode = "ROUNDS_EXHAUSTED"

	ErrCodeDuplicateApplication ErrorCode = "DUPLICATE_APPLICATION"
	ErrCodeStaleStage           ErrorCode = "STALE_STAGE"

	ErrCodeRepositoryUnavailable  ErrorCode = "REPOSITORY_UNAVAILABLE"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeDirectoryUnavailable   ErrorCode = "DIRECTORY_UNAVAILABLE"
	ErrCodeEventPublishFailed     ErrorCode = "EVENT_PUBLISH_FAILED"
	ErrCodeTimeout                ErrorCode = "TIMEOUT_ERROR"
	ErrCodeDatabaseQueryFailed    ErrorCode = "DATABASE_QUERY_FAILED"

	ErrCodeCandidateNotFound   ErrorCode = "CANDIDATE_NOT_FOUND"
	ErrCodeJobNotFound         ErrorCode = "JOB_NOT_FOUND"
	ErrCodeInterviewNotFound   ErrorCode = "INTERVIEW_NOT_FOUND"
	ErrCodeInterviewerNotFound ErrorCode = "INTERVIEWER_NOT_FOUND"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Kind groups codes by how callers react to them.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindPrecondition Kind = "precondition"
	KindConflict     Kind = "conflict"
	KindNetwork      Kind = "network"
	KindNotFound     Kind = "not_found"
	KindInternal     Kind = "internal"
)

// FieldError is one independent input failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Kind      Kind                   `json:"kind"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Fields    []FieldError           `json:"fields,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Err       error                  `json:"-"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.Err
}

// HasField reports whether a field-level failure was recorded for field.
func (e *StandardError) HasField(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func newError(code ErrorCode, kind Kind, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Kind:      kind,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		Err:       cause,
	}
}

// ==========================================================================
// Validation and precondition
// ==========================================================================

func NewValidationError(fields ...FieldError) *StandardError {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Field)
	}
	e := newError(ErrCodeValidationFailed, KindValidation, "Input validation failed",
		fmt.Sprintf("fields: %s", strings.Join(names, ", ")), false, nil)
	e.Fields = fields
	return e
}

func NewIllegalTransitionError(from, to string) *StandardError {
	e := newError(ErrCodeIllegalTransition, KindPrecondition, "illegal transition",
		fmt.Sprintf("from: %s, to: %s", from, to), false, nil)
	e.Metadata = map[string]interface{}{"from": from, "to": to}
	return e
}

func NewAssignmentRequiredError(target, reason string) *StandardError {
	return newError(ErrCodeAssignmentMissing, KindPrecondition,
		fmt.Sprintf("transition to %s requires a dispatched interviewer assignment", target),
		reason, false, nil)
}

func NewInvalidFlowStateError(operation, state string) *StandardError {
	return newError(ErrCodeInvalidFlowState, KindPrecondition,
		fmt.Sprintf("%s is not allowed while %s", operation, state), "", false, nil)
}

func NewRoundsExhaustedError(candidateID int64) *StandardError {
	return newError(ErrCodeRoundsExhausted, KindPrecondition, "all interview rounds already have feedback",
		fmt.Sprintf("candidateId: %d", candidateID), false, nil)
}

// ==========================================================================
// Conflict
// ==========================================================================

func NewDuplicateApplicationError(jobID, candidateID int64) *StandardError {
	return newError(ErrCodeDuplicateApplication, KindConflict, "Candidate has already applied for this job",
		fmt.Sprintf("jobId: %d, candidateId: %d", jobID, candidateID), false, nil)
}

func NewStaleStageError(candidateID int64, current, requested string) *StandardError {
	e := newError(ErrCodeStaleStage, KindConflict, "candidate stage changed before the update applied",
		fmt.Sprintf("candidateId: %d, current: %s, requested: %s", candidateID, current, requested), false, nil)
	e.Metadata = map[string]interface{}{"current": current, "requested": requested}
	return e
}

// ==========================================================================
// Network
// ==========================================================================

func NewRepositoryUnavailableError(operation string, err error) *StandardError {
	return newError(ErrCodeRepositoryUnavailable, KindNetwork, "Candidate repository request failed",
		fmt.Sprintf("operation: %s, error: %v", operation, err), true, err)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, KindNetwork, "Notification delivery failed",
		fmt.Sprintf("type: %s, error: %v", channel, err), true, err)
}

func NewDirectoryUnavailableError(err error) *StandardError {
	return newError(ErrCodeDirectoryUnavailable, KindNetwork, "Interviewer directory request failed",
		fmt.Sprintf("error: %v", err), true, err)
}

func NewEventPublishFailedError(err error) *StandardError {
	return newError(ErrCodeEventPublishFailed, KindNetwork, "Stage event publish failed",
		fmt.Sprintf("error: %v", err), true, err)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, KindNetwork, fmt.Sprintf("Service '%s' timeout", service),
		fmt.Sprintf("error: %v", err), true, err)
}

func NewDatabaseQueryFailedError(query string, err error) *StandardError {
	return newError(ErrCodeDatabaseQueryFailed, KindNetwork, "Database query execution error",
		fmt.Sprintf("query: %s, error: %v", query, err), true, err)
}

// ==========================================================================
// Not found
// ==========================================================================

func NewCandidateNotFoundError(candidateID int64) *StandardError {
	return newError(ErrCodeCandidateNotFound, KindNotFound, "Candidate not found",
		fmt.Sprintf("candidateId: %d", candidateID), false, nil)
}

func NewJobNotFoundError(jobID int64) *StandardError {
	return newError(ErrCodeJobNotFound, KindNotFound, "Job not found",
		fmt.Sprintf("jobId: %d", jobID), false, nil)
}

func NewInterviewNotFoundError(details string) *StandardError {
	return newError(ErrCodeInterviewNotFound, KindNotFound, "Interview not found", details, false, nil)
}

func NewInterviewerNotFoundError(details string) *StandardError {
	return newError(ErrCodeInterviewerNotFound, KindNotFound, "Interviewer not found", details, false, nil)
}

func NewInternalError(details string, err error) *StandardError {
	return newError(ErrCodeInternal, KindInternal, "Internal error", details, false, err)
}

// ==========================================================================
// Classification
// ==========================================================================

// As extracts the StandardError in err's chain.
func As(err error) (*StandardError, bool) {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// KindOf returns KindInternal for errors outside the taxonomy.
func KindOf(err error) Kind {
	if se, ok := As(err); ok {
		return se.Kind
	}
	return KindInternal
}

func CodeOf(err error) ErrorCode {
	if se, ok := As(err); ok {
		return se.Code
	}
	return ErrCodeInternal
}

func IsValidation(err error) bool   { return err != nil && KindOf(err) == KindValidation }
func IsPrecondition(err error) bool { return err != nil && KindOf(err) == KindPrecondition }
func IsConflict(err error) bool     { return err != nil && KindOf(err) == KindConflict }
func IsNetwork(err error) bool      { return err != nil && KindOf(err) == KindNetwork }
func IsNotFound(err error) bool     { return err != nil && KindOf(err) == KindNotFound }

func IsRetryable(err error) bool {
	if se, ok := As(err); ok {
		return se.Retryable
	}
	return false
}

// Fields returns the field-level failures carried by err, if any.
func Fields(err error) []FieldError {
	if se, ok := As(err); ok {
		return se.Fields
	}
	return nil
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeRepositoryUnavailable,
		ErrCodeDirectoryUnavailable,
		ErrCodeDatabaseQueryFailed:
		return 3
	case ErrCodeTimeout,
		ErrCodeNotificationSendFailed,
		ErrCodeEventPublishFailed:
		return 2
	default:
		return 0
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "TRANSITION") || strings.Contains(codeStr, "STAGE") || strings.Contains(codeStr, "ROUNDS"):
		return "PIPELINE"
	case strings.Contains(codeStr, "ASSIGNMENT") || strings.Contains(codeStr, "FLOW"):
		return "ASSIGNMENT"
	case strings.Contains(codeStr, "NOTIFICATION") || strings.Contains(codeStr, "EVENT"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "REPOSITORY"):
		return "DATABASE"
	case strings.Contains(codeStr, "DIRECTORY") || strings.Contains(codeStr, "INTERVIEWER"):
		return "DIRECTORY"
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "NOT_FOUND"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "DUPLICATE"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

// ==========================================================================
// HTTP mapping
// ==========================================================================

// HTTPStatus maps err onto the status code the API answers with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindPrecondition:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindNetwork:
		if CodeOf(err) == ErrCodeTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBody is the JSON error envelope exchanged between the API and its clients.
type ErrorBody struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details string       `json:"details,omitempty"`
	Fields  []FieldError `json:"fields,omitempty"`
}

func ToBody(err error) ErrorBody {
	if se, ok := As(err); ok {
		return ErrorBody{Code: se.Code, Message: se.Message, Details: se.Details, Fields: se.Fields}
	}
	return ErrorBody{Code: ErrCodeInternal, Message: err.Error()}
}

// FromHTTPStatus rebuilds a taxonomy error from a non-2xx response. body may
// be nil when the server sent no JSON envelope.
func FromHTTPStatus(operation string, status int, body *ErrorBody) *StandardError {
	code := ErrCodeInternal
	message := http.StatusText(status)
	var fields []FieldError
	if body != nil {
		if body.Code != "" {
			code = body.Code
		}
		if body.Message != "" {
			message = body.Message
		}
		fields = body.Fields
	}

	var e *StandardError
	switch {
	case status == http.StatusNotFound:
		e = newError(pick(code, ErrCodeCandidateNotFound), KindNotFound, message, operation, false, nil)
	case status == http.StatusConflict:
		e = newError(pick(code, ErrCodeStaleStage), KindConflict, message, operation, false, nil)
	case status == http.StatusBadRequest:
		e = newError(pick(code, ErrCodeValidationFailed), KindValidation, message, operation, false, nil)
		e.Fields = fields
	case status == http.StatusUnprocessableEntity:
		e = newError(pick(code, ErrCodeIllegalTransition), KindPrecondition, message, operation, false, nil)
	case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout:
		e = newError(ErrCodeTimeout, KindNetwork, message, operation, true, nil)
	default:
		cause := fmt.Errorf("%s: status %d", operation, status)
		e = NewRepositoryUnavailableError(operation, cause)
		if body != nil && body.Message != "" {
			e.Message = body.Message
		}
	}
	return e
}

func pick(code, fallback ErrorCode) ErrorCode {
	if code == ErrCodeInternal || code == "" {
		return fallback
	}
	return code
}
