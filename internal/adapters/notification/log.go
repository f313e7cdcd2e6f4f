package notification

import (
	"context"
	"strings"

	apperrors "hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/logger"
)

// LogDispatcher records emails in the log instead of sending them. It stands
// in for SES in development.
type LogDispatcher struct {
	logger logger.Logger
}

func NewLogDispatcher(log logger.Logger) *LogDispatcher {
	return &LogDispatcher{logger: log.WithFields(map[string]interface{}{"component": "log-dispatcher"})}
}

func (d *LogDispatcher) Send(_ context.Context, to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return apperrors.NewValidationError(apperrors.FieldError{Field: "to", Message: "recipient email is required"})
	}
	d.logger.Info("email not sent, ses disabled", map[string]interface{}{
		"to":        to,
		"subject":   subject,
		"bodyBytes": len(body),
	})
	return nil
}
