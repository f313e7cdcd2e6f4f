// Package notification delivers candidate emails through SES and announces
// stage changes on an SNS topic.
package notification

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"golang.org/x/time/rate"

	apperrors "hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/common/metrics"
)

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// EmailDispatcher sends plain-text email from a fixed source address. Sends
// are throttled to the account's SES rate.
type EmailDispatcher struct {
	client    SESService
	fromEmail string
	limiter   *rate.Limiter
	logger    logger.Logger
}

func NewEmailDispatcher(client SESService, fromEmail string, ratePerSecond float64, log logger.Logger) *EmailDispatcher {
	limit := rate.Inf
	burst := 1
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
		burst = int(ratePerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &EmailDispatcher{
		client:    client,
		fromEmail: fromEmail,
		limiter:   rate.NewLimiter(limit, burst),
		logger:    log.WithFields(map[string]interface{}{"component": "ses"}),
	}
}

func (d *EmailDispatcher) Send(ctx context.Context, to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return apperrors.NewValidationError(apperrors.FieldError{Field: "to", Message: "recipient email is required"})
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return apperrors.NewNotificationSendFailedError("ses", err)
	}

	start := time.Now()
	_, err := d.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(d.fromEmail),
	})
	metrics.ExternalCallDuration.WithLabelValues("dispatcher", "SendEmail").Observe(time.Since(start).Seconds())

	if err != nil {
		d.logger.Error("email send failed", map[string]interface{}{
			"error": err.Error(),
			"to":    to,
		})
		return apperrors.NewNotificationSendFailedError("ses", err)
	}

	d.logger.Debug("email sent", map[string]interface{}{"to": to})
	return nil
}
