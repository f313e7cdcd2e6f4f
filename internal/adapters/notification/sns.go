package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"

	apperrors "hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/common/metrics"
	"hiring-pipeline/internal/models"
)

const stageChangedEvent = "candidate.stage_changed"

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// EventPublisher publishes committed stage changes as JSON to one topic.
type EventPublisher struct {
	client   SNSService
	topicARN string
	logger   logger.Logger
	now      func() time.Time
}

func NewEventPublisher(client SNSService, topicARN string, log logger.Logger) *EventPublisher {
	return &EventPublisher{
		client:   client,
		topicARN: topicARN,
		logger:   log.WithFields(map[string]interface{}{"component": "sns"}),
		now:      time.Now,
	}
}

// PublishStageChange fills in EventID and OccurredAt when the caller left
// them empty.
func (p *EventPublisher) PublishStageChange(ctx context.Context, event models.StageEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return apperrors.NewInternalError("encode stage event", err)
	}

	start := time.Now()
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"eventType": {DataType: aws.String("String"), StringValue: aws.String(stageChangedEvent)},
			"toStage":   {DataType: aws.String("String"), StringValue: aws.String(event.To)},
		},
	})
	metrics.ExternalCallDuration.WithLabelValues("events", "Publish").Observe(time.Since(start).Seconds())
	if err != nil {
		p.logger.Warn("stage event publish failed", map[string]interface{}{
			"error":       err.Error(),
			"eventId":     event.EventID,
			"candidateId": event.CandidateID,
		})
		return apperrors.NewEventPublishFailedError(err)
	}
	return nil
}
