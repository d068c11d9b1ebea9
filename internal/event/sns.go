package event

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"go.uber.org/zap"

	"github.com/retailcore/user-management/internal/domain"
)

var _ Publisher = (*SNSPublisher)(nil)

// SNSPublisher publishes integration events to an SNS topic.
type SNSPublisher struct {
	client   *sns.Client
	topicARN string
	logger   *zap.Logger
}

func NewSNSPublisher(client *sns.Client, topicARN string, logger *zap.Logger) *SNSPublisher {
	return &SNSPublisher{client: client, topicARN: topicARN, logger: logger}
}

func (p *SNSPublisher) PublishUserCreated(ctx context.Context, event domain.UserCreatedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return domain.NewInternal("marshal user created event", err)
	}

	if _, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(payload)),
	}); err != nil {
		p.logger.Error("publish user created event failed", zap.Error(err))
		return domain.NewInternal("publish user created event", err)
	}
	return nil
}
