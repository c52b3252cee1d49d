// Package notify publishes device events to an optional outbound SNS
// topic. Publication is strictly best-effort: failures are logged and
// swallowed, and with no topic configured events are dropped.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/sirupsen/logrus"

	"github.com/silabio/sila2-bridge/internal/bus"
)

// Publisher sends one device event to the notification target.
type Publisher interface {
	PublishEvent(ctx context.Context, subject string, payload map[string]any)
}

// NopPublisher drops everything. Used when SNS_TOPIC_ARN is unset.
type NopPublisher struct{}

func (NopPublisher) PublishEvent(context.Context, string, map[string]any) {}

// SNSPublisher publishes to one SNS topic.
type SNSPublisher struct {
	client   *sns.Client
	topicARN string
	logger   *logrus.Logger
}

// New builds a publisher for topicARN. An empty ARN yields the no-op
// publisher.
func New(ctx context.Context, topicARN string, logger *logrus.Logger) (Publisher, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if topicARN == "" {
		logger.Info("No notification topic configured; device events will be dropped")
		return NopPublisher{}, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &SNSPublisher{
		client:   sns.NewFromConfig(cfg),
		topicARN: topicARN,
		logger:   logger,
	}, nil
}

func (p *SNSPublisher) PublishEvent(ctx context.Context, subject string, payload map[string]any) {
	message, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warnf("Skipping notification %s: %v", subject, err)
		return
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(string(message)),
	})
	if err != nil {
		// Best-effort delivery: the bridge never fails a tool call over a
		// notification problem.
		p.logger.Warnf("Failed to publish %s notification: %v", subject, err)
	}
}

// Attach subscribes the publisher to the device events worth announcing:
// command execution and telemetry stream transitions.
func Attach(eventBus *bus.EventBus, publisher Publisher) {
	forward := func(subject string) bus.EventHandler {
		return func(event bus.Event) {
			publisher.PublishEvent(context.Background(), subject, event.Payload)
		}
	}
	eventBus.Subscribe(bus.EventCommandExecuted, forward("sila2.command_executed"))
	eventBus.Subscribe(bus.EventStreamConnected, forward("sila2.stream_connected"))
	eventBus.Subscribe(bus.EventStreamLost, forward("sila2.stream_lost"))
}
