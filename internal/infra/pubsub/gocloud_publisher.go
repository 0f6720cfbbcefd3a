package pubsub

import (
	"context"
	"encoding/json"
	"log/slog"

	"authcore/internal/domain/lifecycle"
	"authcore/internal/domain/service"

	"github.com/pkg/errors"
	gcpubsub "gocloud.dev/pubsub"
)

// goCloudPublisher implements EventPublisher on the Go CDK portable Pub/Sub
// API. The backing broker is chosen by the topic URL scheme; the binary must
// blank-import the matching driver.
type goCloudPublisher struct {
	topic  *gcpubsub.Topic
	logger *slog.Logger
}

// NewGoCloudPublisher opens the topic named by topicURL, for example
// "gcppubsub://projects/p/topics/t" or "mem://auth-events".
func NewGoCloudPublisher(ctx context.Context, topicURL string, logger *slog.Logger) (service.EventPublisher, error) {
	topic, err := gcpubsub.OpenTopic(ctx, topicURL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open topic %s", topicURL)
	}

	logger.Info("Go CDK publisher initialized",
		slog.String("topic_url", topicURL),
	)

	return &goCloudPublisher{
		topic:  topic,
		logger: logger,
	}, nil
}

// PublishAuthEvent publishes an event through the portable topic
func (p *goCloudPublisher) PublishAuthEvent(ctx context.Context, event *service.AuthEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.WithStack(err)
	}

	p.logger.Debug("[GoCloudPubSub] Publishing event",
		slog.String("kind", event.Kind),
	)

	if err := p.topic.Send(ctx, &gcpubsub.Message{
		Body:     data,
		Metadata: eventAttributes(event),
	}); err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// Close shuts the topic down, flushing any batched sends.
func (p *goCloudPublisher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), lifecycle.DefaultTimeout)
	defer cancel()

	return errors.WithStack(p.topic.Shutdown(ctx))
}
