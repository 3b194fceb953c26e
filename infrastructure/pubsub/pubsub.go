package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"publish-pipeline/domain/model"
	"publish-pipeline/domain/repository"
	"publish-pipeline/infrastructure/logger"

	"cloud.google.com/go/pubsub"
)

func NewPubSub(ctx context.Context, projectID string) (*pubsub.Client, error) {
	if projectID == "" {
		return nil, errors.New("pubsub project id not configured")
	}
	return pubsub.NewClient(ctx, projectID)
}

// EventPublisher forwards pipeline events to a Google Cloud Pub/Sub topic. A nil
// client makes it a no-op.
type EventPublisher struct {
	client    *pubsub.Client
	topicName string

	once  sync.Once
	topic *pubsub.Topic
	err   error
}

var _ repository.IEventPublisher = (*EventPublisher)(nil)

func NewEventPublisher(client *pubsub.Client, topicName string) *EventPublisher {
	return &EventPublisher{client: client, topicName: topicName}
}

func newMessage(event model.PipelineEvent) (*pubsub.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	attrs := map[string]string{"type": string(event.Type)}
	if event.OwnerID != "" {
		attrs["ownerId"] = event.OwnerID
	}
	if event.DraftID != "" {
		attrs["draftId"] = event.DraftID
	}
	return &pubsub.Message{Data: data, Attributes: attrs}, nil
}

// ensureTopic resolves the topic once, creating it if it doesn't exist.
func (p *EventPublisher) ensureTopic(ctx context.Context) (*pubsub.Topic, error) {
	p.once.Do(func() {
		topic := p.client.Topic(p.topicName)
		exists, err := topic.Exists(ctx)
		if err != nil {
			p.err = err
			return
		}
		if !exists {
			logger.GetLogger().WithField("topic", p.topicName).Info("Topic doesn't exist - creating it")
			if topic, err = p.client.CreateTopic(ctx, p.topicName); err != nil {
				p.err = err
				return
			}
		}
		p.topic = topic
	})
	return p.topic, p.err
}

func (p *EventPublisher) PublishEvent(ctx context.Context, event model.PipelineEvent) error {
	if p == nil || p.client == nil {
		return nil
	}
	msg, err := newMessage(event)
	if err != nil {
		return err
	}
	topic, err := p.ensureTopic(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	serverID, err := topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return err
	}
	logger.GetLogger().WithFields(map[string]interface{}{"serverId": serverID, "type": event.Type}).Debug("Event published to Pub/Sub")
	return nil
}

// Stop flushes pending messages.
func (p *EventPublisher) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}
