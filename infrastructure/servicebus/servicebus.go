package servicebus

import (
	"context"
	"encoding/json"
	"errors"

	"publish-pipeline/domain/model"
	"publish-pipeline/domain/repository"
	"publish-pipeline/infrastructure/logger"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
)

// NewServiceBus connects to a namespace such as "<name>.servicebus.windows.net"
// using the default Azure credential chain.
func NewServiceBus(ctx context.Context, namespace string) (*azservicebus.Client, error) {
	if namespace == "" {
		return nil, errors.New("service bus namespace not configured")
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}
	return azservicebus.NewClient(namespace, cred, nil)
}

// EventPublisher sends pipeline events to a Service Bus queue. A nil client makes it
// a no-op.
type EventPublisher struct {
	client *azservicebus.Client
	queue  string
}

var _ repository.IEventPublisher = (*EventPublisher)(nil)

func NewEventPublisher(client *azservicebus.Client, queue string) *EventPublisher {
	return &EventPublisher{client: client, queue: queue}
}

func newMessage(event model.PipelineEvent) (*azservicebus.Message, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	subject := string(event.Type)
	contentType := "application/json"
	msg := &azservicebus.Message{
		Body:                  body,
		Subject:               &subject,
		ContentType:           &contentType,
		ApplicationProperties: map[string]interface{}{"type": subject},
	}
	if event.OwnerID != "" {
		msg.ApplicationProperties["ownerId"] = event.OwnerID
	}
	return msg, nil
}

func (p *EventPublisher) PublishEvent(ctx context.Context, event model.PipelineEvent) error {
	if p == nil || p.client == nil {
		return nil
	}
	msg, err := newMessage(event)
	if err != nil {
		return err
	}
	sender, err := p.client.NewSender(p.queue, nil)
	if err != nil {
		logger.GetLogger().
			WithField("error", err).
			Error("Error while making new sender service bus.")
		return err
	}
	defer func(sender *azservicebus.Sender) {
		if err := sender.Close(context.Background()); err != nil {
			logger.GetLogger().
				WithField("error", err).
				Error("Error while closing sender.")
		}
	}(sender)

	if err := sender.SendMessage(ctx, msg, nil); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while sending message.")
		return err
	}
	return nil
}
