package servicebus

import (
	"context"
	"encoding/json"
	"time"

	"social-gateway/domain/model"
	"social-gateway/infrastructure/logger"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/google/uuid"
)

// NewServiceBus connects to an Azure Service Bus namespace with the ambient
// Azure credential chain.
func NewServiceBus(_ context.Context, namespace string) (*azservicebus.Client, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}
	return azservicebus.NewClient(namespace, cred, nil)
}

// IAuditSender mirrors credential lifecycle events onto the ops audit queue.
type IAuditSender interface {
	SendEvent(ctx context.Context, userID, platform, action string) error
}

type AuditSender struct {
	client *azservicebus.Client
	queue  string
}

func NewAuditSender(client *azservicebus.Client, queue string) IAuditSender {
	return &AuditSender{client: client, queue: queue}
}

func (s *AuditSender) SendEvent(ctx context.Context, userID, platform, action string) error {
	sender, err := s.client.NewSender(s.queue, nil)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while making new sender service bus.")
		return err
	}
	defer func() {
		if err := sender.Close(context.Background()); err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while closing sender.")
		}
	}()

	event := model.ConnectionEvent{
		ID:         uuid.NewString(),
		UserID:     userID,
		Platform:   platform,
		Action:     action,
		OccurredAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := sender.SendMessage(ctx, &azservicebus.Message{Body: payload}, nil); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while sending message.")
		return err
	}
	return nil
}

// NopAuditSender is used when Service Bus is not configured.
type NopAuditSender struct{}

func (NopAuditSender) SendEvent(context.Context, string, string, string) error { return nil }
