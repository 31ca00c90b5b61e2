package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"social-gateway/domain/model"
	"social-gateway/infrastructure/logger"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"
)

// IAuthEventPublisher announces credential lifecycle changes so collaborators
// (the bot, audit consumers) can react. Publishing is best-effort: a failed
// publish never fails the auth operation that triggered it.
type IAuthEventPublisher interface {
	Publish(ctx context.Context, userID, platform, action string) error
}

type AuthEventPublisher struct {
	client *pubsub.Client
	topic  string
}

func NewAuthEventPublisher(client *pubsub.Client, topic string) IAuthEventPublisher {
	return &AuthEventPublisher{client: client, topic: topic}
}

func (p *AuthEventPublisher) Publish(ctx context.Context, userID, platform, action string) error {
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

	topic := p.client.Topic(p.topic)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		if _, err = p.client.CreateTopic(ctx, p.topic); err != nil {
			return err
		}
	}

	serverID, err := topic.Publish(ctx, &pubsub.Message{Data: payload}).Get(ctx)
	if err != nil {
		return err
	}
	logger.GetLogger().
		WithField("server ID", serverID).
		WithField("action", action).
		WithField("platform", platform).
		Info("Connection event published")
	return nil
}

// NopAuthEventPublisher is used when Pub/Sub is not configured.
type NopAuthEventPublisher struct{}

func (NopAuthEventPublisher) Publish(context.Context, string, string, string) error { return nil }
