package pubsub

import (
	"context"

	"cloud.google.com/go/pubsub"
)

// NewPubSub creates a Pub/Sub client; callers treat errors as "events disabled".
func NewPubSub(ctx context.Context, projectID string) (*pubsub.Client, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return client, nil
}
