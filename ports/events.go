package ports

import "context"

// EventPublisher publishes events to notify other services
type EventPublisher interface {
	PublishLogout(ctx context.Context, userID string, tokenID string) error
	PublishRegistered(ctx context.Context, userID string, email string) error
}
