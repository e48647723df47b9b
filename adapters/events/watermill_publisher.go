package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/taalim-io/gatekeeper/ports"
)

const (
	// LogoutTopic carries logout notifications so sibling services can drop
	// cached state for the user
	LogoutTopic = "auth.logout"

	// RegisteredTopic carries new-account notifications (wallet provisioning,
	// welcome notifications)
	RegisteredTopic = "auth.registered"
)

// LogoutEvent represents a logout event
type LogoutEvent struct {
	UserID  string `json:"user_id"`
	TokenID string `json:"token_id"`
}

// RegisteredEvent represents a completed registration
type RegisteredEvent struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, userID string, tokenID string) error {
	return p.publish(LogoutTopic, tokenID, LogoutEvent{
		UserID:  userID,
		TokenID: tokenID,
	})
}

// PublishRegistered publishes a registration event
func (p *WatermillPublisher) PublishRegistered(ctx context.Context, userID string, email string) error {
	return p.publish(RegisteredTopic, userID, RegisteredEvent{
		UserID: userID,
		Email:  email,
	})
}

func (p *WatermillPublisher) publish(topic, id string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(id, payload)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
