// Package events publishes session lifecycle notifications for the UI layer.
// The UI subscribes to learn when the application area was entered or when a
// dead session requires navigating back to the login page.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	// LoginTopic carries AuthEvent payloads after a successful login or signup.
	LoginTopic = "stickies.auth.login"
	// LogoutTopic carries AuthEvent payloads after a logout.
	LogoutTopic = "stickies.auth.logout"
	// SessionExpiredTopic signals that the refresh protocol failed terminally
	// and the user must re-authenticate.
	SessionExpiredTopic = "stickies.auth.session_expired"
)

// AuthEvent is the payload published on every auth topic.
type AuthEvent struct {
	Email string    `json:"email,omitempty"`
	At    time.Time `json:"at"`
}

// Publisher is the interface the orchestrator publishes through.
type Publisher interface {
	PublishLogin(email string) error
	PublishLogout(email string) error
	PublishSessionExpired() error
}

// WatermillPublisher implements Publisher on top of a watermill
// message.Publisher.
type WatermillPublisher struct {
	publisher message.Publisher
}

var _ Publisher = (*WatermillPublisher)(nil)

// NewWatermillPublisher wraps a watermill publisher.
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// NewGoChannel returns the in-process pub/sub used by default. The returned
// GoChannel serves as both publisher and subscriber.
func NewGoChannel() *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
}

func (p *WatermillPublisher) PublishLogin(email string) error {
	return p.publish(LoginTopic, AuthEvent{Email: email, At: time.Now()})
}

func (p *WatermillPublisher) PublishLogout(email string) error {
	return p.publish(LogoutTopic, AuthEvent{Email: email, At: time.Now()})
}

func (p *WatermillPublisher) PublishSessionExpired() error {
	return p.publish(SessionExpiredTopic, AuthEvent{At: time.Now()})
}

func (p *WatermillPublisher) publish(topic string, event AuthEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
