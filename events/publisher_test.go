package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-stickies/events"
)

func receive(t *testing.T, messages <-chan *message.Message) events.AuthEvent {
	t.Helper()
	select {
	case msg := <-messages:
		var event events.AuthEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		msg.Ack()
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("expected an event")
		return events.AuthEvent{}
	}
}

func TestPublisher(t *testing.T) {
	ctx := context.Background()

	t.Run("login and logout events carry the email", func(t *testing.T) {
		bus := events.NewGoChannel()
		t.Cleanup(func() { _ = bus.Close() })

		logins, err := bus.Subscribe(ctx, events.LoginTopic)
		require.NoError(t, err)
		logouts, err := bus.Subscribe(ctx, events.LogoutTopic)
		require.NoError(t, err)

		publisher := events.NewWatermillPublisher(bus)
		require.NoError(t, publisher.PublishLogin("user@example.com"))
		require.NoError(t, publisher.PublishLogout("user@example.com"))

		login := receive(t, logins)
		require.Equal(t, "user@example.com", login.Email)
		require.False(t, login.At.IsZero())

		logout := receive(t, logouts)
		require.Equal(t, "user@example.com", logout.Email)
	})

	t.Run("session expiry carries no email", func(t *testing.T) {
		bus := events.NewGoChannel()
		t.Cleanup(func() { _ = bus.Close() })

		expired, err := bus.Subscribe(ctx, events.SessionExpiredTopic)
		require.NoError(t, err)

		publisher := events.NewWatermillPublisher(bus)
		require.NoError(t, publisher.PublishSessionExpired())

		event := receive(t, expired)
		require.Empty(t, event.Email)
		require.False(t, event.At.IsZero())
	})
}
