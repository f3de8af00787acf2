package ws_game

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paramsgit/scribble/internal/model"
)

type wireEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// waitForEvent drains the client's outbound channel until an event of the
// wanted type shows up or the deadline passes.
func waitForEvent(t *testing.T, c *Client, eventType string) wireEvent {
	t.Helper()

	deadline := time.After(time.Second)
	for {
		select {
		case data, ok := <-c.Send:
			require.True(t, ok, "send channel closed while waiting for %s", eventType)
			var evt wireEvent
			require.NoError(t, json.Unmarshal(data, &evt))
			if evt.Type == eventType {
				return evt
			}
		case <-deadline:
			t.Fatalf("no %s event within deadline", eventType)
		}
	}
}

func assertNoEvent(t *testing.T, c *Client, eventType string) {
	t.Helper()

	deadline := time.After(50 * time.Millisecond)
	for {
		select {
		case data, ok := <-c.Send:
			if !ok {
				return
			}
			var evt wireEvent
			require.NoError(t, json.Unmarshal(data, &evt))
			require.NotEqual(t, eventType, evt.Type)
		case <-deadline:
			return
		}
	}
}

func TestHubRooms(t *testing.T) {
	t.Parallel()

	t.Run("Should deliver broadcast to room members only", func(t *testing.T) {
		t.Parallel()
		hub := NewHub(WithLogger(testLogger()))

		inside := NewClient("p1", nil)
		outside := NewClient("p2", nil)
		hub.RegisterClient(inside)
		hub.RegisterClient(outside)
		hub.JoinRoom(inside, "room-a")
		hub.JoinRoom(outside, "room-b")

		hub.BroadcastToRoom("room-a", model.Event{Type: "ping"})

		waitForEvent(t, inside, "ping")
		assertNoEvent(t, outside, "ping")
	})

	t.Run("Should move client between rooms", func(t *testing.T) {
		t.Parallel()
		hub := NewHub(WithLogger(testLogger()))

		c := NewClient("p1", nil)
		hub.RegisterClient(c)
		hub.JoinRoom(c, "room-a")
		hub.JoinRoom(c, "room-b")
		assert.Equal(t, model.RoomID("room-b"), c.RoomID())

		hub.BroadcastToRoom("room-a", model.Event{Type: "ping"})
		assertNoEvent(t, c, "ping")

		hub.BroadcastToRoom("room-b", model.Event{Type: "ping"})
		waitForEvent(t, c, "ping")
	})

	t.Run("Should send privately by player id", func(t *testing.T) {
		t.Parallel()
		hub := NewHub(WithLogger(testLogger()))

		c := NewClient("p1", nil)
		other := NewClient("p2", nil)
		hub.RegisterClient(c)
		hub.RegisterClient(other)

		hub.SendToPlayer("p1", model.Event{Type: "secret"})

		waitForEvent(t, c, "secret")
		assertNoEvent(t, other, "secret")
	})

	t.Run("Should stop delivering after removal", func(t *testing.T) {
		t.Parallel()
		hub := NewHub(WithLogger(testLogger()))

		c := NewClient("p1", nil)
		hub.RegisterClient(c)
		hub.JoinRoom(c, "room-a")
		hub.RemoveClient(c)

		hub.BroadcastToRoom("room-a", model.Event{Type: "ping"})
		hub.SendToPlayer("p1", model.Event{Type: "ping"})
		assertNoEvent(t, c, "ping")
	})
}
