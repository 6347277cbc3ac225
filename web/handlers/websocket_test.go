package handlers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factumhq/factum/pkg/types"
)

func TestHubBroadcastsNotifierEvents(t *testing.T) {
	hub := NewWebSocketHub()
	go hub.Run()
	defer hub.Stop()

	client := &MockClient{SendChan: make(chan []byte, 8)}
	hub.Register(client)

	hub.MemoryAdded(&types.Memory{ID: "m1", Fact: "hello"})
	hub.MemoryDeleted("m1")

	var events []Event
	for i := 0; i < 2; i++ {
		select {
		case data := <-client.SendChan:
			var ev Event
			require.NoError(t, json.Unmarshal(data, &ev))
			events = append(events, ev)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for broadcast")
		}
	}

	assert.Equal(t, "memory.added", events[0].Type)
	require.NotNil(t, events[0].Memory)
	assert.Equal(t, "m1", events[0].Memory.ID)

	assert.Equal(t, "memory.deleted", events[1].Type)
	assert.Equal(t, "m1", events[1].ID)
	assert.Nil(t, events[1].Memory)
}

func TestHubDropsSlowClients(t *testing.T) {
	hub := NewWebSocketHub()
	go hub.Run()
	defer hub.Stop()

	slow := &MockClient{SendChan: make(chan []byte)} // unbuffered, never read
	hub.Register(slow)

	hub.MemoryDeleted("x")

	// The hub closes the slow client's channel instead of blocking.
	select {
	case _, open := <-slow.SendChan:
		assert.False(t, open, "send channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("hub blocked on slow client")
	}
}
