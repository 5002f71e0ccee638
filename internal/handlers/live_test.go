package handlers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestHubBroadcastReachesSubscribedClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Shutdown()

	initiativeID := primitive.NewObjectID()
	client := &liveClient{
		hub:          hub,
		send:         make(chan []byte, 1),
		initiativeID: initiativeID,
	}

	require.True(t, hub.add(client))
	require.Eventually(t, func() bool {
		return hub.ConnectionCount() == 1
	}, time.Second, 10*time.Millisecond)

	hub.Broadcast(ProgressEvent{
		InitiativeID: initiativeID,
		Pending:      3,
		Accepted:     7,
		Progress:     35,
	})

	select {
	case payload := <-client.send:
		var event ProgressEvent
		require.NoError(t, json.Unmarshal(payload, &event))
		assert.Equal(t, initiativeID, event.InitiativeID)
		assert.Equal(t, 7, event.Accepted)
	case <-time.After(time.Second):
		t.Fatal("broadcast never reached the client")
	}
}

func TestHubBroadcastScopedToInitiative(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Shutdown()

	client := &liveClient{
		hub:          hub,
		send:         make(chan []byte, 1),
		initiativeID: primitive.NewObjectID(),
	}
	require.True(t, hub.add(client))
	require.Eventually(t, func() bool {
		return hub.ConnectionCount() == 1
	}, time.Second, 10*time.Millisecond)

	hub.Broadcast(ProgressEvent{InitiativeID: primitive.NewObjectID(), Accepted: 1})

	select {
	case <-client.send:
		t.Fatal("client received an event for another initiative")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubAddAndRemoveAfterShutdown(t *testing.T) {
	// No Run loop: models the hub after shutdown, when nothing drains the
	// register/unregister channels anymore.
	hub := NewHub()
	hub.Shutdown()

	client := &liveClient{
		hub:          hub,
		send:         make(chan []byte, 1),
		initiativeID: primitive.NewObjectID(),
	}

	added := make(chan bool, 1)
	go func() {
		added <- hub.add(client)
	}()
	select {
	case ok := <-added:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("add blocked after shutdown")
	}

	removed := make(chan struct{})
	go func() {
		hub.remove(client)
		close(removed)
	}()
	select {
	case <-removed:
	case <-time.After(time.Second):
		t.Fatal("remove blocked after shutdown")
	}
}
