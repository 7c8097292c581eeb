package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, room string) *Client {
	return &Client{
		hub:  hub,
		room: room,
		send: make(chan []byte, 256),
	}
}

func runHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case msg := <-c.send:
		var ev Event
		require.NoError(t, json.Unmarshal(msg, &ev))
		return ev
	case <-time.After(200 * time.Millisecond):
		t.Fatal("client did not receive message")
		return Event{}
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case <-c.send:
		t.Fatal("client should not have received a message")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTableRoom(t *testing.T) {
	id := uuid.MustParse("7f1b7a0e-4b0e-4f53-9a55-0e2f6c2b9d11")
	assert.Equal(t, "table:7f1b7a0e-4b0e-4f53-9a55-0e2f6c2b9d11", TableRoom(id))
}

func TestHubRegistration(t *testing.T) {
	hub := runHub(t)
	client := mockClient(hub, FloorRoom)

	hub.register <- client

	assert.Eventually(t, func() bool { return hub.Clients(FloorRoom) == 1 }, time.Second, 5*time.Millisecond)
}

func TestHubUnregistration(t *testing.T) {
	hub := runHub(t)
	room := TableRoom(uuid.New())
	c1, c2 := mockClient(hub, room), mockClient(hub, room)

	hub.register <- c1
	hub.register <- c2
	hub.unregister <- c1
	assert.Eventually(t, func() bool { return hub.Clients(room) == 1 }, time.Second, 5*time.Millisecond)

	_, open := <-c1.send
	assert.False(t, open, "unregistered client's channel is closed")

	hub.unregister <- c2
	assert.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		_, exists := hub.rooms[room]
		return !exists
	}, time.Second, 5*time.Millisecond, "empty room is removed")
}

func TestPublish_OnlyReachesRoom(t *testing.T) {
	hub := runHub(t)
	tableA, tableB := uuid.New(), uuid.New()
	a := mockClient(hub, TableRoom(tableA))
	b := mockClient(hub, TableRoom(tableB))
	floor := mockClient(hub, FloorRoom)
	hub.register <- a
	hub.register <- b
	hub.register <- floor

	hub.Publish(TableRoom(tableA), EventTableCombined, map[string]string{"order_number": "CMB-T7-1"})

	ev := receive(t, a)
	assert.Equal(t, EventTableCombined, ev.Type)
	assert.JSONEq(t, `{"order_number":"CMB-T7-1"}`, string(ev.Payload))
	assertSilent(t, b)
	assertSilent(t, floor)
}

func TestPublish_AllClientsInRoom(t *testing.T) {
	hub := runHub(t)
	clients := []*Client{mockClient(hub, FloorRoom), mockClient(hub, FloorRoom), mockClient(hub, FloorRoom)}
	for _, c := range clients {
		hub.register <- c
	}

	hub.Publish(FloorRoom, EventOrderCreated, map[string]string{"order_number": "ORD-20260101-0001"})

	for _, c := range clients {
		assert.Equal(t, EventOrderCreated, receive(t, c).Type)
	}
}

func TestPublish_UnmarshalablePayloadIsDropped(t *testing.T) {
	hub := runHub(t)
	c := mockClient(hub, FloorRoom)
	hub.register <- c

	hub.Publish(FloorRoom, EventStockChanged, make(chan int))
	assertSilent(t, c)
}

func TestPublish_DropsSlowClient(t *testing.T) {
	hub := runHub(t)
	slow := &Client{hub: hub, room: FloorRoom, send: make(chan []byte)}
	hub.register <- slow

	hub.Publish(FloorRoom, EventOrderCreated, struct{}{})

	assert.Eventually(t, func() bool { return hub.Clients(FloorRoom) == 0 }, time.Second, 5*time.Millisecond)
}

func TestRun_ShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	c := mockClient(hub, FloorRoom)
	hub.register <- c
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	_, open := <-c.send
	assert.False(t, open)
	assert.Zero(t, hub.Clients(FloorRoom))

	// Publishing after shutdown must not block.
	done := make(chan struct{})
	go func() {
		hub.Publish(FloorRoom, EventOrderCreated, struct{}{})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked after shutdown")
	}
}
