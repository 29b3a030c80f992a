package wsclient

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(Options{URL: "ws://localhost:8080/ws", Token: "tok"})
	require.NoError(t, err)
	return client
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestLifecycleEventsRouteToTicketsTopic(t *testing.T) {
	client := newTestClient(t)

	var got []Event
	client.Subscribe(TopicTickets, func(e Event) {
		got = append(got, e)
	})

	for _, eventType := range []string{"ticket_created", "ticket_status_update", "ticket_assigned", "ticket_updated"} {
		payload, err := json.Marshal(map[string]any{
			"type":   eventType,
			"ticket": map[string]any{"id": "t-1"},
		})
		require.NoError(t, err)
		client.dispatch(payload)
	}

	require.Len(t, got, 4)
	for _, e := range got {
		assert.Equal(t, "t-1", e.TicketID)
	}
}

func TestNewMessageRoutesToThreadTopic(t *testing.T) {
	client := newTestClient(t)

	var thread, other []Event
	client.Subscribe(MessagesTopic("t-1"), func(e Event) { thread = append(thread, e) })
	client.Subscribe(MessagesTopic("t-2"), func(e Event) { other = append(other, e) })
	client.Subscribe(TopicTickets, func(e Event) { other = append(other, e) })

	client.dispatch([]byte(`{"type":"new_message","ticketId":"t-1","message":{"id":"m-1"}}`))

	require.Len(t, thread, 1)
	assert.Equal(t, "new_message", thread[0].Type)
	assert.Equal(t, "t-1", thread[0].TicketID)
	assert.Empty(t, other)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	client := newTestClient(t)

	count := 0
	unsubscribe := client.Subscribe(TopicTickets, func(Event) { count++ })

	client.dispatch([]byte(`{"type":"ticket_updated","ticket":{"id":"t-1"}}`))
	assert.Equal(t, 1, count)

	unsubscribe()
	client.dispatch([]byte(`{"type":"ticket_updated","ticket":{"id":"t-1"}}`))
	assert.Equal(t, 1, count)

	// A second call is harmless.
	unsubscribe()
}

func TestDispatchIgnoresNoise(t *testing.T) {
	client := newTestClient(t)

	count := 0
	client.Subscribe(TopicTickets, func(Event) { count++ })

	client.dispatch([]byte(`not json`))
	client.dispatch([]byte(`{"type":"welcome","message":"WebSocket connected"}`))
	client.dispatch([]byte(`{"type":"mystery"}`))
	client.dispatch([]byte(`{"type":"new_message"}`))

	assert.Zero(t, count)
}
