package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
)

func TestDispatcherDeliversToSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()

	var got []Event
	d.Subscribe(TypeTicketCreated, func(_ context.Context, e Event) error {
		got = append(got, e)
		return nil
	})

	ticket := &domain.Ticket{ID: "t-1"}
	require.NoError(t, d.Publish(context.Background(), TicketCreated(ticket)))

	require.Len(t, got, 1)
	assert.Equal(t, TypeTicketCreated, got[0].Type)
	assert.Equal(t, "t-1", got[0].Ticket.ID)
}

func TestDispatcherOnlyMatchingType(t *testing.T) {
	d := NewInMemoryDispatcher()

	created, updated := 0, 0
	d.Subscribe(TypeTicketCreated, func(_ context.Context, _ Event) error {
		created++
		return nil
	})
	d.Subscribe(TypeTicketUpdated, func(_ context.Context, _ Event) error {
		updated++
		return nil
	})

	ticket := &domain.Ticket{ID: "t-1"}
	require.NoError(t, d.Publish(context.Background(), TicketUpdated(ticket)))

	assert.Zero(t, created)
	assert.Equal(t, 1, updated)
}

func TestDispatcherFailingHandlerDoesNotBlockOthers(t *testing.T) {
	d := NewInMemoryDispatcher()

	reached := false
	d.Subscribe(TypeNewMessage, func(_ context.Context, _ Event) error {
		return errors.New("boom")
	})
	d.Subscribe(TypeNewMessage, func(_ context.Context, _ Event) error {
		reached = true
		return nil
	})

	ticket := &domain.Ticket{ID: "t-1"}
	msg := &domain.Message{ID: "m-1", TicketID: "t-1"}
	require.NoError(t, d.Publish(context.Background(), MessageAppended(ticket, msg)))
	assert.True(t, reached)
}
