package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

type fakeTicketRepo struct {
	mu         sync.Mutex
	tickets    map[string]*domain.Ticket
	messages   map[string][]domain.Message
	nextID     int
	failUpdate bool
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{
		tickets:  make(map[string]*domain.Ticket),
		messages: make(map[string][]domain.Message),
	}
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	ticket.ID = fmt.Sprintf("t-%d", r.nextID)
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	stored := *ticket
	r.tickets[ticket.ID] = &stored
	return nil
}

func (r *fakeTicketRepo) UpdateWithMessage(_ context.Context, ticket *domain.Ticket, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdate {
		return errors.New("update rejected")
	}
	if err := r.updateLocked(ticket); err != nil {
		return err
	}
	if msg != nil {
		r.nextID++
		msg.ID = fmt.Sprintf("m-%d", r.nextID)
		msg.CreatedAt = time.Now()
		r.messages[msg.TicketID] = append(r.messages[msg.TicketID], *msg)
	}
	return nil
}

func (r *fakeTicketRepo) updateLocked(ticket *domain.Ticket) error {
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now()
	stored := *ticket
	r.tickets[ticket.ID] = &stored
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	ticket := *stored
	ticket.Messages = append([]domain.Message{}, r.messages[id]...)
	return &ticket, nil
}

func (r *fakeTicketRepo) ListVisible(_ context.Context, userID string, role domain.Role, _, _ int) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.tickets {
		switch role {
		case domain.RoleCustomer:
			if t.CreatedBy != userID {
				continue
			}
		case domain.RoleAgent:
			if t.AssignedTo != nil && *t.AssignedTo != userID {
				continue
			}
		}
		out = append(out, *t)
	}
	return out, nil
}

func (r *fakeTicketRepo) ListMessages(_ context.Context, ticketID string) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Message{}, r.messages[ticketID]...), nil
}

func (r *fakeTicketRepo) CountByStatus(_ context.Context, status domain.TicketStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, t := range r.tickets {
		if t.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *fakeTicketRepo) CountByAssignee(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, t := range r.tickets {
		if t.AssignedTo != nil && *t.AssignedTo == userID {
			n++
		}
	}
	return n, nil
}

type fakeUserRepo struct {
	users map[string]*domain.User
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*domain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return u, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) ListByRole(_ context.Context, role domain.Role) ([]domain.User, error) {
	var out []domain.User
	for _, u := range r.users {
		if u.Role == role {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) CountAll(_ context.Context) (int64, error) {
	return int64(len(r.users)), nil
}

func (r *fakeUserRepo) CountByRole(_ context.Context, role domain.Role) (int64, error) {
	var n int64
	for _, u := range r.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

type fakeHistoryRepo struct {
	entries []domain.TicketHistory
}

func (r *fakeHistoryRepo) Create(_ context.Context, entry *domain.TicketHistory) error {
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeHistoryRepo) ListByTicket(_ context.Context, ticketID string, _, _ int) ([]domain.TicketHistory, error) {
	var out []domain.TicketHistory
	for _, e := range r.entries {
		if e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	return out, nil
}

type captureDispatcher struct {
	mu        sync.Mutex
	published []events.Event
}

func (d *captureDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.published = append(d.published, event)
	return nil
}

func (d *captureDispatcher) Subscribe(_ events.Type, _ events.EventHandler) {}

func (d *captureDispatcher) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.published = nil
}

func (d *captureDispatcher) types() []events.Type {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.Type, 0, len(d.published))
	for _, e := range d.published {
		out = append(out, e.Type)
	}
	return out
}

func (d *captureDispatcher) countType(eventType events.Type) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, e := range d.published {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

var (
	customer = auth.Identity{ID: "u-customer", Email: "customer@example.com", Role: domain.RoleCustomer}
	agent    = auth.Identity{ID: "u-agent", Email: "agent@example.com", Role: domain.RoleAgent}
	admin    = auth.Identity{ID: "u-admin", Email: "admin@example.com", Role: domain.RoleAdmin}
)

func newTestService() (*TicketService, *fakeTicketRepo, *fakeHistoryRepo, *captureDispatcher) {
	tickets := newFakeTicketRepo()
	users := newFakeUserRepo(
		&domain.User{ID: customer.ID, Email: customer.Email, Role: domain.RoleCustomer},
		&domain.User{ID: agent.ID, Email: agent.Email, Role: domain.RoleAgent},
		&domain.User{ID: admin.ID, Email: admin.Email, Role: domain.RoleAdmin},
	)
	history := &fakeHistoryRepo{}
	dispatcher := &captureDispatcher{}
	svc := NewTicketService(TicketDependencies{
		TicketRepo:  tickets,
		UserRepo:    users,
		HistoryRepo: history,
		Dispatcher:  dispatcher,
	})
	return svc, tickets, history, dispatcher
}

func createTicket(t *testing.T, svc *TicketService) *domain.Ticket {
	t.Helper()
	ticket, err := svc.CreateTicket(context.Background(), customer, TicketCreateInput{
		Subject:     "Printer offline",
		Description: "The office printer stopped responding this morning.",
	})
	require.NoError(t, err)
	return ticket
}

func TestCreateTicketDefaults(t *testing.T) {
	svc, _, _, dispatcher := newTestService()

	ticket := createTicket(t, svc)

	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	assert.Equal(t, customer.ID, ticket.CreatedBy)
	assert.Equal(t, customer.Email, ticket.Submitter)
	assert.True(t, strings.HasPrefix(ticket.ExternalKey, "TCK-"))
	assert.Nil(t, ticket.AssignedTo)

	require.Equal(t, []events.Type{events.TypeTicketCreated}, dispatcher.types())
	assert.Equal(t, ticket.ID, dispatcher.published[0].Ticket.ID)
}

func TestCustomerStatusChangeDroppedSilently(t *testing.T) {
	svc, _, _, dispatcher := newTestService()
	ticket := createTicket(t, svc)
	dispatcher.reset()

	closed := domain.TicketStatusClosed
	message := "Please hurry, this blocks payroll."
	result, err := svc.ApplyUpdate(context.Background(), customer, ticket.ID, TicketUpdateInput{
		Status:  &closed,
		Message: &message,
	})
	require.NoError(t, err)

	assert.False(t, result.StatusChanged)
	assert.Contains(t, result.Dropped, "status")
	assert.Equal(t, domain.TicketStatusOpen, result.Ticket.Status)
	assert.True(t, result.MessageAdded)

	assert.Equal(t, []events.Type{events.TypeNewMessage, events.TypeTicketUpdated}, dispatcher.types())
}

func TestAgentCombinedUpdateEventOrder(t *testing.T) {
	svc, _, _, dispatcher := newTestService()
	ticket := createTicket(t, svc)
	dispatcher.reset()

	inProgress := domain.TicketStatusInProgress
	assignee := agent.ID
	message := "Taking a look now."
	result, err := svc.ApplyUpdate(context.Background(), agent, ticket.ID, TicketUpdateInput{
		Status:     &inProgress,
		AssignedTo: &assignee,
		Message:    &message,
	})
	require.NoError(t, err)

	assert.True(t, result.StatusChanged)
	assert.True(t, result.AssigneeChanged)
	assert.True(t, result.MessageAdded)
	assert.Empty(t, result.Dropped)

	assert.Equal(t, []events.Type{
		events.TypeTicketStatusUpdate,
		events.TypeTicketAssigned,
		events.TypeNewMessage,
		events.TypeTicketUpdated,
	}, dispatcher.types())
}

func TestNoopStatusEmitsOnlyTicketUpdated(t *testing.T) {
	svc, _, _, dispatcher := newTestService()
	ticket := createTicket(t, svc)
	dispatcher.reset()

	open := domain.TicketStatusOpen
	result, err := svc.ApplyUpdate(context.Background(), agent, ticket.ID, TicketUpdateInput{
		Status: &open,
	})
	require.NoError(t, err)

	assert.False(t, result.StatusChanged)
	assert.Empty(t, result.Dropped)
	assert.Equal(t, []events.Type{events.TypeTicketUpdated}, dispatcher.types())
}

func TestAssignToCustomerDropped(t *testing.T) {
	svc, _, _, dispatcher := newTestService()
	ticket := createTicket(t, svc)
	dispatcher.reset()

	target := customer.ID
	result, err := svc.ApplyUpdate(context.Background(), admin, ticket.ID, TicketUpdateInput{
		AssignedTo: &target,
	})
	require.NoError(t, err)

	assert.False(t, result.AssigneeChanged)
	assert.Contains(t, result.Dropped, "assignedTo")
	assert.Nil(t, result.Ticket.AssignedTo)
	assert.Equal(t, []events.Type{events.TypeTicketUpdated}, dispatcher.types())
}

func TestAssignUnknownUserDropped(t *testing.T) {
	svc, _, _, _ := newTestService()
	ticket := createTicket(t, svc)

	target := "no-such-user"
	result, err := svc.ApplyUpdate(context.Background(), admin, ticket.ID, TicketUpdateInput{
		AssignedTo: &target,
	})
	require.NoError(t, err)
	assert.Contains(t, result.Dropped, "assignedTo")
	assert.Nil(t, result.Ticket.AssignedTo)
}

func TestUpdateUnknownTicket(t *testing.T) {
	svc, _, _, _ := newTestService()

	closed := domain.TicketStatusClosed
	_, err := svc.ApplyUpdate(context.Background(), agent, "missing", TicketUpdateInput{
		Status: &closed,
	})
	require.Error(t, err)

	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, "NOT_FOUND", domainErr.Code)
}

func TestStatusChangeRecordsHistory(t *testing.T) {
	svc, _, history, _ := newTestService()
	ticket := createTicket(t, svc)

	closed := domain.TicketStatusClosed
	_, err := svc.ApplyUpdate(context.Background(), admin, ticket.ID, TicketUpdateInput{
		Status: &closed,
	})
	require.NoError(t, err)

	require.Len(t, history.entries, 1)
	assert.Equal(t, domain.ChangeTypeStatus, history.entries[0].ChangeType)
	assert.Equal(t, admin.ID, history.entries[0].ChangedByID)
	assert.Equal(t, ticket.ID, history.entries[0].TicketID)
}

func TestListTicketsVisibility(t *testing.T) {
	svc, tickets, _, _ := newTestService()

	mine := createTicket(t, svc)

	other := &domain.Ticket{
		Subject:     "VPN flaky",
		Description: "Connection drops every few minutes.",
		Status:      domain.TicketStatusOpen,
		Priority:    domain.TicketPriorityHigh,
		CreatedBy:   "someone-else",
	}
	require.NoError(t, tickets.Create(context.Background(), other))

	assigned := &domain.Ticket{
		Subject:     "Email bouncing",
		Description: "Outbound mail rejected by relay.",
		Status:      domain.TicketStatusInProgress,
		Priority:    domain.TicketPriorityMedium,
		CreatedBy:   "someone-else",
	}
	otherAgent := "u-other-agent"
	assigned.AssignedTo = &otherAgent
	require.NoError(t, tickets.Create(context.Background(), assigned))

	visible, err := svc.ListTickets(context.Background(), customer, 50, 0)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, mine.ID, visible[0].ID)

	visible, err = svc.ListTickets(context.Background(), agent, 50, 0)
	require.NoError(t, err)
	assert.Len(t, visible, 2)

	visible, err = svc.ListTickets(context.Background(), admin, 50, 0)
	require.NoError(t, err)
	assert.Len(t, visible, 3)
}

func TestConcurrentMessageAppendsBothPersist(t *testing.T) {
	svc, tickets, _, dispatcher := newTestService()
	ticket := createTicket(t, svc)
	dispatcher.reset()

	senders := []struct {
		identity auth.Identity
		body     string
	}{
		{customer, "Still broken after a reboot."},
		{agent, "Swapping the toner cartridge now."},
	}

	var wg sync.WaitGroup
	errs := make([]error, len(senders))
	for i, s := range senders {
		wg.Add(1)
		go func(i int, identity auth.Identity, body string) {
			defer wg.Done()
			_, err := svc.ApplyUpdate(context.Background(), identity, ticket.ID, TicketUpdateInput{
				Message: &body,
			})
			errs[i] = err
		}(i, s.identity, s.body)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	msgs, err := tickets.ListMessages(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	bodies := []string{msgs[0].Body, msgs[1].Body}
	assert.ElementsMatch(t, []string{senders[0].body, senders[1].body}, bodies)
	assert.NotEqual(t, msgs[0].SenderID, msgs[1].SenderID)

	assert.Equal(t, 2, dispatcher.countType(events.TypeNewMessage))
	assert.Equal(t, 2, dispatcher.countType(events.TypeTicketUpdated))
}

func TestFailedPersistLeavesThreadUntouched(t *testing.T) {
	svc, tickets, _, dispatcher := newTestService()
	ticket := createTicket(t, svc)
	dispatcher.reset()
	tickets.failUpdate = true

	message := "This should never land."
	_, err := svc.ApplyUpdate(context.Background(), agent, ticket.ID, TicketUpdateInput{
		Message: &message,
	})
	require.Error(t, err)

	tickets.failUpdate = false
	msgs, err := tickets.ListMessages(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Empty(t, dispatcher.types())
}
