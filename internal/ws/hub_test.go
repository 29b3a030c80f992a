package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
)

type fakeConn struct {
	mu      sync.Mutex
	written [][]byte
	closed  bool
	readCh  chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{readCh: make(chan struct{})}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	buf := append([]byte{}, data...)
	c.written = append(c.written, buf)
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	<-c.readCh
	return 0, nil, errors.New("connection closed")
}

func (c *fakeConn) SetWriteDeadline(_ time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.readCh)
	}
	return nil
}

func (c *fakeConn) messages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte{}, c.written...)
}

func testConfig() config.WebsocketConfig {
	return config.WebsocketConfig{
		SendTimeoutMillis: 50,
		WriteWaitSeconds:  1,
		SendBufferSize:    4,
	}
}

func testHub() *Hub {
	return NewHub(testConfig(), zap.NewNop(), observability.NewMetrics())
}

func admitted(hub *Hub, id string) (*Client, *fakeConn) {
	conn := newFakeConn()
	client := newClient(auth.Identity{ID: id, Role: domain.RoleCustomer}, conn, hub.bufferSize)
	hub.Register(client)
	go client.writePump(hub.writeWait)
	return client, conn
}

func TestBroadcastReachesEveryLiveConnection(t *testing.T) {
	hub := testHub()

	conns := make([]*fakeConn, 0, 3)
	for _, id := range []string{"a", "b", "c"} {
		_, conn := admitted(hub, id)
		conns = append(conns, conn)
	}
	require.Equal(t, 3, hub.Len())

	ticket := &domain.Ticket{ID: "t-1", Status: domain.TicketStatusOpen}
	hub.Broadcast(events.TicketCreated(ticket))

	for _, conn := range conns {
		c := conn
		require.Eventually(t, func() bool {
			return len(c.messages()) == 1
		}, time.Second, 5*time.Millisecond)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(c.messages()[0], &decoded))
		assert.Equal(t, "ticket_created", decoded["type"])
	}
}

func TestUnregisteredConnectionReceivesNothing(t *testing.T) {
	hub := testHub()

	client, conn := admitted(hub, "a")
	hub.Unregister(client)
	require.Zero(t, hub.Len())

	hub.Broadcast(events.TicketUpdated(&domain.Ticket{ID: "t-1"}))

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, conn.messages())
}

func TestUnregisterIsIdempotent(t *testing.T) {
	hub := testHub()

	client, _ := admitted(hub, "a")
	hub.Unregister(client)
	hub.Unregister(client)
	assert.Zero(t, hub.Len())

	assert.False(t, client.enqueue([]byte("x"), time.Millisecond))
}

func TestSlowConnectionDroppedNotRetried(t *testing.T) {
	cfg := testConfig()
	cfg.SendBufferSize = 1
	cfg.SendTimeoutMillis = 10
	metrics := observability.NewMetrics()
	hub := NewHub(cfg, zap.NewNop(), metrics)

	// No write pump: the buffer fills after one payload and stays full.
	conn := newFakeConn()
	client := newClient(auth.Identity{ID: "slow"}, conn, hub.bufferSize)
	hub.Register(client)

	event := events.TicketUpdated(&domain.Ticket{ID: "t-1"})
	hub.Broadcast(event)
	hub.Broadcast(event)

	delivered, dropped := metrics.BroadcastCounts(string(events.TypeTicketUpdated))
	assert.Equal(t, int64(1), delivered)
	assert.Equal(t, int64(1), dropped)
}

func TestConcurrentRegistrationDuringBroadcast(t *testing.T) {
	hub := testHub()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				client, _ := admitted(hub, "churn")
				hub.Unregister(client)
			}
		}
	}()

	event := events.TicketUpdated(&domain.Ticket{ID: "t-1"})
	for i := 0; i < 100; i++ {
		hub.Broadcast(event)
	}
	close(stop)
	wg.Wait()
}
