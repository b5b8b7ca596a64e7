package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type hubHarness struct {
	hub *Hub
	srv *httptest.Server
}

func newHubHarness(t *testing.T) *hubHarness {
	t.Helper()
	hub := NewHub(zap.NewNop())
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for _, room := range strings.Split(r.URL.Query().Get("rooms"), ",") {
			hub.Join(room, conn)
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Close)
	return &hubHarness{hub: hub, srv: srv}
}

// dial connects a client subscribed to the given rooms and waits until the
// hub has registered it.
func (h *hubHarness) dial(t *testing.T, rooms ...string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "?rooms=" + strings.Join(rooms, ",")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool {
		h.hub.mu.Lock()
		defer h.hub.mu.Unlock()
		for _, room := range rooms {
			if len(h.hub.rooms[room]) == 0 {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func TestHubPublishDeliversToRoom(t *testing.T) {
	h := newHubHarness(t)
	conn := h.dial(t, "alice")

	h.hub.Publish("alice", "booking.created", map[string]string{"booking_id": "b1"})

	env := readEnvelope(t, conn)
	assert.Equal(t, "booking.created", env.Event)
	payload, ok := env.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "b1", payload["booking_id"])
}

func TestHubPublishToEmptyRoomIsNoError(t *testing.T) {
	h := newHubHarness(t)
	h.hub.Publish("nobody-home", "booking.created", nil)
}

func TestHubSharedConnectionAcrossRooms(t *testing.T) {
	h := newHubHarness(t)
	conn := h.dial(t, "admin-1", AdminRoom)

	h.hub.Publish(AdminRoom, "booking.dispute_raised", nil)
	env := readEnvelope(t, conn)
	assert.Equal(t, "booking.dispute_raised", env.Event)

	h.hub.Publish("admin-1", "booking.status_changed", nil)
	env = readEnvelope(t, conn)
	assert.Equal(t, "booking.status_changed", env.Event)
}

func TestHubLeaveStopsDelivery(t *testing.T) {
	h := newHubHarness(t)
	conn := h.dial(t, "bob")

	h.hub.mu.Lock()
	var serverConn *websocket.Conn
	for c := range h.hub.rooms["bob"] {
		serverConn = c
	}
	h.hub.mu.Unlock()
	require.NotNil(t, serverConn)

	h.hub.Leave("bob", serverConn)
	h.hub.Publish("bob", "booking.status_changed", nil)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestHubConcurrentPublishes(t *testing.T) {
	h := newHubHarness(t)
	connA := h.dial(t, "room-a")
	connB := h.dial(t, "room-b")

	const n = 20
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			h.hub.Publish("room-a", "booking.status_changed", nil)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			h.hub.Publish("room-b", "booking.status_changed", nil)
		}
	}()
	wg.Wait()

	for i := 0; i < n; i++ {
		readEnvelope(t, connA)
		readEnvelope(t, connB)
	}
}
