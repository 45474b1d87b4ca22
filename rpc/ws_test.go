package rpc

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"qamarket/core"
	"qamarket/core/events"
	"qamarket/core/types"
	"qamarket/storage"
)

func (h *EventHub) subscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func newWSFixture(t *testing.T) (*Server, string) {
	t.Helper()
	srv := NewServer(core.NewNode(storage.NewMemDB()), Config{}, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/events"
}

func TestWebsocketStreamDeliversEvents(t *testing.T) {
	srv, url := newWSFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool {
		return srv.hub.subscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	srv.hub.Emit(events.Wrap(&types.Event{
		Type:       events.TypeKeyListed,
		Attributes: map[string]string{"price": "1000"},
	}))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var payload wsEventPayload
	require.NoError(t, json.Unmarshal(data, &payload))
	require.Equal(t, events.TypeKeyListed, payload.Type)
	require.Equal(t, "1000", payload.Attributes["price"])
}

func TestWebsocketIdleClientDisconnectReapsSubscriber(t *testing.T) {
	srv, url := newWSFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return srv.hub.subscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Close without ever receiving an event. The handler must notice the
	// disconnect on its own rather than on the next write.
	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))

	require.Eventually(t, func() bool {
		return srv.hub.subscriberCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
