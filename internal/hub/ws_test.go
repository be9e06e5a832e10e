package hub

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dialBroadcaster(t *testing.T, b *Broadcaster) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(b.ServeWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return b.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)
	return conn
}

func TestBroadcastDeliversReports(t *testing.T) {
	b := NewBroadcaster(zap.NewNop())
	conn := dialBroadcaster(t, b)

	sent := Report{ID: uuid.New(), IP: "10.0.0.5", Status: "shutdown_pending"}
	b.Broadcast(sent)

	var got Report
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, sent.Status, got.Status)
}

func TestBroadcastNeverBlocksOnStalledClient(t *testing.T) {
	b := NewBroadcaster(zap.NewNop())
	dialBroadcaster(t, b) // Client liest nie

	// Payload gross genug, dass die Socket-Puffer schnell volllaufen
	report := Report{
		ID:     uuid.New(),
		IP:     "10.0.0.5",
		Status: strings.Repeat("x", 1<<20),
	}

	start := time.Now()
	for i := 0; i < sendBufferSize*3; i++ {
		b.Broadcast(report)
	}
	assert.Less(t, time.Since(start), 2*time.Second,
		"a stalled client must not block Broadcast")

	assert.Eventually(t, func() bool { return b.ClientCount() == 0 },
		2*time.Second, 10*time.Millisecond,
		"a client with a full send buffer must be unregistered")
}
