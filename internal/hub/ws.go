package hub

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendBufferSize = 16
	writeWait      = 10 * time.Second
)

// Broadcaster pushes every accepted client report to connected dashboard
// websockets. Each connection gets a buffered send channel drained by its own
// write pump; a client that cannot keep up is dropped instead of blocking the
// report handler.
type Broadcaster struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]chan Report
}

func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
		conns:  make(map[*websocket.Conn]chan Report),
	}
}

// ServeWS upgrades the request and registers the connection.
func (b *Broadcaster) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	send := make(chan Report, sendBufferSize)

	b.mu.Lock()
	b.conns[conn] = send
	total := len(b.conns)
	b.mu.Unlock()

	b.logger.Info("WebSocket client registered",
		zap.String("remote_addr", conn.RemoteAddr().String()),
		zap.Int("total_clients", total))

	go b.writePump(conn, send)

	// Reader nur zum Erkennen des Verbindungsabbruchs
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				b.remove(conn)
				return
			}
		}
	}()
}

// Broadcast queues the report for every connected client. Never blocks: a
// client whose send buffer is full gets unregistered.
func (b *Broadcaster) Broadcast(report Report) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for conn, send := range b.conns {
		select {
		case send <- report:
		default:
			b.logger.Warn("WebSocket client too slow, unregistering",
				zap.String("remote_addr", conn.RemoteAddr().String()))
			delete(b.conns, conn)
			close(send)
		}
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// writePump drains the send channel onto the wire. It ends when the channel
// is closed (client unregistered) or a write fails.
func (b *Broadcaster) writePump(conn *websocket.Conn, send <-chan Report) {
	defer conn.Close()

	for report := range send {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(report); err != nil {
			b.logger.Warn("WebSocket write failed, unregistering",
				zap.String("remote_addr", conn.RemoteAddr().String()))
			b.remove(conn)
			return
		}
	}
}

func (b *Broadcaster) remove(conn *websocket.Conn) {
	b.mu.Lock()
	if send, ok := b.conns[conn]; ok {
		delete(b.conns, conn)
		close(send)
	}
	b.mu.Unlock()
	conn.Close()
}
