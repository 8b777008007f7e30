package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/solar-surv/coldwatch/internal/domain/telemetry"
	"github.com/solar-surv/coldwatch/internal/logger"
)

// wsWriteTimeout bounds a single frame write so one dead dashboard cannot
// park its delivery goroutine forever.
const wsWriteTimeout = 10 * time.Second

// upgrader configures the WebSocket upgrade.
//
//nolint:gochecknoglobals // Shared, immutable upgrade settings.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Dashboards are served from other origins; no subscriber auth by design.
		return true
	},
}

// wsSubscriber adapts one websocket connection to the fan-out subscriber
// contract. Writes are serialized: the snapshot burst happens before the bus
// delivery goroutine starts, and the read loop never writes.
type wsSubscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Send writes one frame to the dashboard. An error means the connection is
// gone; the bus reacts by unsubscribing.
func (c *wsSubscriber) Send(state telemetry.DeviceState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	//nolint:errcheck // Best-effort deadline; write error caught below.
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))

	return c.conn.WriteJSON(state.Frame())
}

// handleWebSocket upgrades the connection, sends the full registry snapshot
// so a new dashboard never starts blank, then registers the connection for
// incremental updates.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithName(r.Context(), "ws")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnKV(ctx, "WebSocket upgrade failed", "error", err)

		return
	}

	client := &wsSubscriber{conn: conn}

	// Snapshot burst first: one frame per known device, ascending id.
	for _, state := range s.registry.Snapshot() {
		if err := client.Send(state); err != nil {
			logger.DebugKV(ctx, "Snapshot delivery failed", "error", err)
			//nolint:errcheck // Connection is already broken.
			conn.Close()

			return
		}
	}

	handle := s.bus.Subscribe(ctx, client)

	logger.InfoKV(ctx, "Dashboard subscribed",
		"remote", conn.RemoteAddr().String(), "devices_sent", s.registry.Len())

	// The read loop only detects disconnection; inbound payloads are ignored.
	go func() {
		defer func() {
			s.bus.Unsubscribe(handle)
			//nolint:errcheck // Nothing to do about a close error here.
			conn.Close()
			logger.InfoKV(ctx, "Dashboard disconnected", "remote", conn.RemoteAddr().String())
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
