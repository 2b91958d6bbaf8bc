package websocket

import (
	"context"
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
)

// Greeter builds the messages a display receives right after connecting,
// such as the current unread count.
type Greeter func(ctx context.Context) []Message

// HandleWebSocket returns an HTTP handler that upgrades connections to WebSocket
// and runs them as Hub clients.
func HandleWebSocket(hub *Hub, greet Greeter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // displays connect from any origin on the LAN
		})
		if err != nil {
			hub.logger.Warn("websocket accept", "error", err)
			return
		}

		var greeting []Message
		if greet != nil {
			greeting = greet(r.Context())
		}

		client := NewClient(hub, conn)
		hub.logger.Debug("display connected", "remote", r.RemoteAddr)
		client.Run(r.Context(), greeting...)
	}
}
