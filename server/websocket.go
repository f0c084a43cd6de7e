package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"parceltrack/pkg/protocol"
)

// closeAuthFailure is the close code sent when the handshake token is
// rejected
const closeAuthFailure = 4001

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // clients connect from mobile apps and the web UI
	},
}

// wsTransport adapts a gorilla websocket connection to the hub's
// Transport. WriteEnvelope is called only from the connection's writer
// goroutine, so no write lock is needed.
type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) WriteEnvelope(env *protocol.Envelope) error {
	t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return t.conn.WriteJSON(env)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

// handleWebSocket upgrades the connection, authenticates the token from
// the query string, registers the client with the hub, and then reads
// commands until the transport drops.
func (s *Server) handleWebSocket(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	identity, err := s.authn.Resolve(c.Query("token"))
	if err != nil {
		// Rejected before any state is created
		msg := websocket.FormatCloseMessage(closeAuthFailure, "Authentication failed")
		ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		ws.WriteMessage(websocket.CloseMessage, msg)
		ws.Close()
		return
	}

	conn, err := s.hub.Connect(identity, &wsTransport{conn: ws})
	if err != nil {
		s.log.Warn("hub rejected connection", "user_id", identity.UserID, "error", err)
		ws.Close()
		return
	}
	defer s.hub.Disconnect(conn)

	s.log.Info("websocket connected", "user_id", identity.UserID, "role", identity.Role)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.log.Warn("websocket read error", "user_id", identity.UserID, "error", err)
			}
			return
		}
		if err := s.hub.HandleInbound(conn, data); err != nil {
			// The hub has stopped; nothing more to serve
			return
		}
	}
}
