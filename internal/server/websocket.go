package server

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/livetemplate/kayero"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// Message is what the server sends over the WebSocket.
type Message struct {
	Type     string           `json:"type"` // "document" or "error"
	Document *kayero.Document `json:"document,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// WebSocketHandler streams the session to clients. Each client receives the
// document on connect and after every change, and may send action envelopes.
type WebSocketHandler struct {
	server *Server
	log    *zap.Logger
}

// NewWebSocketHandler creates a WebSocket handler for the server's session.
func NewWebSocketHandler(s *Server) *WebSocketHandler {
	return &WebSocketHandler{server: s, log: s.log.Named("ws")}
}

// client serializes writes to one connection.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

// ServeHTTP handles WebSocket upgrade and message routing.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("failed to upgrade connection", zap.Error(err))
		return
	}
	c := &client{conn: conn}

	h.server.RegisterConnection(conn)
	updates, unsubscribe := h.server.session.Subscribe()
	defer func() {
		unsubscribe()
		h.server.UnregisterConnection(conn)
		conn.Close()
	}()

	h.log.Debug("client connected", zap.String("remote", conn.RemoteAddr().String()))

	// Subscribe before the initial send so no change can slip between them
	if err := c.send(Message{Type: "document", Document: h.server.session.Document()}); err != nil {
		return
	}

	go func() {
		for doc := range updates {
			if err := c.send(Message{Type: "document", Document: doc}); err != nil {
				h.log.Debug("push failed", zap.Error(err))
				conn.Close()
				return
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("unexpected close", zap.Error(err))
			}
			break
		}

		h.log.Debug("received", zap.ByteString("message", message))

		if _, err := h.server.apply(message); err != nil {
			if err := c.send(Message{Type: "error", Error: err.Error()}); err != nil {
				break
			}
		}
	}

	h.log.Debug("client disconnected", zap.String("remote", conn.RemoteAddr().String()))
}
