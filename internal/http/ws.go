package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/nurpe/tract-board/internal/hub"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	maxMessageSize = 4 * 1024
)

// Polling is authoritative, so cross-origin pushes are fine to allow.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsClient adapts a websocket connection to the hub.Client interface.
// Writes go through a buffered channel; a full buffer drops the message
// (the next broadcast or poll catches the client up).
type wsClient struct {
	conn *websocket.Conn
	hub  *hub.Hub
	send chan []byte
	log  zerolog.Logger
}

func (h *Handler) serveWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &wsClient{
		conn: conn,
		hub:  h.hub,
		send: make(chan []byte, h.wsBuf),
		log:  h.log,
	}
	h.hub.Register(client)

	// Seed the new observer so it does not wait a full interval for state.
	if snap := h.auction.Snapshot(); snap.Version > 0 {
		if b, err := json.Marshal(snap); err != nil {
			h.log.Error().Err(err).Uint64("version", snap.Version).Msg("failed to marshal seed snapshot")
		} else {
			client.SendBytes(b)
		}
	}

	go client.writePump()
	go client.readPump()
}

func (c *wsClient) ID() string { return c.conn.RemoteAddr().String() }

func (c *wsClient) SendBytes(b []byte) {
	select {
	case c.send <- b:
	default:
	}
}

func (c *wsClient) Close() {
	close(c.send)
}

// readPump discards inbound frames; the push channel is one-way. Its job
// is pong handling and tearing the client down on disconnect.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
