// Package ws is the websocket transport for the room protocol: one
// upgraded connection per participant, a read pump dispatching into the hub
// and a write pump draining the buffered send channel.
package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/helio-dev/helio/internal/app"
	"github.com/helio-dev/helio/internal/domain"
	"github.com/helio-dev/helio/internal/lsp"
	"github.com/helio-dev/helio/internal/protocol"
)

// ErrBackpressure is returned when a connection's send buffer is full; the
// frame is dropped rather than blocking the router.
var ErrBackpressure = errors.New("ws: send buffer full")

// ErrClosed is returned for frames enqueued after the connection shut down.
// Tooling sessions drain subprocess output on their own goroutines, so a
// late Emit can outlive the read pump.
var ErrClosed = errors.New("ws: connection closed")

const (
	sendBufferSize = 64
	writeDeadline  = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	Hub       *app.Hub
	Lsp       *lsp.Manager
	ReadLimit int64
}

type wsConn struct {
	id   domain.ConnID
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func (c *wsConn) TrySend(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

// Emit satisfies the tooling session's output channel.
func (c *wsConn) Emit(msgType string, payload any) {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Str("type", msgType).Msg("emit encode")
		return
	}
	if err := c.TrySend(data); err != nil {
		log.Warn().Str("module", "ws").Str("conn", string(c.id)).Str("type", msgType).Msg("emit dropped")
	}
}

// Close marks the connection dead before closing the channel, so a TrySend
// racing with teardown gets ErrClosed instead of a send on a closed channel.
func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	close(c.send)
	_ = c.conn.Close()
}

// HandleWS attaches one websocket connection to the session router. The
// connection id is the client token assigned by the HTTP middleware.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	connID := domain.ConnID(c.GetString("client_token"))
	if connID == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("upgrade failed")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := &wsConn{
		id:   connID,
		conn: ws,
		send: make(chan []byte, sendBufferSize),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Hub.Attach(connID, conn, cancel)
	log.Info().Str("module", "ws").Str("conn", string(connID)).Msg("connection attached")

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, conn)
}

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				log.Error().Err(err).Str("module", "ws").Str("conn", string(c.id)).Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "ws").Str("conn", string(c.id)).Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, c *wsConn) {
	defer func() {
		log.Info().Str("module", "ws").Str("conn", string(c.id)).Msg("readPump closing")
		ctl.Lsp.End(c.id)
		ctl.Hub.Disconnect(c.id)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn().Err(err).Str("module", "ws").Str("conn", string(c.id)).Msg("readPump read error")
				}
				return
			}
			ctl.dispatch(c, data)
		}
	}
}
