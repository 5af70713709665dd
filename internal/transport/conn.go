package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kinofiles/kinosync/internal/constants"
	"github.com/kinofiles/kinosync/internal/protocol"
)

// ErrClosed is returned by Send after the connection dropped.
var ErrClosed = errors.New("push channel closed")

// Conn is one live websocket connection. It implements state.Sender.
type Conn struct {
	ws *websocket.Conn

	// gorilla allows one concurrent writer; control frames are exempt.
	writeMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws, closed: make(chan struct{})}
}

// Send writes cmd as a text frame. The write is bounded by ctx's deadline
// or WriteTimeout, whichever is sooner.
func (c *Conn) Send(ctx context.Context, cmd protocol.Command) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := protocol.EncodeCommand(cmd)
	if err != nil {
		return fmt.Errorf("encode %s: %w", cmd.Name(), err)
	}

	deadline := time.Now().Add(constants.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write %s: %w", cmd.Name(), err)
	}
	return nil
}

func (c *Conn) ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(constants.WriteTimeout))
}

// goingAway sends a close frame and closes the socket.
func (c *Conn) goingAway() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client shutting down")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(2*time.Second))
	c.close()
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.ws.Close()
	})
}
