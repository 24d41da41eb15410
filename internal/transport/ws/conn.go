package ws

import (
	"fmt"
	"sync"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/relay"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// wsConn реализует relay.Conn. Писать в сокет может только writeLoop;
// остальные кладут кадры в буферизованный канал send.
type wsConn struct {
	id     string
	userID string
	conn   *websocket.Conn

	send      chan Message
	closed    chan struct{}
	closeOnce sync.Once
}

var _ relay.Conn = (*wsConn)(nil)

func newWsConn(c *websocket.Conn, userID string, buffer int) *wsConn {
	return &wsConn{
		id:     uuid.NewString(),
		userID: userID,
		conn:   c,
		send:   make(chan Message, buffer),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) ID() string     { return c.id }
func (c *wsConn) UserID() string { return c.userID }

func (c *wsConn) Deliver(evt relay.NewMessage) error {
	return c.enqueue(Message{Type: TypeNewMessage, Payload: evt})
}

// enqueue не блокируется: закрытое соединение или полный буфер: ErrDelivery.
func (c *wsConn) enqueue(m Message) error {
	select {
	case <-c.closed:
		return fmt.Errorf("%w: connection closed", domain.ErrDelivery)
	default:
	}

	select {
	case c.send <- m:
		return nil
	case <-c.closed:
		return fmt.Errorf("%w: connection closed", domain.ErrDelivery)
	default:
		return fmt.Errorf("%w: send buffer full", domain.ErrDelivery)
	}
}

func (c *wsConn) write(m Message, timeout time.Duration) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	return c.conn.WriteJSON(m)
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) done() <-chan struct{} { return c.closed }
