package relay

import (
	"sync"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type fakeConn struct {
	id   string
	user string

	mu   sync.Mutex
	got  []NewMessage
	fail bool
}

func newFakeConn(id, user string) *fakeConn {
	return &fakeConn{id: id, user: user}
}

func (c *fakeConn) ID() string     { return c.id }
func (c *fakeConn) UserID() string { return c.user }

func (c *fakeConn) Deliver(evt NewMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return domain.ErrDelivery
	}
	c.got = append(c.got, evt)
	return nil
}

func (c *fakeConn) received() []NewMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]NewMessage(nil), c.got...)
}

func (c *fakeConn) close() {
	c.mu.Lock()
	c.fail = true
	c.mu.Unlock()
}
