package relay

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_DeregisterUnknownIsNoop(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	c := newFakeConn("c1", "u1")

	req.NotPanics(func() {
		r.Deregister(c)
		r.Deregister(c)
	})
	req.Equal(Stats{}, r.Stats())
}

func TestRegistry_JoinLeave(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	c := newFakeConn("c1", "u1")
	req.NoError(r.Register(c, "u1"))

	req.NoError(r.Join(c, "g1"))
	req.ElementsMatch([]Conn{c}, r.MembersOf("g1"))

	// повторный join ничего не меняет
	req.NoError(r.Join(c, "g1"))
	req.Len(r.MembersOf("g1"), 1)
	req.Equal([]string{"g1"}, r.RoomsOf(c))

	r.Leave(c, "g1")
	req.Empty(r.MembersOf("g1"))
	req.Equal(0, r.Stats().Rooms)

	// leave из комнаты, где нас нет, тоже no-op
	r.Leave(c, "g1")
	r.Leave(c, "never-joined")
	req.Empty(r.MembersOf("g1"))
}

func TestRegistry_MembersOfUnknownRoomIsEmpty(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	members := r.MembersOf("nope")
	req.NotNil(members)
	req.Empty(members)
	req.Empty(r.ConnectionsFor("nobody"))
}

func TestRegistry_JoinRequiresRegistration(t *testing.T) {
	r := NewRegistry()
	err := r.Join(newFakeConn("c1", "u1"), "g1")
	require.ErrorIs(t, err, ErrNotRegistered)
}

func TestRegistry_RegisterTwice(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	c := newFakeConn("c1", "u1")

	req.NoError(r.Register(c, "u1"))
	req.ErrorIs(r.Register(c, "u2"), ErrAlreadyRegistered)
	req.ElementsMatch([]Conn{c}, r.ConnectionsFor("u1"))
	req.Empty(r.ConnectionsFor("u2"))
}

func TestRegistry_MultipleSessionsPerUser(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	phone := newFakeConn("phone", "u1")
	laptop := newFakeConn("laptop", "u1")
	req.NoError(r.Register(phone, "u1"))
	req.NoError(r.Register(laptop, "u1"))

	req.ElementsMatch([]Conn{phone, laptop}, r.ConnectionsFor("u1"))

	r.Deregister(phone)
	req.ElementsMatch([]Conn{laptop}, r.ConnectionsFor("u1"))
	req.Equal(Stats{Connections: 1, Users: 1}, r.Stats())
}

func TestRegistry_DeregisterRemovesFromAllRooms(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	a := newFakeConn("a", "u1")
	b := newFakeConn("b", "u2")
	req.NoError(r.Register(a, "u1"))
	req.NoError(r.Register(b, "u2"))
	for _, g := range []string{"g1", "g2", "g3"} {
		req.NoError(r.Join(a, g))
	}
	req.NoError(r.Join(b, "g2"))

	r.Deregister(a)

	req.Empty(r.MembersOf("g1"))
	req.ElementsMatch([]Conn{b}, r.MembersOf("g2"))
	req.Empty(r.MembersOf("g3"))
	req.Empty(r.ConnectionsFor("u1"))
	req.Nil(r.RoomsOf(a))
	req.Equal(Stats{Connections: 1, Rooms: 1, Users: 1}, r.Stats())
}

func TestRegistry_SnapshotIsolation(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	a := newFakeConn("a", "u1")
	req.NoError(r.Register(a, "u1"))
	req.NoError(r.Join(a, "g1"))

	snap := r.MembersOf("g1")
	r.Deregister(a)

	req.Len(snap, 1)
	req.Empty(r.MembersOf("g1"))
}

func TestRegistry_Concurrent(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	const workers = 32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newFakeConn(fmt.Sprintf("c%d", i), fmt.Sprintf("u%d", i%4))
			_ = r.Register(c, c.user)
			for j := 0; j < 50; j++ {
				g := fmt.Sprintf("g%d", j%5)
				_ = r.Join(c, g)
				_ = r.MembersOf(g)
				_ = r.ConnectionsFor(c.user)
				r.Leave(c, g)
			}
			_ = r.Join(c, "lobby")
			if i%2 == 0 {
				r.Deregister(c)
			}
		}(i)
	}
	wg.Wait()

	req.Len(r.MembersOf("lobby"), workers/2)
	req.Equal(Stats{Connections: workers / 2, Rooms: 1, Users: 2}, r.Stats())
}
