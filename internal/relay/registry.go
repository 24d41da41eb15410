package relay

import (
	"errors"
	"sync"

	"github.com/cwrk-planet/chat-service/internal/metrics"

	"github.com/samber/lo"
)

var (
	ErrNotRegistered     = errors.New("connection is not registered")
	ErrAlreadyRegistered = errors.New("connection is already registered")
)

type session struct {
	userID string
	rooms  map[string]struct{}
}

// Registry живые соединения: conn -> (user, rooms), room -> conns, user -> conns.
// Все методы безопасны для конкурентного вызова; под мьютексом нет I/O.
type Registry struct {
	mu    sync.RWMutex
	conns map[Conn]*session
	rooms map[string]map[Conn]struct{}
	users map[string]map[Conn]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[Conn]*session),
		rooms: make(map[string]map[Conn]struct{}),
		users: make(map[string]map[Conn]struct{}),
	}
}

// Register привязывает соединение к пользователю. Привязка неизменяема.
func (r *Registry) Register(c Conn, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[c]; ok {
		return ErrAlreadyRegistered
	}
	r.conns[c] = &session{userID: userID, rooms: make(map[string]struct{})}
	addTo(r.users, userID, c)

	r.updateGauges()
	return nil
}

// Join идемпотентен.
func (r *Registry) Join(c Conn, groupID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.conns[c]
	if !ok {
		return ErrNotRegistered
	}
	s.rooms[groupID] = struct{}{}
	addTo(r.rooms, groupID, c)

	r.updateGauges()
	return nil
}

// Leave идемпотентен; пустая комната удаляется.
func (r *Registry) Leave(c Conn, groupID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.conns[c]; ok {
		delete(s.rooms, groupID)
	}
	removeFrom(r.rooms, groupID, c)

	r.updateGauges()
}

// Deregister убирает соединение отовсюду. Для незарегистрированного это no-op.
func (r *Registry) Deregister(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.conns[c]
	if !ok {
		return
	}
	for g := range s.rooms {
		removeFrom(r.rooms, g, c)
	}
	removeFrom(r.users, s.userID, c)
	delete(r.conns, c)

	r.updateGauges()
}

// MembersOf снапшот участников комнаты; пустой срез, если комнаты нет.
func (r *Registry) MembersOf(groupID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Keys(r.rooms[groupID])
}

// ConnectionsFor снапшот соединений пользователя (несколько устройств).
func (r *Registry) ConnectionsFor(userID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Keys(r.users[userID])
}

// RoomsOf комнаты, в которых состоит соединение.
func (r *Registry) RoomsOf(c Conn) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.conns[c]
	if !ok {
		return nil
	}
	return lo.Keys(s.rooms)
}

type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
	Users       int `json:"users"`
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{Connections: len(r.conns), Rooms: len(r.rooms), Users: len(r.users)}
}

// вызывается под r.mu
func (r *Registry) updateGauges() {
	metrics.ConnectionsActive.Set(float64(len(r.conns)))
	metrics.RoomsActive.Set(float64(len(r.rooms)))
}

func addTo(index map[string]map[Conn]struct{}, key string, c Conn) {
	set, ok := index[key]
	if !ok {
		set = make(map[Conn]struct{})
		index[key] = set
	}
	set[c] = struct{}{}
}

func removeFrom(index map[string]map[Conn]struct{}, key string, c Conn) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(index, key)
	}
}
