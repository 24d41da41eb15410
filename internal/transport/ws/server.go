package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/metrics"
	"github.com/cwrk-planet/chat-service/internal/relay"
	"github.com/cwrk-planet/chat-service/pkg/httputil"

	"github.com/gorilla/websocket"
)

var ErrUnknownEvent = errors.New("unknown event")

// CredentialVerifier проверяет токен один раз при подключении.
type CredentialVerifier interface {
	Verify(token string) (userID string, err error)
}

type Options struct {
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	MaxFrameBytes  int64
	SendBuffer     int
	InboundBuffer  int
	AllowedOrigins []string // пусто или "*": любой Origin
}

func (o *Options) setDefaults() {
	if o.PingInterval <= 0 {
		o.PingInterval = 15 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.MaxFrameBytes <= 0 {
		o.MaxFrameBytes = 1 << 20
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.InboundBuffer <= 0 {
		o.InboundBuffer = 16
	}
}

type Server struct {
	upgrader websocket.Upgrader
	verifier CredentialVerifier
	relay    *relay.Relay
	opts     Options

	mu    sync.Mutex
	conns map[*wsConn]struct{}
	wg    sync.WaitGroup
}

func NewServer(verifier CredentialVerifier, rl *relay.Relay, opts Options) *Server {
	opts.setDefaults()
	return &Server{
		verifier: verifier,
		relay:    rl,
		opts:     opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
		conns: make(map[*wsConn]struct{}),
	}
}

// HandleWS: GET /ws?token=...
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID, err := s.verifier.Verify(tokenFromRequest(r))
	if err != nil {
		metrics.HandshakesTotal.WithLabelValues("unauthorized").Inc()
		slog.Info("ws auth rejected", "remote", r.RemoteAddr, "err", err)
		httputil.Error(r.Context(), w, http.StatusUnauthorized, "authentication error", nil)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		metrics.HandshakesTotal.WithLabelValues("upgrade_failed").Inc()
		slog.Warn("ws upgrade failed", "user", userID, "err", err)
		return
	}

	c := newWsConn(conn, userID, s.opts.SendBuffer)
	if err := s.relay.Registry().Register(c, userID); err != nil {
		slog.Error("ws register failed", "conn", c.id, "user", userID, "err", err)
		_ = c.Close()
		return
	}
	metrics.HandshakesTotal.WithLabelValues("ok").Inc()

	if !s.track(c) {
		s.relay.Registry().Deregister(c)
		_ = c.Close()
		return
	}
	defer s.untrack(c)

	s.serve(r.Context(), c)
}

// serve: reader -> events -> eventLoop (порядок событий одного соединения сохраняется), writer отдельно.
func (s *Server) serve(ctx context.Context, c *wsConn) {
	log := slog.With("conn", c.id, "user", c.userID)
	log.Info("ws connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan inbound, s.opts.InboundBuffer)
	go s.writeLoop(c)
	go s.readLoop(c, events)

	for in := range events {
		s.dispatch(ctx, c, in)
	}

	s.relay.Registry().Deregister(c)
	if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Debug("ws close failed", "err", err)
	}
	log.Info("ws disconnected")
}

func (s *Server) readLoop(c *wsConn, events chan<- inbound) {
	defer close(events)

	deadline := 2 * s.opts.PingInterval
	c.conn.SetReadLimit(s.opts.MaxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(deadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				slog.Debug("ws read failed", "conn", c.id, "user", c.userID, "err", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(deadline))

		var in inbound
		if err := json.Unmarshal(data, &in); err != nil || in.Type == "" {
			in = inbound{err: fmt.Errorf("%w: malformed frame", domain.ErrInvalidPayload)}
		}

		select {
		case events <- in:
		case <-c.done():
			return
		}
	}
}

func (s *Server) writeLoop(c *wsConn) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case m := <-c.send:
			if err := c.write(m, s.opts.WriteTimeout); err != nil {
				slog.Debug("ws write failed", "conn", c.id, "user", c.userID, "err", err)
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteTimeout)); err != nil {
				_ = c.Close()
				return
			}
		case <-c.done():
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, c *wsConn, in inbound) {
	if in.err != nil {
		s.reportError(c, "", in.err)
		metrics.EventsTotal.WithLabelValues("malformed", errorCode(in.err)).Inc()
		return
	}

	var err error
	switch in.Type {
	case TypeJoinGroup:
		var groupID string
		if groupID, err = decodeGroupID(in.Payload); err == nil {
			err = s.relay.Join(c, groupID)
		}
	case TypeLeaveGroup:
		var groupID string
		if groupID, err = decodeGroupID(in.Payload); err == nil {
			err = s.relay.Leave(c, groupID)
		}
	case TypeSendMessage:
		var req relay.SendRequest
		if e := json.Unmarshal(in.Payload, &req); e != nil {
			err = fmt.Errorf("%w: %v", domain.ErrInvalidPayload, e)
		} else {
			_, err = s.relay.Send(ctx, c.userID, req)
		}
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownEvent, in.Type)
	}

	outcome := "ok"
	if err != nil {
		outcome = errorCode(err)
		s.reportError(c, in.Type, err)
	}
	metrics.EventsTotal.WithLabelValues(eventLabel(in.Type), outcome).Inc()
}

// reportError ошибка уходит только отправителю и не закрывает соединение.
func (s *Server) reportError(c *wsConn, event string, err error) {
	p := ErrorPayload{Code: errorCode(err), Message: clientMessage(err), Event: event}
	if e := c.enqueue(Message{Type: TypeError, Payload: p}); e != nil {
		slog.Debug("ws error report dropped", "conn", c.id, "user", c.userID, "err", e)
	}
}

// Shutdown отправляет CloseGoingAway всем соединениям и ждёт завершения их циклов.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	conns := make([]*wsConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = nil
	s.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown")
	for _, c := range conns {
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = c.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) track(c *wsConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c *wsConn) {
	s.mu.Lock()
	if s.conns != nil {
		delete(s.conns, c)
	}
	s.mu.Unlock()
	s.wg.Done()
}

// --- helpers ---

func tokenFromRequest(r *http.Request) string {
	q := r.URL.Query()
	if t := strings.TrimSpace(q.Get("token")); t != "" {
		return t
	}
	if t := strings.TrimSpace(q.Get("access_token")); t != "" {
		return t
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// decodeGroupID принимает "g1" или {"groupId":"g1"}.
func decodeGroupID(raw json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id, nil
	}
	var obj struct {
		GroupID string `json:"groupId"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("%w: group id must be a string", domain.ErrInvalidPayload)
	}
	return obj.GroupID, nil
}

func errorCode(err error) string {
	if errors.Is(err, ErrUnknownEvent) {
		return "unknown_event"
	}
	return domain.Code(err)
}

func clientMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidPayload), errors.Is(err, ErrUnknownEvent):
		return err.Error()
	case errors.Is(err, domain.ErrPersistence):
		return "message could not be saved"
	default:
		return "internal error"
	}
}

func eventLabel(t string) string {
	switch t {
	case TypeJoinGroup, TypeLeaveGroup, TypeSendMessage:
		return t
	default:
		return "unknown"
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}
