package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/pagination"
	"github.com/cwrk-planet/chat-service/internal/relay"

	"github.com/stretchr/testify/require"
)

type stubVerifier map[string]string

func (v stubVerifier) Verify(token string) (string, error) {
	if id, ok := v[token]; ok {
		return id, nil
	}
	return "", domain.ErrAuth
}

type stubMessages struct {
	sendErr    error
	historyErr error

	lastUser  string
	lastPeer  string
	lastGroup string
	lastAfter string
	lastLimit int
	sent      []relay.SendRequest
}

func (s *stubMessages) Send(_ context.Context, senderID string, in relay.SendRequest) (*domain.Message, error) {
	s.lastUser = senderID
	s.sent = append(s.sent, in)
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	return &domain.Message{
		ID: "m1", SenderID: senderID, Content: in.Content,
		GroupID: in.GroupID, RecipientID: in.RecipientID,
		CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}, nil
}

func (s *stubMessages) page(userID, after string, limit int) (pagination.Page[domain.Message], error) {
	s.lastUser, s.lastAfter, s.lastLimit = userID, after, limit
	if s.historyErr != nil {
		return pagination.Page[domain.Message]{}, s.historyErr
	}
	return pagination.Page[domain.Message]{
		Items:      []domain.Message{{ID: "m2", SenderID: "bob", Content: "hi", RecipientID: userID}},
		NextCursor: "next",
	}, nil
}

func (s *stubMessages) GroupHistory(_ context.Context, userID, groupID, after string, limit int) (pagination.Page[domain.Message], error) {
	s.lastGroup = groupID
	return s.page(userID, after, limit)
}

func (s *stubMessages) Conversation(_ context.Context, userID, peerID, after string, limit int) (pagination.Page[domain.Message], error) {
	s.lastPeer = peerID
	return s.page(userID, after, limit)
}

func (s *stubMessages) DirectForUser(_ context.Context, userID, after string, limit int) (pagination.Page[domain.Message], error) {
	return s.page(userID, after, limit)
}

func newTestRouter(msgs MessageAPI, ready func(context.Context) error) http.Handler {
	return NewRouter(Deps{
		Handler:  NewHandler(msgs),
		WS:       func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) },
		Verifier: stubVerifier{"tok-alice": "alice"},
		Ready:    ready,
	})
}

func do(t *testing.T, h http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Message string         `json:"message"`
		Meta    map[string]any `json:"meta"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestRouter_RequiresBearer(t *testing.T) {
	h := newTestRouter(&stubMessages{}, nil)

	require.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/messages/direct", "", "").Code)
	require.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/messages/direct", "forged", "").Code)
}

func TestHandler_SendMessage(t *testing.T) {
	req := require.New(t)
	msgs := &stubMessages{}
	h := newTestRouter(msgs, nil)

	w := do(t, h, http.MethodPost, "/messages", "tok-alice", `{"groupId":"g1","content":"hello"}`)
	req.Equal(http.StatusCreated, w.Code)
	req.Equal("alice", msgs.lastUser)
	req.Equal([]relay.SendRequest{{GroupID: "g1", Content: "hello"}}, msgs.sent)

	var item MessageItem
	req.NoError(json.Unmarshal(decode(t, w).Data, &item))
	req.Equal("m1", item.ID)
	req.Equal("alice", item.SenderID)
	req.Equal("g1", item.GroupID)
}

func TestHandler_SendMessageErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"bad json", `{`, nil, http.StatusBadRequest, "invalid_payload"},
		{"invalid payload", `{"content":""}`, domain.ErrInvalidPayload, http.StatusBadRequest, "invalid_payload"},
		{"not a member", `{"groupId":"g1","content":"x"}`, domain.ErrNotGroupMember, http.StatusForbidden, "forbidden"},
		{"store down", `{"groupId":"g1","content":"x"}`, errors.Join(domain.ErrPersistence, errors.New("conn refused")), http.StatusServiceUnavailable, "persistence_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestRouter(&stubMessages{sendErr: tc.err}, nil)
			w := do(t, h, http.MethodPost, "/messages", "tok-alice", tc.body)
			require.Equal(t, tc.status, w.Code)
			env := decode(t, w)
			require.Equal(t, tc.code, env.Error.Meta["code"])
			require.NotContains(t, env.Error.Message, "conn refused")
		})
	}
}

func TestHandler_History(t *testing.T) {
	req := require.New(t)
	msgs := &stubMessages{}
	h := newTestRouter(msgs, nil)

	w := do(t, h, http.MethodGet, "/messages/group/g1?after=abc&limit=10", "tok-alice", "")
	req.Equal(http.StatusOK, w.Code)
	req.Equal("g1", msgs.lastGroup)
	req.Equal("alice", msgs.lastUser)
	req.Equal("abc", msgs.lastAfter)
	req.Equal(10, msgs.lastLimit)

	var resp HistoryResponse
	req.NoError(json.Unmarshal(decode(t, w).Data, &resp))
	req.Len(resp.Items, 1)
	req.Equal("next", resp.NextCursor)

	w = do(t, h, http.MethodGet, "/messages/direct/bob", "tok-alice", "")
	req.Equal(http.StatusOK, w.Code)
	req.Equal("bob", msgs.lastPeer)

	w = do(t, h, http.MethodGet, "/messages/direct", "tok-alice", "")
	req.Equal(http.StatusOK, w.Code)
	req.Equal(0, msgs.lastLimit)
}

func TestHandler_HistoryErrors(t *testing.T) {
	req := require.New(t)

	h := newTestRouter(&stubMessages{}, nil)
	req.Equal(http.StatusBadRequest, do(t, h, http.MethodGet, "/messages/direct?limit=ten", "tok-alice", "").Code)

	h = newTestRouter(&stubMessages{historyErr: pagination.ErrInvalidCursor}, nil)
	req.Equal(http.StatusBadRequest, do(t, h, http.MethodGet, "/messages/direct?after=zz", "tok-alice", "").Code)

	h = newTestRouter(&stubMessages{historyErr: domain.ErrNotGroupMember}, nil)
	req.Equal(http.StatusForbidden, do(t, h, http.MethodGet, "/messages/group/g9", "tok-alice", "").Code)

	h = newTestRouter(&stubMessages{historyErr: errors.New("boom")}, nil)
	req.Equal(http.StatusInternalServerError, do(t, h, http.MethodGet, "/messages/direct", "tok-alice", "").Code)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	req := require.New(t)

	h := newTestRouter(&stubMessages{}, func(context.Context) error { return nil })
	req.Equal(http.StatusOK, do(t, h, http.MethodGet, "/healthz", "", "").Code)
	req.Equal(http.StatusOK, do(t, h, http.MethodGet, "/readyz", "", "").Code)
	req.Equal(http.StatusOK, do(t, h, http.MethodGet, "/metrics", "", "").Code)

	w := do(t, h, http.MethodGet, "/ws", "", "")
	req.Equal(http.StatusTeapot, w.Code)
	req.NotEmpty(w.Header().Get("X-Request-ID"))

	h = newTestRouter(&stubMessages{}, func(context.Context) error { return errors.New("down") })
	req.Equal(http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/readyz", "", "").Code)
}
