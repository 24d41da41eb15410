package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/pagination"
	"github.com/cwrk-planet/chat-service/internal/relay"
	httpmw "github.com/cwrk-planet/chat-service/internal/transport/http/middleware"
	"github.com/cwrk-planet/chat-service/pkg/httputil"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 64 << 10

type MessageAPI interface {
	Send(ctx context.Context, senderID string, in relay.SendRequest) (*domain.Message, error)
	GroupHistory(ctx context.Context, userID, groupID, after string, limit int) (pagination.Page[domain.Message], error)
	Conversation(ctx context.Context, userID, peerID, after string, limit int) (pagination.Page[domain.Message], error)
	DirectForUser(ctx context.Context, userID, after string, limit int) (pagination.Page[domain.Message], error)
}

type Handler struct {
	messages MessageAPI
}

func NewHandler(messages MessageAPI) *Handler {
	return &Handler{messages: messages}
}

// POST /messages
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		httputil.Error(r.Context(), w, http.StatusBadRequest, "invalid json", map[string]any{"code": "invalid_payload"})
		return
	}

	msg, err := h.messages.Send(r.Context(), httpmw.UserIDFromCtx(r.Context()), relay.SendRequest{
		GroupID:     req.GroupID,
		RecipientID: req.RecipientID,
		Content:     req.Content,
	})
	if err != nil {
		httputil.Fail(r.Context(), w, "handler.SendMessage", err)
		return
	}

	httputil.Created(w, toItem(msg))
}

// GET /messages/direct?after=&limit=
func (h *Handler) ListDirect(w http.ResponseWriter, r *http.Request) {
	after, limit, ok := pageParams(w, r)
	if !ok {
		return
	}
	page, err := h.messages.DirectForUser(r.Context(), httpmw.UserIDFromCtx(r.Context()), after, limit)
	if err != nil {
		httputil.Fail(r.Context(), w, "handler.ListDirect", cursorAware(err))
		return
	}
	httputil.OK(w, toHistory(page.Items, page.NextCursor))
}

// GET /messages/direct/{userId}?after=&limit=
func (h *Handler) Conversation(w http.ResponseWriter, r *http.Request) {
	after, limit, ok := pageParams(w, r)
	if !ok {
		return
	}
	peerID := chi.URLParam(r, "userId")
	page, err := h.messages.Conversation(r.Context(), httpmw.UserIDFromCtx(r.Context()), peerID, after, limit)
	if err != nil {
		httputil.Fail(r.Context(), w, "handler.Conversation", cursorAware(err))
		return
	}
	httputil.OK(w, toHistory(page.Items, page.NextCursor))
}

// GET /messages/group/{groupId}?after=&limit=
func (h *Handler) GroupHistory(w http.ResponseWriter, r *http.Request) {
	after, limit, ok := pageParams(w, r)
	if !ok {
		return
	}
	groupID := chi.URLParam(r, "groupId")
	page, err := h.messages.GroupHistory(r.Context(), httpmw.UserIDFromCtx(r.Context()), groupID, after, limit)
	if err != nil {
		httputil.Fail(r.Context(), w, "handler.GroupHistory", cursorAware(err))
		return
	}
	httputil.OK(w, toHistory(page.Items, page.NextCursor))
}

func pageParams(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	q := r.URL.Query()
	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			httputil.Error(r.Context(), w, http.StatusBadRequest, "limit must be an integer", map[string]any{"code": "invalid_payload"})
			return "", 0, false
		}
		limit = n
	}
	return q.Get("after"), limit, true
}

// битый курсор: ошибка клиента
func cursorAware(err error) error {
	if errors.Is(err, pagination.ErrInvalidCursor) && !errors.Is(err, domain.ErrInvalidPayload) {
		return fmt.Errorf("%w: %w", domain.ErrInvalidPayload, err)
	}
	return err
}
