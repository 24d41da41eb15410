package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/metrics"
	"github.com/cwrk-planet/chat-service/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
)

var errNoMessage = errors.New("store returned no message")

// SendRequest полезная нагрузка входящего "send message" (и POST /messages).
type SendRequest struct {
	GroupID     string `json:"groupId,omitempty"`
	RecipientID string `json:"recipientId,omitempty"`
	Content     string `json:"content"`
}

type Options struct {
	MaxContentLength int           // в рунах; 0: без ограничения
	StoreTimeout     time.Duration // 0: только контекст вызывающего
	Logger           *slog.Logger
}

// Relay сохраняет сообщение и раздаёт его живым соединениям.
type Relay struct {
	registry *Registry
	store    MessageStore

	maxContent   int
	storeTimeout time.Duration
	log          *slog.Logger
}

func New(registry *Registry, store MessageStore, opts Options) *Relay {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Relay{
		registry:     registry,
		store:        store,
		maxContent:   opts.MaxContentLength,
		storeTimeout: opts.StoreTimeout,
		log:          log.With("component", "relay"),
	}
}

func (r *Relay) Registry() *Registry { return r.registry }

func (r *Relay) Join(c Conn, groupID string) error {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return fmt.Errorf("%w: group id is required", domain.ErrInvalidPayload)
	}
	if err := r.registry.Join(c, groupID); err != nil {
		return err
	}
	r.log.Debug("joined group", "conn", c.ID(), "user", c.UserID(), "group", groupID)
	return nil
}

func (r *Relay) Leave(c Conn, groupID string) error {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return fmt.Errorf("%w: group id is required", domain.ErrInvalidPayload)
	}
	r.registry.Leave(c, groupID)
	r.log.Debug("left group", "conn", c.ID(), "user", c.UserID(), "group", groupID)
	return nil
}

// Send: валидация -> сохранение -> расчёт получателей -> доставка.
// Ошибки валидации и хранилища возвращаются вызывающему; ошибки доставки нет.
func (r *Relay) Send(ctx context.Context, senderID string, in SendRequest) (msg *domain.Message, err error) {
	ctx, span := tracing.Start(ctx, "relay.Send", attribute.String("sender", senderID))
	defer func() { tracing.End(span, err) }()

	content, target, err := r.normalize(in)
	if err != nil {
		return nil, err
	}

	msg, err = r.save(ctx, senderID, content, target)
	if err != nil {
		r.log.Warn("message save failed", "sender", senderID, "kind", target.Kind(), "err", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	metrics.MessagesPersisted.WithLabelValues(string(target.Kind())).Inc()

	delivered := r.deliver(msg)
	r.log.Debug("message relayed",
		"id", msg.ID, "sender", senderID, "kind", target.Kind(), "delivered", delivered)

	return msg, nil
}

// Validate проверяет запрос теми же правилами, что и Send, ничего не сохраняя.
func (r *Relay) Validate(in SendRequest) error {
	_, _, err := r.normalize(in)
	return err
}

func (r *Relay) normalize(in SendRequest) (string, domain.Target, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return "", domain.Target{}, fmt.Errorf("%w: content is empty", domain.ErrInvalidPayload)
	}
	if r.maxContent > 0 && utf8.RuneCountInString(content) > r.maxContent {
		return "", domain.Target{}, fmt.Errorf("%w: content exceeds %d characters", domain.ErrInvalidPayload, r.maxContent)
	}
	target := domain.Target{
		GroupID:     strings.TrimSpace(in.GroupID),
		RecipientID: strings.TrimSpace(in.RecipientID),
	}
	if err := target.Validate(); err != nil {
		return "", domain.Target{}, err
	}
	return content, target, nil
}

func (r *Relay) save(ctx context.Context, senderID, content string, target domain.Target) (*domain.Message, error) {
	if r.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.storeTimeout)
		defer cancel()
	}
	msg, err := r.store.Save(ctx, senderID, content, target)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errNoMessage
	}
	return msg, nil
}

// deliver набор получателей считается в момент доставки, а не сохранения.
func (r *Relay) deliver(msg *domain.Message) int {
	var targets []Conn
	switch msg.Kind() {
	case domain.KindGroup:
		targets = r.registry.MembersOf(msg.GroupID)
	default:
		targets = r.registry.ConnectionsFor(msg.RecipientID)
	}

	evt := NewMessage{Message: msg, Sender: SenderRef{ID: msg.SenderID}}
	delivered := 0
	for _, c := range targets {
		if err := c.Deliver(evt); err != nil {
			metrics.Deliveries.WithLabelValues("dropped").Inc()
			r.log.Debug("delivery dropped", "conn", c.ID(), "user", c.UserID(), "msg", msg.ID, "err", err)
			continue
		}
		metrics.Deliveries.WithLabelValues("ok").Inc()
		delivered++
	}
	return delivered
}
