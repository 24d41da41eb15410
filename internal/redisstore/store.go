package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/metrics"
	"github.com/cwrk-planet/chat-service/internal/pagination"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

// overfetch запас пачки на сообщения с тем же score, что и у курсора.
const overfetch = 32

// Store хранит сообщения в sorted set'ах: score = created_at в миллисекундах.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func New(ctx context.Context, redisURL string, ttl time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewWithClient(client, ttl), nil
}

func NewWithClient(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl, now: time.Now}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func groupKey(groupID string) string {
	return fmt.Sprintf("chat:group:%s:messages", groupID)
}

// conversationKey не зависит от порядка участников.
func conversationKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("chat:direct:%s:%s:messages", a, b)
}

func userDirectKey(userID string) string {
	return fmt.Sprintf("chat:user:%s:direct", userID)
}

func (s *Store) Save(ctx context.Context, senderID, content string, target domain.Target) (*domain.Message, error) {
	defer observe("save", time.Now())

	if err := target.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	msg := &domain.Message{
		ID:          ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		SenderID:    senderID,
		Content:     content,
		GroupID:     target.GroupID,
		RecipientID: target.RecipientID,
		CreatedAt:   now,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	z := redis.Z{Score: float64(now.UnixMilli()), Member: string(data)}
	keys := keysFor(msg)

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, k := range keys {
			p.ZAdd(ctx, k, z)
			if s.ttl > 0 {
				p.Expire(ctx, k, s.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis save: %w", err)
	}
	return msg, nil
}

func keysFor(m *domain.Message) []string {
	if m.GroupID != "" {
		return []string{groupKey(m.GroupID)}
	}
	keys := []string{
		conversationKey(m.SenderID, m.RecipientID),
		userDirectKey(m.SenderID),
	}
	if m.RecipientID != m.SenderID {
		keys = append(keys, userDirectKey(m.RecipientID))
	}
	return keys
}

func (s *Store) GroupHistory(ctx context.Context, groupID, after string, limit int) (pagination.Page[domain.Message], error) {
	return s.list(ctx, "group_history", groupKey(groupID), after, limit)
}

func (s *Store) Conversation(ctx context.Context, userID, peerID, after string, limit int) (pagination.Page[domain.Message], error) {
	return s.list(ctx, "conversation", conversationKey(userID, peerID), after, limit)
}

func (s *Store) DirectForUser(ctx context.Context, userID, after string, limit int) (pagination.Page[domain.Message], error) {
	return s.list(ctx, "direct_for_user", userDirectKey(userID), after, limit)
}

func (s *Store) list(ctx context.Context, op, key, after string, limit int) (pagination.Page[domain.Message], error) {
	defer observe(op, time.Now())

	limit = pagination.ClampLimit(limit)
	cur, err := pagination.DecodeCursor(after)
	if err != nil {
		return pagination.Page[domain.Message]{}, err
	}

	maxScore := "+inf"
	if cur != nil {
		maxScore = strconv.FormatInt(cur.CreatedAt.UnixMilli(), 10)
	}

	// newest first
	fetch := func(ctx context.Context, offset, count int64) ([]string, error) {
		return s.client.ZRevRangeByScore(ctx, key, &redis.ZRangeBy{
			Min:    "-inf",
			Max:    maxScore,
			Offset: offset,
			Count:  count,
		}).Result()
	}

	page, err := collectPage(ctx, fetch, cur, limit)
	if err != nil {
		return pagination.Page[domain.Message]{}, fmt.Errorf("%s: %w", op, err)
	}
	return page, nil
}

type fetchFunc func(ctx context.Context, offset, count int64) ([]string, error)

// collectPage дочитывает пачками, пока страница не заполнится или set не кончится:
// в одной миллисекунде с курсором может лежать больше сообщений, чем влезает в пачку.
func collectPage(ctx context.Context, fetch fetchFunc, cur *pagination.Cursor, limit int) (pagination.Page[domain.Message], error) {
	batch := int64(limit + overfetch)
	out := make([]domain.Message, 0, limit)

	for offset := int64(0); ; offset += batch {
		results, err := fetch(ctx, offset, batch)
		if err != nil {
			return pagination.Page[domain.Message]{}, err
		}
		out = appendDecoded(out, results, cur, limit)
		if len(out) == limit || int64(len(results)) < batch {
			break
		}
	}

	page := pagination.Page[domain.Message]{Items: out}
	if len(out) == limit {
		last := out[len(out)-1]
		page.NextCursor = pagination.Next(true, last.CreatedAt, last.ID)
	}
	return page, nil
}

func appendDecoded(out []domain.Message, results []string, cur *pagination.Cursor, limit int) []domain.Message {
	for _, data := range results {
		if len(out) == limit {
			break
		}
		var m domain.Message
		if err := json.Unmarshal([]byte(data), &m); err != nil {
			continue
		}
		if !cur.Before(m.CreatedAt, m.ID) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func observe(op string, start time.Time) {
	metrics.StoreLatency.WithLabelValues("redis", op).Observe(time.Since(start).Seconds())
}
