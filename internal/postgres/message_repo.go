package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/metrics"
	"github.com/cwrk-planet/chat-service/internal/pagination"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type MessageRepository struct {
	q querier
}

// NewMessageRepository принимает *pgxpool.Pool или pgx.Tx.
func NewMessageRepository(q querier) *MessageRepository {
	return &MessageRepository{q: q}
}

func (r *MessageRepository) Save(ctx context.Context, senderID, content string, target domain.Target) (*domain.Message, error) {
	defer observe("save", time.Now())

	row := r.q.QueryRow(ctx, queryInsertMessage,
		senderID, content, nullable(target.GroupID), nullable(target.RecipientID))

	m, err := scanMessage(row)
	if err != nil {
		return nil, mapPgError(err)
	}
	return m, nil
}

// GroupHistory история группы с курсорной пагинацией (created_at,id DESC).
func (r *MessageRepository) GroupHistory(ctx context.Context, groupID, after string, limit int) (pagination.Page[domain.Message], error) {
	return r.list(ctx, "group_history", queryGroupHistory, after, limit, groupID)
}

// Conversation личная переписка двух пользователей.
func (r *MessageRepository) Conversation(ctx context.Context, userID, peerID, after string, limit int) (pagination.Page[domain.Message], error) {
	return r.list(ctx, "conversation", queryConversation, after, limit, userID, peerID)
}

// DirectForUser все личные сообщения, где пользователь отправитель или получатель.
func (r *MessageRepository) DirectForUser(ctx context.Context, userID, after string, limit int) (pagination.Page[domain.Message], error) {
	return r.list(ctx, "direct_for_user", queryDirectForUser, after, limit, userID)
}

func (r *MessageRepository) list(ctx context.Context, op, sql, after string, limit int, args ...any) (pagination.Page[domain.Message], error) {
	defer observe(op, time.Now())

	limit = pagination.ClampLimit(limit)
	cur, err := pagination.DecodeCursor(after)
	if err != nil {
		return pagination.Page[domain.Message]{}, err
	}

	var createdAt, id any
	if cur != nil {
		// id колонки uuid: чужой id из курсора иначе падает в БД с 22P02.
		if _, err := uuid.Parse(cur.ID); err != nil {
			return pagination.Page[domain.Message]{}, fmt.Errorf("%w: id is not a uuid", pagination.ErrInvalidCursor)
		}
		createdAt, id = cur.CreatedAt, cur.ID
	}
	params := append([]any{createdAt, id}, args...)
	params = append(params, limit)

	rows, err := r.q.Query(ctx, sql, params...)
	if err != nil {
		return pagination.Page[domain.Message]{}, fmt.Errorf("%s: %w", op, mapPgError(err))
	}
	defer rows.Close()

	out := make([]domain.Message, 0, limit)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return pagination.Page[domain.Message]{}, fmt.Errorf("%s scan: %w", op, err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return pagination.Page[domain.Message]{}, fmt.Errorf("%s rows: %w", op, mapPgError(err))
	}

	page := pagination.Page[domain.Message]{Items: out}
	if len(out) == limit {
		last := out[len(out)-1]
		page.NextCursor = pagination.Next(true, last.CreatedAt, last.ID)
	}
	return page, nil
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var (
		m         domain.Message
		groupID   *string
		recipient *string
	)
	if err := row.Scan(&m.ID, &m.SenderID, &m.Content, &groupID, &recipient, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.GroupID = deref(groupID)
	m.RecipientID = deref(recipient)
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}

func observe(op string, start time.Time) {
	metrics.StoreLatency.WithLabelValues("postgres", op).Observe(time.Since(start).Seconds())
}
