package http

import (
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type MessageItem struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender"`
	Content     string    `json:"content"`
	GroupID     string    `json:"groupId,omitempty"`
	RecipientID string    `json:"recipientId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type HistoryResponse struct {
	Items      []MessageItem `json:"items"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

type SendMessageRequest struct {
	GroupID     string `json:"groupId,omitempty"`
	RecipientID string `json:"recipientId,omitempty"`
	Content     string `json:"content"`
}

func toItem(m *domain.Message) MessageItem {
	return MessageItem{
		ID:          m.ID,
		SenderID:    m.SenderID,
		Content:     m.Content,
		GroupID:     m.GroupID,
		RecipientID: m.RecipientID,
		CreatedAt:   m.CreatedAt.Truncate(time.Millisecond),
	}
}

func toHistory(items []domain.Message, next string) HistoryResponse {
	resp := HistoryResponse{Items: make([]MessageItem, 0, len(items)), NextCursor: next}
	for i := range items {
		resp.Items = append(resp.Items, toItem(&items[i]))
	}
	return resp
}
