//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks

package relay

import (
	"context"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

// MessageStore сохраняет сообщение и возвращает его с id и created_at.
type MessageStore interface {
	Save(ctx context.Context, senderID, content string, target domain.Target) (*domain.Message, error)
}
