package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/pagination"
	"github.com/cwrk-planet/chat-service/internal/relay"
)

type HistoryRepository interface {
	GroupHistory(ctx context.Context, groupID, after string, limit int) (pagination.Page[domain.Message], error)
	Conversation(ctx context.Context, userID, peerID, after string, limit int) (pagination.Page[domain.Message], error)
	DirectForUser(ctx context.Context, userID, after string, limit int) (pagination.Page[domain.Message], error)
}

// MembershipChecker источник членства в группах; nil: проверка выключена.
type MembershipChecker interface {
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
}

type Sender interface {
	Validate(in relay.SendRequest) error
	Send(ctx context.Context, senderID string, in relay.SendRequest) (*domain.Message, error)
}

// MessageService HTTP-сторона: история и отправка через тот же relay.
type MessageService struct {
	history HistoryRepository
	members MembershipChecker
	sender  Sender
}

func NewMessageService(history HistoryRepository, members MembershipChecker, sender Sender) *MessageService {
	return &MessageService{history: history, members: members, sender: sender}
}

// Send: сначала сам запрос (400), потом членство (403).
func (s *MessageService) Send(ctx context.Context, senderID string, in relay.SendRequest) (*domain.Message, error) {
	if err := s.sender.Validate(in); err != nil {
		return nil, err
	}
	if g := strings.TrimSpace(in.GroupID); g != "" && strings.TrimSpace(in.RecipientID) == "" {
		if err := s.ensureMember(ctx, g, senderID); err != nil {
			return nil, err
		}
	}
	return s.sender.Send(ctx, senderID, in)
}

func (s *MessageService) GroupHistory(ctx context.Context, userID, groupID, after string, limit int) (pagination.Page[domain.Message], error) {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return pagination.Page[domain.Message]{}, fmt.Errorf("%w: group id is required", domain.ErrInvalidPayload)
	}
	if err := s.ensureMember(ctx, groupID, userID); err != nil {
		return pagination.Page[domain.Message]{}, err
	}
	return s.history.GroupHistory(ctx, groupID, after, limit)
}

func (s *MessageService) Conversation(ctx context.Context, userID, peerID, after string, limit int) (pagination.Page[domain.Message], error) {
	peerID = strings.TrimSpace(peerID)
	if peerID == "" {
		return pagination.Page[domain.Message]{}, fmt.Errorf("%w: user id is required", domain.ErrInvalidPayload)
	}
	return s.history.Conversation(ctx, userID, peerID, after, limit)
}

func (s *MessageService) DirectForUser(ctx context.Context, userID, after string, limit int) (pagination.Page[domain.Message], error) {
	return s.history.DirectForUser(ctx, userID, after, limit)
}

func (s *MessageService) ensureMember(ctx context.Context, groupID, userID string) error {
	if s.members == nil {
		return nil
	}
	ok, err := s.members.IsMember(ctx, groupID, userID)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	if !ok {
		return domain.ErrNotGroupMember
	}
	return nil
}
