package domain

import (
	"fmt"
	"time"
)

type MessageKind string

const (
	KindDirect MessageKind = "direct"
	KindGroup  MessageKind = "group"
)

// Target адресат сообщения: ровно одно из GroupID / RecipientID.
type Target struct {
	GroupID     string
	RecipientID string
}

func GroupTarget(groupID string) Target     { return Target{GroupID: groupID} }
func DirectTarget(recipientID string) Target { return Target{RecipientID: recipientID} }

func (t Target) Validate() error {
	switch {
	case t.GroupID != "" && t.RecipientID != "":
		return fmt.Errorf("%w: both groupId and recipientId are set", ErrInvalidPayload)
	case t.GroupID == "" && t.RecipientID == "":
		return fmt.Errorf("%w: groupId or recipientId is required", ErrInvalidPayload)
	}
	return nil
}

func (t Target) Kind() MessageKind {
	if t.GroupID != "" {
		return KindGroup
	}
	return KindDirect
}

// Message одна схема для real-time доставки и истории.
type Message struct {
	ID          string    `json:"id" db:"id"`
	SenderID    string    `json:"sender" db:"sender_id"`
	Content     string    `json:"content" db:"content"`
	GroupID     string    `json:"groupId,omitempty" db:"group_id"`
	RecipientID string    `json:"recipientId,omitempty" db:"recipient_id"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

func (m *Message) Target() Target {
	return Target{GroupID: m.GroupID, RecipientID: m.RecipientID}
}

func (m *Message) Kind() MessageKind {
	return m.Target().Kind()
}
