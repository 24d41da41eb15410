package ws

import "encoding/json"

// Типы событий WS
const (
	TypeJoinGroup   = "join group"   // payload: "groupId"
	TypeLeaveGroup  = "leave group"  // payload: "groupId"
	TypeSendMessage = "send message" // payload: relay.SendRequest
	TypeNewMessage  = "new message"  // payload: relay.NewMessage
	TypeError       = "error"        // payload: ErrorPayload, только отправителю
)

// Message исходящий кадр.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// inbound входящий кадр; payload разбирается по типу.
// err: кадр не разобрался, ответ уходит в общей очереди событий.
type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`

	err error
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}
