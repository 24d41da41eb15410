package relay

import "github.com/cwrk-planet/chat-service/internal/domain"

// Conn живое аутентифицированное соединение. Реализации должны быть
// сравнимыми (указатели): Registry использует их как ключи map.
type Conn interface {
	ID() string
	UserID() string
	// Deliver ставит событие в очередь отправки и не блокируется;
	// ошибка означает, что этому соединению событие не доставлено.
	Deliver(evt NewMessage) error
}

// NewMessage полезная нагрузка исходящего события "new message".
type NewMessage struct {
	Message *domain.Message `json:"message"`
	Sender  SenderRef       `json:"sender"`
}

type SenderRef struct {
	ID string `json:"id"`
}
