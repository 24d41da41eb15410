package domain

import "errors"

var (
	// ErrAuth отклоняет подключение на этапе handshake.
	ErrAuth = errors.New("authentication error")
	// ErrInvalidPayload: событие некорректно, соединение остаётся открытым.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrPersistence: сообщение не сохранено, доставка не выполнялась.
	ErrPersistence = errors.New("persistence error")
	// ErrDelivery: не удалось доставить одному получателю; отправителю не сообщается.
	ErrDelivery = errors.New("delivery error")

	ErrNotGroupMember = errors.New("not a member of this group")
)

// Code возвращает машинно-читаемый код ошибки для клиента.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuth):
		return "auth_error"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, ErrNotGroupMember):
		return "forbidden"
	case errors.Is(err, ErrPersistence):
		return "persistence_error"
	case errors.Is(err, ErrDelivery):
		return "delivery_error"
	default:
		return "internal"
	}
}
