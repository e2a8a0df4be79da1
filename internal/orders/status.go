package orders

import "fmt"

type Status string

const (
	StatusNew        Status = "new"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

var validStatus = map[Status]bool{
	StatusNew:        true,
	StatusProcessing: true,
	StatusDone:       true,
	StatusCancelled:  true,
}

// ParseStatus accepts only the four statuses an order can carry.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !validStatus[st] {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// Label is the human-facing name used in the ledger sheet.
func (s Status) Label() string {
	switch s {
	case StatusNew:
		return "Новая"
	case StatusProcessing:
		return "В работе"
	case StatusDone:
		return "Выполнена"
	case StatusCancelled:
		return "Отменена"
	}
	return string(s)
}
