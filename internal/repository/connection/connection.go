package connection

import "errors"

var (
	ErrNotFound      = errors.New("connection not found")
	ErrAlreadyExists = errors.New("connection already exists")
)

// Sender delivers serialized frames to one socket. Send must not block.
type Sender interface {
	Send(data []byte) error
	Close()
}

// Observer is one socket attached to a room. MemberId is empty for anonymous observers.
type Observer struct {
	Id       string
	RoomId   string
	MemberId string
	Sender   Sender
}
