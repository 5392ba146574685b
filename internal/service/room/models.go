package room

import (
	"github.com/sharetube/listenroom/internal/domain"
	"github.com/sharetube/listenroom/internal/repository/room"
)

const (
	FrameState       = "state"
	FrameJoined      = "joined"
	FrameRoomDeleted = "ROOM_DELETED"
	FrameError       = "error"
	FrameInfo        = "info"
	FrameSuccess     = "success"
)

// Frame is the envelope of every message pushed to observers.
type Frame struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

type StateView struct {
	RoomId  string `json:"room_id"`
	OwnerId string `json:"owner_id"`
	domain.State
}

type JoinedPayload struct {
	ObserverId string `json:"observer_id"`
	MemberId   string `json:"member_id"`
	IsOwner    bool   `json:"is_owner"`
}

type RoomInfo struct {
	Id          string          `json:"id"`
	Name        string          `json:"name"`
	OwnerId     string          `json:"owner_id"`
	Visibility  room.Visibility `json:"visibility"`
	HasPassword bool            `json:"has_password"`
	Description string          `json:"description"`
	Color       string          `json:"color"`
	CreatedAt   int64           `json:"created_at"`
	Observers   int             `json:"observers"`
}

func newRoomInfo(rm room.Room, observers int) RoomInfo {
	return RoomInfo{
		Id:          rm.Id,
		Name:        rm.Name,
		OwnerId:     rm.OwnerId,
		Visibility:  rm.Visibility,
		HasPassword: rm.PasswordHash != "",
		Description: rm.Description,
		Color:       rm.Color,
		CreatedAt:   rm.CreatedAt,
		Observers:   observers,
	}
}
