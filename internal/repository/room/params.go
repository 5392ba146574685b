package room

import (
	"time"

	"github.com/sharetube/listenroom/internal/domain"
)

type CreateRoomParams struct {
	RoomId       string
	Name         string
	OwnerId      string
	Visibility   Visibility
	PasswordHash string
	Description  string
	Color        string
	CreatedAt    time.Time
}

type UpdateRoomParams struct {
	RoomId       string
	Name         *string
	Visibility   *Visibility
	PasswordHash *string
	Description  *string
	Color        *string
}

type ClaimOwnerParams struct {
	RoomId   string
	MemberId string
}

type TouchRoomParams struct {
	RoomId string
	At     time.Time
}

type AddHistoryEntryParams struct {
	RoomId string
	Entry  domain.HistoryEntry
	Limit  int
}

type SetHistoryParams struct {
	RoomId  string
	Entries []domain.HistoryEntry
}

type SetSettingsParams struct {
	RoomId   string
	Settings domain.Settings
}

type SetBannedSongParams struct {
	RoomId string
	Song   domain.BannedSong
}

type RemoveBannedSongParams struct {
	RoomId  string
	VideoId string
}

type KnownSongParams struct {
	RoomId  string
	VideoId string
}

type SetQueueSnapshotParams struct {
	RoomId   string
	Snapshot QueueSnapshot
}

type SetVideoParams struct {
	VideoId string
	Video   Video
}

type SetSearchResultParams struct {
	Query   string
	VideoId string
}
