package room

import "github.com/sharetube/listenroom/internal/domain"

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

type Room struct {
	Id           string     `redis:"-"`
	Name         string     `redis:"name"`
	OwnerId      string     `redis:"owner_id"`
	Visibility   Visibility `redis:"visibility"`
	PasswordHash string     `redis:"password_hash"`
	Description  string     `redis:"description"`
	Color        string     `redis:"color"`
	CreatedAt    int64      `redis:"created_at"`
	LastActiveAt int64      `redis:"last_active_at"`
}

// Video is cached content metadata.
type Video struct {
	Title         string `redis:"title"`
	Artist        string `redis:"artist"`
	Thumbnail     string `redis:"thumbnail"`
	Duration      int    `redis:"duration"`
	Category      string `redis:"category"`
	AgeRestricted bool   `redis:"age_restricted"`
	LiveStream    bool   `redis:"live_stream"`
	Embeddable    bool   `redis:"embeddable"`
	FetchedAt     int64  `redis:"fetched_at"`
}

// QueueSnapshot is the volatile part of a room state saved when the room leaves memory.
type QueueSnapshot struct {
	Queue              []domain.Track             `json:"queue"`
	IsPlaying          bool                       `json:"is_playing"`
	Progress           int                        `json:"progress"`
	PendingSuggestions []domain.PendingSuggestion `json:"pending_suggestions"`
	SavedAt            int64                      `json:"saved_at"`
}
