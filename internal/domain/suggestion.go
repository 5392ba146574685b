package domain

import (
	"time"

	"github.com/google/uuid"
)

type PendingSuggestion struct {
	Id          string `json:"id"`
	Media       Media  `json:"media"`
	SuggestedBy string `json:"suggested_by"`
	SuggestedAt int64  `json:"suggested_at"`
}

func NewPendingSuggestion(media Media, suggestedBy string, now time.Time) PendingSuggestion {
	return PendingSuggestion{
		Id:          uuid.NewString(),
		Media:       media,
		SuggestedBy: suggestedBy,
		SuggestedAt: now.UnixMilli(),
	}
}

type BannedSong struct {
	VideoId   string `json:"video_id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Thumbnail string `json:"thumbnail"`
	BannedAt  int64  `json:"banned_at"`
}

func NewBannedSong(media Media, now time.Time) BannedSong {
	return BannedSong{
		VideoId:   media.VideoId,
		Title:     media.Title,
		Artist:    media.Artist,
		Thumbnail: media.Thumbnail,
		BannedAt:  now.UnixMilli(),
	}
}
