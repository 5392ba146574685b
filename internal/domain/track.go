package domain

import (
	"maps"

	"github.com/google/uuid"
)

type VoteType string

const (
	VoteUp   VoteType = "up"
	VoteDown VoteType = "down"
)

func (v VoteType) IsValid() bool {
	return v == VoteUp || v == VoteDown
}

func (v VoteType) weight() int {
	if v == VoteUp {
		return 1
	}
	return -1
}

// Track is one queue insertion of a piece of content. Id is unique per insertion,
// VideoId is the content identity and may repeat across tracks.
type Track struct {
	Id              string              `json:"id"`
	VideoId         string              `json:"video_id"`
	Title           string              `json:"title"`
	Artist          string              `json:"artist"`
	Thumbnail       string              `json:"thumbnail"`
	Duration        int                 `json:"duration"`
	Score           int                 `json:"score"`
	Voters          map[string]VoteType `json:"voters"`
	SuggestedBy     string              `json:"suggested_by"`
	IsOwnerPriority bool                `json:"is_owner_priority"`
	// StartedAt is the unix millisecond instant the track started playing.
	StartedAt *int64 `json:"started_at,omitempty"`
}

func NewTrack(media Media, suggestedBy string, ownerPriority bool) Track {
	return Track{
		Id:              uuid.NewString(),
		VideoId:         media.VideoId,
		Title:           media.Title,
		Artist:          media.Artist,
		Thumbnail:       media.Thumbnail,
		Duration:        max(media.Duration, 0),
		Voters:          make(map[string]VoteType),
		SuggestedBy:     suggestedBy,
		IsOwnerPriority: ownerPriority,
	}
}

// Vote records voterId's vote and returns the applied score delta.
// Repeating the current vote withdraws it.
func (t *Track) Vote(voterId string, vote VoteType) int {
	if t.Voters == nil {
		t.Voters = make(map[string]VoteType)
	}

	var delta int
	prev, voted := t.Voters[voterId]
	switch {
	case voted && prev == vote:
		delete(t.Voters, voterId)
		delta = -vote.weight()
	case voted:
		t.Voters[voterId] = vote
		delta = 2 * vote.weight()
	default:
		t.Voters[voterId] = vote
		delta = vote.weight()
	}

	t.Score += delta
	return delta
}

// NetVotes recomputes the score from the voter map.
func (t Track) NetVotes() int {
	net := 0
	for _, v := range t.Voters {
		net += v.weight()
	}
	return net
}

// EffectiveDuration is the duration the playback clock uses.
func (t Track) EffectiveDuration() int {
	if t.Duration <= 0 {
		return DefaultTrackDuration
	}
	return t.Duration
}

func (t Track) Media() Media {
	return Media{
		VideoId:    t.VideoId,
		Title:      t.Title,
		Artist:     t.Artist,
		Thumbnail:  t.Thumbnail,
		Duration:   t.Duration,
		Embeddable: true,
	}
}

func (t Track) Clone() Track {
	c := t
	c.Voters = maps.Clone(t.Voters)
	if c.Voters == nil {
		c.Voters = make(map[string]VoteType)
	}
	if t.StartedAt != nil {
		startedAt := *t.StartedAt
		c.StartedAt = &startedAt
	}
	return c
}
