package domain

import (
	"maps"
	"time"

	"golang.org/x/exp/slices"
)

// DefaultTrackDuration is used by the playback clock when a track's duration is unknown.
const DefaultTrackDuration = 200

// State is the mutable aggregate of one room. Queue[0] is the playing (or
// about to play) track.
type State struct {
	Queue              []Track               `json:"queue"`
	History            []HistoryEntry        `json:"history"`
	CurrentTrack       *Track                `json:"current_track"`
	IsPlaying          bool                  `json:"is_playing"`
	Progress           int                   `json:"progress"`
	Settings           Settings              `json:"settings"`
	PendingSuggestions []PendingSuggestion   `json:"pending_suggestions"`
	BannedSongs        map[string]BannedSong `json:"banned_songs"`
	IsRefilling        bool                  `json:"is_refilling"`
}

func NewState(settings Settings) State {
	return State{
		Queue:              make([]Track, 0),
		History:            make([]HistoryEntry, 0),
		Settings:           settings,
		PendingSuggestions: make([]PendingSuggestion, 0),
		BannedSongs:        make(map[string]BannedSong),
	}
}

func (s *State) Head() *Track {
	if len(s.Queue) == 0 {
		return nil
	}
	return &s.Queue[0]
}

func (s *State) TrackIndex(trackId string) int {
	return slices.IndexFunc(s.Queue, func(t Track) bool { return t.Id == trackId })
}

func (s *State) InQueue(videoId string) bool {
	return slices.ContainsFunc(s.Queue, func(t Track) bool { return t.VideoId == videoId })
}

// QueueTitles returns the normalized titles of every queued track.
func (s *State) QueueTitles() map[string]struct{} {
	titles := make(map[string]struct{}, len(s.Queue))
	for _, t := range s.Queue {
		titles[NormalizeTitle(t.Title)] = struct{}{}
	}
	return titles
}

func (s *State) IsBanned(videoId string) bool {
	_, ok := s.BannedSongs[videoId]
	return ok
}

// IsPending reports whether videoId is waiting for review.
func (s *State) IsPending(videoId string) bool {
	for _, p := range s.PendingSuggestions {
		if p.Media.VideoId == videoId {
			return true
		}
	}
	return false
}

// Append adds t to the end of the queue and re-ranks the upcoming tracks.
// It reports whether t became the head and started playing.
func (s *State) Append(t Track, now time.Time) bool {
	s.Queue = append(s.Queue, t)
	if len(s.Queue) == 1 {
		s.startHead(now)
		return true
	}
	RankUpcoming(s.Queue)
	return false
}

// Advance archives the head into history and starts the next track.
func (s *State) Advance(now time.Time) (HistoryEntry, bool) {
	if len(s.Queue) == 0 {
		return HistoryEntry{}, false
	}

	entry := NewHistoryEntry(s.Queue[0], now)
	s.History = append(s.History, entry)
	s.Queue = slices.Delete(s.Queue, 0, 1)
	s.startHead(now)

	return entry, true
}

// Remove deletes a track by id. Removing the head promotes the next track and
// keeps the current play/pause state.
func (s *State) Remove(trackId string, now time.Time) (Track, bool) {
	idx := s.TrackIndex(trackId)
	if idx == -1 {
		return Track{}, false
	}

	removed := s.Queue[idx]
	s.Queue = slices.Delete(s.Queue, idx, idx+1)
	if idx == 0 {
		wasPlaying := s.IsPlaying
		s.startHead(now)
		if !wasPlaying && len(s.Queue) > 0 {
			s.Queue[0].StartedAt = nil
			s.IsPlaying = false
		}
	}

	return removed, true
}

// startHead resets the playhead to the beginning of the queue head.
func (s *State) startHead(now time.Time) {
	s.Progress = 0
	if len(s.Queue) == 0 {
		s.IsPlaying = false
		return
	}

	startedAt := now.UnixMilli()
	s.Queue[0].StartedAt = &startedAt
	s.IsPlaying = true
}

type TickResult int

const (
	TickIdle TickResult = iota
	TickProgressed
	TickAdvanced
)

// Tick derives progress from the head's start instant. A head without a start
// instant is anchored so that the current progress is preserved.
func (s *State) Tick(now time.Time) (TickResult, HistoryEntry) {
	head := s.Head()
	if !s.IsPlaying || head == nil {
		return TickIdle, HistoryEntry{}
	}

	nowMs := now.UnixMilli()
	if head.StartedAt == nil {
		startedAt := nowMs - int64(s.Progress)*1000
		head.StartedAt = &startedAt
	}

	elapsed := ElapsedSeconds(*head.StartedAt, nowMs)
	if elapsed >= head.EffectiveDuration() {
		entry, _ := s.Advance(now)
		return TickAdvanced, entry
	}

	if elapsed != s.Progress {
		s.Progress = elapsed
		return TickProgressed, HistoryEntry{}
	}

	return TickIdle, HistoryEntry{}
}

func ElapsedSeconds(startedAt, now int64) int {
	if now <= startedAt {
		return 0
	}
	return int((now - startedAt) / 1000)
}

func (s *State) Pause(now time.Time) bool {
	head := s.Head()
	if !s.IsPlaying || head == nil {
		return false
	}

	if head.StartedAt != nil {
		s.Progress = min(ElapsedSeconds(*head.StartedAt, now.UnixMilli()), head.EffectiveDuration())
	}
	head.StartedAt = nil
	s.IsPlaying = false
	return true
}

func (s *State) Resume(now time.Time) bool {
	head := s.Head()
	if s.IsPlaying || head == nil {
		return false
	}

	startedAt := now.UnixMilli() - int64(s.Progress)*1000
	head.StartedAt = &startedAt
	s.IsPlaying = true
	return true
}

// Seek moves the playhead so that the next tick reports seconds immediately.
func (s *State) Seek(now time.Time, seconds int) bool {
	head := s.Head()
	if head == nil {
		return false
	}

	seconds = max(0, min(seconds, head.EffectiveDuration()))
	s.Progress = seconds
	if s.IsPlaying {
		startedAt := now.UnixMilli() - int64(seconds)*1000
		head.StartedAt = &startedAt
	} else {
		head.StartedAt = nil
	}
	return true
}

func (s *State) SetHeadDuration(seconds int) bool {
	head := s.Head()
	if head == nil || seconds < 0 || head.Duration == seconds {
		return false
	}
	head.Duration = seconds
	return true
}

// TrimHistory keeps only the newest limit entries in memory.
func (s *State) TrimHistory(limit int) {
	if limit <= 0 || len(s.History) <= limit {
		return
	}
	s.History = slices.Clone(s.History[len(s.History)-limit:])
}

// Snapshot returns a deep copy safe to hand to other goroutines. Only the
// newest historyLimit history entries are included.
func (s *State) Snapshot(historyLimit int) State {
	out := State{
		Queue:              make([]Track, len(s.Queue)),
		IsPlaying:          s.IsPlaying,
		Progress:           s.Progress,
		Settings:           s.Settings,
		PendingSuggestions: slices.Clone(s.PendingSuggestions),
		BannedSongs:        maps.Clone(s.BannedSongs),
		IsRefilling:        s.IsRefilling,
	}
	for i, t := range s.Queue {
		out.Queue[i] = t.Clone()
	}
	if len(out.Queue) > 0 {
		current := out.Queue[0].Clone()
		out.CurrentTrack = &current
	}

	history := s.History
	if historyLimit > 0 && len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	out.History = make([]HistoryEntry, len(history))
	for i, e := range history {
		out.History[i] = HistoryEntry{Track: e.Track.Clone(), PlayedAt: e.PlayedAt}
	}

	if out.PendingSuggestions == nil {
		out.PendingSuggestions = make([]PendingSuggestion, 0)
	}
	if out.BannedSongs == nil {
		out.BannedSongs = make(map[string]BannedSong)
	}

	return out
}
