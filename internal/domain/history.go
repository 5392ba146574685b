package domain

import "time"

type HistoryEntry struct {
	Track
	PlayedAt int64 `json:"played_at"`
}

func NewHistoryEntry(t Track, playedAt time.Time) HistoryEntry {
	return HistoryEntry{
		Track:    t.Clone(),
		PlayedAt: playedAt.UnixMilli(),
	}
}

// RecentTitles returns the normalized titles of the last n history entries.
func RecentTitles(history []HistoryEntry, n int) map[string]struct{} {
	titles := make(map[string]struct{}, n)
	for i := len(history) - 1; i >= 0 && i >= len(history)-n; i-- {
		titles[NormalizeTitle(history[i].Title)] = struct{}{}
	}
	return titles
}

// RemoveVideo drops every history entry for videoId and reports how many were removed.
func RemoveVideo(history []HistoryEntry, videoIds map[string]struct{}) ([]HistoryEntry, int) {
	kept := history[:0]
	removed := 0
	for _, e := range history {
		if _, ok := videoIds[e.VideoId]; ok {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	clear(history[len(kept):])
	return kept, removed
}
