package domain

import "math/rand/v2"

const (
	// MinRefillHistory is how many history entries a room needs before it refills itself.
	MinRefillHistory = 5
	// UnlimitedRefillTarget is the fill size used when the queue has no capacity limit.
	UnlimitedRefillTarget = 25
	// AutoRefillSuggester is recorded as SuggestedBy on refilled tracks.
	AutoRefillSuggester = "autorefill"
)

func RefillTarget(maxQueueSize int) int {
	if maxQueueSize <= 0 {
		return UnlimitedRefillTarget
	}
	return maxQueueSize / 2
}

// CanRefill reports whether an automatic refill should start now.
func (s *State) CanRefill() bool {
	return s.Settings.AutoRefill &&
		!s.IsRefilling &&
		len(s.Queue) == 0 &&
		len(s.History) >= MinRefillHistory
}

// SelectRefillCandidates picks history entries to re-queue. The pool is the
// history de-duplicated by video id in random order. A candidate is skipped
// when it is too long, its title is in the cooldown window, its video is
// already queued or banned, or an accepted candidate has the same title.
func SelectRefillCandidates(state *State, rnd *rand.Rand) []Track {
	if len(state.History) < MinRefillHistory {
		return nil
	}

	seen := make(map[string]struct{}, len(state.History))
	pool := make([]Track, 0, len(state.History))
	for _, e := range state.History {
		if _, ok := seen[e.VideoId]; ok {
			continue
		}
		seen[e.VideoId] = struct{}{}
		pool = append(pool, e.Track)
	}
	rnd.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	settings := state.Settings
	cooldown := RecentTitles(state.History, settings.DuplicateCooldown)
	target := RefillTarget(settings.MaxQueueSize)
	chosenTitles := make(map[string]struct{}, target)
	candidates := make([]Track, 0, target)
	for _, t := range pool {
		if len(candidates) >= target {
			break
		}
		if settings.MaxDuration > 0 && t.Duration > settings.MaxDuration {
			continue
		}
		title := NormalizeTitle(t.Title)
		if _, ok := cooldown[title]; ok {
			continue
		}
		if state.InQueue(t.VideoId) || state.IsBanned(t.VideoId) {
			continue
		}
		if _, ok := chosenTitles[title]; ok {
			continue
		}
		chosenTitles[title] = struct{}{}
		candidates = append(candidates, t)
	}

	return candidates
}

// CloneForRefill makes a fresh queue insertion of a previously played track.
func CloneForRefill(t Track) Track {
	media := t.Media()
	return NewTrack(media, AutoRefillSuggester, false)
}
