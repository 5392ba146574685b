package domain

import "golang.org/x/exp/slices"

// RankUpcoming reorders everything after the queue head: owner-priority tracks
// first, then by score descending. Equal tracks keep their insertion order.
func RankUpcoming(queue []Track) {
	if len(queue) < 3 {
		return
	}
	slices.SortStableFunc(queue[1:], compareUpcoming)
}

func compareUpcoming(a, b Track) int {
	if a.IsOwnerPriority != b.IsOwnerPriority {
		if a.IsOwnerPriority {
			return -1
		}
		return 1
	}
	return b.Score - a.Score
}

// WorstEvictable returns the index of the lowest negative-score upcoming track,
// the earliest one on ties, or -1 when no upcoming track has a negative score.
func WorstEvictable(queue []Track) int {
	idx := -1
	for i := 1; i < len(queue); i++ {
		if queue[i].Score >= 0 {
			continue
		}
		if idx == -1 || queue[i].Score < queue[idx].Score {
			idx = i
		}
	}
	return idx
}
