package room

import (
	"context"

	"github.com/sharetube/listenroom/internal/domain"
)

// startRefill picks candidates on the room goroutine and verifies them in the
// background. The room stays usable while the availability check runs.
func (s *service) startRefill(r *roomActor) {
	candidates := domain.SelectRefillCandidates(&r.state, r.rnd)
	if len(candidates) == 0 {
		s.metrics.RefillRuns.WithLabelValues("no_candidates").Inc()
		return
	}

	r.state.IsRefilling = true
	go s.runRefill(r, candidates)
}

func (s *service) runRefill(r *roomActor, candidates []domain.Track) {
	ctx, cancel := context.WithTimeout(r.ctx, refillTimeout)
	defer cancel()

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.VideoId
	}

	verdicts, err := s.resolver.CheckAvailability(ctx, ids)
	if err != nil {
		s.logger.WarnContext(ctx, "refill availability check failed", "room_id", r.id, "checked", len(verdicts), "error", err)
	}

	err = r.exec(context.Background(), func() error {
		s.commitRefill(r, candidates, verdicts)
		return nil
	})
	if err != nil {
		s.logger.DebugContext(ctx, "refill discarded", "room_id", r.id, "error", err)
	}
}

// commitRefill purges content confirmed unavailable and queues content
// confirmed available. Content without a verdict is left untouched.
func (s *service) commitRefill(r *roomActor, candidates []domain.Track, verdicts map[string]bool) {
	defer func() {
		r.state.IsRefilling = false
		s.broadcastState(r)
	}()

	unavailable := make(map[string]struct{})
	for id, ok := range verdicts {
		if !ok {
			unavailable[id] = struct{}{}
		}
	}
	if len(unavailable) > 0 {
		history, removed := domain.RemoveVideo(r.state.History, unavailable)
		r.state.History = history
		if removed > 0 {
			s.persistHistory(r.ctx, r)
		}
	}

	added := 0
	limit := r.state.Settings.MaxQueueSize
	for _, c := range candidates {
		if !verdicts[c.VideoId] {
			continue
		}
		if r.state.InQueue(c.VideoId) || r.state.IsBanned(c.VideoId) {
			continue
		}
		if limit > 0 && len(r.state.Queue) >= limit {
			break
		}

		r.state.Append(domain.CloneForRefill(c), s.now())
		added++
	}

	outcome := "filled"
	switch {
	case added == 0 && len(verdicts) < len(candidates):
		outcome = "upstream_error"
	case added == 0:
		outcome = "nothing_available"
	}
	s.metrics.RefillRuns.WithLabelValues(outcome).Inc()
	s.logger.Info("refill finished", "room_id", r.id, "added", added, "purged", len(unavailable))
}
