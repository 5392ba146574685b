package room

import (
	"context"
	"strings"

	"github.com/sharetube/listenroom/internal/domain"
	"github.com/sharetube/listenroom/internal/repository/room"
)

// persist writes through to the store. Failures are logged and never undo the
// in-memory change.
func (s *service) persist(ctx context.Context, what string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to persist "+what, "error", err)
	}
}

func (s *service) persistHistoryEntry(ctx context.Context, r *roomActor, entry domain.HistoryEntry) {
	r.state.TrimHistory(s.cfg.HistoryLimit)
	s.persist(ctx, "history entry", func(ctx context.Context) error {
		return s.roomRepo.AddHistoryEntry(ctx, &room.AddHistoryEntryParams{
			RoomId: r.id,
			Entry:  entry,
			Limit:  s.cfg.HistoryLimit,
		})
	})
}

func (s *service) persistHistory(ctx context.Context, r *roomActor) {
	entries := r.state.Snapshot(0).History
	s.persist(ctx, "history", func(ctx context.Context) error {
		return s.roomRepo.SetHistory(ctx, &room.SetHistoryParams{RoomId: r.id, Entries: entries})
	})
}

func normalizeQuery(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}
