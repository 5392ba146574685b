package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sharetube/listenroom/internal/domain"
	"github.com/sharetube/listenroom/internal/repository/room"
	"github.com/sharetube/listenroom/pkg/ctxlogger"
)

const loadTimeout = 10 * time.Second

// withRoom runs fn against the live room, loading it first when needed. A
// room closed by eviction between lookup and execution is reloaded once.
func (s *service) withRoom(ctx context.Context, roomId string, fn func(r *roomActor) error) error {
	for attempt := 0; ; attempt++ {
		r, err := s.getRoom(ctx, roomId)
		if err != nil {
			return err
		}

		err = r.exec(ctx, func() error { return fn(r) })
		if errors.Is(err, errRoomClosed) && attempt == 0 {
			continue
		}
		if errors.Is(err, errRoomClosed) {
			return ErrRoomNotFound
		}

		return err
	}
}

func (s *service) getRoom(ctx context.Context, roomId string) (*roomActor, error) {
	s.mu.Lock()
	r, ok := s.rooms[roomId]
	if ok && r.closed() {
		delete(s.rooms, roomId)
		ok = false
	}
	s.mu.Unlock()
	if ok {
		return r, nil
	}

	ch := s.loads.DoChan(roomId, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		s.mu.Lock()
		if r, ok := s.rooms[roomId]; ok && !r.closed() {
			s.mu.Unlock()
			return r, nil
		}
		s.mu.Unlock()

		r, err := s.loadRoom(ctx, roomId)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.rooms[roomId] = r
		s.metrics.ActiveRooms.Set(float64(len(s.rooms)))
		s.mu.Unlock()

		go r.run(s.cfg.TickInterval, func() { s.tick(r) })

		return r, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*roomActor), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// loadRoom rebuilds a room from its persisted metadata, settings, history,
// library and queue snapshot.
func (s *service) loadRoom(ctx context.Context, roomId string) (*roomActor, error) {
	ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", roomId))

	meta, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	settings, err := s.roomRepo.GetSettings(ctx, roomId)
	if errors.Is(err, room.ErrSettingsNotFound) {
		settings = domain.DefaultSettings(s.cfg.MaxQueueSize)
		s.persist(ctx, "settings", func(ctx context.Context) error {
			return s.roomRepo.SetSettings(ctx, &room.SetSettingsParams{RoomId: roomId, Settings: settings})
		})
	} else if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	history, err := s.roomRepo.GetHistory(ctx, roomId, s.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}

	bans, err := s.roomRepo.GetBannedSongs(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to get banned songs: %w", err)
	}

	known, err := s.roomRepo.GetKnownSongs(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to get known songs: %w", err)
	}

	state := domain.NewState(settings)
	state.History = history
	state.BannedSongs = bans

	snapshot, err := s.roomRepo.GetQueueSnapshot(ctx, roomId)
	switch {
	case err == nil:
		restoreSnapshot(&state, snapshot)
	case errors.Is(err, room.ErrSnapshotNotFound):
	default:
		s.logger.WarnContext(ctx, "failed to restore queue snapshot", "error", err)
	}

	r := newRoomActor(roomId, state, s.newRand())
	r.ownerId = meta.OwnerId
	for _, videoId := range known {
		r.known[videoId] = struct{}{}
	}

	s.logger.InfoContext(ctx, "room loaded", "queue", len(state.Queue), "history", len(state.History))
	return r, nil
}

// restoreSnapshot puts a saved queue back. The head loses its start instant so
// the next tick re-anchors it at the saved progress.
func restoreSnapshot(state *domain.State, snapshot room.QueueSnapshot) {
	if snapshot.Queue != nil {
		state.Queue = snapshot.Queue
	}
	if snapshot.PendingSuggestions != nil {
		state.PendingSuggestions = snapshot.PendingSuggestions
	}
	for i := range state.Queue {
		state.Queue[i].StartedAt = nil
	}
	if len(state.Queue) > 0 {
		state.IsPlaying = snapshot.IsPlaying
		state.Progress = max(0, snapshot.Progress)
	}
}

// evict saves the volatile state and stops the room. It is a no-op for rooms
// already closed.
func (s *service) evict(ctx context.Context, r *roomActor) error {
	err := r.exec(ctx, func() error {
		head := r.state.Head()
		if head != nil && r.state.IsPlaying && head.StartedAt != nil {
			r.state.Progress = min(domain.ElapsedSeconds(*head.StartedAt, s.now().UnixMilli()), head.EffectiveDuration())
		}

		snapshot := room.QueueSnapshot{
			Queue:              r.state.Snapshot(0).Queue,
			IsPlaying:          r.state.IsPlaying,
			Progress:           r.state.Progress,
			PendingSuggestions: r.state.PendingSuggestions,
			SavedAt:            s.now().UnixMilli(),
		}
		s.persist(ctx, "queue snapshot", func(ctx context.Context) error {
			return s.roomRepo.SetQueueSnapshot(ctx, &room.SetQueueSnapshotParams{RoomId: r.id, Snapshot: snapshot})
		})
		s.persist(ctx, "touch", func(ctx context.Context) error {
			return s.roomRepo.TouchRoom(ctx, &room.TouchRoomParams{RoomId: r.id, At: s.now()})
		})

		r.cancel()
		return nil
	})
	if err != nil && !errors.Is(err, errRoomClosed) {
		return err
	}

	<-r.done
	s.unregister(r)

	s.logger.InfoContext(ctx, "room evicted", "room_id", r.id)
	return nil
}

func (s *service) unregister(r *roomActor) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.rooms[r.id]; ok && current == r {
		delete(s.rooms, r.id)
	}
	s.metrics.ActiveRooms.Set(float64(len(s.rooms)))
}

func (s *service) liveRooms() []*roomActor {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := make([]*roomActor, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// Sweep evicts rooms that have had no observers for the idle timeout.
func (s *service) Sweep(ctx context.Context) {
	now := s.now()
	for _, r := range s.liveRooms() {
		if s.connRepo.CountByRoom(r.id) > 0 {
			r.idleSince = time.Time{}
			continue
		}

		if r.idleSince.IsZero() {
			r.idleSince = now
		}

		if now.Sub(r.idleSince) < s.cfg.IdleTimeout {
			continue
		}

		if err := s.evict(ctx, r); err != nil {
			s.logger.WarnContext(ctx, "failed to evict room", "room_id", r.id, "error", err)
		}
	}
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Shutdown saves and stops every live room.
func (s *service) Shutdown(ctx context.Context) error {
	var errs []error
	for _, r := range s.liveRooms() {
		if err := s.evict(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("room %s: %w", r.id, err))
		}
	}
	return errors.Join(errs...)
}
