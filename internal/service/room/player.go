package room

import (
	"context"

	"github.com/sharetube/listenroom/internal/domain"
)

type RoomCommandParams struct {
	RoomId   string
	SenderId string
}

// ownerCommand runs fn for the room owner only.
func (s *service) ownerCommand(ctx context.Context, params *RoomCommandParams, fn func(r *roomActor) error) error {
	if params.SenderId == "" {
		return ErrUnauthenticated
	}

	return s.withRoom(ctx, params.RoomId, func(r *roomActor) error {
		if !r.isOwner(params.SenderId) {
			return ErrPermissionDenied
		}
		return fn(r)
	})
}

func (s *service) NextTrack(ctx context.Context, params *RoomCommandParams) error {
	return s.ownerCommand(ctx, params, func(r *roomActor) error {
		entry, ok := r.state.Advance(s.now())
		if !ok {
			return ErrQueueEmpty
		}

		s.persistHistoryEntry(ctx, r, entry)
		s.afterAdvance(r)
		s.broadcastState(r)
		return nil
	})
}

type DeleteSongParams struct {
	RoomId   string
	SenderId string
	TrackId  string
}

func (s *service) DeleteSong(ctx context.Context, params *DeleteSongParams) error {
	return s.ownerCommand(ctx, &RoomCommandParams{RoomId: params.RoomId, SenderId: params.SenderId}, func(r *roomActor) error {
		if _, ok := r.state.Remove(params.TrackId, s.now()); !ok {
			return ErrTrackNotFound
		}

		s.afterAdvance(r)
		s.broadcastState(r)
		return nil
	})
}

type PlayPauseParams struct {
	RoomId    string
	SenderId  string
	IsPlaying bool
}

func (s *service) PlayPause(ctx context.Context, params *PlayPauseParams) error {
	return s.ownerCommand(ctx, &RoomCommandParams{RoomId: params.RoomId, SenderId: params.SenderId}, func(r *roomActor) error {
		if r.state.Head() == nil {
			return ErrQueueEmpty
		}

		var changed bool
		if params.IsPlaying {
			changed = r.state.Resume(s.now())
		} else {
			changed = r.state.Pause(s.now())
		}

		if changed {
			s.broadcastState(r)
		}
		return nil
	})
}

type SeekToParams struct {
	RoomId   string
	SenderId string
	Seconds  int
}

func (s *service) SeekTo(ctx context.Context, params *SeekToParams) error {
	return s.ownerCommand(ctx, &RoomCommandParams{RoomId: params.RoomId, SenderId: params.SenderId}, func(r *roomActor) error {
		if !r.state.Seek(s.now(), params.Seconds) {
			return ErrQueueEmpty
		}

		s.broadcastState(r)
		return nil
	})
}

type UpdateDurationParams struct {
	RoomId   string
	SenderId string
	Seconds  int
}

func (s *service) UpdateDuration(ctx context.Context, params *UpdateDurationParams) error {
	return s.ownerCommand(ctx, &RoomCommandParams{RoomId: params.RoomId, SenderId: params.SenderId}, func(r *roomActor) error {
		if r.state.Head() == nil {
			return ErrQueueEmpty
		}

		if r.state.SetHeadDuration(params.Seconds) {
			s.broadcastState(r)
		}
		return nil
	})
}

// tick advances the playback clock. It only broadcasts when the visible
// progress changed or the track ended.
func (s *service) tick(r *roomActor) {
	res, entry := r.state.Tick(s.now())
	switch res {
	case domain.TickAdvanced:
		s.persistHistoryEntry(r.ctx, r, entry)
		s.afterAdvance(r)
		s.broadcastState(r)
	case domain.TickProgressed:
		s.broadcastState(r)
	}
}

// tickRoom runs one clock step on the room goroutine.
func (s *service) tickRoom(ctx context.Context, roomId string) error {
	return s.withRoom(ctx, roomId, func(r *roomActor) error {
		s.tick(r)
		return nil
	})
}

// afterAdvance starts a refill when the queue ran dry.
func (s *service) afterAdvance(r *roomActor) {
	if r.state.CanRefill() {
		s.startRefill(r)
	}
}
