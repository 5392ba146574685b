package room

import (
	"context"

	"github.com/sharetube/listenroom/internal/domain"
	"github.com/sharetube/listenroom/internal/repository/room"
	"golang.org/x/exp/slices"
)

type SuggestionParams struct {
	RoomId       string
	SenderId     string
	SuggestionId string
}

func (r *roomActor) takeSuggestion(id string) (domain.PendingSuggestion, bool) {
	idx := slices.IndexFunc(r.state.PendingSuggestions, func(p domain.PendingSuggestion) bool { return p.Id == id })
	if idx == -1 {
		return domain.PendingSuggestion{}, false
	}

	suggestion := r.state.PendingSuggestions[idx]
	r.state.PendingSuggestions = slices.Delete(r.state.PendingSuggestions, idx, idx+1)
	return suggestion, true
}

func (r *roomActor) findSuggestion(id string) (domain.PendingSuggestion, bool) {
	idx := slices.IndexFunc(r.state.PendingSuggestions, func(p domain.PendingSuggestion) bool { return p.Id == id })
	if idx == -1 {
		return domain.PendingSuggestion{}, false
	}
	return r.state.PendingSuggestions[idx], true
}

// ApproveSuggestion queues a pending suggestion and marks its content known.
func (s *service) ApproveSuggestion(ctx context.Context, params *SuggestionParams) (domain.Track, error) {
	var track domain.Track
	err := s.ownerCommand(ctx, &RoomCommandParams{RoomId: params.RoomId, SenderId: params.SenderId}, func(r *roomActor) error {
		suggestion, ok := r.findSuggestion(params.SuggestionId)
		if !ok {
			return ErrSuggestionNotFound
		}

		if err := s.checkContent(r, suggestion.Media); err != nil {
			return err
		}

		t, _, err := s.enqueue(r, suggestion.Media, suggestion.SuggestedBy, false)
		if err != nil {
			return err
		}
		track = t
		r.takeSuggestion(params.SuggestionId)

		r.known[suggestion.Media.VideoId] = struct{}{}
		s.persist(ctx, "known song", func(ctx context.Context) error {
			return s.roomRepo.AddKnownSong(ctx, &room.KnownSongParams{RoomId: r.id, VideoId: suggestion.Media.VideoId})
		})

		s.broadcastState(r)
		return nil
	})
	if err != nil {
		return domain.Track{}, err
	}

	return track, nil
}

func (s *service) RejectSuggestion(ctx context.Context, params *SuggestionParams) error {
	return s.ownerCommand(ctx, &RoomCommandParams{RoomId: params.RoomId, SenderId: params.SenderId}, func(r *roomActor) error {
		if _, ok := r.takeSuggestion(params.SuggestionId); !ok {
			return ErrSuggestionNotFound
		}

		s.broadcastState(r)
		return nil
	})
}

// BanSuggestion drops a pending suggestion and bans its content. Other pending
// suggestions of the same content are dropped too.
func (s *service) BanSuggestion(ctx context.Context, params *SuggestionParams) error {
	return s.ownerCommand(ctx, &RoomCommandParams{RoomId: params.RoomId, SenderId: params.SenderId}, func(r *roomActor) error {
		suggestion, ok := r.takeSuggestion(params.SuggestionId)
		if !ok {
			return ErrSuggestionNotFound
		}

		videoId := suggestion.Media.VideoId
		r.state.PendingSuggestions = slices.DeleteFunc(r.state.PendingSuggestions, func(p domain.PendingSuggestion) bool {
			return p.Media.VideoId == videoId
		})

		song := domain.NewBannedSong(suggestion.Media, s.now())
		r.state.BannedSongs[videoId] = song
		s.persist(ctx, "banned song", func(ctx context.Context) error {
			return s.roomRepo.SetBannedSong(ctx, &room.SetBannedSongParams{RoomId: r.id, Song: song})
		})

		s.broadcastState(r)
		return nil
	})
}

type SongParams struct {
	RoomId   string
	SenderId string
	VideoId  string
}

func (s *service) UnbanSong(ctx context.Context, params *SongParams) error {
	return s.ownerCommand(ctx, &RoomCommandParams{RoomId: params.RoomId, SenderId: params.SenderId}, func(r *roomActor) error {
		if !r.state.IsBanned(params.VideoId) {
			return ErrSongNotFound
		}

		delete(r.state.BannedSongs, params.VideoId)
		s.persist(ctx, "unban", func(ctx context.Context) error {
			return s.roomRepo.RemoveBannedSong(ctx, &room.RemoveBannedSongParams{RoomId: r.id, VideoId: params.VideoId})
		})

		s.broadcastState(r)
		return nil
	})
}

// RemoveFromLibrary forgets a song: every history entry of it is purged and it
// is no longer known.
func (s *service) RemoveFromLibrary(ctx context.Context, params *SongParams) error {
	return s.ownerCommand(ctx, &RoomCommandParams{RoomId: params.RoomId, SenderId: params.SenderId}, func(r *roomActor) error {
		_, wasKnown := r.known[params.VideoId]
		history, removed := domain.RemoveVideo(r.state.History, map[string]struct{}{params.VideoId: {}})
		if removed == 0 && !wasKnown {
			return ErrSongNotFound
		}

		r.state.History = history
		delete(r.known, params.VideoId)

		if removed > 0 {
			s.persistHistory(ctx, r)
		}
		s.persist(ctx, "known song", func(ctx context.Context) error {
			return s.roomRepo.RemoveKnownSong(ctx, &room.KnownSongParams{RoomId: r.id, VideoId: params.VideoId})
		})

		s.broadcastState(r)
		return nil
	})
}
