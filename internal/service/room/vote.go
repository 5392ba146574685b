package room

import (
	"context"

	"github.com/sharetube/listenroom/internal/domain"
)

type VoteParams struct {
	RoomId   string
	SenderId string
	TrackId  string
	VoteType domain.VoteType
}

type VoteResponse struct {
	Score int
}

func (s *service) Vote(ctx context.Context, params *VoteParams) (VoteResponse, error) {
	if params.SenderId == "" {
		return VoteResponse{}, ErrUnauthenticated
	}

	if !params.VoteType.IsValid() {
		return VoteResponse{}, ErrInvalidVote
	}

	var resp VoteResponse
	err := s.withRoom(ctx, params.RoomId, func(r *roomActor) error {
		if !r.state.Settings.VotesEnabled && !r.canBypass(params.SenderId) {
			return ErrVotingDisabled
		}

		idx := r.state.TrackIndex(params.TrackId)
		if idx == -1 {
			return ErrTrackNotFound
		}

		track := &r.state.Queue[idx]
		track.Vote(params.SenderId, params.VoteType)
		resp.Score = track.Score

		domain.RankUpcoming(r.state.Queue)
		s.broadcastState(r)
		return nil
	})
	if err != nil {
		return VoteResponse{}, err
	}

	return resp, nil
}
