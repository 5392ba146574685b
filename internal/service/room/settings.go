package room

import (
	"context"

	"github.com/sharetube/listenroom/internal/domain"
	"github.com/sharetube/listenroom/internal/repository/room"
)

type UpdateSettingsParams struct {
	RoomId   string
	SenderId string
	Patch    domain.SettingsPatch
}

type UpdateSettingsResponse struct {
	Settings domain.Settings
}

func (s *service) UpdateSettings(ctx context.Context, params *UpdateSettingsParams) (UpdateSettingsResponse, error) {
	var resp UpdateSettingsResponse
	err := s.ownerCommand(ctx, &RoomCommandParams{RoomId: params.RoomId, SenderId: params.SenderId}, func(r *roomActor) error {
		settings := params.Patch.Apply(r.state.Settings)
		r.state.Settings = settings
		resp.Settings = settings

		s.persist(ctx, "settings", func(ctx context.Context) error {
			return s.roomRepo.SetSettings(ctx, &room.SetSettingsParams{RoomId: r.id, Settings: settings})
		})

		if params.Patch.AutoRefill != nil && *params.Patch.AutoRefill && r.state.CanRefill() {
			s.startRefill(r)
		}

		s.broadcastState(r)
		return nil
	})
	if err != nil {
		return UpdateSettingsResponse{}, err
	}

	return resp, nil
}
