package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sharetube/listenroom/internal/domain"
	"github.com/sharetube/listenroom/internal/repository/room"
	"github.com/sharetube/listenroom/pkg/ctxlogger"
	"github.com/sharetube/listenroom/pkg/idgen"
	"golang.org/x/crypto/bcrypt"
)

type CreateRoomParams struct {
	SenderId    string
	Name        string
	Visibility  room.Visibility
	Password    string
	Description string
	Color       string
}

type CreateRoomResponse struct {
	RoomId string
}

func hashPassword(password string) (string, error) {
	if password == "" {
		return "", nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// CreateRoom stores a new room owned by the sender.
func (s *service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	if params.SenderId == "" {
		return CreateRoomResponse{}, ErrUnauthenticated
	}

	passwordHash, err := hashPassword(params.Password)
	if err != nil {
		return CreateRoomResponse{}, err
	}

	visibility := params.Visibility
	if visibility == "" {
		visibility = room.VisibilityPublic
	}

	roomId := idgen.NewRoomID()
	ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", roomId))
	if err := s.roomRepo.CreateRoom(ctx, &room.CreateRoomParams{
		RoomId:       roomId,
		Name:         params.Name,
		OwnerId:      params.SenderId,
		Visibility:   visibility,
		PasswordHash: passwordHash,
		Description:  params.Description,
		Color:        params.Color,
		CreatedAt:    s.now(),
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to create room", "error", err)
		return CreateRoomResponse{}, err
	}

	if err := s.roomRepo.SetSettings(ctx, &room.SetSettingsParams{
		RoomId:   roomId,
		Settings: domain.DefaultSettings(s.cfg.MaxQueueSize),
	}); err != nil {
		return CreateRoomResponse{}, err
	}

	s.logger.InfoContext(ctx, "room created", "owner_id", params.SenderId)
	return CreateRoomResponse{RoomId: roomId}, nil
}

func (s *service) GetRoom(ctx context.Context, roomId string) (RoomInfo, error) {
	rm, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return RoomInfo{}, ErrRoomNotFound
		}
		return RoomInfo{}, err
	}

	return newRoomInfo(rm, s.connRepo.CountByRoom(roomId)), nil
}

// ListRooms returns every public room.
func (s *service) ListRooms(ctx context.Context) ([]RoomInfo, error) {
	ids, err := s.roomRepo.ListRoomIds(ctx)
	if err != nil {
		return nil, err
	}

	rooms := make([]RoomInfo, 0, len(ids))
	for _, id := range ids {
		rm, err := s.roomRepo.GetRoom(ctx, id)
		if err != nil {
			if errors.Is(err, room.ErrRoomNotFound) {
				continue
			}
			return nil, err
		}

		if rm.Visibility == room.VisibilityPrivate {
			continue
		}

		rooms = append(rooms, newRoomInfo(rm, s.connRepo.CountByRoom(id)))
	}

	return rooms, nil
}

type UpdateRoomParams struct {
	RoomId      string
	SenderId    string
	Name        *string
	Visibility  *room.Visibility
	Password    *string
	Description *string
	Color       *string
}

func (s *service) UpdateRoom(ctx context.Context, params *UpdateRoomParams) (RoomInfo, error) {
	if params.SenderId == "" {
		return RoomInfo{}, ErrUnauthenticated
	}

	rm, err := s.GetRoom(ctx, params.RoomId)
	if err != nil {
		return RoomInfo{}, err
	}

	if rm.OwnerId != params.SenderId {
		return RoomInfo{}, ErrPermissionDenied
	}

	var passwordHash *string
	if params.Password != nil {
		hash, err := hashPassword(*params.Password)
		if err != nil {
			return RoomInfo{}, err
		}
		passwordHash = &hash
	}

	if err := s.roomRepo.UpdateRoom(ctx, &room.UpdateRoomParams{
		RoomId:       params.RoomId,
		Name:         params.Name,
		Visibility:   params.Visibility,
		PasswordHash: passwordHash,
		Description:  params.Description,
		Color:        params.Color,
	}); err != nil {
		return RoomInfo{}, err
	}

	return s.GetRoom(ctx, params.RoomId)
}

// DeleteRoom notifies and detaches every observer, stops the room and removes
// everything stored for it.
func (s *service) DeleteRoom(ctx context.Context, params *RoomCommandParams) error {
	var actor *roomActor
	err := s.ownerCommand(ctx, params, func(r *roomActor) error {
		if err := s.roomRepo.DeleteRoom(ctx, r.id); err != nil && !errors.Is(err, room.ErrRoomNotFound) {
			return fmt.Errorf("failed to delete room: %w", err)
		}

		actor = r
		s.broadcast(r.id, Frame{Type: FrameRoomDeleted})
		r.cancel()
		return nil
	})
	if err != nil {
		return err
	}

	<-actor.done
	s.unregister(actor)

	for _, o := range s.connRepo.RemoveByRoom(params.RoomId) {
		o.Sender.Close()
		s.metrics.Observers.Dec()
	}

	s.logger.InfoContext(ctx, "room deleted", "room_id", params.RoomId)
	return nil
}
