package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/sharetube/listenroom/internal/repository/connection"
	"github.com/sharetube/listenroom/internal/repository/room"
	"github.com/sharetube/listenroom/pkg/ctxlogger"
	"golang.org/x/crypto/bcrypt"
)

type JoinRoomParams struct {
	RoomId   string
	MemberId string
	Password string
	Sender   connection.Sender
}

type JoinRoomResponse struct {
	ObserverId string
	IsOwner    bool
}

// ensureRoom returns the room metadata, creating an ownerless room for an
// unknown id.
func (s *service) ensureRoom(ctx context.Context, roomId string) (room.Room, error) {
	rm, err := s.roomRepo.GetRoom(ctx, roomId)
	if err == nil {
		return rm, nil
	}
	if !errors.Is(err, room.ErrRoomNotFound) {
		return room.Room{}, err
	}

	err = s.roomRepo.CreateRoom(ctx, &room.CreateRoomParams{
		RoomId:     roomId,
		Name:       roomId,
		Visibility: room.VisibilityPublic,
		CreatedAt:  s.now(),
	})
	if err != nil && !errors.Is(err, room.ErrRoomAlreadyExists) {
		return room.Room{}, fmt.Errorf("failed to create room: %w", err)
	}

	s.logger.InfoContext(ctx, "ownerless room created")
	return s.roomRepo.GetRoom(ctx, roomId)
}

// JoinRoom attaches an observer to the room. The first authenticated joiner of
// an ownerless room becomes its owner.
func (s *service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", params.RoomId))

	rm, err := s.ensureRoom(ctx, params.RoomId)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	if rm.PasswordHash != "" && (params.MemberId == "" || rm.OwnerId != params.MemberId) {
		if err := bcrypt.CompareHashAndPassword([]byte(rm.PasswordHash), []byte(params.Password)); err != nil {
			return JoinRoomResponse{}, ErrWrongPassword
		}
	}

	claimed := false
	if params.MemberId != "" && rm.OwnerId == "" {
		claimed, err = s.roomRepo.ClaimOwner(ctx, &room.ClaimOwnerParams{RoomId: params.RoomId, MemberId: params.MemberId})
		if err != nil {
			return JoinRoomResponse{}, err
		}
		if claimed {
			s.logger.InfoContext(ctx, "room ownership claimed", "member_id", params.MemberId)
		}
	}

	observer := connection.Observer{
		Id:       uuid.NewString(),
		RoomId:   params.RoomId,
		MemberId: params.MemberId,
		Sender:   params.Sender,
	}

	var resp JoinRoomResponse
	err = s.withRoom(ctx, params.RoomId, func(r *roomActor) error {
		if claimed && r.ownerId == "" {
			r.ownerId = params.MemberId
		}

		if err := s.connRepo.Add(observer); err != nil {
			return err
		}

		resp = JoinRoomResponse{ObserverId: observer.Id, IsOwner: r.isOwner(params.MemberId)}
		s.send(observer, s.encode(Frame{Type: FrameState, Payload: s.view(r)}))
		s.send(observer, s.encode(Frame{Type: FrameJoined, Payload: JoinedPayload{
			ObserverId: observer.Id,
			MemberId:   params.MemberId,
			IsOwner:    resp.IsOwner,
		}}))
		return nil
	})
	if err != nil {
		return JoinRoomResponse{}, err
	}

	s.metrics.Observers.Inc()
	s.persist(ctx, "touch", func(ctx context.Context) error {
		return s.roomRepo.TouchRoom(ctx, &room.TouchRoomParams{RoomId: params.RoomId, At: s.now()})
	})

	return resp, nil
}

// LeaveRoom detaches an observer. Leaving twice is not an error.
func (s *service) LeaveRoom(ctx context.Context, observerId string) {
	o, err := s.connRepo.Remove(observerId)
	if err != nil {
		return
	}

	s.metrics.Observers.Dec()
	s.logger.DebugContext(ctx, "observer left", "room_id", o.RoomId, "observer_id", observerId)
}

type GetStateParams struct {
	RoomId string
}

func (s *service) GetState(ctx context.Context, params *GetStateParams) (StateView, error) {
	var view StateView
	err := s.withRoom(ctx, params.RoomId, func(r *roomActor) error {
		view = s.view(r)
		return nil
	})
	if err != nil {
		return StateView{}, err
	}

	return view, nil
}
