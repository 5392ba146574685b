package redis

import (
	"context"
	"fmt"

	"github.com/sharetube/listenroom/internal/repository/room"
)

const roomListKey = "rooms"

func (r repo) getRoomKey(roomId string) string {
	return "room:" + roomId
}

type roomHash struct {
	Name         string          `redis:"name"`
	OwnerId      *string         `redis:"owner_id"`
	Visibility   room.Visibility `redis:"visibility"`
	PasswordHash *string         `redis:"password_hash"`
	Description  string          `redis:"description"`
	Color        string          `redis:"color"`
	CreatedAt    int64           `redis:"created_at"`
	LastActiveAt int64           `redis:"last_active_at"`
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r repo) CreateRoom(ctx context.Context, params *room.CreateRoomParams) error {
	r.logger.DebugContext(ctx, "called", "room_id", params.RoomId)
	roomKey := r.getRoomKey(params.RoomId)

	exists, err := r.rc.Exists(ctx, roomKey).Result()
	if err != nil {
		return fmt.Errorf("failed to check room: %w", err)
	}

	if exists > 0 {
		return room.ErrRoomAlreadyExists
	}

	pipe := r.rc.TxPipeline()
	r.hSetStruct(ctx, pipe, roomKey, roomHash{
		Name:         params.Name,
		OwnerId:      nonEmpty(params.OwnerId),
		Visibility:   params.Visibility,
		PasswordHash: nonEmpty(params.PasswordHash),
		Description:  params.Description,
		Color:        params.Color,
		CreatedAt:    params.CreatedAt.UnixMilli(),
		LastActiveAt: params.CreatedAt.UnixMilli(),
	})
	pipe.SAdd(ctx, roomListKey, params.RoomId)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to create room: %w", err)
	}

	return nil
}

func (r repo) GetRoom(ctx context.Context, roomId string) (room.Room, error) {
	res := r.rc.HGetAll(ctx, r.getRoomKey(roomId))
	if err := res.Err(); err != nil {
		return room.Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	if len(res.Val()) == 0 {
		return room.Room{}, room.ErrRoomNotFound
	}

	var rm room.Room
	if err := res.Scan(&rm); err != nil {
		return room.Room{}, fmt.Errorf("failed to scan room: %w", err)
	}
	rm.Id = roomId

	return rm, nil
}

func (r repo) UpdateRoom(ctx context.Context, params *room.UpdateRoomParams) error {
	r.logger.DebugContext(ctx, "called", "room_id", params.RoomId)
	roomKey := r.getRoomKey(params.RoomId)

	exists, err := r.rc.Exists(ctx, roomKey).Result()
	if err != nil {
		return fmt.Errorf("failed to check room: %w", err)
	}

	if exists == 0 {
		return room.ErrRoomNotFound
	}

	pipe := r.rc.TxPipeline()
	r.hSetStruct(ctx, pipe, roomKey, struct {
		Name         *string          `redis:"name"`
		Visibility   *room.Visibility `redis:"visibility"`
		Description  *string          `redis:"description"`
		Color        *string          `redis:"color"`
		PasswordHash *string          `redis:"password_hash"`
	}{params.Name, params.Visibility, params.Description, params.Color, params.PasswordHash})

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to update room: %w", err)
	}

	return nil
}

// ClaimOwner sets the room owner unless one is already set. It reports whether
// memberId became the owner.
func (r repo) ClaimOwner(ctx context.Context, params *room.ClaimOwnerParams) (bool, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	roomKey := r.getRoomKey(params.RoomId)

	exists, err := r.rc.Exists(ctx, roomKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check room: %w", err)
	}

	if exists == 0 {
		return false, room.ErrRoomNotFound
	}

	ok, err := r.rc.HSetNX(ctx, roomKey, "owner_id", params.MemberId).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim owner: %w", err)
	}

	return ok, nil
}

func (r repo) TouchRoom(ctx context.Context, params *room.TouchRoomParams) error {
	roomKey := r.getRoomKey(params.RoomId)
	n, err := r.rc.Exists(ctx, roomKey).Result()
	if err != nil {
		return fmt.Errorf("failed to check room: %w", err)
	}

	if n == 0 {
		return room.ErrRoomNotFound
	}

	return r.rc.HSet(ctx, roomKey, "last_active_at", params.At.UnixMilli()).Err()
}

func (r repo) ListRoomIds(ctx context.Context) ([]string, error) {
	ids, err := r.rc.SMembers(ctx, roomListKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	return ids, nil
}

func (r repo) DeleteRoom(ctx context.Context, roomId string) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)
	pipe := r.rc.TxPipeline()

	delCmd := pipe.Del(ctx, r.getRoomKey(roomId))
	pipe.Del(ctx,
		r.getHistoryKey(roomId),
		r.getBansKey(roomId),
		r.getKnownKey(roomId),
		r.getSettingsKey(roomId),
		r.getQueueKey(roomId),
	)
	pipe.SRem(ctx, roomListKey, roomId)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to delete room: %w", err)
	}

	if delCmd.Val() == 0 {
		return room.ErrRoomNotFound
	}

	return nil
}
