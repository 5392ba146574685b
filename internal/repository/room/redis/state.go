package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/listenroom/internal/domain"
	"github.com/sharetube/listenroom/internal/repository/room"
)

func (r repo) getSettingsKey(roomId string) string {
	return "room:" + roomId + ":settings"
}

func (r repo) getQueueKey(roomId string) string {
	return "room:" + roomId + ":queue"
}

func (r repo) SetSettings(ctx context.Context, params *room.SetSettingsParams) error {
	if err := r.rc.Set(ctx, r.getSettingsKey(params.RoomId), marshal(params.Settings), 0).Err(); err != nil {
		return fmt.Errorf("failed to set settings: %w", err)
	}

	return nil
}

func (r repo) GetSettings(ctx context.Context, roomId string) (domain.Settings, error) {
	raw, err := r.rc.Get(ctx, r.getSettingsKey(roomId)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Settings{}, room.ErrSettingsNotFound
	}

	if err != nil {
		return domain.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}

	var settings domain.Settings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return domain.Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}

	return settings, nil
}

func (r repo) SetQueueSnapshot(ctx context.Context, params *room.SetQueueSnapshotParams) error {
	if err := r.rc.Set(ctx, r.getQueueKey(params.RoomId), marshal(params.Snapshot), 0).Err(); err != nil {
		return fmt.Errorf("failed to set queue snapshot: %w", err)
	}

	return nil
}

func (r repo) GetQueueSnapshot(ctx context.Context, roomId string) (room.QueueSnapshot, error) {
	raw, err := r.rc.Get(ctx, r.getQueueKey(roomId)).Result()
	if errors.Is(err, redis.Nil) {
		return room.QueueSnapshot{}, room.ErrSnapshotNotFound
	}

	if err != nil {
		return room.QueueSnapshot{}, fmt.Errorf("failed to get queue snapshot: %w", err)
	}

	var snapshot room.QueueSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return room.QueueSnapshot{}, fmt.Errorf("failed to decode queue snapshot: %w", err)
	}

	return snapshot, nil
}
