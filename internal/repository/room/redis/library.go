package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sharetube/listenroom/internal/domain"
	"github.com/sharetube/listenroom/internal/repository/room"
)

func (r repo) getBansKey(roomId string) string {
	return "room:" + roomId + ":bans"
}

func (r repo) getKnownKey(roomId string) string {
	return "room:" + roomId + ":known"
}

func (r repo) SetBannedSong(ctx context.Context, params *room.SetBannedSongParams) error {
	if err := r.rc.HSet(ctx, r.getBansKey(params.RoomId), params.Song.VideoId, marshal(params.Song)).Err(); err != nil {
		return fmt.Errorf("failed to set banned song: %w", err)
	}

	return nil
}

func (r repo) RemoveBannedSong(ctx context.Context, params *room.RemoveBannedSongParams) error {
	n, err := r.rc.HDel(ctx, r.getBansKey(params.RoomId), params.VideoId).Result()
	if err != nil {
		return fmt.Errorf("failed to remove banned song: %w", err)
	}

	if n == 0 {
		return room.ErrBanNotFound
	}

	return nil
}

func (r repo) GetBannedSongs(ctx context.Context, roomId string) (map[string]domain.BannedSong, error) {
	raw, err := r.rc.HGetAll(ctx, r.getBansKey(roomId)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get banned songs: %w", err)
	}

	bans := make(map[string]domain.BannedSong, len(raw))
	for videoId, item := range raw {
		var song domain.BannedSong
		if err := json.Unmarshal([]byte(item), &song); err != nil {
			r.logger.WarnContext(ctx, "skipping malformed ban", "room_id", roomId, "video_id", videoId, "error", err)
			continue
		}
		bans[videoId] = song
	}

	return bans, nil
}

func (r repo) AddKnownSong(ctx context.Context, params *room.KnownSongParams) error {
	return r.rc.SAdd(ctx, r.getKnownKey(params.RoomId), params.VideoId).Err()
}

func (r repo) RemoveKnownSong(ctx context.Context, params *room.KnownSongParams) error {
	return r.rc.SRem(ctx, r.getKnownKey(params.RoomId), params.VideoId).Err()
}

func (r repo) IsKnownSong(ctx context.Context, params *room.KnownSongParams) (bool, error) {
	ok, err := r.rc.SIsMember(ctx, r.getKnownKey(params.RoomId), params.VideoId).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check known song: %w", err)
	}

	return ok, nil
}

func (r repo) GetKnownSongs(ctx context.Context, roomId string) ([]string, error) {
	ids, err := r.rc.SMembers(ctx, r.getKnownKey(roomId)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get known songs: %w", err)
	}

	return ids, nil
}
