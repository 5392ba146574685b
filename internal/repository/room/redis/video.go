package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/listenroom/internal/repository/room"
)

func (r repo) getVideoKey(videoId string) string {
	return "video:" + videoId
}

func (r repo) getSearchKey(query string) string {
	return "search:" + query
}

func (r repo) SetVideo(ctx context.Context, params *room.SetVideoParams) error {
	videoKey := r.getVideoKey(params.VideoId)
	pipe := r.rc.TxPipeline()

	pipe.Del(ctx, videoKey)
	r.hSetStruct(ctx, pipe, videoKey, params.Video)
	pipe.Expire(ctx, videoKey, r.videoCacheTTL)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set video: %w", err)
	}

	return nil
}

func (r repo) GetVideo(ctx context.Context, videoId string) (room.Video, error) {
	res := r.rc.HGetAll(ctx, r.getVideoKey(videoId))
	if err := res.Err(); err != nil {
		return room.Video{}, fmt.Errorf("failed to get video: %w", err)
	}

	if len(res.Val()) == 0 {
		return room.Video{}, room.ErrVideoNotFound
	}

	var video room.Video
	if err := res.Scan(&video); err != nil {
		return room.Video{}, fmt.Errorf("failed to scan video: %w", err)
	}

	return video, nil
}

func (r repo) SetSearchResult(ctx context.Context, params *room.SetSearchResultParams) error {
	if err := r.rc.Set(ctx, r.getSearchKey(params.Query), params.VideoId, r.searchCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to set search result: %w", err)
	}

	return nil
}

func (r repo) GetSearchResult(ctx context.Context, query string) (string, error) {
	videoId, err := r.rc.Get(ctx, r.getSearchKey(query)).Result()
	if errors.Is(err, redis.Nil) {
		return "", room.ErrSearchNotFound
	}

	if err != nil {
		return "", fmt.Errorf("failed to get search result: %w", err)
	}

	return videoId, nil
}
