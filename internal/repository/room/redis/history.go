package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sharetube/listenroom/internal/domain"
	"github.com/sharetube/listenroom/internal/repository/room"
)

func (r repo) getHistoryKey(roomId string) string {
	return "room:" + roomId + ":history"
}

func (r repo) AddHistoryEntry(ctx context.Context, params *room.AddHistoryEntryParams) error {
	historyKey := r.getHistoryKey(params.RoomId)
	pipe := r.rc.TxPipeline()

	pipe.RPush(ctx, historyKey, marshal(params.Entry))
	if params.Limit > 0 {
		pipe.LTrim(ctx, historyKey, int64(-params.Limit), -1)
	}

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to add history entry: %w", err)
	}

	return nil
}

// GetHistory returns the newest limit entries, oldest first. A non-positive
// limit returns the whole history.
func (r repo) GetHistory(ctx context.Context, roomId string, limit int) ([]domain.HistoryEntry, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}

	raw, err := r.rc.LRange(ctx, r.getHistoryKey(roomId), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}

	entries := make([]domain.HistoryEntry, 0, len(raw))
	for _, item := range raw {
		var e domain.HistoryEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			r.logger.WarnContext(ctx, "skipping malformed history entry", "room_id", roomId, "error", err)
			continue
		}
		entries = append(entries, e)
	}

	return entries, nil
}

// SetHistory replaces the whole history list.
func (r repo) SetHistory(ctx context.Context, params *room.SetHistoryParams) error {
	historyKey := r.getHistoryKey(params.RoomId)
	pipe := r.rc.TxPipeline()

	pipe.Del(ctx, historyKey)
	if len(params.Entries) > 0 {
		items := make([]any, len(params.Entries))
		for i, e := range params.Entries {
			items[i] = marshal(e)
		}
		pipe.RPush(ctx, historyKey, items...)
	}

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set history: %w", err)
	}

	return nil
}
