package controller

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"
	"github.com/sharetube/listenroom/internal/service/room"
	"github.com/sharetube/listenroom/pkg/wsrouter"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(c.wsRequestIdMw(), c.loggerWSMw(), c.metricsWSMw())
	mux.OnError(c.handleWSError)

	wsrouter.Handle(mux, "ALIVE", c.handleAlive)
	wsrouter.Handle(mux, "GET_STATE", c.handleGetState)

	// queue
	wsrouter.Handle(mux, "SUGGEST_SONG", c.handleSuggestSong)
	wsrouter.Handle(mux, "VOTE", c.handleVote)
	wsrouter.Handle(mux, "NEXT_TRACK", c.handleNextTrack)
	wsrouter.Handle(mux, "DELETE_SONG", c.handleDeleteSong)

	// player
	wsrouter.Handle(mux, "PLAY_PAUSE", c.handlePlayPause)
	wsrouter.Handle(mux, "SEEK_TO", c.handleSeekTo)
	wsrouter.Handle(mux, "UPDATE_DURATION", c.handleUpdateDuration)

	// moderation
	wsrouter.Handle(mux, "UPDATE_SETTINGS", c.handleUpdateSettings)
	wsrouter.Handle(mux, "APPROVE_SUGGESTION", c.handleApproveSuggestion)
	wsrouter.Handle(mux, "REJECT_SUGGESTION", c.handleRejectSuggestion)
	wsrouter.Handle(mux, "BAN_SUGGESTION", c.handleBanSuggestion)
	wsrouter.Handle(mux, "UNBAN_SONG", c.handleUnbanSong)
	wsrouter.Handle(mux, "REMOVE_FROM_LIBRARY", c.handleRemoveFromLibrary)

	// room
	wsrouter.Handle(mux, "DELETE_ROOM", c.handleDeleteRoom)

	return mux
}

// handleWSError answers the requesting socket only.
func (c controller) handleWSError(ctx context.Context, _ *websocket.Conn, err error) {
	if errorCode(err) == string(room.KindInternal) {
		c.logger.ErrorContext(ctx, "command failed", "error", err)
	}
	c.sendError(ctx, c.getClientFromCtx(ctx), err)
}

func encodeFrame(frame room.Frame) ([]byte, error) {
	return json.Marshal(frame)
}
