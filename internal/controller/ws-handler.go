package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/listenroom/internal/domain"
	"github.com/sharetube/listenroom/internal/service/room"
	"github.com/sharetube/listenroom/pkg/ctxlogger"
)

// joinRoom upgrades the request and attaches the socket to the room as an
// observer. An absent or invalid auth token joins anonymously.
func (c controller) joinRoom(w http.ResponseWriter, r *http.Request) {
	roomId, err := c.roomIdParam(r)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	ctx := ctxlogger.AppendCtx(r.Context(), slog.String("room_id", roomId))

	var memberId string
	if token := r.URL.Query().Get("auth-token"); token != "" {
		claims, err := c.roomService.ParseToken(token)
		if err != nil {
			c.logger.DebugContext(ctx, "joining anonymously", "error", err)
		} else {
			memberId = claims.MemberId
			ctx = ctxlogger.AppendCtx(ctx, slog.String("member_id", memberId))
		}
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to upgrade to websocket", "error", err)
		return
	}

	client := newWSClient(conn, c.logger)
	go client.writePump()
	defer client.Close()

	joinResp, err := c.roomService.JoinRoom(ctx, &room.JoinRoomParams{
		RoomId:   roomId,
		MemberId: memberId,
		Password: r.URL.Query().Get("password"),
		Sender:   client,
	})
	if err != nil {
		c.logger.DebugContext(ctx, "failed to join room", "error", err)
		c.sendError(ctx, client, err)
		return
	}
	defer c.roomService.LeaveRoom(context.WithoutCancel(ctx), joinResp.ObserverId)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx = context.WithValue(ctx, roomIdCtxKey, roomId)
	ctx = context.WithValue(ctx, memberIdCtxKey, memberId)
	ctx = context.WithValue(ctx, clientCtxKey, client)

	c.logger.InfoContext(ctx, "observer attached", "observer_id", joinResp.ObserverId, "is_owner", joinResp.IsOwner)
	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		c.logger.DebugContext(ctx, "connection closed", "error", err)
	}
}

func (c controller) sendFrame(ctx context.Context, client *wsClient, frame room.Frame) {
	if client == nil {
		return
	}

	data, err := encodeFrame(frame)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to encode frame", "error", err)
		return
	}

	if err := client.Send(data); err != nil {
		c.metrics.DroppedFrames.Inc()
		c.logger.DebugContext(ctx, "failed to send frame", "type", frame.Type, "error", err)
	}
}

type errorPayload struct {
	Code string `json:"code"`
}

func (c controller) sendError(ctx context.Context, client *wsClient, err error) {
	c.sendFrame(ctx, client, room.Frame{
		Type:    room.FrameError,
		Message: errorMessage(err),
		Payload: errorPayload{Code: errorCode(err)},
	})
}

func (c controller) sendSuccess(ctx context.Context, message string, payload any) {
	c.sendFrame(ctx, c.getClientFromCtx(ctx), room.Frame{
		Type:    room.FrameSuccess,
		Message: message,
		Payload: payload,
	})
}

func (c controller) sendInfo(ctx context.Context, message string, payload any) {
	c.sendFrame(ctx, c.getClientFromCtx(ctx), room.Frame{
		Type:    room.FrameInfo,
		Message: message,
		Payload: payload,
	})
}

type EmptyInput struct{}

func (c controller) handleAlive(_ context.Context, _ *websocket.Conn, _ EmptyInput) error {
	return nil
}

func (c controller) handleGetState(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	state, err := c.roomService.GetState(ctx, &room.GetStateParams{RoomId: c.getRoomIdFromCtx(ctx)})
	if err != nil {
		return err
	}

	c.sendFrame(ctx, c.getClientFromCtx(ctx), room.Frame{Type: room.FrameState, Payload: state})
	return nil
}

type SuggestSongInput struct {
	Query string `json:"query" validate:"required,max=512"`
}

func (c controller) handleSuggestSong(ctx context.Context, _ *websocket.Conn, input SuggestSongInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	resp, err := c.roomService.SuggestSong(ctx, &room.SuggestSongParams{
		RoomId:   c.getRoomIdFromCtx(ctx),
		SenderId: c.getMemberIdFromCtx(ctx),
		Query:    input.Query,
	})
	if err != nil {
		return err
	}

	if resp.Status == room.SuggestPending {
		c.sendSuccess(ctx, "suggestion sent for review", resp.Suggestion)
		return nil
	}

	c.sendSuccess(ctx, "song added to the queue", resp.Track)
	if resp.Evicted != nil {
		c.sendInfo(ctx, "a downvoted song made room for yours", resp.Evicted)
	}
	return nil
}

type VoteInput struct {
	TrackId  string `json:"track_id" validate:"required"`
	VoteType string `json:"vote_type" validate:"required,oneof=up down"`
}

func (c controller) handleVote(ctx context.Context, _ *websocket.Conn, input VoteInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	_, err := c.roomService.Vote(ctx, &room.VoteParams{
		RoomId:   c.getRoomIdFromCtx(ctx),
		SenderId: c.getMemberIdFromCtx(ctx),
		TrackId:  input.TrackId,
		VoteType: domain.VoteType(input.VoteType),
	})
	return err
}

func (c controller) handleNextTrack(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	return c.roomService.NextTrack(ctx, c.commandParams(ctx))
}

type DeleteSongInput struct {
	TrackId string `json:"track_id" validate:"required"`
}

func (c controller) handleDeleteSong(ctx context.Context, _ *websocket.Conn, input DeleteSongInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	return c.roomService.DeleteSong(ctx, &room.DeleteSongParams{
		RoomId:   c.getRoomIdFromCtx(ctx),
		SenderId: c.getMemberIdFromCtx(ctx),
		TrackId:  input.TrackId,
	})
}

type UpdateSettingsInput struct {
	SuggestionsEnabled *bool   `json:"suggestions_enabled"`
	MusicOnly          *bool   `json:"music_only"`
	MaxDuration        *int    `json:"max_duration" validate:"omitempty,gte=0,lte=86400"`
	AllowPrelisten     *bool   `json:"allow_prelisten"`
	OwnerBypass        *bool   `json:"owner_bypass"`
	OwnerQueueBypass   *bool   `json:"owner_queue_bypass"`
	VotesEnabled       *bool   `json:"votes_enabled"`
	SmartQueue         *bool   `json:"smart_queue"`
	OwnerPopups        *bool   `json:"owner_popups"`
	PlaylistViewMode   *bool   `json:"playlist_view_mode"`
	MaxQueueSize       *int    `json:"max_queue_size" validate:"omitempty,gte=0,lte=1000"`
	SuggestionMode     *string `json:"suggestion_mode" validate:"omitempty,oneof=auto manual"`
	DuplicateCooldown  *int    `json:"duplicate_cooldown" validate:"omitempty,gte=0,lte=500"`
	AutoApproveKnown   *bool   `json:"auto_approve_known"`
	AutoRefill         *bool   `json:"auto_refill"`
}

func (in UpdateSettingsInput) patch() domain.SettingsPatch {
	p := domain.SettingsPatch{
		SuggestionsEnabled: in.SuggestionsEnabled,
		MusicOnly:          in.MusicOnly,
		MaxDuration:        in.MaxDuration,
		AllowPrelisten:     in.AllowPrelisten,
		OwnerBypass:        in.OwnerBypass,
		OwnerQueueBypass:   in.OwnerQueueBypass,
		VotesEnabled:       in.VotesEnabled,
		SmartQueue:         in.SmartQueue,
		OwnerPopups:        in.OwnerPopups,
		PlaylistViewMode:   in.PlaylistViewMode,
		MaxQueueSize:       in.MaxQueueSize,
		DuplicateCooldown:  in.DuplicateCooldown,
		AutoApproveKnown:   in.AutoApproveKnown,
		AutoRefill:         in.AutoRefill,
	}
	if in.SuggestionMode != nil {
		mode := domain.SuggestionMode(*in.SuggestionMode)
		p.SuggestionMode = &mode
	}
	return p
}

func (c controller) handleUpdateSettings(ctx context.Context, _ *websocket.Conn, input UpdateSettingsInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	patch := input.patch()
	if patch.IsEmpty() {
		return nil
	}

	_, err := c.roomService.UpdateSettings(ctx, &room.UpdateSettingsParams{
		RoomId:   c.getRoomIdFromCtx(ctx),
		SenderId: c.getMemberIdFromCtx(ctx),
		Patch:    patch,
	})
	if err != nil {
		return err
	}

	c.sendSuccess(ctx, "settings updated", nil)
	return nil
}

type SuggestionInput struct {
	SuggestionId string `json:"suggestion_id" validate:"required"`
}

func (c controller) suggestionParams(ctx context.Context, input SuggestionInput) *room.SuggestionParams {
	return &room.SuggestionParams{
		RoomId:       c.getRoomIdFromCtx(ctx),
		SenderId:     c.getMemberIdFromCtx(ctx),
		SuggestionId: input.SuggestionId,
	}
}

func (c controller) handleApproveSuggestion(ctx context.Context, _ *websocket.Conn, input SuggestionInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	track, err := c.roomService.ApproveSuggestion(ctx, c.suggestionParams(ctx, input))
	if err != nil {
		return err
	}

	c.sendSuccess(ctx, "suggestion approved", track)
	return nil
}

func (c controller) handleRejectSuggestion(ctx context.Context, _ *websocket.Conn, input SuggestionInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	return c.roomService.RejectSuggestion(ctx, c.suggestionParams(ctx, input))
}

func (c controller) handleBanSuggestion(ctx context.Context, _ *websocket.Conn, input SuggestionInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	return c.roomService.BanSuggestion(ctx, c.suggestionParams(ctx, input))
}

type SongInput struct {
	VideoId string `json:"video_id" validate:"required,max=64"`
}

func (c controller) songParams(ctx context.Context, input SongInput) *room.SongParams {
	return &room.SongParams{
		RoomId:   c.getRoomIdFromCtx(ctx),
		SenderId: c.getMemberIdFromCtx(ctx),
		VideoId:  input.VideoId,
	}
}

func (c controller) handleUnbanSong(ctx context.Context, _ *websocket.Conn, input SongInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	return c.roomService.UnbanSong(ctx, c.songParams(ctx, input))
}

func (c controller) handleRemoveFromLibrary(ctx context.Context, _ *websocket.Conn, input SongInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	return c.roomService.RemoveFromLibrary(ctx, c.songParams(ctx, input))
}

type PlayPauseInput struct {
	IsPlaying bool `json:"is_playing"`
}

func (c controller) handlePlayPause(ctx context.Context, _ *websocket.Conn, input PlayPauseInput) error {
	return c.roomService.PlayPause(ctx, &room.PlayPauseParams{
		RoomId:    c.getRoomIdFromCtx(ctx),
		SenderId:  c.getMemberIdFromCtx(ctx),
		IsPlaying: input.IsPlaying,
	})
}

type SecondsInput struct {
	Seconds int `json:"seconds" validate:"gte=0,lte=86400"`
}

func (c controller) handleSeekTo(ctx context.Context, _ *websocket.Conn, input SecondsInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	return c.roomService.SeekTo(ctx, &room.SeekToParams{
		RoomId:   c.getRoomIdFromCtx(ctx),
		SenderId: c.getMemberIdFromCtx(ctx),
		Seconds:  input.Seconds,
	})
}

func (c controller) handleUpdateDuration(ctx context.Context, _ *websocket.Conn, input SecondsInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	return c.roomService.UpdateDuration(ctx, &room.UpdateDurationParams{
		RoomId:   c.getRoomIdFromCtx(ctx),
		SenderId: c.getMemberIdFromCtx(ctx),
		Seconds:  input.Seconds,
	})
}

func (c controller) handleDeleteRoom(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	return c.roomService.DeleteRoom(ctx, c.commandParams(ctx))
}

func (c controller) commandParams(ctx context.Context) *room.RoomCommandParams {
	return &room.RoomCommandParams{
		RoomId:   c.getRoomIdFromCtx(ctx),
		SenderId: c.getMemberIdFromCtx(ctx),
	}
}
