package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sharetube/listenroom/internal/domain"
	"github.com/sharetube/listenroom/internal/metrics"
	"github.com/sharetube/listenroom/internal/service/room"
	"github.com/sharetube/listenroom/pkg/validator"
	"github.com/sharetube/listenroom/pkg/wsrouter"
)

type iRoomService interface {
	// identity
	IssueToken(*room.IssueTokenParams) (room.IssueTokenResponse, error)
	ParseToken(string) (room.Claims, error)
	// room metadata
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	GetRoom(context.Context, string) (room.RoomInfo, error)
	ListRooms(context.Context) ([]room.RoomInfo, error)
	UpdateRoom(context.Context, *room.UpdateRoomParams) (room.RoomInfo, error)
	DeleteRoom(context.Context, *room.RoomCommandParams) error
	// observers
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	LeaveRoom(context.Context, string)
	GetState(context.Context, *room.GetStateParams) (room.StateView, error)
	// queue
	SuggestSong(context.Context, *room.SuggestSongParams) (room.SuggestSongResponse, error)
	Vote(context.Context, *room.VoteParams) (room.VoteResponse, error)
	NextTrack(context.Context, *room.RoomCommandParams) error
	DeleteSong(context.Context, *room.DeleteSongParams) error
	// player
	PlayPause(context.Context, *room.PlayPauseParams) error
	SeekTo(context.Context, *room.SeekToParams) error
	UpdateDuration(context.Context, *room.UpdateDurationParams) error
	// moderation
	UpdateSettings(context.Context, *room.UpdateSettingsParams) (room.UpdateSettingsResponse, error)
	ApproveSuggestion(context.Context, *room.SuggestionParams) (domain.Track, error)
	RejectSuggestion(context.Context, *room.SuggestionParams) error
	BanSuggestion(context.Context, *room.SuggestionParams) error
	UnbanSong(context.Context, *room.SongParams) error
	RemoveFromLibrary(context.Context, *room.SongParams) error
}

type controller struct {
	roomService    iRoomService
	upgrader       websocket.Upgrader
	validate       *validator.Validator
	wsmux          *wsrouter.WSRouter
	metrics        *metrics.Metrics
	metricsHandler http.Handler
	logger         *slog.Logger
}

func NewController(roomService iRoomService, m *metrics.Metrics, metricsHandler http.Handler, logger *slog.Logger) *controller {
	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService:    roomService,
		validate:       validator.NewValidator(),
		metrics:        m,
		metricsHandler: metricsHandler,
		logger:         logger,
	}
	c.wsmux = c.getWSRouter()

	return c
}
