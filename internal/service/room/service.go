package room

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sharetube/listenroom/internal/domain"
	"github.com/sharetube/listenroom/internal/metrics"
	"github.com/sharetube/listenroom/internal/repository/connection"
	"github.com/sharetube/listenroom/internal/repository/room"
	"golang.org/x/sync/singleflight"
)

type iRoomRepo interface {
	// room
	CreateRoom(context.Context, *room.CreateRoomParams) error
	GetRoom(context.Context, string) (room.Room, error)
	UpdateRoom(context.Context, *room.UpdateRoomParams) error
	ClaimOwner(context.Context, *room.ClaimOwnerParams) (bool, error)
	TouchRoom(context.Context, *room.TouchRoomParams) error
	ListRoomIds(context.Context) ([]string, error)
	DeleteRoom(context.Context, string) error
	// history
	AddHistoryEntry(context.Context, *room.AddHistoryEntryParams) error
	GetHistory(ctx context.Context, roomId string, limit int) ([]domain.HistoryEntry, error)
	SetHistory(context.Context, *room.SetHistoryParams) error
	// library
	SetBannedSong(context.Context, *room.SetBannedSongParams) error
	RemoveBannedSong(context.Context, *room.RemoveBannedSongParams) error
	GetBannedSongs(context.Context, string) (map[string]domain.BannedSong, error)
	AddKnownSong(context.Context, *room.KnownSongParams) error
	RemoveKnownSong(context.Context, *room.KnownSongParams) error
	GetKnownSongs(context.Context, string) ([]string, error)
	// state
	SetSettings(context.Context, *room.SetSettingsParams) error
	GetSettings(context.Context, string) (domain.Settings, error)
	SetQueueSnapshot(context.Context, *room.SetQueueSnapshotParams) error
	GetQueueSnapshot(context.Context, string) (room.QueueSnapshot, error)
	// cache
	SetVideo(context.Context, *room.SetVideoParams) error
	GetVideo(context.Context, string) (room.Video, error)
	SetSearchResult(context.Context, *room.SetSearchResultParams) error
	GetSearchResult(context.Context, string) (string, error)
}

type iConnRepo interface {
	Add(connection.Observer) error
	Remove(string) (connection.Observer, error)
	RemoveByRoom(string) []connection.Observer
	ListByRoom(string) []connection.Observer
	CountByRoom(string) int
	Count() int
}

type iResolver interface {
	Lookup(ctx context.Context, videoId string) (domain.Media, error)
	Search(ctx context.Context, query string) (domain.Media, error)
	CheckAvailability(ctx context.Context, ids []string) (map[string]bool, error)
}

type Config struct {
	Secret          string
	MaxQueueSize    int
	SuggestCooldown time.Duration
	HistoryLimit    int
	IdleTimeout     time.Duration
	TickInterval    time.Duration
}

const (
	snapshotHistory = 50
	refillTimeout   = 30 * time.Second
	persistTimeout  = 5 * time.Second
)

type service struct {
	roomRepo iRoomRepo
	connRepo iConnRepo
	resolver iResolver
	metrics  *metrics.Metrics
	logger   *slog.Logger
	cfg      Config

	now     func() time.Time
	newRand func() *rand.Rand

	mu    sync.Mutex
	rooms map[string]*roomActor
	loads singleflight.Group
}

func NewService(roomRepo iRoomRepo, connRepo iConnRepo, resolver iResolver, m *metrics.Metrics, logger *slog.Logger, cfg Config) *service {
	return &service{
		roomRepo: roomRepo,
		connRepo: connRepo,
		resolver: resolver,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
		rooms: make(map[string]*roomActor),
	}
}
