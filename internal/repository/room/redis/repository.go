package redis

import (
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// VideoCacheTTL is the staleness horizon of cached content metadata.
const VideoCacheTTL = 28 * 24 * time.Hour

type repo struct {
	rc             *redis.Client
	logger         *slog.Logger
	videoCacheTTL  time.Duration
	searchCacheTTL time.Duration
}

func NewRepo(rc *redis.Client, logger *slog.Logger) *repo {
	return &repo{
		rc:             rc,
		logger:         logger,
		videoCacheTTL:  VideoCacheTTL,
		searchCacheTTL: VideoCacheTTL,
	}
}
