package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/listenroom/internal/controller"
	"github.com/sharetube/listenroom/internal/metrics"
	"github.com/sharetube/listenroom/internal/repository/connection/inmemory"
	roomRedis "github.com/sharetube/listenroom/internal/repository/room/redis"
	"github.com/sharetube/listenroom/internal/resolver/youtube"
	"github.com/sharetube/listenroom/internal/service/room"
	"github.com/sharetube/listenroom/pkg/ctxlogger"
	"github.com/sharetube/listenroom/pkg/redisclient"
	"github.com/sharetube/listenroom/pkg/ytvideodata"
)

type AppConfig struct {
	Secret          string        `json:"-"`
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	LogLevel        string        `json:"log_level"`
	MaxQueueSize    int           `json:"max_queue_size"`
	SuggestCooldown time.Duration `json:"suggest_cooldown"`
	HistoryLimit    int           `json:"history_limit"`
	RoomIdleTimeout time.Duration `json:"room_idle_timeout"`
	SweepInterval   time.Duration `json:"sweep_interval"`
	TickInterval    time.Duration `json:"tick_interval"`
	RedisPort       int           `json:"redis_port"`
	RedisHost       string        `json:"redis_host"`
	RedisPassword   string        `json:"-"`
	YoutubeAPIKey   string        `json:"-"`
	YoutubeTimeout  time.Duration `json:"youtube_timeout"`
	YoutubeRPS      float64       `json:"youtube_rps"`
}

func (cfg *AppConfig) Validate() error {
	var errs []error
	if cfg.Secret == "" {
		errs = append(errs, errors.New("secret must be set"))
	}
	if cfg.MaxQueueSize < 0 {
		errs = append(errs, errors.New("max queue size must not be negative"))
	}
	if cfg.HistoryLimit < 1 {
		errs = append(errs, errors.New("history limit must be greater than 0"))
	}
	if cfg.SuggestCooldown < 0 {
		errs = append(errs, errors.New("suggest cooldown must not be negative"))
	}
	if cfg.RoomIdleTimeout <= 0 {
		errs = append(errs, errors.New("room idle timeout must be greater than 0"))
	}
	if cfg.SweepInterval <= 0 {
		errs = append(errs, errors.New("sweep interval must be greater than 0"))
	}
	if cfg.TickInterval <= 0 {
		errs = append(errs, errors.New("tick interval must be greater than 0"))
	}
	if cfg.YoutubeRPS < 0 {
		errs = append(errs, errors.New("youtube rps must not be negative"))
	}
	return errors.Join(errs...)
}

func newLogger(level string) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h), nil
}

type roomRuntime interface {
	RunSweeper(context.Context, time.Duration)
	Shutdown(context.Context) error
}

// wire builds the room runtime and its HTTP handler on top of rc.
func wire(cfg *AppConfig, rc *redis.Client, logger *slog.Logger, reg *prometheus.Registry) (http.Handler, roomRuntime) {
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	roomRepo := roomRedis.NewRepo(rc, logger)
	connectionRepo := inmemory.NewRepo(logger)
	resolver := youtube.NewClient(youtube.Config{
		APIKey:  cfg.YoutubeAPIKey,
		Timeout: cfg.YoutubeTimeout,
		RPS:     cfg.YoutubeRPS,
	}, ytvideodata.New(&http.Client{Timeout: cfg.YoutubeTimeout}), m, logger)

	roomService := room.NewService(roomRepo, connectionRepo, resolver, m, logger, room.Config{
		Secret:          cfg.Secret,
		MaxQueueSize:    cfg.MaxQueueSize,
		SuggestCooldown: cfg.SuggestCooldown,
		HistoryLimit:    cfg.HistoryLimit,
		IdleTimeout:     cfg.RoomIdleTimeout,
		TickInterval:    cfg.TickInterval,
	})

	controller := controller.NewController(roomService, m, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), logger)
	return controller.GetMux(), roomService
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
		Port:     cfg.RedisPort,
		Host:     cfg.RedisHost,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	if cfg.YoutubeAPIKey == "" {
		logger.WarnContext(ctx, "youtube api key is not set, falling back to oembed without search")
	}

	handler, rooms := wire(cfg, rc, logger, prometheus.NewRegistry())
	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: handler}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	go rooms.RunSweeper(serverCtx, cfg.SweepInterval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		if err := rooms.Shutdown(shutdownCtx); err != nil {
			logger.ErrorContext(shutdownCtx, "failed to save rooms", "error", err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
