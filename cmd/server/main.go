package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/listenroom/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
	usage        string
}

func (v configVar[T]) bind() {
	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

var (
	secret = configVar[string]{
		envKey:  "SERVER_SECRET",
		flagKey: "secret",
		usage:   "Token signing secret",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 80,
		usage:        "Server port",
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
		usage:        "Server host",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
		usage:        "Logging level",
	}
	maxQueueSize = configVar[int]{
		envKey:       "SERVER_MAX_QUEUE_SIZE",
		flagKey:      "max-queue-size",
		defaultValue: 50,
		usage:        "Default queue capacity for new rooms, 0 means unlimited",
	}
	suggestCooldown = configVar[time.Duration]{
		envKey:       "SERVER_SUGGEST_COOLDOWN",
		flagKey:      "suggest-cooldown",
		defaultValue: 5 * time.Second,
		usage:        "Minimum interval between suggestions of one member",
	}
	historyLimit = configVar[int]{
		envKey:       "SERVER_HISTORY_LIMIT",
		flagKey:      "history-limit",
		defaultValue: 500,
		usage:        "Maximum played tracks remembered per room",
	}
	roomIdleTimeout = configVar[time.Duration]{
		envKey:       "SERVER_ROOM_IDLE_TIMEOUT",
		flagKey:      "room-idle-timeout",
		defaultValue: 5 * time.Minute,
		usage:        "Unobserved rooms are unloaded after this long",
	}
	sweepInterval = configVar[time.Duration]{
		envKey:       "SERVER_SWEEP_INTERVAL",
		flagKey:      "sweep-interval",
		defaultValue: time.Minute,
		usage:        "How often idle rooms are looked for",
	}
	tickInterval = configVar[time.Duration]{
		envKey:       "SERVER_TICK_INTERVAL",
		flagKey:      "tick-interval",
		defaultValue: time.Second,
		usage:        "Playback clock resolution",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
		usage:        "Redis port",
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
		usage:        "Redis host",
	}
	redisPassword = configVar[string]{
		envKey:  "REDIS_PASSWORD",
		flagKey: "redis-password",
		usage:   "Redis password",
	}
	youtubeAPIKey = configVar[string]{
		envKey:  "YOUTUBE_API_KEY",
		flagKey: "youtube-api-key",
		usage:   "YouTube Data API key",
	}
	youtubeTimeout = configVar[time.Duration]{
		envKey:       "YOUTUBE_TIMEOUT",
		flagKey:      "youtube-timeout",
		defaultValue: 5 * time.Second,
		usage:        "Timeout of a single YouTube request",
	}
	youtubeRPS = configVar[float64]{
		envKey:       "YOUTUBE_RPS",
		flagKey:      "youtube-rps",
		defaultValue: 5,
		usage:        "YouTube requests per second, 0 disables limiting",
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.String(secret.flagKey, secret.defaultValue, secret.usage)
	pflag.Int(port.flagKey, port.defaultValue, port.usage)
	pflag.String(host.flagKey, host.defaultValue, host.usage)
	pflag.String(logLevel.flagKey, logLevel.defaultValue, logLevel.usage)
	pflag.Int(maxQueueSize.flagKey, maxQueueSize.defaultValue, maxQueueSize.usage)
	pflag.Duration(suggestCooldown.flagKey, suggestCooldown.defaultValue, suggestCooldown.usage)
	pflag.Int(historyLimit.flagKey, historyLimit.defaultValue, historyLimit.usage)
	pflag.Duration(roomIdleTimeout.flagKey, roomIdleTimeout.defaultValue, roomIdleTimeout.usage)
	pflag.Duration(sweepInterval.flagKey, sweepInterval.defaultValue, sweepInterval.usage)
	pflag.Duration(tickInterval.flagKey, tickInterval.defaultValue, tickInterval.usage)
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, redisPort.usage)
	pflag.String(redisHost.flagKey, redisHost.defaultValue, redisHost.usage)
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, redisPassword.usage)
	pflag.String(youtubeAPIKey.flagKey, youtubeAPIKey.defaultValue, youtubeAPIKey.usage)
	pflag.Duration(youtubeTimeout.flagKey, youtubeTimeout.defaultValue, youtubeTimeout.usage)
	pflag.Float64(youtubeRPS.flagKey, youtubeRPS.defaultValue, youtubeRPS.usage)
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	secret.bind()
	port.bind()
	host.bind()
	logLevel.bind()
	maxQueueSize.bind()
	suggestCooldown.bind()
	historyLimit.bind()
	roomIdleTimeout.bind()
	sweepInterval.bind()
	tickInterval.bind()
	redisPort.bind()
	redisHost.bind()
	redisPassword.bind()
	youtubeAPIKey.bind()
	youtubeTimeout.bind()
	youtubeRPS.bind()

	return &app.AppConfig{
		Secret:          viper.GetString(secret.flagKey),
		Host:            viper.GetString(host.flagKey),
		Port:            viper.GetInt(port.flagKey),
		LogLevel:        viper.GetString(logLevel.flagKey),
		MaxQueueSize:    viper.GetInt(maxQueueSize.flagKey),
		SuggestCooldown: viper.GetDuration(suggestCooldown.flagKey),
		HistoryLimit:    viper.GetInt(historyLimit.flagKey),
		RoomIdleTimeout: viper.GetDuration(roomIdleTimeout.flagKey),
		SweepInterval:   viper.GetDuration(sweepInterval.flagKey),
		TickInterval:    viper.GetDuration(tickInterval.flagKey),
		RedisPort:       viper.GetInt(redisPort.flagKey),
		RedisHost:       viper.GetString(redisHost.flagKey),
		RedisPassword:   viper.GetString(redisPassword.flagKey),
		YoutubeAPIKey:   viper.GetString(youtubeAPIKey.flagKey),
		YoutubeTimeout:  viper.GetDuration(youtubeTimeout.flagKey),
		YoutubeRPS:      viper.GetFloat64(youtubeRPS.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
