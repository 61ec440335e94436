package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sharetube/watchsync/internal/broadcast"
	"github.com/sharetube/watchsync/internal/controller"
	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/internal/metrics"
	membershipInmemory "github.com/sharetube/watchsync/internal/repository/membership/inmemory"
	roomRepository "github.com/sharetube/watchsync/internal/repository/room"
	roomInmemory "github.com/sharetube/watchsync/internal/repository/room/inmemory"
	roomRedis "github.com/sharetube/watchsync/internal/repository/room/redis"
	"github.com/sharetube/watchsync/internal/service/room"
	"github.com/sharetube/watchsync/pkg/ctxlogger"
	"github.com/sharetube/watchsync/pkg/redisclient"
)

const (
	RoomStoreMemory = "memory"
	RoomStoreRedis  = "redis"
)

type AppConfig struct {
	Host          string        `json:"host"`
	Port          int           `json:"port"`
	LogLevel      string        `json:"log_level"`
	RoomStore     string        `json:"room_store"`
	RoomTTL       time.Duration `json:"room_ttl"`
	SendBuffer    int           `json:"send_buffer"`
	RedisPort     int           `json:"redis_port"`
	RedisHost     string        `json:"redis_host"`
	RedisPassword string        `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535")
	}
	if cfg.RoomStore != RoomStoreMemory && cfg.RoomStore != RoomStoreRedis {
		return fmt.Errorf("room store must be %q or %q", RoomStoreMemory, RoomStoreRedis)
	}
	if cfg.RoomTTL < 0 {
		return fmt.Errorf("room ttl must not be negative")
	}
	if cfg.SendBuffer < 1 {
		return fmt.Errorf("send buffer must be greater than 0")
	}
	if _, err := parseLogLevel(cfg.LogLevel); err != nil {
		return err
	}
	return nil
}

func parseLogLevel(level string) (slog.Level, error) {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return logLevel, fmt.Errorf("failed to parse log level: %w", err)
	}

	return logLevel, nil
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	logLevel, err := parseLogLevel(level)
	if err != nil {
		return nil, err
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h), nil
}

type iRoomRepo interface {
	CreateRoom(context.Context, *roomRepository.CreateRoomParams) (domain.RoomState, error)
	GetRoom(context.Context, string) (domain.RoomState, error)
	UpdateVideoUrl(context.Context, *roomRepository.UpdateVideoUrlParams) (domain.RoomState, error)
	ApplyEvent(context.Context, *roomRepository.ApplyEventParams) (domain.RoomState, error)
}

// newRoomRepo selects the registry backend. Background work is bound to ctx. Rooms for which
// inUse reports true are not expired by the in-memory registry.
func newRoomRepo(ctx context.Context, cfg *AppConfig, inUse func(roomId string) bool, logger *slog.Logger) (iRoomRepo, func(), error) {
	switch cfg.RoomStore {
	case RoomStoreRedis:
		rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
			Port:     cfg.RedisPort,
			Host:     cfg.RedisHost,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create redis client: %w", err)
		}

		return roomRedis.NewRepo(rc, cfg.RoomTTL, logger), func() { rc.Close() }, nil
	default:
		repo := roomInmemory.NewRepo(cfg.RoomTTL, logger)
		go repo.RunExpiry(ctx, inUse)

		return repo, func() {}, nil
	}
}

func newHandler(ctx context.Context, cfg *AppConfig, logger *slog.Logger) (http.Handler, func(), error) {
	m := metrics.New(prometheus.NewRegistry())

	membershipRepo := membershipInmemory.NewRepo(logger)

	roomRepo, cleanup, err := newRoomRepo(ctx, cfg, membershipRepo.HasMembers, logger)
	if err != nil {
		return nil, nil, err
	}

	router := broadcast.NewRouter(membershipRepo, m, logger)
	roomService := room.NewService(roomRepo, membershipRepo, router, m, logger)
	controller := controller.NewController(roomService, router, m, logger, cfg.SendBuffer)

	return controller.GetMux(), cleanup, nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(os.Stdout, cfg.LogLevel)
	if err != nil {
		return err
	}

	serverCtx, serverStopCtx := context.WithCancel(ctx)
	defer serverStopCtx()

	handler, cleanup, err := newHandler(serverCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	// websocket connections are hijacked, so Shutdown does not wait for them
	connCtx, closeConns := context.WithCancel(serverCtx)
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: handler,
		BaseContext: func(net.Listener) context.Context {
			return connCtx
		},
	}
	server.RegisterOnShutdown(closeConns)

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sig)
	go func() {
		select {
		case <-sig:
		case <-serverCtx.Done():
		}

		shutdownCtx, c := context.WithTimeout(context.Background(), 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		logger.InfoContext(shutdownCtx, "shutting down server")
		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr, "room_store", cfg.RoomStore)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
