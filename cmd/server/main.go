package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Playground/internal/adapters/http"
	"github.com/dkeye/Playground/internal/adapters/rtc"
	wssignal "github.com/dkeye/Playground/internal/adapters/signal"
	"github.com/dkeye/Playground/internal/app"
	"github.com/dkeye/Playground/internal/app/chat"
	"github.com/dkeye/Playground/internal/app/orch"
	"github.com/dkeye/Playground/internal/app/participants"
	"github.com/dkeye/Playground/internal/app/peerid"
	"github.com/dkeye/Playground/internal/app/rooms"
	"github.com/dkeye/Playground/internal/app/subscription"
	"github.com/dkeye/Playground/internal/app/writing"
	"github.com/dkeye/Playground/internal/config"
	"github.com/dkeye/Playground/internal/core"
	"github.com/dkeye/Playground/internal/history"
	"github.com/dkeye/Playground/internal/store/memory"
	redisstore "github.com/dkeye/Playground/internal/store/redis"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, keeping info")
	}
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("Server exited gracefully")
}

func openStore(ctx context.Context, cfg *config.Config) (core.Store, func(), error) {
	if cfg.Store.Driver != "redis" {
		return memory.New(), func() {}, nil
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Store.Redis.Addr,
		Password: cfg.Store.Redis.Password,
		DB:       cfg.Store.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.Store.Redis.Addr, err)
	}
	log.Info().Str("addr", cfg.Store.Redis.Addr).Str("prefix", cfg.Store.Redis.Prefix).Msg("using redis store")
	return redisstore.New(rdb, cfg.Store.Redis.Prefix), func() { _ = rdb.Close() }, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	peerIDs, err := peerid.New()
	if err != nil {
		return err
	}
	transport, err := rtc.NewTransport(rtc.DefaultWebRTCConfig(cfg.RTC.STUN))
	if err != nil {
		return err
	}

	svc := orch.Services{
		Participants: participants.New(store, nil),
		Writing:      writing.New(store, nil),
		Chat:         chat.New(store, nil),
		Subs:         subscription.New(store),
		PeerIDs:      peerIDs,
		Transport:    transport,
	}

	var archive *history.Archive
	var roomOpts []rooms.Option
	if cfg.History.Enabled {
		archive, err = history.Open(cfg.History.Path, cfg.Mode == "debug")
		if err != nil {
			return err
		}
		defer func() { _ = archive.Close() }()
		arch := app.NewArchiver(archive, svc.Participants, svc.Writing, svc.Chat)
		roomOpts = append(roomOpts, rooms.WithEndedHook(arch.OnEnded))
	}
	svc.Rooms = rooms.New(store, roomOpts...)

	reg := app.NewRegistry()
	limiter := wssignal.NewRateLimiter(cfg.WriteLimit.Count, cfg.WriteLimit.Window)
	ctl := wssignal.NewSignalWSController(reg, transport, app.SimplePolicy{MaxDropped: cfg.MaxDropped}, limiter)
	ctl.ReadLimit = cfg.ReadLimit
	ctl.PingPeriod = cfg.PingPeriod

	deps := router.Deps{Registry: reg, Services: svc, Signal: ctl, Limiter: limiter}
	if archive != nil {
		deps.History = archive
	}
	r := router.SetupRouter(ctx, cfg, deps)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Playground server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		err := srv.Shutdown(shutdownCtx)
		reg.CloseAll()
		transport.CloseAll()
		if err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return err
	})
	return g.Wait()
}
