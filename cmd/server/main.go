package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ankitGuptakapture/kaplingo-backend/internal/adapters/httpapi"
	"github.com/ankitGuptakapture/kaplingo-backend/internal/adapters/rtc"
	signalws "github.com/ankitGuptakapture/kaplingo-backend/internal/adapters/signal"
	"github.com/ankitGuptakapture/kaplingo-backend/internal/app"
	"github.com/ankitGuptakapture/kaplingo-backend/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	registry := app.NewConnectionRegistry()
	rooms := app.NewRoomStore()
	matcher := app.NewRoomMatcher(rooms)
	router := &app.CoordinationRouter{
		Registry:                 registry,
		Rooms:                    rooms,
		Cooldown:                 cfg.TranslationCooldown,
		EchoTranslationToPartner: cfg.EchoTranslationToPartner,
	}
	facade := &app.SessionFacade{
		Registry: registry,
		Matcher:  matcher,
		Rooms:    rooms,
		Router:   router,
	}

	sweeper := &app.Sweeper{
		Facade:      facade,
		Interval:    cfg.SweepInterval,
		ConnTimeout: cfg.ConnectionTimeout,
		RoomIdle:    cfg.RoomIdleTimeout,
	}
	go sweeper.Run(ctx)

	sig := signalws.NewController(facade, cfg)
	media := rtc.NewManager(facade, rtc.Config(cfg.StunURL))

	r := httpapi.SetupRouter(ctx, cfg, facade, sig, media)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Kaplingo server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
