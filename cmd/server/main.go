package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Wyydra/yacall/internal/adapter/driven/gateway/ws"
	repo "github.com/Wyydra/yacall/internal/adapter/driven/persistence/memory"
	roommemory "github.com/Wyydra/yacall/internal/adapter/driven/room/memory"
	"github.com/Wyydra/yacall/internal/adapter/driven/room/pion"
	handler "github.com/Wyydra/yacall/internal/adapter/driving/http"
	"github.com/Wyydra/yacall/internal/config"
	"github.com/Wyydra/yacall/internal/core/domain"
	"github.com/Wyydra/yacall/internal/core/port"
	"github.com/Wyydra/yacall/internal/core/service"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	w := zerolog.ConsoleWriter{Out: os.Stdout}
	log.Logger = zerolog.New(w).With().Timestamp().Caller().Logger()

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	connector, err := newConnector(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create room connector")
	}

	history := repo.NewCallHistoryRepository()
	hub := ws.NewHub()

	tracker := service.NewCallTracker(connector, history, service.MultiNotifier{hub, service.LogNotifier{}}, service.TrackerConfig{
		ServerURL:      cfg.RoomURL,
		AgentIdentity:  domain.ParticipantIdentity(cfg.AgentIdentity),
		IdentityPrefix: cfg.IdentityPrefix,
	})
	h := handler.NewHandler(tracker, hub, cfg.StaticDir)

	go hub.Run()
	go tracker.Run()

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: h.NewRouter(),
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("room_driver", cfg.RoomDriver).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	tracker.Stop()
	hub.Stop()
	log.Info().Msg("Server exited")
}

func newConnector(cfg *config.Config) (port.RoomConnector, error) {
	if cfg.RoomDriver == config.DriverMemory {
		return roommemory.NewConnector(roommemory.Options{
			AgentIdentity: domain.ParticipantIdentity(cfg.AgentIdentity),
			AgentDelay:    cfg.MemoryAgentDelay,
		}), nil
	}
	c, err := pion.NewConnector(pion.Options{
		ICEServers:       cfg.ICEServers,
		AudioSource:      pion.SilenceSource{},
		HandshakeTimeout: cfg.HandshakeTimeout,
		AnswerTimeout:    cfg.AnswerTimeout,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
