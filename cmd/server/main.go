package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/santa-draw-backend/internal/archive"
	"github.com/DoyleJ11/santa-draw-backend/internal/broadcast"
	"github.com/DoyleJ11/santa-draw-backend/internal/config"
	"github.com/DoyleJ11/santa-draw-backend/internal/httpapi"
	"github.com/DoyleJ11/santa-draw-backend/internal/lobby"
	"github.com/DoyleJ11/santa-draw-backend/internal/logging"
	"github.com/DoyleJ11/santa-draw-backend/internal/roster"
	"github.com/DoyleJ11/santa-draw-backend/internal/schedule"
	"github.com/DoyleJ11/santa-draw-backend/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ros, err := roster.Load(cfg.RosterPath)
	if err != nil {
		logger.Fatal("failed to load roster", zap.String("path", cfg.RosterPath), zap.Error(err))
	}
	logger.Info("roster loaded", zap.Int("participants", ros.Len()), zap.Int("groups", len(ros.Groups())))

	var (
		publishers []broadcast.Publisher
		history    httpapi.History
	)
	if cfg.RedisAddr != "" {
		rdb, err := broadcast.DialRedis(ctx, broadcast.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			logger.Fatal("failed to initialize Redis", zap.Error(err))
		}
		defer rdb.Close()
		publishers = append(publishers, broadcast.NewRedisPublisher(rdb, cfg.RedisChannel))
	}
	if cfg.DatabaseURL != "" {
		db, err := archive.Open(cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal("failed to initialize PostgreSQL", zap.Error(err))
		}
		rec, err := archive.NewRecorder(db, logger)
		if err != nil {
			logger.Fatal("failed to prepare archive", zap.Error(err))
		}
		publishers = append(publishers, rec)
		history = rec
	}

	relay := broadcast.NewRelay(logger, 256, publishers...)

	// The lobby outlives the signal context so it can drain after the HTTP
	// server stops.
	lb := lobby.NewLobby(context.Background(), ros,
		lobby.WithLogger(logger),
		lobby.WithSink(relay),
		lobby.WithStaleAfter(cfg.PresenceStaleAfter),
	)

	sweeper, err := schedule.StartPresenceSweep(cfg.PresenceSweepSpec, lb, cfg.PresenceStaleAfter, logger)
	if err != nil {
		logger.Fatal("failed to schedule presence sweep", zap.Error(err))
	}

	handler := httpapi.SetupRoutes(httpapi.Deps{
		Lobby:          lb,
		Sessions:       session.NewManager(cfg.SessionSecret, cfg.SessionTTL, cfg.AdminSecretCode, session.WithSecureCookie(cfg.IsProduction())),
		Logger:         logger,
		History:        history,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	if cfg.AdminSecretCode == "" {
		logger.Warn("ADMIN_SECRET_CODE is not set, admin login is disabled")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	<-sweeper.Stop().Done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	lb.Inbox() <- lobby.Shutdown{}
	<-lb.Done()
	relay.Close()
}
