package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quizhub-subscription-svc/src/clients"
	"quizhub-subscription-svc/src/internal/config"
	"quizhub-subscription-svc/src/internal/dependency"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var log = logrus.StandardLogger()

type Server struct {
	cfg  *config.Configuration
	deps *dependency.Manager
}

func New(cfg *config.Configuration) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())

	mongodb, err := clients.NewMongoDB(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}

	redisClient, err := clients.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}

	rabbitMQ, err := clients.NewRabbitMQ(&cfg.Queue)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to RabbitMQ")
	}
	if err := rabbitMQ.SetupQueue(); err != nil {
		log.WithError(err).Fatal("Failed to set up notification queue")
	}

	deps := dependency.NewDependencyManager(router, mongodb, redisClient, rabbitMQ, cfg)
	SetupRoutes(deps)

	return &Server{
		cfg:  cfg,
		deps: deps,
	}
}

// Start runs the HTTP server and the background schedules, then blocks until
// SIGINT or SIGTERM and shuts everything down in order.
func (s *Server) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.Database.Timeout)*time.Second)
	if err := s.deps.UserRepository.EnsureIndexes(ctx); err != nil {
		log.WithError(err).Warn("Failed to ensure database indexes")
	}
	cancel()

	s.deps.Reconciler.Start()
	s.deps.Sweeper.Start()

	httpServer := &http.Server{
		Addr:         ":" + s.cfg.Server.Port,
		Handler:      s.deps.Router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("HTTP server listening on :%s", s.cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Infof("Received signal %s, shutting down", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}

	s.deps.Sweeper.Stop()
	s.deps.Reconciler.Stop()

	if err := s.deps.RabbitMQ.Close(); err != nil {
		log.WithError(err).Error("Failed to close RabbitMQ")
	}
	if err := s.deps.Redis.Close(); err != nil {
		log.WithError(err).Error("Failed to close Redis")
	}
	if err := s.deps.Mongodb.Close(shutdownCtx); err != nil {
		log.WithError(err).Error("Failed to close MongoDB")
	}

	log.Info("Shutdown complete")
	return nil
}
