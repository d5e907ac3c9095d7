package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/learnloop/internal/learning"
	"github.com/abhisek/learnloop/internal/logger"
)

// shutdownGrace bounds how long in-flight requests may finish on shutdown.
const shutdownGrace = 10 * time.Second

type Server struct {
	Engine *gin.Engine
	svc    *learning.Service
	log    *logger.Logger
}

// NewServer builds the HTTP surface over svc.
func NewServer(svc *learning.Service, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		Engine: NewRouter(RouterConfig{
			LearningHandler:   NewLearningHandler(svc, log),
			CurriculumHandler: NewCurriculumHandler(svc, log),
			HealthHandler:     NewHealthHandler(),
			Log:               log,
		}),
		svc: svc,
		log: log,
	}
}

// Run serves on address until ctx is cancelled, then drains in-flight
// requests and background card generation.
func (s *Server) Run(ctx context.Context, address string) error {
	srv := &http.Server{
		Addr:              address,
		Handler:           s.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "addr", address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", address, err)
	case <-ctx.Done():
	}

	s.log.Info("HTTP server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.svc.Wait()
	return nil
}
