package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/akostadinov/chunchun/config"
	"github.com/akostadinov/chunchun/internal/accounts"
	"github.com/akostadinov/chunchun/internal/feed"
	"github.com/akostadinov/chunchun/internal/handlers"
	"github.com/akostadinov/chunchun/internal/kv"
	"github.com/akostadinov/chunchun/internal/mq"
	"github.com/akostadinov/chunchun/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Server wraps the HTTP server, the router and the backends behind them.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	store      kv.Store
	bus        *mq.MQ
	sessions   *services.SessionManager

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New opens the configured backends, populates the store unless
// CHUNCHUN_INIT_SKIP is set and registers the command surface.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	s, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	avatars, err := OpenStorage(ctx, cfg, s)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	bus, err := OpenMQ(ctx, cfg)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	graphCfg := GraphConfig(cfg)
	if cfg.Init.Skip {
		logrus.Info("initial population skipped")
	} else if _, err := Populate(ctx, s, avatars, graphCfg); err != nil {
		_ = bus.Close()
		_ = s.Close()
		return nil, fmt.Errorf("populate: %w", err)
	}

	social := services.NewSocialService(s, avatars, bus)
	sessions := services.NewSessionManager(
		accounts.NewPool(cfg.Init.Users),
		feed.NewStoreAggregator(s),
		social,
		cfg.Feed.InitialLimit,
		cfg.Feed.LimitStep,
	)
	stats := services.NewStatsService(s, graphCfg)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	handlers.Routes(router, social, sessions, stats)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	runCtx, cancel := context.WithCancel(context.Background())
	return &Server{
		httpServer: httpServer,
		router:     router,
		store:      s,
		bus:        bus,
		sessions:   sessions,
		runCtx:     runCtx,
		cancel:     cancel,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start consumes watch events in the background and runs the HTTP server.
func (s *Server) Start() error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.sessions.Run(s.runCtx, s.bus); err != nil {
			logrus.WithError(err).Error("watch event subscription stopped")
		}
	}()

	logrus.WithField("addr", s.httpServer.Addr).Info("http server listening")
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server and the subscription, then closes the
// backends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.cancel()
	s.wg.Wait()
	if s.bus != nil {
		_ = s.bus.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
	return err
}
