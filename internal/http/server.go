package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Clark-Hu/specialist-directory/internal/auth"
	"github.com/Clark-Hu/specialist-directory/internal/cache"
	"github.com/Clark-Hu/specialist-directory/internal/config"
	"github.com/Clark-Hu/specialist-directory/internal/logger"
	"github.com/Clark-Hu/specialist-directory/internal/repository"
	"github.com/Clark-Hu/specialist-directory/internal/reviews"
	"github.com/Clark-Hu/specialist-directory/internal/store"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Store   *store.Store
	Repo    *repository.Repository
	Auth    *auth.Service
	Reviews *reviews.Service
	Cache   *cache.Cache
	Logger  *logger.Logger
}

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg     config.Config
	store   *store.Store
	repo    *repository.Repository
	auth    *auth.Service
	reviews *reviews.Service
	cache   *cache.Cache
	logger  *logger.Logger
	router  chi.Router
	httpSrv *http.Server
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}

	s := &Server{
		cfg:     cfg,
		store:   deps.Store,
		repo:    deps.Repo,
		auth:    deps.Auth,
		reviews: deps.Reviews,
		cache:   deps.Cache,
		logger:  log.With("component", "http"),
	}
	if s.reviews == nil {
		s.reviews = reviews.NewService(deps.Repo, deps.Cache, log)
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	s.router = r

	s.registerRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/users/signup/", s.handleSignup)
		r.Post("/auth/token/", s.handleObtainToken)
		r.Post("/auth/token/refresh/", s.handleRefreshToken)
		r.Post("/auth/token/verify/", s.handleVerifyToken)

		r.Get("/technologies/", s.handleListTechnologies)
		r.Get("/employment-types/", s.handleListEmploymentTypes)
		r.Get("/specialist-levels/", s.handleListSpecialistLevels)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/users/me/", s.handleMe)

			r.Route("/profiles", func(r chi.Router) {
				r.Get("/", s.handleListProfiles)
				r.Post("/", s.handleCreateProfile)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetProfile)
					r.Patch("/", s.handleUpdateProfile)
					r.Delete("/", s.handleDeleteProfile)
					r.Get("/reviews/", s.handleListReviews)
					r.Post("/reviews/", s.handleCreateReview)
					r.Post("/projects/", s.handleCreateProject)
					r.Post("/social-networks/", s.handleCreateSocialNetwork)
					r.Post("/contacts/", s.handleCreateContact)
				})
			})
			r.Delete("/projects/{id}/", s.handleDeleteProject)
			r.Delete("/social-networks/{id}/", s.handleDeleteSocialNetwork)
			r.Delete("/contacts/{id}/", s.handleDeleteContact)

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.requireStaff)
				s.registerAdminRoutes(r)
			})
		})
	})
}

// Start boots the HTTP server and blocks until ctx ends or serving fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

type healthResponse struct {
	Status string          `json:"status"`
	Cache  string          `json:"cache"`
	DB     *poolStatistics `json:"db,omitempty"`
}

type poolStatistics struct {
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	MaxConns      int32 `json:"max_conns"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.HealthCheck(ctx); err != nil {
		s.logger.Warn("health check failed", "error", err)
		s.respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Database unreachable")
		return
	}

	resp := healthResponse{Status: "ok", Cache: "disabled"}
	if s.cache.Enabled() {
		resp.Cache = "enabled"
	}
	if st := s.store.Stats(); st != nil {
		resp.DB = &poolStatistics{
			TotalConns:    st.TotalConns(),
			IdleConns:     st.IdleConns(),
			AcquiredConns: st.AcquiredConns(),
			MaxConns:      st.MaxConns(),
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}
