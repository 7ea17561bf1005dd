// Package httpapi is the HTTP surface of eventpass: the chi router, the
// access guards, request handlers and the mapping of domain errors to
// status codes.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/eventpass/internal/logging"
	"github.com/dmitrijs2005/eventpass/internal/server/auth"
	"github.com/dmitrijs2005/eventpass/internal/server/models"
	"github.com/dmitrijs2005/eventpass/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

// TokenVerifier checks a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type Server struct {
	address        string
	requestTimeout time.Duration
	auth           *services.AuthService
	events         *services.EventService
	tokens         TokenVerifier
	logger         logging.Logger
	registry       *prometheus.Registry
	metrics        *metrics
}

func NewServer(address string, requestTimeout time.Duration, l logging.Logger, as *services.AuthService,
	es *services.EventService, tokens TokenVerifier) *Server {
	reg := prometheus.NewRegistry()
	return &Server{
		address:        address,
		requestTimeout: requestTimeout,
		auth:           as,
		events:         es,
		tokens:         tokens,
		logger:         l.With("module", "http_server"),
		registry:       reg,
		metrics:        newMetrics(reg),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.instrument)
	r.Use(s.recoverer)
	if s.requestTimeout > 0 {
		r.Use(middleware.Timeout(s.requestTimeout))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	admin := RequireRoles(models.RoleAdmin)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/admin/login", s.handleAdminLogin)

		r.With(s.Authenticate).Get("/validate", s.handleValidate)
		r.With(s.Authenticate, admin).Get("/admin/dashboard", s.handleDashboard)
		r.With(s.Authenticate).Post("/logout", s.handleLogout)
		r.With(s.Authenticate).Get("/me", s.handleMe)
		r.With(s.Authenticate).Patch("/profile", s.handleUpdateProfile)
		r.With(s.Authenticate).Get("/profile-picture", s.handleProfilePictureDownloadURL)
		r.With(s.Authenticate).Put("/profile-picture", s.handleUpdateProfilePicture)
		r.With(s.Authenticate).Post("/profile-picture/upload-url", s.handleProfilePictureUploadURL)
	})

	r.Route("/events", func(r chi.Router) {
		r.With(s.OptionalAuthenticate).Get("/", s.handleListEvents)
		r.With(s.Authenticate).Post("/", s.handleCreateEvent)
		r.With(s.Authenticate).Get("/my-events", s.handleMyEvents)
		r.With(s.Authenticate).Get("/my-registrations", s.handleMyRegistrations)
		r.With(s.OptionalAuthenticate).Post("/register", s.handleRegisterForEvent)
		r.With(s.Authenticate, admin).Put("/registrations/{registrationID}/status", s.handleUpdateRegistrationStatus)

		r.With(s.OptionalAuthenticate).Get("/{eventID}", s.handleGetEvent)
		r.With(s.Authenticate).Put("/{eventID}", s.handleUpdateEvent)
		r.With(s.Authenticate).Delete("/{eventID}", s.handleDeleteEvent)
		r.With(s.Authenticate).Post("/{eventID}/time-slots", s.handleCreateTimeSlot)
		r.With(s.Authenticate).Get("/{eventID}/registrations", s.handleEventRegistrations)
		r.With(s.OptionalAuthenticate).Get("/{eventID}/picture", s.handleEventPictureDownloadURL)
		r.With(s.Authenticate).Post("/{eventID}/picture/upload-url", s.handleEventPictureUploadURL)
	})

	return r
}

// Run serves HTTP on the configured address until ctx is cancelled, then
// drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

func (s *Server) Serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
