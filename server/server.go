package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/campfire-chat/campfire/internal/profile"
	"github.com/campfire-chat/campfire/plugin/ai"
	"github.com/campfire-chat/campfire/server/auth"
	"github.com/campfire-chat/campfire/server/middleware"
	apiv1 "github.com/campfire-chat/campfire/server/router/api/v1"
	"github.com/campfire-chat/campfire/store"
)

// Server is the HTTP server of the campfire backend.
type Server struct {
	Secret  string
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
}

// NewServer assembles the echo instance: recovery and CORS, the route gate,
// the health endpoint, and the /api/v1 surface. The chat provider is
// optional; without a provider API key the server still serves accounts and
// conversation history.
func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	secret := profile.Secret
	if secret == "" {
		if !profile.IsDev() {
			return nil, errors.New("session secret must be configured outside dev mode")
		}
		secret = "campfire-dev-secret"
	}

	s := &Server{
		Secret:  secret,
		Profile: profile,
		Store:   store,
	}

	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(echomw.Recover())
	echoServer.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowCredentials: true,
		AllowOriginFunc: func(_ string) (bool, error) {
			return true, nil
		},
	}))

	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})

	gate := middleware.NewRouteGate(auth.NewAuthenticator(store, secret))
	echoServer.Use(gate.Middleware())

	provider, registry, err := buildProvider(profile)
	if err != nil {
		return nil, err
	}
	apiV1Service := apiv1.NewAPIV1Service(secret, profile, store, provider, registry)
	apiV1Service.RegisterRoutes(echoServer)

	s.echoServer = echoServer
	return s, nil
}

// buildProvider constructs the OpenAI provider and agent registry when a
// provider API key is configured.
func buildProvider(p *profile.Profile) (ai.ConversationProvider, *ai.Registry, error) {
	if p.ProviderAPIKey == "" {
		slog.Warn("no provider api key configured, chat endpoints disabled")
		return nil, nil, nil
	}
	provider, err := ai.NewOpenAIProvider(p)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create chat provider")
	}
	registry, err := ai.NewRegistryFromProfile(p)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to build agent registry")
	}
	return provider, registry, nil
}

// Start begins serving and blocks until the listener fails or is shut down.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	slog.Info("server started",
		slog.String("address", address),
		slog.String("mode", s.Profile.Mode),
		slog.String("version", s.Profile.Version),
	)
	if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully drains in-flight requests and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server gracefully", slog.String("error", err.Error()))
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", slog.String("error", err.Error()))
	}
	slog.Info("server stopped")
}
