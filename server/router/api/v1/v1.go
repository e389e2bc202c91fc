package v1

import (
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/semaphore"

	"github.com/campfire-chat/campfire/internal/profile"
	"github.com/campfire-chat/campfire/plugin/ai"
	"github.com/campfire-chat/campfire/server/auth"
	"github.com/campfire-chat/campfire/server/middleware"
	airelay "github.com/campfire-chat/campfire/server/router/api/v1/ai"
	"github.com/campfire-chat/campfire/store"
)

// APIV1Service wires the REST surface under /api/v1.
type APIV1Service struct {
	Secret  string
	Profile *profile.Profile
	Store   *store.Store

	registry *ai.Registry
	provider ai.ConversationProvider
	relay    *airelay.Relay

	// streamSemaphore bounds concurrent generation streams so a burst of
	// chat requests cannot exhaust provider connections.
	streamSemaphore *semaphore.Weighted
	rateLimiter     *middleware.RateLimiter
}

// NewAPIV1Service creates the API service. The provider and registry may be
// nil when no provider API key is configured; the chat endpoints then report
// a configuration error.
func NewAPIV1Service(secret string, profile *profile.Profile, store *store.Store, provider ai.ConversationProvider, registry *ai.Registry) *APIV1Service {
	service := &APIV1Service{
		Secret:          secret,
		Profile:         profile,
		Store:           store,
		registry:        registry,
		provider:        provider,
		streamSemaphore: semaphore.NewWeighted(profile.MaxStreams),
		rateLimiter:     middleware.NewRateLimiter(time.Second, 20),
	}
	if provider != nil && registry != nil {
		service.relay = airelay.NewRelay(provider, registry, store)
	}
	return service
}

// RegisterRoutes registers all /api/v1 routes on the echo instance. The
// route gate runs before these handlers; only registration and the auth
// group accept unauthenticated requests.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	apiV1 := echoServer.Group("/api/v1")

	apiV1.POST("/users", s.RegisterUser)
	apiV1.GET("/users/me", s.GetCurrentUser)

	authGroup := apiV1.Group("/auth")
	authGroup.POST("/login", s.SignIn)
	authGroup.POST("/logout", s.SignOut)
	if s.Profile.IsOAuthEnabled() {
		authGroup.GET("/google", s.GoogleSignIn)
		authGroup.GET("/google/callback", s.GoogleCallback)
	}

	apiV1.POST("/chat", s.Chat)
	apiV1.POST("/assistant", s.Assistant)

	apiV1.GET("/conversations", s.ListConversations)
	apiV1.GET("/conversations/:uid/messages", s.ListConversationMessages)
	apiV1.DELETE("/conversations/:uid", s.DeleteConversation)

	apiV1.GET("/system/metrics", s.GetSystemMetrics)
}

// currentUser returns the authenticated user placed by the route gate.
func (s *APIV1Service) currentUser(c echo.Context) *store.User {
	if user, ok := c.Get(middleware.UserContextKey).(*store.User); ok {
		return user
	}
	return auth.UserFromContext(c.Request().Context())
}
