package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/linkedge-backend/api/controllers"
	"github.com/angelmondragon/linkedge-backend/api/middleware"
	"github.com/angelmondragon/linkedge-backend/internal/connections"
	"github.com/angelmondragon/linkedge-backend/internal/notifications"
	"github.com/angelmondragon/linkedge-backend/internal/posts"
	"github.com/angelmondragon/linkedge-backend/internal/users"
	"github.com/angelmondragon/linkedge-backend/pkg/config"
	"github.com/angelmondragon/linkedge-backend/pkg/logger"
)

// RouterParams carries everything the HTTP surface is wired to.
type RouterParams struct {
	Config *config.Config
	Logger *logger.Logger

	DB    controllers.Pinger
	Redis controllers.Pinger
	// Idempotency is optional; nil disables response replay.
	Idempotency middleware.IdempotencyStore

	Users         users.Service
	Connections   connections.Service
	Posts         posts.Service
	Notifications notifications.Service

	// MetricsHandler defaults to promhttp.Handler().
	MetricsHandler http.Handler
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	readiness := map[string]controllers.Pinger{}
	if p.DB != nil {
		readiness["db"] = p.DB
	}
	if p.Redis != nil {
		readiness["redis"] = p.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})

	metricsHandler := p.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(idempotency(p.Idempotency, logg)).Post("/users", controllers.RegisterUser(p.Users, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Identity(cfg.JWT, cfg.Auth, logg))
			r.Use(idempotency(p.Idempotency, logg))

			r.Get("/users/{userId}", controllers.GetUser(p.Users, logg))
			r.Get("/users/{userId}/posts", controllers.ListUserPosts(p.Posts, logg))

			r.Route("/connections", func(r chi.Router) {
				r.Get("/first-degree", controllers.FirstDegreeConnections(p.Connections, logg))
				r.Get("/requests/incoming", controllers.IncomingConnectionRequests(p.Connections, logg))
				r.Post("/request/{userId}", controllers.SendConnectionRequest(p.Connections, logg))
				r.Post("/accept/{userId}", controllers.AcceptConnectionFrom(p.Connections, logg))
				r.Post("/reject/{userId}", controllers.RejectConnectionFrom(p.Connections, logg))
				r.Post("/requests/{requestId}/accept", controllers.AcceptConnectionRequest(p.Connections, logg))
				r.Post("/requests/{requestId}/reject", controllers.RejectConnectionRequest(p.Connections, logg))
			})

			r.Route("/posts", func(r chi.Router) {
				r.Post("/", controllers.CreatePost(p.Posts, logg))
				r.Get("/{postId}", controllers.GetPost(p.Posts, logg))
				r.Post("/{postId}/like", controllers.LikePost(p.Posts, logg))
				r.Delete("/{postId}/like", controllers.UnlikePost(p.Posts, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(p.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(p.Notifications, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(p.Notifications, logg))
			})
		})
	})

	return r
}

func idempotency(store middleware.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.Idempotency(store, logg)
}
