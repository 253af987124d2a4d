package handler

import (
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"videoapi/internal/events"
	"videoapi/internal/http/middleware"
	"videoapi/internal/model"
	"videoapi/internal/service"
)

// Deps is what the HTTP layer needs from the rest of the process.
type Deps struct {
	DB        *sql.DB
	Videos    service.VideoService
	Users     service.UserService
	Hub       *events.Hub
	Auth      middleware.Verifier
	Gatherer  prometheus.Gatherer
	Heartbeat time.Duration
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/health", HealthCheck(d.DB))
	app.Get("/healthz", LivenessProbe())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))

	authn := middleware.Authenticate(d.Auth)
	writers := middleware.RequireRole(model.RoleAdmin, model.RoleEditor)

	videos := app.Group("/videos", authn)
	videos.Get("/", ListVideos(d.Videos))
	videos.Post("/", writers, UploadVideo(d.Videos))
	videos.Get("/:id", GetVideo(d.Videos))
	videos.Delete("/:id", writers, DeleteVideo(d.Videos))
	videos.Get("/:id/stream", StreamVideo(d.Videos))

	ev := app.Group("/events", authn)
	ev.Get("/", SubscribeEvents(d.Hub, d.Videos, d.Heartbeat))
	ev.Post("/:subscriptionId/videos/:id", JoinVideo(d.Hub, d.Videos))
	ev.Delete("/:subscriptionId/videos/:id", LeaveVideo(d.Hub))

	users := app.Group("/users", authn, middleware.RequireRole(model.RoleAdmin))
	users.Get("/", ListUsers(d.Users))
	users.Get("/tenants", ListTenants(d.Users))
	users.Get("/:id", GetUser(d.Users))
	users.Patch("/:id/role", UpdateUserRole(d.Users))
	users.Patch("/:id/tenant", UpdateUserTenant(d.Users))
}
