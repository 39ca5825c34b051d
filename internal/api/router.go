package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/tidylink/internal/app"
	iauth "github.com/charlesng35/tidylink/internal/auth"
	"github.com/charlesng35/tidylink/internal/handlers"
	"github.com/charlesng35/tidylink/internal/middleware"
	"github.com/charlesng35/tidylink/internal/monitoring"
	"github.com/charlesng35/tidylink/internal/realtime"
	"github.com/charlesng35/tidylink/internal/services"
)

// NewRouter builds the Gin engine for the dev backend, wires middleware and
// registers the marketplace notification, message and socket routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	hub := realtime.NewHub()

	notificationSvc, err := services.NewNotificationService(db, hub)
	if err != nil {
		return nil, err
	}
	chatSvc, err := services.NewChatService(db, hub)
	if err != nil {
		return nil, err
	}
	userSvc, err := services.NewUserService(db)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())

	// Health endpoints (public)
	health := monitoring.NewHealthManager(
		monitoring.DatabaseCheck(db, 0),
		monitoring.HubCheck(hub),
	)
	r.GET("/health", handlers.Health())
	r.GET("/health/ready", handlers.Readiness(health))

	// Dev-only helpers (public): token issuing and notification injection.
	tokens := handlers.NewDevTokenHandler(userSvc, jwt)
	notifications := handlers.NewNotificationHandler(notificationSvc)
	dev := r.Group("/api/dev")
	{
		dev.POST("/token", tokens.Issue)
		dev.POST("/notifications", notifications.Create)
	}

	api := r.Group("/api")
	api.Use(middleware.Auth(jwt, false))

	notif := api.Group("/notifications")
	{
		notif.GET("/", notifications.List)
		notif.GET("/unread_count/", notifications.UnreadCount)
		notif.POST("/mark_all_as_read/", notifications.MarkAllRead)
		notif.POST("/:id/mark_as_read/", notifications.MarkRead)
	}

	messages := handlers.NewMessageHandler(chatSvc)
	msgs := api.Group("/messages")
	{
		msgs.POST("/", messages.Send)
		msgs.GET("/unread-count", messages.UnreadCount)
		msgs.GET("/chat/:chatId/messages", messages.List)
		msgs.POST("/chat/:chatId/mark-all-read/", messages.MarkAllRead)
		msgs.POST("/:id/mark-as-read/", messages.MarkRead)
	}

	// Browsers cannot set headers on a WebSocket handshake, so the token rides
	// in the query string.
	sockets := handlers.NewChatSocketHandler(hub, chatSvc)
	r.GET("/ws/chat/:chatId/", middleware.Auth(jwt, true), sockets.Stream)
	feed := handlers.NewNotificationSocketHandler(hub)
	r.GET("/ws/notifications/", middleware.Auth(jwt, true), feed.Stream)

	if cfg.Metrics.Enabled {
		endpoint := cfg.Metrics.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
