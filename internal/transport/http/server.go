package http

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"findash/internal/bootstrap"
	"findash/internal/transport/http/handler"
	"findash/internal/transport/http/middleware"
)

// Handlers is everything the router mounts.
type Handlers struct {
	Auth         *handler.AuthHandler
	Chat         *handler.ChatHandler
	Conversation *handler.ConversationHandler
	Dashboard    *handler.DashboardHandler
	Health       *handler.HealthHandler
}

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)

	h := Handlers{
		Auth:         handler.NewAuthHandler(app.Services.Auth),
		Chat:         handler.NewChatHandler(app.Services.Chat),
		Conversation: handler.NewConversationHandler(app.Services.Conversations),
		Dashboard:    handler.NewDashboardHandler(app.Services.Conversations),
		Health: handler.NewHealthHandler(
			app.Config.App.Name,
			app.Config.App.Env,
			app.StartedAt,
			healthDependencies(app)...,
		),
	}
	return newEngine(app.Logger, app.Config.Auth.JWTSecret, app.Config.Upload.MaxBytes, h)
}

func newEngine(logger *zap.Logger, jwtSecret string, maxUpload int64, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestLogger(logger), middleware.Recovery(logger))
	if maxUpload > 0 {
		// multipart overhead on top of the file itself
		router.MaxMultipartMemory = maxUpload + 1<<20
	}

	optionalAuth := middleware.OptionalJWT(jwtSecret)
	requiredAuth := middleware.AuthJWT(jwtSecret)

	router.GET("/healthz", h.Health.Check)
	router.POST("/chat", optionalAuth, h.Chat.Chat)
	router.POST("/chat/stream", optionalAuth, h.Chat.Stream)
	router.GET("/dashboard/:id", optionalAuth, h.Dashboard.Page)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)
	authGroup.GET("/me", requiredAuth, h.Auth.Me)

	conversations := v1.Group("/conversations")
	conversations.GET("", requiredAuth, h.Conversation.List)
	conversations.Use(optionalAuth)
	conversations.POST("", h.Conversation.Create)
	conversations.DELETE("/:id", h.Conversation.Delete)
	conversations.POST("/:id/files", h.Conversation.UploadFile)
	conversations.GET("/:id/files", h.Conversation.ListFiles)
	conversations.GET("/:id/messages", h.Conversation.Messages)

	return router
}

func healthDependencies(app *bootstrap.App) []handler.Dependency {
	deps := []handler.Dependency{{
		Name: "database",
		Check: func(ctx context.Context) error {
			sqlDB, err := app.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}
	if app.Redis != nil {
		deps = append(deps, handler.Dependency{
			Name:  "redis",
			Check: func(ctx context.Context) error { return app.Redis.Ping(ctx).Err() },
		})
	}
	if app.MQConn != nil {
		deps = append(deps, handler.Dependency{
			Name: "rabbitmq",
			Check: func(context.Context) error {
				if app.MQConn.IsClosed() {
					return errors.New("connection closed")
				}
				return nil
			},
		})
	}
	if app.Objects != nil {
		deps = append(deps, handler.Dependency{
			Name:     "minio",
			Optional: true,
			Check:    app.Objects.Ping,
		})
	}
	return deps
}
