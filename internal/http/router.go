package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/retailcore/user-management/internal/config"
	"github.com/retailcore/user-management/internal/http/handler"
	"github.com/retailcore/user-management/internal/http/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, logger *zap.Logger, oauthHandler *handler.OAuthHandler, userHandler *handler.UserHandler, auth *middleware.Auth) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	oauth := r.Group("/oauth")
	{
		oauth.POST("/register", oauthHandler.RegisterClient)
		oauth.GET("/authorize", oauthHandler.Authorize)
		oauth.POST("/authorize", oauthHandler.SubmitLogin)
		oauth.POST("/token", oauthHandler.Token)
		oauth.POST("/introspect", oauthHandler.Introspect)
		oauth.POST("/revoke", oauthHandler.Revoke)

		clients := oauth.Group("/clients")
		{
			clients.GET("", oauthHandler.ListClients)
			clients.GET("/:clientId", oauthHandler.GetClient)
			clients.PUT("/:clientId", oauthHandler.UpdateClient)
			clients.DELETE("/:clientId", oauthHandler.DeleteClient)
		}
	}

	r.GET("/.well-known/oauth-authorization-server", oauthHandler.Metadata)

	r.POST("/user", userHandler.CreateUser)
	r.GET("/user/:userId", auth.ValidateSessionToken, userHandler.GetUserDetails)
	r.POST("/login", userHandler.Login)
	r.POST("/orders/completed", userHandler.OrderCompleted)
	r.GET("/health", userHandler.Health)

	return r
}
