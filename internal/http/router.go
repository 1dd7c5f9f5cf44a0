package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/lumachat/luma-backend/internal/http/handlers"
	httpMW "github.com/lumachat/luma-backend/internal/http/middleware"
	"github.com/lumachat/luma-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	AllowedOrigins string

	ChatHandler    *httpH.ChatHandler
	SessionHandler *httpH.SessionHandler
	MemoHandler    *httpH.MemoHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.RequestID())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	if cfg.HealthHandler != nil {
		r.GET("/health", cfg.HealthHandler.HealthCheck)
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.ChatHandler != nil {
			api.POST("/chat", cfg.ChatHandler.Chat)
		}
		if cfg.SessionHandler != nil {
			api.GET("/sessions", cfg.SessionHandler.List)
			api.GET("/sessions/:id", cfg.SessionHandler.Get)
			api.GET("/sessions/:id/messages", cfg.SessionHandler.ListMessages)
			api.DELETE("/sessions/:id", cfg.SessionHandler.Delete)
		}
		if cfg.MemoHandler != nil {
			api.GET("/sessions/:id/memo", cfg.MemoHandler.Get)
			api.PUT("/sessions/:id/memo", cfg.MemoHandler.Put)
			api.DELETE("/sessions/:id/memo", cfg.MemoHandler.Delete)
		}
	}

	return r
}
