package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/docchat-backend/internal/http/handlers"
	httpMW "github.com/yungbote/docchat-backend/internal/http/middleware"
	"github.com/yungbote/docchat-backend/internal/observability"
	"github.com/yungbote/docchat-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	DocumentHandler *httpH.DocumentHandler
	ChatHandler     *httpH.ChatHandler
	RealtimeHandler *httpH.RealtimeHandler
	HealthHandler   *httpH.HealthHandler

	Metrics *observability.Metrics
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("docchat"))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.CORS())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	{
		if cfg.DocumentHandler != nil {
			api.POST("/documents", cfg.DocumentHandler.Upload)
			api.GET("/documents", cfg.DocumentHandler.List)
			api.GET("/documents/:id", cfg.DocumentHandler.Get)
			api.POST("/documents/:id/reingest", cfg.DocumentHandler.Reingest)
			api.DELETE("/documents/:id", cfg.DocumentHandler.Delete)
		}

		if cfg.ChatHandler != nil {
			api.POST("/documents/:id/chat", cfg.ChatHandler.Ask)
			api.GET("/documents/:id/turns", cfg.ChatHandler.ListTurns)
		}

		if cfg.RealtimeHandler != nil {
			api.GET("/sse/stream", cfg.RealtimeHandler.Stream)
		}
	}

	return r
}
