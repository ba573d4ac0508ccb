package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/docchat-backend/internal/db"
	apphttp "github.com/yungbote/docchat-backend/internal/http"
	"github.com/yungbote/docchat-backend/internal/observability"
	"github.com/yungbote/docchat-backend/internal/platform/logger"
	"github.com/yungbote/docchat-backend/internal/realtime"
	"github.com/yungbote/docchat-backend/internal/realtime/bus"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Services Services
	SSEHub   *realtime.SSEHub

	sseBus       bus.Bus
	otelShutdown func(context.Context) error
	runCtx       context.Context
	cancel       context.CancelFunc
	started      bool
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg := LoadConfig()
	metrics := observability.Init(log)

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	hub := realtime.NewSSEHub(log)

	var sseBus bus.Bus
	if cfg.RedisAddr != "" {
		sseBus, err = bus.NewRedisBus(log)
		if err != nil {
			// Single-instance fanout still works without the relay.
			log.Warn("Redis SSE bus unavailable, running hub-local", "error", err)
			sseBus = nil
		}
	}
	fanout := realtime.NewStatusFanout(hub, busPublisher(sseBus), log)

	// Lifecycle context for everything that must outlive a request but
	// stop on Close: background collectors, the SSE relay, detached
	// ingestion runs.
	runCtx, cancel := context.WithCancel(context.Background())

	reposet := wireRepos(theDB, log)
	serviceset, err := wireServices(runCtx, theDB, log, cfg, reposet, fanout)
	if err != nil {
		cancel()
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, reposet, serviceset, hub)
	router := apphttp.NewRouter(apphttp.RouterConfig{
		Log:             log,
		DocumentHandler: handlerset.Document,
		ChatHandler:     handlerset.Chat,
		RealtimeHandler: handlerset.Realtime,
		HealthHandler:   handlerset.Health,
		Metrics:         metrics,
	})

	return &App{
		Log:      log,
		DB:       theDB,
		Router:   router,
		Cfg:      cfg,
		Repos:    reposet,
		Services: serviceset,
		SSEHub:   hub,
		sseBus:   sseBus,
		runCtx:   runCtx,
		cancel:   cancel,
	}, nil
}

// busPublisher keeps the nil-interface pitfall out of the fanout: a nil
// *redisBus stored in a non-nil interface would defeat the fanout's nil
// check.
func busPublisher(b bus.Bus) realtime.MessagePublisher {
	if b == nil {
		return nil
	}
	return b
}

func (a *App) Start() {
	if a == nil || a.started {
		return
	}
	a.started = true
	ctx := a.runCtx

	a.otelShutdown = observability.InitOTel(ctx, a.Log, observability.OtelConfig{
		ServiceName: "docchat",
		Environment: a.Cfg.Environment,
		Version:     a.Cfg.Version,
	})

	if m := observability.Current(); m != nil {
		m.Serve(ctx, a.Log)
		m.StartPostgresCollector(ctx, a.Log, a.DB)
		m.StartDocumentStatusCollector(ctx, a.Log, a.DB)
		m.StartRedisCollector(ctx, a.Log, a.Cfg.RedisAddr)
	}

	if a.sseBus != nil {
		if err := a.sseBus.StartForwarder(ctx, a.SSEHub.Broadcast); err != nil {
			a.Log.Warn("SSE bus forwarder failed to start", "error", err)
		}
	}
}

func (a *App) Run() error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(a.Cfg.Addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.sseBus != nil {
		_ = a.sseBus.Close()
	}
	if a.otelShutdown != nil {
		shutdownCtx, cancel := context.WithCancel(context.Background())
		_ = a.otelShutdown(shutdownCtx)
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
