package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hivelabs/hivetally/internal/aggregate"
	"github.com/hivelabs/hivetally/internal/cache"
	"github.com/hivelabs/hivetally/internal/config"
	"github.com/hivelabs/hivetally/internal/exclusion"
	exclusiondomain "github.com/hivelabs/hivetally/internal/exclusion/domain"
	"github.com/hivelabs/hivetally/internal/ledger"
	"github.com/hivelabs/hivetally/internal/observability"
	obsmiddleware "github.com/hivelabs/hivetally/internal/observability/logger"
	obsmetrics "github.com/hivelabs/hivetally/internal/observability/metrics"
	obstracing "github.com/hivelabs/hivetally/internal/observability/tracing"
	"github.com/hivelabs/hivetally/internal/query"
	querydomain "github.com/hivelabs/hivetally/internal/query/domain"
	"github.com/hivelabs/hivetally/internal/ratelimit"
	"github.com/hivelabs/hivetally/internal/tally"
	tallydomain "github.com/hivelabs/hivetally/internal/tally/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	cache.Module,
	ledger.Module,
	aggregate.Module,
	exclusion.Module,
	tally.Module,
	query.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	db           *gorm.DB
	tallySvc     tallydomain.Service
	querySvc     querydomain.Service
	exclusionSvc exclusiondomain.Service
	obsMetrics   *obsmetrics.Metrics
	eventLimiter *ratelimit.EventIngestLimiter
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB
	TallySvc     tallydomain.Service
	QuerySvc     querydomain.Service
	ExclusionSvc exclusiondomain.Service
	ObsMetrics   *obsmetrics.Metrics           `optional:"true"`
	EventLimiter *ratelimit.EventIngestLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		db:           p.DB,
		tallySvc:     p.TallySvc,
		querySvc:     p.QuerySvc,
		exclusionSvc: p.ExclusionSvc,
		obsMetrics:   p.ObsMetrics,
		eventLimiter: p.EventLimiter,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	events := api.Group("/events")
	events.POST("/message-created", s.MessageCreated)
	events.POST("/message-edited", s.MessageEdited)

	chats := api.Group("/chats")
	chats.GET("/:chat_id/total", s.ChatTotal)
	chats.GET("/:chat_id/top", s.ChatTop)
	chats.GET("/:chat_id/users/:user_id/total", s.UserTotal)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin", s.AdminRequired())

	admin.GET("/freezes", s.ListFrozen)
	admin.GET("/freezes/pending", s.ListPendingProposals)
	admin.POST("/freezes", s.ProposeFreeze)
	admin.POST("/unfreezes", s.ProposeUnfreeze)
	admin.POST("/freezes/confirm", s.ConfirmProposal)
	admin.POST("/freezes/reject", s.RejectProposal)
}
