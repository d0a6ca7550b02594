package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	analyticsdomain "github.com/edgebank/assist/internal/analytics/domain"
	"github.com/edgebank/assist/internal/config"
	convmemdomain "github.com/edgebank/assist/internal/convmem/domain"
	directorydomain "github.com/edgebank/assist/internal/directory/domain"
	feecalcdomain "github.com/edgebank/assist/internal/feecalc/domain"
	feeruledomain "github.com/edgebank/assist/internal/feerule/domain"
	"github.com/edgebank/assist/internal/observability"
	obsmiddleware "github.com/edgebank/assist/internal/observability/logger"
	obsmetrics "github.com/edgebank/assist/internal/observability/metrics"
	obstracing "github.com/edgebank/assist/internal/observability/tracing"
	"github.com/edgebank/assist/internal/orchestrator"
	"github.com/edgebank/assist/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug: obsCfg.Debug(),
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
		Addr:    cfg.ListenAddr,
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
	log          *zap.Logger
	db           *gorm.DB
	orchestrator *orchestrator.Orchestrator
	feeSvc       feecalcdomain.Service
	feeRuleSvc   feeruledomain.Service
	directorySvc directorydomain.Service
	memorySvc    convmemdomain.Service
	analyticsSvc analyticsdomain.Service
	chatLimiter  *ratelimit.ChatLimiter
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	DB           *gorm.DB
	Orchestrator *orchestrator.Orchestrator
	FeeSvc       feecalcdomain.Service
	FeeRuleSvc   feeruledomain.Service
	DirectorySvc directorydomain.Service
	MemorySvc    convmemdomain.Service
	AnalyticsSvc analyticsdomain.Service
	ChatLimiter  *ratelimit.ChatLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http.server"),
		db:           p.DB,
		orchestrator: p.Orchestrator,
		feeSvc:       p.FeeSvc,
		feeRuleSvc:   p.FeeRuleSvc,
		directorySvc: p.DirectorySvc,
		memorySvc:    p.MemorySvc,
		analyticsSvc: p.AnalyticsSvc,
		chatLimiter:  p.ChatLimiter,
	}

	svc.registerAPIRoutes()
	svc.registerHealthRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Chat --------
	api.POST("/chat", s.chatRateLimit, s.Chat)
	api.GET("/chat/history/:session", s.GetChatHistory)
	api.DELETE("/chat/history/:session", s.ClearChatHistory)

	// -------- Fee engine --------
	api.POST("/fees/calculate", s.CalculateFee)
	api.POST("/fees/query", s.QueryFee)
	api.GET("/fees/rules", s.ListFeeRules)

	// -------- Directory --------
	api.GET("/directory/search", s.SearchDirectory)

	// -------- Analytics --------
	api.GET("/analytics/performance", s.GetPerformance)
	api.GET("/analytics/most-asked", s.GetMostAsked)
	api.GET("/analytics/unanswered", s.GetUnanswered)
	api.GET("/analytics/conversations/:session", s.GetConversationLog)
}

func (s *Server) registerHealthRoutes() {
	s.engine.GET("/health/detail", s.HealthDetail)
}
