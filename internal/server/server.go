package server

import (
	"context"
	"net/http"
	"time"

	"github.com/complyops/taxtrail/internal/config"
	"github.com/complyops/taxtrail/internal/events"
	"github.com/complyops/taxtrail/internal/filing"
	filingdomain "github.com/complyops/taxtrail/internal/filing/domain"
	"github.com/complyops/taxtrail/internal/latefee"
	obsmetrics "github.com/complyops/taxtrail/internal/observability/metrics"
	"github.com/complyops/taxtrail/internal/reconciliation"
	recondomain "github.com/complyops/taxtrail/internal/reconciliation/domain"
	"github.com/complyops/taxtrail/internal/sourceledger"
	"github.com/complyops/taxtrail/internal/stepledger"
	stepdomain "github.com/complyops/taxtrail/internal/stepledger/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	obsmetrics.Module,
	events.Module,
	latefee.Module,
	sourceledger.Module,
	stepledger.Module,
	filing.Module,
	reconciliation.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

type ServerParams struct {
	fx.In

	Engine    *gin.Engine
	Log       *zap.Logger
	Config    config.Config
	FilingSvc filingdomain.Service
	StepSvc   stepdomain.Service
	ReconSvc  recondomain.Service
}

type Server struct {
	engine    *gin.Engine
	log       *zap.Logger
	cfg       config.Config
	filingSvc filingdomain.Service
	stepSvc   stepdomain.Service
	reconSvc  recondomain.Service
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:    p.Engine,
		log:       p.Log.Named("server"),
		cfg:       p.Config,
		filingSvc: p.FilingSvc,
		stepSvc:   p.StepSvc,
		reconSvc:  p.ReconSvc,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": s.cfg.AppVersion})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/v1", OrgMiddleware())

	v1.POST("/filings", s.createFiling)
	v1.GET("/filings", s.listFilings)
	v1.GET("/filings/overdue", s.listOverdue)
	v1.GET("/filings/due", s.listDueWithin)
	v1.GET("/filings/:id", s.getFiling)
	v1.GET("/filings/:id/steps", s.listSteps)
	v1.POST("/filings/:id/sub-return-a", s.fileSubReturnA)
	v1.POST("/filings/:id/sub-return-b", s.fileSubReturnB)
	v1.POST("/filings/:id/lock", s.lockFiling)
	v1.POST("/filings/:id/unlock", s.unlockFiling)
	v1.POST("/filings/:id/amendment/complete", s.completeAmendment)
	v1.POST("/filings/:id/charges/recalculate", s.recalculateCharges)

	v1.POST("/reconciliations/compute", s.computeClaimed)
	v1.POST("/reconciliations/sync", s.mergeCounterparty)
	v1.POST("/reconciliations/resolve", s.resolveDiscrepancy)
	v1.GET("/reconciliations", s.getAnalysis)
	v1.GET("/reconciliations/report", s.fyReport)
}

func run(lc fx.Lifecycle, s *Server, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
