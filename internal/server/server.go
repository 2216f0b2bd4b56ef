package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/tally/internal/config"
	"github.com/smallbiznis/tally/internal/loyalty"
	loyaltydomain "github.com/smallbiznis/tally/internal/loyalty/domain"
	"github.com/smallbiznis/tally/internal/providers/pdf"
	"github.com/smallbiznis/tally/internal/receipt"
	receiptdomain "github.com/smallbiznis/tally/internal/receipt/domain"
	"github.com/smallbiznis/tally/internal/tax"
	taxdomain "github.com/smallbiznis/tally/internal/tax/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	pdf.Module,
	tax.Module,
	loyalty.Module,
	receipt.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
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
	engine     *gin.Engine
	cfg        config.Config
	db         *gorm.DB
	genID      *snowflake.Node
	log        *zap.Logger
	receiptSvc receiptdomain.Service
	loyaltySvc loyaltydomain.Service
	taxSvc     taxdomain.Service
	pdfSvc     pdf.Provider
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	DB         *gorm.DB
	GenID      *snowflake.Node
	Log        *zap.Logger
	ReceiptSvc receiptdomain.Service
	LoyaltySvc loyaltydomain.Service
	TaxSvc     taxdomain.Service
	PDFSvc     pdf.Provider
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		db:         p.DB,
		genID:      p.GenID,
		log:        p.Log.Named("http"),
		receiptSvc: p.ReceiptSvc,
		loyaltySvc: p.LoyaltySvc,
		taxSvc:     p.TaxSvc,
		pdfSvc:     p.PDFSvc,
	}
	s.RegisterAPIRoutes()
	return s
}

func (s *Server) RegisterAPIRoutes() {
	v1 := s.engine.Group("/v1")
	v1.Use(s.SessionContext())

	receipts := v1.Group("/receipts")
	{
		receipts.POST("/compute", s.ComputeReceipt)
		receipts.POST("", s.SubmitReceipt)
		receipts.GET("", s.ListReceipts)
		receipts.GET("/:id", s.GetReceipt)
		receipts.GET("/:id/pdf", s.GetReceiptPDF)
	}

	accounts := v1.Group("/loyalty/accounts")
	{
		accounts.POST("", s.EnrollLoyaltyAccount)
		accounts.GET("/:customer_id", s.GetLoyaltyAccount)
		accounts.POST("/:customer_id/preview", s.PreviewRedemption)
	}

	rules := v1.Group("/loyalty/rules")
	{
		rules.POST("", s.CreateLoyaltyRule)
		rules.GET("", s.ListLoyaltyRules)
		rules.POST("/:id/activate", s.ActivateLoyaltyRule)
	}

	policies := v1.Group("/tax-policies")
	{
		policies.POST("", s.CreateTaxPolicy)
		policies.GET("", s.ListTaxPolicies)
		policies.PATCH("/:id", s.UpdateTaxPolicy)
		policies.POST("/:id/disable", s.DisableTaxPolicy)
	}
}
